// Package listing derives the views shown on the careers page and the
// dashboard from a freshly fetched list of postings.
package listing

import (
	"strings"

	"github.com/sujalbistaa/careerboard/internal/career"
)

// Filter keeps the postings whose text contains q, ignoring case. A blank
// query keeps everything.
func Filter(postings []career.Posting, q string) []career.Posting {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return postings
	}

	out := make([]career.Posting, 0, len(postings))
	for _, p := range postings {
		if strings.Contains(strings.ToLower(p.SearchText()), q) {
			out = append(out, p)
		}
	}
	return out
}

// Select returns the posting named by the job query parameter, falling back
// to the first one. It returns nil for an empty list.
func Select(postings []career.Posting, job string) *career.Posting {
	if len(postings) == 0 {
		return nil
	}
	if job != "" {
		for i := range postings {
			if postings[i].ID == job {
				return &postings[i]
			}
		}
	}
	return &postings[0]
}

// View is the data a listing page renders.
type View struct {
	Query    string
	Postings []career.Posting
	Selected *career.Posting
	Total    int
}

func Build(postings []career.Posting, q, job string) View {
	filtered := Filter(postings, q)
	return View{
		Query:    q,
		Postings: filtered,
		Selected: Select(filtered, job),
		Total:    len(postings),
	}
}
