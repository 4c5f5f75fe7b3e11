// Package form holds the create and edit form used by the dashboard. A
// submission only reaches the network once every required field is present.
package form

import (
	"context"
	"fmt"
	"strings"

	"github.com/sujalbistaa/careerboard/internal/apperr"
	"github.com/sujalbistaa/careerboard/internal/career"
	"github.com/sujalbistaa/careerboard/internal/imagehost"
	"github.com/sujalbistaa/careerboard/internal/relay"
	"github.com/sujalbistaa/careerboard/internal/upstream"
)

type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

func (m Mode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "create"
}

const (
	MsgRequiredFields = "Please fill in all required fields"
	MsgRequirements   = "Please add at least one requirement"
	MsgImageRequired  = "Please upload an image"
	MsgCreated        = "Job created successfully"
	MsgUpdated        = "Job updated successfully"
)

// Draft is what the operator has typed into the form so far.
type Draft struct {
	Branch   string
	Title    string
	Location string
	Role     string
	Type     string
	Link     string
	// Requirements is the textarea content, one requirement per line.
	Requirements string
	// ExistingImage is the stored poster URL when editing.
	ExistingImage string
	Image         *imagehost.Image
}

// DraftFromPosting pre-fills an edit form.
func DraftFromPosting(p career.Posting) Draft {
	return Draft{
		Branch:        p.Branch,
		Title:         p.Title,
		Location:      p.Location,
		Role:          p.Role,
		Type:          p.Type,
		Link:          p.Link,
		Requirements:  p.Requirements.Text(),
		ExistingImage: p.Image,
	}
}

// Validate checks the draft before anything is sent. maxImageBytes of zero
// disables the size check.
func (d Draft) Validate(mode Mode, maxImageBytes int64) error {
	for _, v := range []string{d.Branch, d.Title, d.Location, d.Role, d.Type} {
		if strings.TrimSpace(v) == "" {
			return apperr.ValidationFailed(MsgRequiredFields)
		}
	}
	if career.RequirementLines(d.Requirements).Empty() {
		return apperr.ValidationFailed(MsgRequirements)
	}

	if d.Image == nil {
		if mode == ModeCreate {
			return apperr.ValidationFailed(MsgImageRequired)
		}
		return nil
	}
	if !d.Image.IsImage() {
		return apperr.UploadRejected("File must be an image")
	}
	if size := int64(len(d.Image.Data)); maxImageBytes > 0 && size > maxImageBytes {
		return apperr.UploadRejected(fmt.Sprintf("File too large (%.2f MB). Max %d MB.",
			float64(size)/(1<<20), maxImageBytes>>20))
	}
	return nil
}

// Input converts the draft into a relay submission.
func (d Draft) Input() *relay.Input {
	trimmed := func(s string) *string {
		v := strings.TrimSpace(s)
		return &v
	}
	reqs := career.RequirementLines(d.Requirements)

	in := &relay.Input{
		Payload: career.Payload{
			Branch:       trimmed(d.Branch),
			Title:        trimmed(d.Title),
			Location:     trimmed(d.Location),
			Role:         trimmed(d.Role),
			Type:         trimmed(d.Type),
			Requirements: &reqs,
		},
		Image: d.Image,
	}
	if link := strings.TrimSpace(d.Link); link != "" {
		in.Payload.Link = &link
	}
	if d.Image == nil && d.ExistingImage != "" {
		existing := d.ExistingImage
		in.Payload.Image = &existing
	}
	return in
}

// Submitter writes postings upstream. *relay.Relay satisfies it.
type Submitter interface {
	Create(ctx context.Context, in *relay.Input) (*upstream.Response, error)
	Update(ctx context.Context, id string, in *relay.Input) (*upstream.Response, error)
}

// Form is one create or edit form. After a successful submit the draft is
// cleared and Refresh is called once so the caller reloads the listing.
type Form struct {
	Mode          Mode
	ID            string
	Draft         Draft
	MaxImageBytes int64
	Refresh       func()
	// Response is the upstream reply to the last submit that reached it.
	Response *upstream.Response

	submitter Submitter
}

func New(mode Mode, id string, submitter Submitter, refresh func()) *Form {
	return &Form{Mode: mode, ID: id, submitter: submitter, Refresh: refresh}
}

// Submit validates and sends the draft. It returns the success notice to
// show the operator.
func (f *Form) Submit(ctx context.Context) (string, error) {
	if err := f.Draft.Validate(f.Mode, f.MaxImageBytes); err != nil {
		return "", err
	}

	var (
		resp     *upstream.Response
		err      error
		msg      string
		fallback string
	)
	in := f.Draft.Input()
	switch f.Mode {
	case ModeEdit:
		resp, err = f.submitter.Update(ctx, f.ID, in)
		msg, fallback = MsgUpdated, "Update failed"
	default:
		resp, err = f.submitter.Create(ctx, in)
		msg, fallback = MsgCreated, "Create failed"
	}
	if err != nil {
		return "", err
	}
	f.Response = resp
	if !resp.OK() {
		m := resp.Message()
		if m == "" {
			m = fallback
		}
		return "", apperr.UpstreamError(resp.Status, m)
	}

	f.Draft = Draft{}
	if f.Refresh != nil {
		f.Refresh()
	}
	return msg, nil
}
