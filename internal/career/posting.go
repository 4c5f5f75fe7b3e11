// Package career holds the job posting record and the normalization rules
// applied to it before it is written upstream.
package career

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Posting is a job listing as returned by the upstream API.
type Posting struct {
	ID           string       `json:"id"`
	Branch       string       `json:"branch"`
	Title        string       `json:"title"`
	Location     string       `json:"location"`
	Role         string       `json:"role"`
	Type         string       `json:"type"`
	Requirements Requirements `json:"requirements"`
	Image        string       `json:"image,omitempty"`
	ImageID      string       `json:"imageId,omitempty"`
	Link         string       `json:"link,omitempty"`
	Applicants   *int         `json:"applicants,omitempty"`
}

// Payload is the record sent upstream on create and update. Unset fields are
// omitted so an update only touches what the operator changed.
type Payload struct {
	ID           string        `json:"id,omitempty"`
	Branch       *string       `json:"branch,omitempty"`
	Title        *string       `json:"title,omitempty"`
	Location     *string       `json:"location,omitempty"`
	Role         *string       `json:"role,omitempty"`
	Type         *string       `json:"type,omitempty"`
	Requirements *Requirements `json:"requirements,omitempty"`
	Image        *string       `json:"image,omitempty"`
	ImageID      *string       `json:"imageId,omitempty"`
	Link         *string       `json:"link,omitempty"`
}

// SetField assigns a plain form field by its wire name. Unknown names are
// ignored and reported as false.
func (p *Payload) SetField(name, value string) bool {
	v := value
	switch name {
	case "branch":
		p.Branch = &v
	case "title":
		p.Title = &v
	case "location":
		p.Location = &v
	case "role":
		p.Role = &v
	case "type":
		p.Type = &v
	case "image":
		p.Image = &v
	case "imageId":
		p.ImageID = &v
	case "link":
		p.Link = &v
	case "requirements":
		r := NormalizeRequirements(value)
		p.Requirements = &r
	default:
		return false
	}
	return true
}

// Fields returns the payload's set fields as form values, in a stable order.
// Requirements are encoded as a JSON array string.
func (p *Payload) Fields() [][2]string {
	var out [][2]string
	add := func(name string, v *string) {
		if v != nil {
			out = append(out, [2]string{name, *v})
		}
	}
	add("branch", p.Branch)
	add("title", p.Title)
	add("location", p.Location)
	add("role", p.Role)
	add("type", p.Type)
	if p.Requirements != nil {
		out = append(out, [2]string{"requirements", p.Requirements.FormValue()})
	}
	add("image", p.Image)
	add("imageId", p.ImageID)
	add("link", p.Link)
	return out
}

// DecodePostings accepts a bare JSON array or a {"data": [...]} envelope.
func DecodePostings(body []byte) ([]Posting, error) {
	var postings []Posting
	if err := json.Unmarshal(body, &postings); err == nil {
		return postings, nil
	}

	var envelope struct {
		Data []Posting `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode postings: %w", err)
	}
	return envelope.Data, nil
}

// DecodePosting accepts a bare JSON object or a {"data": {...}} envelope.
func DecodePosting(body []byte) (*Posting, error) {
	var envelope struct {
		Data *Posting `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Data != nil {
		return envelope.Data, nil
	}

	var p Posting
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode posting: %w", err)
	}
	return &p, nil
}

// SearchText is the text a listing query is matched against.
func (p Posting) SearchText() string {
	parts := []string{p.Branch, p.Title, p.Location, p.Role, p.Type}
	parts = append(parts, p.Requirements.Items()...)
	return strings.Join(parts, " ")
}

// UnmarshalJSON tolerates numeric ids from the upstream store.
func (p *Posting) UnmarshalJSON(data []byte) error {
	type alias Posting
	var raw struct {
		alias
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Posting(raw.alias)
	p.ID = idString(raw.ID)
	return nil
}

func idString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
