package career

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var requirementSeparator = regexp.MustCompile(`\r?\n|,`)

// Requirements is an ordered list of requirement lines. When a submitted
// value cannot be read as a list at all, the raw text is kept instead and the
// value marshals as a JSON string rather than an array.
type Requirements struct {
	items []string
	raw   string
	isRaw bool
}

// RequirementList builds a list, dropping blank entries and trimming the rest.
func RequirementList(items ...string) Requirements {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := strings.TrimSpace(it); s != "" {
			out = append(out, s)
		}
	}
	return Requirements{items: out}
}

// RequirementLines splits textarea input, one requirement per line.
func RequirementLines(text string) Requirements {
	return RequirementList(strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")...)
}

// NormalizeRequirements reads a submitted requirements value. A JSON array is
// taken element by element; anything else is split on newlines and commas.
// If splitting leaves nothing from non-blank input, the input is kept as-is.
func NormalizeRequirements(raw string) Requirements {
	if strings.TrimSpace(raw) == "" {
		return Requirements{}
	}

	var arr []any
	if err := json.Unmarshal([]byte(raw), &arr); err == nil {
		items := make([]string, 0, len(arr))
		for _, v := range arr {
			items = append(items, elementString(v))
		}
		return RequirementList(items...)
	}

	r := RequirementList(requirementSeparator.Split(raw, -1)...)
	if len(r.items) == 0 {
		return Requirements{raw: raw, isRaw: true}
	}
	return r
}

func elementString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64, bool:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Items returns the requirement lines. A preserved raw value is returned as
// a single line.
func (r Requirements) Items() []string {
	if r.isRaw {
		return []string{r.raw}
	}
	out := make([]string, len(r.items))
	copy(out, r.items)
	return out
}

// IsRaw reports whether the value could not be normalized into a list.
func (r Requirements) IsRaw() bool { return r.isRaw }

// Empty reports whether there is nothing to persist.
func (r Requirements) Empty() bool { return !r.isRaw && len(r.items) == 0 }

// FormValue encodes the value for a multipart field.
func (r Requirements) FormValue() string {
	if r.isRaw {
		return r.raw
	}
	b, _ := json.Marshal(r.list())
	return string(b)
}

// Text joins the lines for a textarea.
func (r Requirements) Text() string {
	return strings.Join(r.Items(), "\n")
}

func (r Requirements) list() []string {
	if r.items == nil {
		return []string{}
	}
	return r.items
}

func (r Requirements) MarshalJSON() ([]byte, error) {
	if r.isRaw {
		return json.Marshal(r.raw)
	}
	return json.Marshal(r.list())
}

// UnmarshalJSON accepts an array or a string; strings go through
// NormalizeRequirements.
func (r *Requirements) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Requirements{}
		return nil
	}

	var arr []any
	if err := json.Unmarshal(data, &arr); err == nil {
		items := make([]string, 0, len(arr))
		for _, v := range arr {
			items = append(items, elementString(v))
		}
		*r = RequirementList(items...)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("requirements must be an array or a string: %w", err)
	}
	*r = NormalizeRequirements(s)
	return nil
}
