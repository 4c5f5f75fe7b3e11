package career

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UniqueFileName keeps the extension of name and appends a timestamp and a
// short random id to its base, so re-uploading the same poster never
// collides on the image host.
func UniqueFileName(name string, now time.Time) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		name = ""
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		base = "poster"
	}
	short := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%s_%d_%s%s", base, now.UnixMilli(), short, ext)
}
