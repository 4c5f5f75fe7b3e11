// Package imagehost uploads posting posters to an image hosting provider and
// reports the hosted URL back to the relay.
package imagehost

import (
	"context"
	"strings"
)

// Image is a poster file received from the dashboard.
type Image struct {
	FileName    string
	ContentType string
	Data        []byte
}

// IsImage reports whether the declared media type is an image type.
func (i Image) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(i.ContentType)), "image/")
}

// Asset is a hosted file.
type Asset struct {
	URL    string
	FileID string
}

type Uploader interface {
	Upload(ctx context.Context, img Image) (*Asset, error)
}
