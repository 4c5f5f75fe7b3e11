// Package relay reshapes dashboard submissions into the record the upstream
// API stores. When a poster file is attached it is uploaded to the image
// host first and the hosted URL is merged into the record.
//
// The upload and the record write are two separate calls. If the write fails
// after a successful upload the hosted file is left behind.
package relay

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sujalbistaa/careerboard/internal/apperr"
	"github.com/sujalbistaa/careerboard/internal/career"
	"github.com/sujalbistaa/careerboard/internal/imagehost"
	"github.com/sujalbistaa/careerboard/internal/upstream"
)

// Forwarder sends requests to the upstream API.
type Forwarder interface {
	Do(ctx context.Context, req upstream.Request) (*upstream.Response, error)
	DoJSON(ctx context.Context, method, path string, v any) (*upstream.Response, error)
}

// Input is one create or update submission.
type Input struct {
	Payload career.Payload
	Image   *imagehost.Image
}

type Relay struct {
	upstream      Forwarder
	uploader      imagehost.Uploader
	maxImageBytes int64
	logger        *zap.Logger
	now           func() time.Time
}

// New builds a relay. A nil uploader means posters are sent to the upstream
// API itself as a multipart "image" field.
func New(fw Forwarder, uploader imagehost.Uploader, maxImageBytes int64, logger *zap.Logger) *Relay {
	return &Relay{
		upstream:      fw,
		uploader:      uploader,
		maxImageBytes: maxImageBytes,
		logger:        logger,
		now:           time.Now,
	}
}

// MaxImageBytes is the largest poster accepted.
func (r *Relay) MaxImageBytes() int64 {
	return r.maxImageBytes
}

func (r *Relay) Create(ctx context.Context, in *Input) (*upstream.Response, error) {
	if err := r.validate(in, true); err != nil {
		return nil, err
	}

	path := upstream.CareerPath("")
	if r.uploader == nil {
		return r.forwardMultipart(ctx, http.MethodPost, path, in)
	}
	if err := r.upload(ctx, in); err != nil {
		return nil, err
	}

	r.logger.Info("forwarding create", zap.Bool("with_image", in.Payload.Image != nil))
	return r.upstream.DoJSON(ctx, http.MethodPost, path, in.Payload)
}

// Update writes changes to posting id. Without a new file the submitted
// image URL, if any, is passed through untouched; a blank one is dropped.
func (r *Relay) Update(ctx context.Context, id string, in *Input) (*upstream.Response, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.ValidationFailed("Missing posting id")
	}
	if err := r.validate(in, false); err != nil {
		return nil, err
	}

	if in.Payload.Image != nil && strings.TrimSpace(*in.Payload.Image) == "" {
		in.Payload.Image = nil
	}
	in.Payload.ID = id

	path := upstream.CareerPath(id)
	if in.Image != nil && r.uploader == nil {
		return r.forwardMultipart(ctx, http.MethodPut, path, in)
	}
	if err := r.upload(ctx, in); err != nil {
		return nil, err
	}

	r.logger.Info("forwarding update", zap.String("id", id), zap.Bool("with_image", in.Payload.Image != nil))
	return r.upstream.DoJSON(ctx, http.MethodPut, path, in.Payload)
}

func (r *Relay) Delete(ctx context.Context, id string) (*upstream.Response, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.ValidationFailed("Missing posting id")
	}
	r.logger.Info("forwarding delete", zap.String("id", id))
	return r.upstream.Do(ctx, upstream.Request{Method: http.MethodDelete, Path: upstream.CareerPath(id)})
}

func (r *Relay) validate(in *Input, create bool) error {
	if in.Image != nil {
		if !in.Image.IsImage() {
			return apperr.UploadRejected("File must be an image")
		}
		if r.maxImageBytes > 0 && int64(len(in.Image.Data)) > r.maxImageBytes {
			return apperr.UploadRejected(fmt.Sprintf("File too large (%.2f MB). Max %d MB.",
				float64(len(in.Image.Data))/(1<<20), r.maxImageBytes>>20))
		}
	}

	reqs := in.Payload.Requirements
	if create && (reqs == nil || reqs.Empty()) {
		return apperr.ValidationFailed("Please add at least one requirement")
	}
	if !create && reqs != nil && reqs.Empty() {
		return apperr.ValidationFailed("Please add at least one requirement")
	}
	if reqs != nil && reqs.IsRaw() {
		r.logger.Warn("requirements could not be split into a list, keeping raw value")
	}
	return nil
}

// upload sends the poster to the image host and merges the result into the
// payload. It is a no-op without a file or without an image host.
func (r *Relay) upload(ctx context.Context, in *Input) error {
	if in.Image == nil || r.uploader == nil {
		return nil
	}

	img := *in.Image
	img.FileName = career.UniqueFileName(img.FileName, r.now())

	asset, err := r.uploader.Upload(ctx, img)
	if err != nil {
		return err
	}

	url, fileID := asset.URL, asset.FileID
	in.Payload.Image = &url
	in.Payload.ImageID = &fileID
	in.Image = nil
	return nil
}

// forwardMultipart sends the record as form fields with the poster under
// the "image" field the upstream API reads.
func (r *Relay) forwardMultipart(ctx context.Context, method, path string, in *Input) (*upstream.Response, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if in.Payload.ID != "" {
		if err := w.WriteField("id", in.Payload.ID); err != nil {
			return nil, apperr.Internal("encoding multipart", err)
		}
	}
	for _, f := range in.Payload.Fields() {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, apperr.Internal("encoding multipart", err)
		}
	}

	if in.Image != nil {
		name := career.UniqueFileName(in.Image.FileName, r.now())
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, escapeQuotes(name)))
		h.Set("Content-Type", in.Image.ContentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, apperr.Internal("encoding multipart", err)
		}
		if _, err := part.Write(in.Image.Data); err != nil {
			return nil, apperr.Internal("encoding multipart", err)
		}
		r.logger.Info("forwarding poster to upstream",
			zap.String("file_name", name),
			zap.Int("file_size", len(in.Image.Data)))
	}

	if err := w.Close(); err != nil {
		return nil, apperr.Internal("encoding multipart", err)
	}

	return r.upstream.Do(ctx, upstream.Request{
		Method:      method,
		Path:        path,
		Body:        &buf,
		ContentType: w.FormDataContentType(),
	})
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
