package imagehost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sujalbistaa/careerboard/internal/apperr"
	"github.com/sujalbistaa/careerboard/internal/telemetry"
)

var tracer = telemetry.GetTracer("careerboard/imagehost")

const imageKitTags = "career,job-posting"

// ImageKit uploads through ImageKit's upload API using the account's private
// key as the basic-auth user name.
type ImageKit struct {
	uploadURL  string
	privateKey string
	folder     string
	client     *http.Client
	logger     *zap.Logger
}

func NewImageKit(uploadURL, privateKey, folder string, timeout time.Duration, logger *zap.Logger) *ImageKit {
	return &ImageKit{
		uploadURL:  uploadURL,
		privateKey: privateKey,
		folder:     folder,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type imageKitSuccess struct {
	URL    string `json:"url"`
	FileID string `json:"fileId"`
}

func (k *ImageKit) Upload(ctx context.Context, img Image) (*Asset, error) {
	if k.privateKey == "" {
		k.logger.Error("image upload requested but IMAGEKIT_PRIVATE_KEY is not set")
		return nil, apperr.Misconfigured("Image upload configuration missing")
	}

	ctx, span := tracer.Start(ctx, "imagekit upload")
	defer span.End()
	span.SetAttributes(
		telemetry.String("file.name", img.FileName),
		telemetry.Int("file.size", len(img.Data)),
	)

	body, contentType, err := k.encode(img)
	if err != nil {
		return nil, apperr.Internal("encoding image upload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.uploadURL, body)
	if err != nil {
		return nil, apperr.Internal("creating image upload request", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.SetBasicAuth(k.privateKey, "")

	k.logger.Info("uploading image",
		zap.String("file_name", img.FileName),
		zap.Int("file_size", len(img.Data)),
		zap.String("folder", k.folder))

	resp, err := k.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, apperr.NetworkFailure("Image upload failed", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			k.logger.Warn("failed to close response body", zap.Error(cerr))
		}
	}()

	span.SetAttributes(telemetry.Int("http.status_code", resp.StatusCode))

	text, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperr.NetworkFailure("Image upload failed", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := decodeDetail(text)
		k.logger.Error("image upload rejected by provider",
			zap.Int("status", resp.StatusCode),
			zap.Any("detail", detail))
		return nil, apperr.UploadFailed("Image upload failed", detail)
	}

	var ok imageKitSuccess
	if err := json.Unmarshal(text, &ok); err != nil || ok.URL == "" {
		return nil, apperr.UploadFailed("Image upload failed", decodeDetail(text))
	}

	k.logger.Info("image uploaded", zap.String("url", ok.URL), zap.String("file_id", ok.FileID))
	return &Asset{URL: ok.URL, FileID: ok.FileID}, nil
}

func (k *ImageKit) encode(img Image) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(img.FileName)))
	h.Set("Content-Type", img.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", err
	}

	fields := [][2]string{
		{"fileName", img.FileName},
		{"folder", k.folder},
		{"tags", imageKitTags},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// decodeDetail returns the provider body as JSON when it parses, otherwise
// wraps the raw text.
func decodeDetail(text []byte) map[string]any {
	detail := map[string]any{}
	if len(bytes.TrimSpace(text)) == 0 {
		return detail
	}
	if err := json.Unmarshal(text, &detail); err != nil {
		return map[string]any{"message": string(text)}
	}
	return detail
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
