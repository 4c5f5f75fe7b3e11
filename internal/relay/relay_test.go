package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sujalbistaa/careerboard/internal/apperr"
	"github.com/sujalbistaa/careerboard/internal/career"
	"github.com/sujalbistaa/careerboard/internal/imagehost"
	"github.com/sujalbistaa/careerboard/internal/upstream"
)

type fakeUploader struct {
	mu    sync.Mutex
	calls []imagehost.Image
	err   error
}

func (f *fakeUploader) Upload(ctx context.Context, img imagehost.Image) (*imagehost.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, img)
	if f.err != nil {
		return nil, f.err
	}
	return &imagehost.Asset{URL: "https://ik.imagekit.io/acme/Career/" + img.FileName, FileID: "fid-9"}, nil
}

type captured struct {
	method      string
	path        string
	contentType string
	body        []byte
}

// upstreamStub records the last request and answers with status and body.
func upstreamStub(t *testing.T, status int, body string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.method = r.Method
		c.path = r.URL.Path
		c.contentType = r.Header.Get("Content-Type")
		c.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func newRelay(srv *httptest.Server, up imagehost.Uploader) *Relay {
	client := upstream.NewClient(srv.URL, "tok", 5*time.Second, zap.NewNop())
	r := New(client, up, 2<<20, zap.NewNop())
	r.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return r
}

func strPtr(s string) *string { return &s }

func reqs(items ...string) *career.Requirements {
	r := career.RequirementList(items...)
	return &r
}

func TestCreate_NonImageRejectedWithoutCallingHost(t *testing.T) {
	srv, c := upstreamStub(t, http.StatusCreated, `{}`)
	up := &fakeUploader{}
	r := newRelay(srv, up)

	_, err := r.Create(context.Background(), &Input{
		Payload: career.Payload{Title: strPtr("Barista"), Requirements: reqs("Friendly")},
		Image:   &imagehost.Image{FileName: "notes.txt", ContentType: "text/plain", Data: []byte("hi")},
	})

	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperr.Status(err))
	assert.Equal(t, "File must be an image", apperr.Message(err))
	assert.Empty(t, up.calls)
	assert.Empty(t, c.method)
}

func TestCreate_TooLarge(t *testing.T) {
	srv, _ := upstreamStub(t, http.StatusCreated, `{}`)
	up := &fakeUploader{}
	r := newRelay(srv, up)

	_, err := r.Create(context.Background(), &Input{
		Payload: career.Payload{Requirements: reqs("x")},
		Image:   &imagehost.Image{FileName: "big.png", ContentType: "image/png", Data: make([]byte, 3<<20)},
	})

	assert.True(t, apperr.IsKind(err, apperr.KindUploadRejected))
	assert.Contains(t, apperr.Message(err), "File too large")
	assert.Empty(t, up.calls)
}

func TestCreate_RequiresRequirements(t *testing.T) {
	srv, c := upstreamStub(t, http.StatusCreated, `{}`)
	r := newRelay(srv, &fakeUploader{})

	empty := career.NormalizeRequirements("   ")
	_, err := r.Create(context.Background(), &Input{
		Payload: career.Payload{Title: strPtr("Barista"), Requirements: &empty},
	})

	assert.True(t, apperr.IsKind(err, apperr.KindValidationFailed))
	assert.Empty(t, c.method)
}

func TestCreate_UploadsThenForwardsJSON(t *testing.T) {
	srv, c := upstreamStub(t, http.StatusCreated, `{"id":"42"}`)
	up := &fakeUploader{}
	r := newRelay(srv, up)

	resp, err := r.Create(context.Background(), &Input{
		Payload: career.Payload{Title: strPtr("Barista"), Requirements: reqs("Friendly", "Early riser")},
		Image:   &imagehost.Image{FileName: "poster.png", ContentType: "image/png", Data: []byte("png")},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.JSONEq(t, `{"id":"42"}`, string(resp.Body))

	require.Len(t, up.calls, 1)
	assert.Equal(t, "poster_1700000000000_", up.calls[0].FileName[:len("poster_1700000000000_")])
	assert.True(t, strings.HasSuffix(up.calls[0].FileName, ".png"))

	assert.Equal(t, http.MethodPost, c.method)
	assert.Equal(t, "/career", c.path)
	assert.Equal(t, "application/json", c.contentType)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(c.body, &sent))
	assert.Equal(t, "Barista", sent["title"])
	assert.Equal(t, []any{"Friendly", "Early riser"}, sent["requirements"])
	assert.Equal(t, "https://ik.imagekit.io/acme/Career/"+up.calls[0].FileName, sent["image"])
	assert.Equal(t, "fid-9", sent["imageId"])
}

func TestCreate_UploadFailureStopsForward(t *testing.T) {
	srv, c := upstreamStub(t, http.StatusCreated, `{}`)
	up := &fakeUploader{err: apperr.UploadFailed("Image upload failed", map[string]any{"message": "quota"})}
	r := newRelay(srv, up)

	_, err := r.Create(context.Background(), &Input{
		Payload: career.Payload{Requirements: reqs("x")},
		Image:   &imagehost.Image{FileName: "p.png", ContentType: "image/png", Data: []byte("png")},
	})

	assert.True(t, apperr.IsKind(err, apperr.KindUploadFailed))
	assert.Empty(t, c.method)
}

func TestCreate_UpstreamModeRenamesFileField(t *testing.T) {
	srv, c := upstreamStub(t, http.StatusCreated, `{"ok":true}`)
	r := newRelay(srv, nil)

	_, err := r.Create(context.Background(), &Input{
		Payload: career.Payload{Title: strPtr("Barista"), Requirements: reqs("a", "b")},
		Image:   &imagehost.Image{FileName: "poster.jpg", ContentType: "image/jpeg", Data: []byte("jpg")},
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, c.method)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(c.body))
	req.Header.Set("Content-Type", c.contentType)
	require.NoError(t, req.ParseMultipartForm(1<<20))

	assert.Equal(t, "Barista", req.FormValue("title"))
	assert.Equal(t, `["a","b"]`, req.FormValue("requirements"))
	assert.Empty(t, req.MultipartForm.File["file"])
	require.Len(t, req.MultipartForm.File["image"], 1)
	fh := req.MultipartForm.File["image"][0]
	assert.Equal(t, "image/jpeg", fh.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(fh.Filename, "poster_1700000000000_"))
}

func TestUpdate_WithoutFileKeepsExistingImage(t *testing.T) {
	srv, c := upstreamStub(t, http.StatusOK, `{"ok":true}`)
	up := &fakeUploader{}
	r := newRelay(srv, up)

	_, err := r.Update(context.Background(), "7", &Input{
		Payload: career.Payload{
			Title: strPtr("Barista"),
			Image: strPtr("https://ik.imagekit.io/acme/old.png"),
		},
	})
	require.NoError(t, err)

	assert.Empty(t, up.calls)
	assert.Equal(t, http.MethodPut, c.method)
	assert.Equal(t, "/career/7", c.path)
	assert.JSONEq(t, `{"id":"7","title":"Barista","image":"https://ik.imagekit.io/acme/old.png"}`, string(c.body))
}

func TestUpdate_DropsBlankImage(t *testing.T) {
	srv, c := upstreamStub(t, http.StatusOK, `{}`)
	r := newRelay(srv, &fakeUploader{})

	_, err := r.Update(context.Background(), "7", &Input{
		Payload: career.Payload{Title: strPtr("Barista"), Image: strPtr("")},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"7","title":"Barista"}`, string(c.body))
}

func TestUpdate_RejectsEmptyRequirements(t *testing.T) {
	srv, c := upstreamStub(t, http.StatusOK, `{}`)
	r := newRelay(srv, &fakeUploader{})

	empty := career.NormalizeRequirements("[]")
	_, err := r.Update(context.Background(), "7", &Input{Payload: career.Payload{Requirements: &empty}})

	assert.True(t, apperr.IsKind(err, apperr.KindValidationFailed))
	assert.Empty(t, c.method)
}

func TestUpdate_RelaysUpstreamError(t *testing.T) {
	srv, _ := upstreamStub(t, http.StatusNotFound, `{"message":"Career not found"}`)
	r := newRelay(srv, &fakeUploader{})

	resp, err := r.Update(context.Background(), "missing", &Input{Payload: career.Payload{Title: strPtr("x")}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, "Career not found", resp.Message())
}

func TestDelete(t *testing.T) {
	srv, c := upstreamStub(t, http.StatusOK, `{"message":"deleted"}`)
	r := newRelay(srv, nil)

	resp, err := r.Delete(context.Background(), "a b")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, http.MethodDelete, c.method)
	assert.Equal(t, "/career/a b", c.path)

	_, err = r.Delete(context.Background(), " ")
	assert.True(t, apperr.IsKind(err, apperr.KindValidationFailed))
}

func multipartRequest(t *testing.T, fields map[string]string, fileField, fileName, fileType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+fileField+`"; filename="`+fileName+`"`)
		h.Set("Content-Type", fileType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/career", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestParseRequest_Multipart(t *testing.T) {
	r := New(nil, nil, 2<<20, zap.NewNop())
	req := multipartRequest(t,
		map[string]string{"title": "Barista", "requirements": "Friendly\nEarly riser", "id": "ignored"},
		"file", "poster.png", "image/png", []byte("png"))

	in, err := r.ParseRequest(req)
	require.NoError(t, err)

	assert.Equal(t, "Barista", *in.Payload.Title)
	assert.Equal(t, []string{"Friendly", "Early riser"}, in.Payload.Requirements.Items())
	assert.Empty(t, in.Payload.ID)
	require.NotNil(t, in.Image)
	assert.Equal(t, "poster.png", in.Image.FileName)
	assert.Equal(t, "image/png", in.Image.ContentType)
	assert.Equal(t, []byte("png"), in.Image.Data)
}

func TestParseRequest_MultipartImageField(t *testing.T) {
	r := New(nil, nil, 2<<20, zap.NewNop())
	req := multipartRequest(t, map[string]string{"title": "x"}, "image", "p.jpg", "image/jpeg", []byte("jpg"))

	in, err := r.ParseRequest(req)
	require.NoError(t, err)
	require.NotNil(t, in.Image)
	assert.Equal(t, "p.jpg", in.Image.FileName)
}

func TestParseRequest_MultipartTooLarge(t *testing.T) {
	r := New(nil, nil, 4, zap.NewNop())
	req := multipartRequest(t, nil, "file", "p.png", "image/png", []byte("0123456789"))

	_, err := r.ParseRequest(req)
	assert.True(t, apperr.IsKind(err, apperr.KindUploadRejected))
}

func TestParseRequest_JSON(t *testing.T) {
	r := New(nil, nil, 2<<20, zap.NewNop())
	body := `{"id":99,"title":"Barista","requirements":["Friendly"," ",7],"image":"https://x/y.png","unknown":{"a":1}}`
	req := httptest.NewRequest(http.MethodPut, "/api/career/1", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	in, err := r.ParseRequest(req)
	require.NoError(t, err)
	assert.Nil(t, in.Image)
	assert.Equal(t, "Barista", *in.Payload.Title)
	assert.Equal(t, "https://x/y.png", *in.Payload.Image)
	assert.Equal(t, []string{"Friendly", "7"}, in.Payload.Requirements.Items())
	assert.Empty(t, in.Payload.ID)
}

func TestParseRequest_JSONRequirementsString(t *testing.T) {
	r := New(nil, nil, 2<<20, zap.NewNop())
	req := httptest.NewRequest(http.MethodPost, "/api/career", strings.NewReader(`{"requirements":"a, b"}`))
	req.Header.Set("Content-Type", "application/json")

	in, err := r.ParseRequest(req)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, in.Payload.Requirements.Items())
}

func TestParseRequest_JSONNullRequirementsLeftUnset(t *testing.T) {
	r := New(nil, nil, 2<<20, zap.NewNop())
	req := httptest.NewRequest(http.MethodPut, "/api/career/1", strings.NewReader(`{"title":"New","requirements":null}`))
	req.Header.Set("Content-Type", "application/json")

	in, err := r.ParseRequest(req)
	require.NoError(t, err)
	assert.Nil(t, in.Payload.Requirements)
	assert.Equal(t, "New", *in.Payload.Title)
}

func TestParseRequest_BadJSON(t *testing.T) {
	r := New(nil, nil, 2<<20, zap.NewNop())
	req := httptest.NewRequest(http.MethodPost, "/api/career", strings.NewReader(`not json`))
	req.Header.Set("Content-Type", "application/json")

	_, err := r.ParseRequest(req)
	assert.True(t, apperr.IsKind(err, apperr.KindValidationFailed))
}
