package relay

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/sujalbistaa/careerboard/internal/apperr"
	"github.com/sujalbistaa/careerboard/internal/career"
	"github.com/sujalbistaa/careerboard/internal/imagehost"
)

// Form field names the poster file may arrive under.
var fileFields = []string{"file", "image"}

const multipartMemory = 8 << 20

// ParseRequest reads a create or update submission from either a multipart
// form or a JSON body.
func (r *Relay) ParseRequest(req *http.Request) (*Input, error) {
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return r.parseMultipart(req)
	}
	return parseJSON(req.Body)
}

func (r *Relay) parseMultipart(req *http.Request) (*Input, error) {
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.UploadRejected("File too large")
		}
		return nil, apperr.ValidationFailed("Invalid form submission")
	}
	defer func() {
		_ = req.MultipartForm.RemoveAll()
	}()

	in := &Input{}
	for name, values := range req.MultipartForm.Value {
		if len(values) == 0 || name == "id" {
			continue
		}
		in.Payload.SetField(name, values[0])
	}

	for _, name := range fileFields {
		files := req.MultipartForm.File[name]
		if len(files) == 0 {
			continue
		}
		img, err := r.readFile(files[0])
		if err != nil {
			return nil, err
		}
		in.Image = img
		break
	}
	return in, nil
}

func (r *Relay) readFile(fh *multipart.FileHeader) (*imagehost.Image, error) {
	if r.maxImageBytes > 0 && fh.Size > r.maxImageBytes {
		return nil, apperr.UploadRejected("File too large")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, apperr.ValidationFailed("Invalid file upload")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperr.ValidationFailed("Invalid file upload")
	}
	return &imagehost.Image{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// parseJSON maps a JSON object onto the payload. Requirements may be a
// string or an array; other fields are taken as strings.
func parseJSON(body io.Reader) (*Input, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, apperr.ValidationFailed("Invalid JSON body")
	}

	in := &Input{}
	for name, value := range raw {
		if name == "id" {
			continue
		}
		if name == "requirements" {
			// null means not sent, so an update leaves the stored list alone.
			if strings.TrimSpace(string(value)) == "null" {
				continue
			}
			reqs := requirementsFromJSON(value)
			in.Payload.Requirements = &reqs
			continue
		}
		if s, ok := scalarString(value); ok {
			in.Payload.SetField(name, s)
		}
	}
	return in, nil
}

func requirementsFromJSON(value json.RawMessage) career.Requirements {
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return career.NormalizeRequirements(s)
	}
	return career.NormalizeRequirements(string(value))
}

func scalarString(value json.RawMessage) (string, bool) {
	trimmed := strings.TrimSpace(string(value))
	if trimmed == "" || trimmed == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s, true
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return "", false
	}
	return trimmed, true
}
