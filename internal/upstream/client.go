// Package upstream talks to the REST service that stores career postings.
// Responses are relayed as-is; this application keeps no copy of the data.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/sujalbistaa/careerboard/internal/apperr"
	"github.com/sujalbistaa/careerboard/internal/career"
	"github.com/sujalbistaa/careerboard/internal/telemetry"
)

var tracer = telemetry.GetTracer("careerboard/upstream")

const maxResponseBytes = 10 << 20

type Request struct {
	Method      string
	Path        string
	Body        io.Reader
	ContentType string
}

// Response is an upstream reply ready to relay. Body is always JSON: the
// upstream body when it parses, otherwise {"message": "<raw text>"}.
type Response struct {
	Status int
	Body   json.RawMessage
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Message pulls a "message" field out of the body, if there is one.
func (r *Response) Message() string {
	var m struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(r.Body, &m); err != nil {
		return ""
	}
	return m.Message
}

type Client struct {
	base   string
	token  string
	client *http.Client
	logger *zap.Logger
}

func NewClient(base, token string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		base:  base,
		token: token,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// CareerPath returns the resource path for the collection, or for one
// posting when id is non-empty.
func CareerPath(id string) string {
	if id == "" {
		return "/career"
	}
	return "/career/" + url.PathEscape(id)
}

// Do forwards req with the bearer token attached. A transport failure is
// returned as a NetworkFailure; any HTTP status, including errors, is a
// successful relay and comes back in the Response.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	ctx, span := tracer.Start(ctx, "upstream "+req.Method)
	defer span.End()

	target := c.base + req.Path
	span.SetAttributes(
		telemetry.String("http.method", req.Method),
		telemetry.String("http.url", target),
	)

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, req.Body)
	if err != nil {
		span.RecordError(err)
		return nil, apperr.Internal("creating upstream request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		c.logger.Error("upstream request failed",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Error(err))
		return nil, apperr.NetworkFailure("upstream unreachable", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("failed to close response body", zap.Error(cerr))
		}
	}()

	span.SetAttributes(telemetry.Int("http.status_code", resp.StatusCode))

	text, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		span.RecordError(err)
		return nil, apperr.NetworkFailure("reading upstream response", err)
	}

	c.logger.Debug("upstream response",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(text)))

	return &Response{Status: resp.StatusCode, Body: asJSON(text)}, nil
}

// DoJSON encodes v as the request body.
func (c *Client) DoJSON(ctx context.Context, method, path string, v any) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, apperr.Internal("encoding upstream payload", err)
	}
	return c.Do(ctx, Request{
		Method:      method,
		Path:        path,
		Body:        bytes.NewReader(body),
		ContentType: "application/json",
	})
}

// ListPostings fetches and decodes the whole collection for rendering.
func (c *Client) ListPostings(ctx context.Context) ([]career.Posting, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Path: CareerPath("")})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, upstreamError(resp)
	}
	postings, err := career.DecodePostings(resp.Body)
	if err != nil {
		return nil, apperr.UpstreamError(http.StatusBadGateway, "unexpected listing format")
	}
	return postings, nil
}

// GetPosting fetches a single posting for rendering.
func (c *Client) GetPosting(ctx context.Context, id string) (*career.Posting, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Path: CareerPath(id)})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, upstreamError(resp)
	}
	p, err := career.DecodePosting(resp.Body)
	if err != nil {
		return nil, apperr.UpstreamError(http.StatusBadGateway, "unexpected posting format")
	}
	return p, nil
}

func upstreamError(resp *Response) error {
	msg := resp.Message()
	if msg == "" {
		msg = fmt.Sprintf("upstream returned %d", resp.Status)
	}
	return apperr.UpstreamError(resp.Status, msg)
}

func asJSON(text []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(text)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	wrapped, _ := json.Marshal(map[string]string{"message": string(text)})
	return wrapped
}
