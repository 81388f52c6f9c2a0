// Package httpclient implements the HTTP client contract spec.md §1
// assumes as an external collaborator: issue a request, return
// status/headers/body, never follow redirects, never auto-decode.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"changeprop/internal/constants"
	"changeprop/pkg/template"
)

// Response is the raw outcome of one exec request. Body is always the
// opaque byte slice the target returned; decoding is the caller's
// concern when a rule sets decode_results.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Client issues one rendered request and reports either a Response or
// a transport-level error (timeout, connection refused, DNS failure).
// A non-2xx status is not an error at this layer — classification is
// the executor's job.
type Client interface {
	Do(ctx context.Context, req template.Request) (Response, error)
}

// DefaultClient wraps net/http.Client, refusing to follow redirects so
// a 3xx response is surfaced to the classifier like any other status.
type DefaultClient struct {
	http *http.Client
}

func New() *DefaultClient {
	return &DefaultClient{
		http: &http.Client{
			Timeout: constants.DefaultHTTPTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *DefaultClient) Do(ctx context.Context, req template.Request) (Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URI, body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to build request: %w", err)
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response body: %w", err)
	}

	return Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}, nil
}
