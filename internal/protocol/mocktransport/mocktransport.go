// Package mocktransport provides an in-process http.RoundTripper fake for
// protocol adapter tests, avoiding live network calls.
package mocktransport

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// Response is a canned HTTP response keyed by request matcher.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Handler matches a request and returns the canned response to serve, or
// false if it does not handle this request.
type Handler func(req *http.Request) (Response, bool)

// RoundTripper serves canned responses from an ordered list of Handlers,
// falling back to a 404 when nothing matches. It records every request it
// serves for assertions.
type RoundTripper struct {
	mu       sync.Mutex
	handlers []Handler
	requests []*http.Request
}

// New creates an empty RoundTripper.
func New() *RoundTripper {
	return &RoundTripper{}
}

// On registers a handler. Handlers are tried in registration order.
func (rt *RoundTripper) On(h Handler) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.handlers = append(rt.handlers, h)
}

// OnPath registers a canned response for requests matching method and
// exact URL path.
func (rt *RoundTripper) OnPath(method, path string, resp Response) {
	rt.On(func(req *http.Request) (Response, bool) {
		if req.Method == method && req.URL.Path == path {
			return resp, true
		}
		return Response{}, false
	})
}

// Requests returns a copy of every request served so far.
func (rt *RoundTripper) Requests() []*http.Request {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	out := make([]*http.Request, len(rt.requests))
	copy(out, rt.requests)
	return out
}

// RoundTrip implements http.RoundTripper.
func (rt *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.mu.Lock()
	rt.requests = append(rt.requests, req)
	handlers := make([]Handler, len(rt.handlers))
	copy(handlers, rt.handlers)
	rt.mu.Unlock()

	for _, h := range handlers {
		if resp, ok := h(req); ok {
			return toHTTPResponse(req, resp), nil
		}
	}
	return toHTTPResponse(req, Response{StatusCode: http.StatusNotFound, Body: []byte("not found")}), nil
}

func toHTTPResponse(req *http.Request, resp Response) *http.Response {
	header := resp.Header
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		StatusCode: resp.StatusCode,
		Status:     http.StatusText(resp.StatusCode),
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(resp.Body)),
		Request:    req,
	}
}

// Client returns an *http.Client wired to this RoundTripper.
func (rt *RoundTripper) Client() *http.Client {
	return &http.Client{Transport: rt}
}
