package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxpoynt/connector-framework/internal/domain/connector"
	"github.com/taxpoynt/connector-framework/internal/protocol/mocktransport"
)

func newTestAdapter(t *testing.T, rt *mocktransport.RoundTripper) *Adapter {
	t.Helper()
	cfg := &connector.Config{
		BaseURL:    "https://example.test",
		DataFormat: connector.FormatJSON,
		SSLVerify:  true,
		Retry:      connector.RetryPolicy{MaxAttempts: 1},
	}
	a := New(cfg)
	require.NoError(t, a.Open(context.Background(), cfg))
	a.client = rt.Client()
	return a
}

func TestExecuteSuccessDecodesJSON(t *testing.T) {
	rt := mocktransport.New()
	rt.OnPath(http.MethodGet, "/invoices", mocktransport.Response{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(`{"id":"inv-1","total":100}`),
	})
	a := newTestAdapter(t, rt)

	resp, err := a.Execute(context.Background(), &connector.Request{
		Method: http.MethodGet,
		Path:   "/invoices",
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 200, resp.StatusCode)

	body, ok := resp.Body.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "inv-1", body["id"])
}

func TestExecuteHTTPErrorIsFailedNotError(t *testing.T) {
	rt := mocktransport.New()
	rt.OnPath(http.MethodGet, "/invoices", mocktransport.Response{StatusCode: 404, Body: []byte(`not found`)})
	a := newTestAdapter(t, rt)

	resp, err := a.Execute(context.Background(), &connector.Request{Method: http.MethodGet, Path: "/invoices"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, 404, resp.StatusCode)
	assert.NotEmpty(t, resp.ErrorMessage)
}

type flakyTransport struct {
	attempts  int
	failUntil int
	inner     http.RoundTripper
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.attempts++
	if f.attempts <= f.failUntil {
		return nil, context.DeadlineExceeded
	}
	return f.inner.RoundTrip(req)
}

func TestExecuteRetriesOnTransportFailure(t *testing.T) {
	rt := mocktransport.New()
	rt.OnPath(http.MethodGet, "/ok", mocktransport.Response{StatusCode: 200, Body: []byte(`{"ok":true}`)})
	flaky := &flakyTransport{failUntil: 2, inner: rt}

	cfg := &connector.Config{
		BaseURL:    "https://example.test",
		DataFormat: connector.FormatJSON,
		SSLVerify:  true,
		Retry:      connector.RetryPolicy{MaxAttempts: 3, BackoffMS: 1},
	}
	a := New(cfg)
	require.NoError(t, a.Open(context.Background(), cfg))
	a.client = &http.Client{Transport: flaky}

	resp, err := a.Execute(context.Background(), &connector.Request{
		Method:         "GET",
		Path:           "/ok",
		RetryOnFailure: true,
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 3, flaky.attempts)
}

func TestExecuteDoesNotRetryHTTPStatusFailures(t *testing.T) {
	rt := mocktransport.New()
	rt.OnPath(http.MethodGet, "/missing", mocktransport.Response{StatusCode: 404})
	a := newTestAdapter(t, rt)

	resp, err := a.Execute(context.Background(), &connector.Request{
		Method:         "GET",
		Path:           "/missing",
		RetryOnFailure: true,
	})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Len(t, rt.Requests(), 1)
}

func TestJSONRoundTripIsIdentity(t *testing.T) {
	type payload struct {
		Name   string  `json:"name"`
		Amount float64 `json:"amount"`
	}
	original := payload{Name: "vendor", Amount: 12.5}

	raw, contentType, err := encodeBody(connector.FormatJSON, original)
	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)

	var decoded payload
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, original, decoded)
}

func TestExecuteHonoursTimeoutDeadline(t *testing.T) {
	rt := mocktransport.New()
	a := newTestAdapter(t, rt)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := a.Execute(ctx, &connector.Request{Method: "GET", Path: "/slow"})
	assert.Error(t, err)
}
