package rpc

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxpoynt/connector-framework/internal/domain/connector"
	"github.com/taxpoynt/connector-framework/internal/protocol/mocktransport"
)

func TestXMLRPCValueRoundTrip(t *testing.T) {
	cases := []interface{}{
		"hello",
		42,
		3.14,
		true,
		[]interface{}{"a", "b"},
		map[string]interface{}{"k": "v"},
	}
	for _, c := range cases {
		encoded := encodeValue(c)
		decoded := decodeValue(encoded)
		assert.Equal(t, c, decoded)
	}
}

func TestJSONRPCExecuteSuccess(t *testing.T) {
	rt := mocktransport.New()
	rt.On(func(req *http.Request) (mocktransport.Response, bool) {
		return mocktransport.Response{
			StatusCode: 200,
			Body:       []byte(`{"jsonrpc":"2.0","result":{"ok":true},"id":1}`),
		}, true
	})
	cfg := &connector.Config{BaseURL: "https://example.test/rpc"}
	a := New(cfg)
	require.NoError(t, a.Open(context.Background(), cfg))
	a.client = rt.Client()

	resp, err := a.Execute(context.Background(), &connector.Request{Operation: "getInvoice", Body: map[string]interface{}{"id": "1"}})
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestJSONRPCExecuteErrorObject(t *testing.T) {
	rt := mocktransport.New()
	rt.On(func(req *http.Request) (mocktransport.Response, bool) {
		return mocktransport.Response{
			StatusCode: 200,
			Body:       []byte(`{"jsonrpc":"2.0","error":{"code":-32601,"message":"method not found"},"id":1}`),
		}, true
	})
	cfg := &connector.Config{BaseURL: "https://example.test/rpc"}
	a := New(cfg)
	require.NoError(t, a.Open(context.Background(), cfg))
	a.client = rt.Client()

	resp, err := a.Execute(context.Background(), &connector.Request{Operation: "missing"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.ErrorMessage, "method not found")
}

func TestXMLRPCExecuteFault(t *testing.T) {
	rt := mocktransport.New()
	rt.On(func(req *http.Request) (mocktransport.Response, bool) {
		return mocktransport.Response{
			StatusCode: 200,
			Body: []byte(`<?xml version="1.0"?>
<methodResponse><fault><value><struct>
<member><name>faultString</name><value><string>bad params</string></value></member>
</struct></value></fault></methodResponse>`),
		}, true
	})
	cfg := &connector.Config{BaseURL: "https://example.test/rpc", Settings: map[string]interface{}{"rpc_kind": "xml"}}
	a := New(cfg)
	require.NoError(t, a.Open(context.Background(), cfg))
	a.client = rt.Client()

	resp, err := a.Execute(context.Background(), &connector.Request{Operation: "getInvoice", Body: map[string]interface{}{}})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.ErrorMessage, "bad params")
}
