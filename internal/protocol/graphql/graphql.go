// Package graphql implements a single-endpoint GraphQL protocol.Adapter.
package graphql

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/taxpoynt/connector-framework/internal/apperrors"
	"github.com/taxpoynt/connector-framework/internal/domain/connector"
)

const introspectionQuery = `query IntrospectionQuery {
  __schema {
    queryType { name }
    mutationType { name }
    subscriptionType { name }
    types { name kind }
  }
}`

// Schema is the subset of GraphQL introspection this adapter retains.
type Schema struct {
	QueryType        string
	MutationType     string
	SubscriptionType string
	Types            []string
}

// Adapter implements protocol.Adapter for a single GraphQL endpoint.
type Adapter struct {
	cfg    *connector.Config
	client *http.Client
	Schema *Schema
}

// New constructs a GraphQL adapter.
func New(cfg *connector.Config) *Adapter {
	return &Adapter{cfg: cfg}
}

// Open prepares the HTTP client and, when cfg.Settings["introspect"] is
// true, runs the introspection query to populate Schema.
func (a *Adapter) Open(ctx context.Context, cfg *connector.Config) error {
	a.cfg = cfg
	transport := &http.Transport{}
	if !cfg.SSLVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	a.client = &http.Client{Transport: transport, Timeout: timeout}

	if introspect, _ := cfg.Settings["introspect"].(bool); introspect {
		resp, err := a.Execute(ctx, &connector.Request{
			Operation: "IntrospectionQuery",
			Body:      map[string]interface{}{"query": introspectionQuery},
		})
		if err != nil {
			return err
		}
		a.Schema = schemaFromResponse(resp)
	}
	return nil
}

func schemaFromResponse(resp *connector.Response) *Schema {
	raw, err := json.Marshal(resp.Body)
	if err != nil {
		return nil
	}
	result := gjson.GetBytes(raw, "data.__schema")
	if !result.Exists() {
		return nil
	}
	schema := &Schema{
		QueryType:        result.Get("queryType.name").String(),
		MutationType:     result.Get("mutationType.name").String(),
		SubscriptionType: result.Get("subscriptionType.name").String(),
	}
	for _, t := range result.Get("types").Array() {
		schema.Types = append(schema.Types, t.Get("name").String())
	}
	return schema
}

// Authenticate is a no-op: the GraphQL endpoint receives credentials via
// request headers applied by the auth manager.
func (a *Adapter) Authenticate(ctx context.Context, headers map[string]string) error {
	return nil
}

// Test runs a trivial introspection probe and measures latency.
func (a *Adapter) Test(ctx context.Context) (int64, error) {
	start := time.Now()
	_, err := a.Execute(ctx, &connector.Request{Body: map[string]interface{}{"query": "{ __typename }"}})
	if err != nil {
		return 0, err
	}
	return time.Since(start).Milliseconds(), nil
}

// Close releases the adapter's client.
func (a *Adapter) Close(ctx context.Context) error {
	if a.client != nil {
		a.client.CloseIdleConnections()
	}
	return nil
}

// graphQLPayload is the wire shape for a single GraphQL request.
type graphQLPayload struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	OperationName string                 `json:"operationName,omitempty"`
}

// Execute POSTs req.Body (or a batch, when req.Body is a
// []map[string]interface{})
// as the GraphQL wire payload.
func (a *Adapter) Execute(ctx context.Context, req *connector.Request) (*connector.Response, error) {
	payload, opType := buildPayload(req)

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.Protocol("failed to encode GraphQL payload").WithDetail("err", err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return nil, apperrors.Connection("failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	requestID := uuid.NewString()
	start := time.Now()
	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, apperrors.Connection("request failed", err)
	}
	defer httpResp.Body.Close()

	respRaw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, apperrors.Connection("failed to read response body", err)
	}
	elapsed := time.Since(start).Milliseconds()

	var decoded interface{}
	_ = json.Unmarshal(respRaw, &decoded)

	errs := gjson.GetBytes(respRaw, "errors")
	var errMsg string
	success := httpResp.StatusCode < 400
	if errs.Exists() && errs.IsArray() && len(errs.Array()) > 0 {
		messages := make([]string, 0, len(errs.Array()))
		for _, e := range errs.Array() {
			messages = append(messages, e.Get("message").String())
		}
		errMsg = strings.Join(messages, "; ")
		success = false
	}

	resp := &connector.Response{
		StatusCode:     httpResp.StatusCode,
		Body:           decoded,
		Success:        success,
		ErrorMessage:   errMsg,
		ResponseTimeMS: elapsed,
		RequestID:      requestID,
	}
	if opType != "" {
		if resp.Headers == nil {
			resp.Headers = map[string]string{}
		}
		resp.Headers["operation_type"] = opType
	}
	return resp, nil
}

func buildPayload(req *connector.Request) (interface{}, string) {
	if batch, ok := req.Body.([]map[string]interface{}); ok {
		payloads := make([]graphQLPayload, 0, len(batch))
		for _, item := range batch {
			payloads = append(payloads, toGraphQLPayload(item))
		}
		return payloads, ""
	}

	fields, _ := req.Body.(map[string]interface{})
	opType, _ := req.Metadata["operation_type"].(string)
	if opType == "" {
		opType = inferOperationType(fields)
	}
	return toGraphQLPayload(fields), opType
}

func toGraphQLPayload(fields map[string]interface{}) graphQLPayload {
	payload := graphQLPayload{}
	if q, ok := fields["query"].(string); ok {
		payload.Query = q
	}
	if v, ok := fields["variables"].(map[string]interface{}); ok {
		payload.Variables = v
	}
	if on, ok := fields["operationName"].(string); ok {
		payload.OperationName = on
	}
	return payload
}

func inferOperationType(fields map[string]interface{}) string {
	q, _ := fields["query"].(string)
	trimmed := strings.TrimSpace(q)
	switch {
	case strings.HasPrefix(trimmed, "mutation"):
		return "mutation"
	case strings.HasPrefix(trimmed, "subscription"):
		return "subscription"
	default:
		return "query"
	}
}
