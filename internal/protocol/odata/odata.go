// Package odata implements an OData v2/v4 protocol.Adapter: $metadata
// discovery, $filter/$select/$expand/$orderby/$top/$skip URL composition,
// SAP-style CSRF token handling, and version-specific envelope unwrapping
// (v2 "d", v4 "value").
package odata

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/taxpoynt/connector-framework/internal/apperrors"
	"github.com/taxpoynt/connector-framework/internal/domain/connector"
)

// metadataTTL governs how long a service's discovered entity sets are
// trusted before Open refetches $metadata. OData schemas change with
// deployments, not per request, so a short TTL is enough to spare repeated
// reconnects (common across short-lived Runtime instances) the round trip.
const metadataTTL = 10 * time.Minute

// serviceMetadata caches one base URL's discovered entity sets, shared
// across Adapter instances within the process: two connectors pointed at
// the same OData service discover the same entity sets, so there's no
// reason to refetch $metadata per-adapter or key the cache per-instance.
type serviceMetadata struct {
	mu      sync.RWMutex
	entries map[string]metadataEntry
}

type metadataEntry struct {
	sets      []EntitySet
	expiresAt time.Time
}

func newServiceMetadataCache() *serviceMetadata {
	return &serviceMetadata{entries: make(map[string]metadataEntry)}
}

func (c *serviceMetadata) get(baseURL string) ([]EntitySet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[baseURL]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.sets, true
}

func (c *serviceMetadata) set(baseURL string, sets []EntitySet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[baseURL] = metadataEntry{sets: sets, expiresAt: time.Now().Add(metadataTTL)}
}

var metadataCache = newServiceMetadataCache()

// Version selects OData wire conventions.
type Version int

const (
	V2 Version = 2
	V4 Version = 4
)

// QueryOptions composes an OData request URL, in the order $filter,
// $select, $expand, $orderby, $top, $skip.
type QueryOptions struct {
	Filters map[string]string
	Select  []string
	Expand  []string
	OrderBy string
	Top     int
	Skip    int
}

// BuildURL composes the path for entitySet with the given query options.
func BuildURL(entitySet string, opts QueryOptions) string {
	var parts []string

	if len(opts.Filters) > 0 {
		keys := make([]string, 0, len(opts.Filters))
		for k := range opts.Filters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		clauses := make([]string, 0, len(keys))
		for _, k := range keys {
			clauses = append(clauses, fmt.Sprintf("%s eq '%s'", k, opts.Filters[k]))
		}
		parts = append(parts, "$filter="+odataEscape(strings.Join(clauses, " and ")))
	}
	if len(opts.Select) > 0 {
		parts = append(parts, "$select="+strings.Join(opts.Select, ","))
	}
	if len(opts.Expand) > 0 {
		parts = append(parts, "$expand="+strings.Join(opts.Expand, ","))
	}
	if opts.OrderBy != "" {
		parts = append(parts, "$orderby="+odataEscape(opts.OrderBy))
	}
	if opts.Top > 0 {
		parts = append(parts, "$top="+strconv.Itoa(opts.Top))
	}
	if opts.Skip > 0 {
		parts = append(parts, "$skip="+strconv.Itoa(opts.Skip))
	}

	if len(parts) == 0 {
		return "/" + entitySet
	}
	return "/" + entitySet + "?" + strings.Join(parts, "&")
}

// odataEscape percent-encodes a query option value using %20 for spaces,
// matching OData service conventions rather than application/
// x-www-form-urlencoded's '+'.
func odataEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// EntitySet is a discovered $metadata entity set name.
type EntitySet struct {
	Name string
}

// Adapter implements protocol.Adapter for OData services.
type Adapter struct {
	cfg        *connector.Config
	client     *http.Client
	Version    Version
	EntitySets []EntitySet
	csrfToken  string
}

// New constructs an OData adapter. Version defaults to V4 unless
// cfg.Settings["odata_version"] is 2.
func New(cfg *connector.Config) *Adapter {
	version := V4
	if v, ok := cfg.Settings["odata_version"]; ok {
		if iv, ok := v.(int); ok && iv == 2 {
			version = V2
		}
	}
	return &Adapter{cfg: cfg, Version: version}
}

// Open fetches $metadata to discover entity sets.
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

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if cached, hit := metadataCache.get(baseURL); hit {
		a.EntitySets = cached
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/$metadata", nil)
	if err != nil {
		return apperrors.Connection("building $metadata request failed", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		// $metadata discovery is best-effort; absence does not block Open.
		return nil
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	a.EntitySets = parseEntitySets(raw)
	metadataCache.set(baseURL, a.EntitySets)
	return nil
}

func parseEntitySets(raw []byte) []EntitySet {
	var sets []EntitySet
	marker := []byte("EntitySet Name=\"")
	rest := raw
	for {
		idx := bytes.Index(rest, marker)
		if idx < 0 {
			break
		}
		rest = rest[idx+len(marker):]
		end := bytes.IndexByte(rest, '"')
		if end < 0 {
			break
		}
		sets = append(sets, EntitySet{Name: string(rest[:end])})
		rest = rest[end:]
	}
	return sets
}

// Authenticate fetches and caches a CSRF token when the service advertises
// support for it, per the SAP "X-CSRF-Token: Fetch" dry-GET dance.
func (a *Adapter) Authenticate(ctx context.Context, headers map[string]string) error {
	if requiresCSRF, _ := a.cfg.Settings["csrf"].(bool); !requiresCSRF {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL, nil)
	if err != nil {
		return apperrors.Connection("building CSRF fetch request failed", err)
	}
	req.Header.Set("X-CSRF-Token", "Fetch")
	resp, err := a.client.Do(req)
	if err != nil {
		return apperrors.Connection("CSRF fetch failed", err)
	}
	defer resp.Body.Close()
	a.csrfToken = resp.Header.Get("X-CSRF-Token")
	return nil
}

// Test performs a $metadata probe and measures latency.
func (a *Adapter) Test(ctx context.Context) (int64, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(a.cfg.BaseURL, "/")+"/$metadata", nil)
	if err != nil {
		return 0, apperrors.Connection("building test request failed", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return 0, apperrors.Connection("test request failed", err)
	}
	defer resp.Body.Close()
	return time.Since(start).Milliseconds(), nil
}

// Close releases the adapter's client.
func (a *Adapter) Close(ctx context.Context) error {
	if a.client != nil {
		a.client.CloseIdleConnections()
	}
	return nil
}

// Execute sends a request, composing the URL from req.Metadata query
// options when present, and unwraps the version-appropriate envelope.
func (a *Adapter) Execute(ctx context.Context, req *connector.Request) (*connector.Response, error) {
	path := req.Path
	if path == "" {
		opts := optionsFromMetadata(req.Metadata)
		path = BuildURL(req.EndpointKey, opts)
	}

	var bodyReader io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, apperrors.Protocol("failed to encode request body").WithDetail("err", err.Error())
		}
		bodyReader = bytes.NewReader(raw)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	fullURL := strings.TrimRight(a.cfg.BaseURL, "/") + path
	httpReq, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, apperrors.Connection("failed to build request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if a.Version == V4 {
		httpReq.Header.Set("OData-Version", "4.0")
		httpReq.Header.Set("OData-MaxVersion", "4.0")
	} else {
		httpReq.Header.Set("DataServiceVersion", "2.0")
		httpReq.Header.Set("MaxDataServiceVersion", "2.0")
	}
	if method != http.MethodGet && a.csrfToken != "" {
		httpReq.Header.Set("X-CSRF-Token", a.csrfToken)
	}
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

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, apperrors.Connection("failed to read response body", err)
	}
	elapsed := time.Since(start).Milliseconds()

	errMsg := extractError(raw, a.Version)
	unwrapped := unwrapEnvelope(raw, a.Version)

	resp := &connector.Response{
		StatusCode:     httpResp.StatusCode,
		Body:           unwrapped,
		Success:        httpResp.StatusCode < 400 && errMsg == "",
		ErrorMessage:   errMsg,
		ResponseTimeMS: elapsed,
		RequestID:      requestID,
	}
	if resp.ErrorMessage == "" && httpResp.StatusCode >= 400 {
		resp.ErrorMessage = fmt.Sprintf("request failed with status %d", httpResp.StatusCode)
	}
	return resp, nil
}

func optionsFromMetadata(meta map[string]interface{}) QueryOptions {
	opts := QueryOptions{}
	if f, ok := meta["$filter"].(map[string]string); ok {
		opts.Filters = f
	}
	if s, ok := meta["$select"].([]string); ok {
		opts.Select = s
	}
	if e, ok := meta["$expand"].([]string); ok {
		opts.Expand = e
	}
	if ob, ok := meta["$orderby"].(string); ok {
		opts.OrderBy = ob
	}
	if top, ok := meta["$top"].(int); ok {
		opts.Top = top
	}
	if skip, ok := meta["$skip"].(int); ok {
		opts.Skip = skip
	}
	return opts
}

func unwrapEnvelope(raw []byte, version Version) interface{} {
	var key string
	if version == V2 {
		key = "d"
	} else {
		key = "value"
	}
	result := gjson.GetBytes(raw, key)
	if result.Exists() {
		var v interface{}
		if err := json.Unmarshal([]byte(result.Raw), &v); err == nil {
			return v
		}
	}
	var v interface{}
	_ = json.Unmarshal(raw, &v)
	return v
}

func extractError(raw []byte, version Version) string {
	if version == V2 {
		msg := gjson.GetBytes(raw, "error.message.value")
		if msg.Exists() {
			return msg.String()
		}
		return ""
	}
	msg := gjson.GetBytes(raw, "error.message")
	if msg.Exists() {
		return msg.String()
	}
	return ""
}
