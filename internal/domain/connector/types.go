// Package connector defines the data model shared by every protocol
// adapter, the authentication manager, the circuit breaker, and the
// connector runtime: configuration, requests/responses, health, and
// metrics.
package connector

import "time"

// Kind is the business category of an external system a connector talks to.
type Kind string

const (
	KindERP        Kind = "ERP"
	KindCRM        Kind = "CRM"
	KindAccounting Kind = "Accounting"
	KindPOS        Kind = "POS"
	KindEcommerce  Kind = "Ecommerce"
	KindBanking    Kind = "Banking"
	KindPayment    Kind = "Payment"
	KindForex      Kind = "Forex"
	KindGovernment Kind = "Government"
	KindGeneric    Kind = "Generic"
)

// Protocol identifies the wire protocol a connector speaks.
type Protocol string

const (
	ProtocolREST    Protocol = "REST"
	ProtocolSOAP    Protocol = "SOAP"
	ProtocolGraphQL Protocol = "GraphQL"
	ProtocolOData   Protocol = "OData"
	ProtocolJSONRPC Protocol = "JSON-RPC"
	ProtocolXMLRPC  Protocol = "XML-RPC"
	ProtocolCustom  Protocol = "Custom"
)

// AuthScheme identifies how a connector authenticates.
type AuthScheme string

const (
	AuthNone        AuthScheme = "None"
	AuthBasic       AuthScheme = "Basic"
	AuthAPIKey      AuthScheme = "APIKey"
	AuthOAuth2      AuthScheme = "OAuth2"
	AuthJWT         AuthScheme = "JWT"
	AuthSAML        AuthScheme = "SAML"
	AuthCustomToken AuthScheme = "CustomToken"
)

// DataFormat is the wire payload encoding.
type DataFormat string

const (
	FormatJSON   DataFormat = "JSON"
	FormatXML    DataFormat = "XML"
	FormatCSV    DataFormat = "CSV"
	FormatForm   DataFormat = "Form"
	FormatBinary DataFormat = "Binary"
)

// RetryPolicy controls how the REST adapter retries failed calls; the
// runtime itself does not retry.
type RetryPolicy struct {
	MaxAttempts int
	BackoffMS   int
}

// Config is the immutable configuration of one connector instance. It is
// never mutated after construction; the factory builds a new Config for
// every override.
type Config struct {
	ConnectorID   string
	Name          string
	Kind          Kind
	Protocol      Protocol
	AuthScheme    AuthScheme
	BaseURL       string
	Endpoints     map[string]string
	DefaultHeaders map[string]string
	AuthConfig    map[string]interface{}
	Timeout       time.Duration
	Retry         RetryPolicy
	RateLimitPerMinute int
	BatchSize     int
	SSLVerify     bool
	DataFormat    DataFormat
	Settings      map[string]interface{}
	Metadata      map[string]interface{}
}

// Endpoint resolves a named endpoint to its configured path. The second
// return value is false when the key is unknown.
func (c *Config) Endpoint(key string) (string, bool) {
	if c.Endpoints == nil {
		return "", false
	}
	v, ok := c.Endpoints[key]
	return v, ok
}

// Request is one outbound call through a connector.
type Request struct {
	Operation     string
	EndpointKey   string
	Path          string
	Method        string
	Body          interface{}
	Query         map[string]string
	Headers       map[string]string
	Timeout       time.Duration
	RetryOnFailure bool
	Metadata      map[string]interface{}
}

// Response is the result of a Request.
type Response struct {
	StatusCode     int
	Body           interface{}
	Headers        map[string]string
	Success        bool
	ErrorMessage   string
	ResponseTimeMS int64
	RequestID      string
}

// Status describes the connector's observed health bucket, derived from
// success-rate thresholds (see Metrics.Status).
type Status string

const (
	StatusConnected    Status = "Connected"
	StatusAuthenticated Status = "Authenticated"
	StatusError        Status = "Error"
)

// HealthStatus is the connector's own point-in-time health snapshot,
// distinct from the health monitor's ConnectorStats.
type HealthStatus struct {
	Status         Status
	SuccessRate    float64
	LastCheckedAt  time.Time
	Details        map[string]interface{}
}

// Metrics accumulates pure in-memory counters for one connector. No
// persistence; reset only by recreating the connector.
type Metrics struct {
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	AvgResponseTimeMS  float64
	PeakResponseTimeMS int64
	requestTimestamps  []time.Time
}

// ErrorRatePercent returns the percentage of failed requests.
func (m *Metrics) ErrorRatePercent() float64 {
	if m.TotalRequests == 0 {
		return 0
	}
	return float64(m.FailedRequests) / float64(m.TotalRequests) * 100
}

// SuccessRate returns the fraction (0..1) of successful requests.
func (m *Metrics) SuccessRate() float64 {
	if m.TotalRequests == 0 {
		return 1
	}
	return float64(m.SuccessfulRequests) / float64(m.TotalRequests)
}

// Status derives the connector's overall health bucket from its success
// rate: >=95% Connected, 80-95% Authenticated, <80% Error.
func (m *Metrics) Status() Status {
	rate := m.SuccessRate() * 100
	switch {
	case rate >= 95:
		return StatusConnected
	case rate >= 80:
		return StatusAuthenticated
	default:
		return StatusError
	}
}

// RequestsPerMinute counts timestamps recorded within the last 60 seconds,
// as of now.
func (m *Metrics) RequestsPerMinute(now time.Time) int {
	cutoff := now.Add(-60 * time.Second)
	count := 0
	kept := m.requestTimestamps[:0]
	for _, ts := range m.requestTimestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
			count++
		}
	}
	m.requestTimestamps = kept
	return count
}

// Record updates all counters for one completed call, using an
// incremental mean for average response time.
func (m *Metrics) Record(now time.Time, success bool, responseTimeMS int64) {
	m.TotalRequests++
	if success {
		m.SuccessfulRequests++
	} else {
		m.FailedRequests++
	}
	if responseTimeMS > m.PeakResponseTimeMS {
		m.PeakResponseTimeMS = responseTimeMS
	}
	m.AvgResponseTimeMS += (float64(responseTimeMS) - m.AvgResponseTimeMS) / float64(m.TotalRequests)
	m.requestTimestamps = append(m.requestTimestamps, now)
}
