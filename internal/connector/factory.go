package connector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/taxpoynt/connector-framework/internal/apperrors"
	"github.com/taxpoynt/connector-framework/internal/auth"
	"github.com/taxpoynt/connector-framework/internal/circuit"
	"github.com/taxpoynt/connector-framework/internal/domain/connector"
	"github.com/taxpoynt/connector-framework/internal/protocol"
)

// Template is a closed record describing one connector preset: protocol,
// auth scheme, default endpoints/headers/settings, and the config fields
// a caller must supply. create_connector_config rejects a config built
// from a template whose required fields are missing, per the
// configuration-objects design note.
type Template struct {
	ID                 string
	Name               string
	Kind               connector.Kind
	Protocol           connector.Protocol
	AuthScheme         connector.AuthScheme
	DefaultEndpoints   map[string]string
	DefaultHeaders     map[string]string
	DefaultSettings    map[string]interface{}
	RequiredFields     []string
	BatchSize          int
	RateLimitPerMinute int
	Timeout            time.Duration
}

// BulkCreateRequest pairs a template with its per-connector overrides for
// Factory.BulkCreate.
type BulkCreateRequest struct {
	TemplateID string
	Overrides  map[string]interface{}
	AutoInit   bool
}

// BulkCreateResult tallies a bulk creation run.
type BulkCreateResult struct {
	Successful []string
	Failed     map[string]string
	Total      int
}

// HealthCheckAllResult aggregates every live connector's health.
type HealthCheckAllResult struct {
	Healthy   []string
	Unhealthy []string
	Details   map[string]connector.HealthStatus
}

// TestConnectionResult is the verdict of a throwaway connectivity check.
type TestConnectionResult struct {
	Success      bool
	LatencyMS    int64
	ErrorMessage string
}

// Factory owns the keyed registry of templates and live connectors
// described by §4.5: it builds configs from templates, constructs and
// registers runtimes, and tears them down.
type Factory struct {
	mu         sync.RWMutex
	templates  map[string]Template
	connectors map[string]*Runtime
	registry   *protocol.Registry
	catalog    *auth.Catalog
	breakerCfg circuit.Config
	log        logrus.FieldLogger
}

// NewFactory builds an empty Factory wired to registry for adapter
// construction and catalog for credential handling.
func NewFactory(registry *protocol.Registry, catalog *auth.Catalog, breakerCfg circuit.Config, log logrus.FieldLogger) *Factory {
	return &Factory{
		templates:  make(map[string]Template),
		connectors: make(map[string]*Runtime),
		registry:   registry,
		catalog:    catalog,
		breakerCfg: breakerCfg,
		log:        log,
	}
}

// RegisterTemplate adds or replaces a template under its ID.
func (f *Factory) RegisterTemplate(t Template) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templates[t.ID] = t
}

// Template returns the registered template by ID.
func (f *Factory) Template(id string) (Template, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.templates[id]
	return t, ok
}

// CreateConnectorConfig validates overrides against templateID's required
// fields and merges defaults with overrides into a Config, stamping
// metadata {template_id, template_name}.
func (f *Factory) CreateConnectorConfig(templateID, connectorID string, overrides map[string]interface{}) (*connector.Config, error) {
	tmpl, ok := f.Template(templateID)
	if !ok {
		return nil, apperrors.Config(fmt.Sprintf("unknown connector template %q", templateID))
	}

	for _, field := range tmpl.RequiredFields {
		if _, present := overrides[field]; !present {
			return nil, apperrors.Validation(field, "required by template "+templateID)
		}
	}

	endpoints := cloneStringMap(tmpl.DefaultEndpoints)
	headers := cloneStringMap(tmpl.DefaultHeaders)
	settings := cloneAnyMap(tmpl.DefaultSettings)

	authConfig := make(map[string]interface{})
	for k, v := range overrides {
		switch k {
		case "endpoints":
			if m, ok := v.(map[string]string); ok {
				for ek, ev := range m {
					endpoints[ek] = ev
				}
			}
		case "headers":
			if m, ok := v.(map[string]string); ok {
				for hk, hv := range m {
					headers[hk] = hv
				}
			}
		case "settings":
			if m, ok := v.(map[string]interface{}); ok {
				for sk, sv := range m {
					settings[sk] = sv
				}
			}
		case "auth_config":
			if m, ok := v.(map[string]interface{}); ok {
				authConfig = m
			}
		default:
			authConfig[k] = v
		}
	}

	baseURL, _ := overrides["base_url"].(string)

	cfg := &connector.Config{
		ConnectorID:        connectorID,
		Name:               tmpl.Name,
		Kind:               tmpl.Kind,
		Protocol:           tmpl.Protocol,
		AuthScheme:         tmpl.AuthScheme,
		BaseURL:            baseURL,
		Endpoints:          endpoints,
		DefaultHeaders:     headers,
		AuthConfig:         authConfig,
		Timeout:            tmpl.Timeout,
		RateLimitPerMinute: tmpl.RateLimitPerMinute,
		BatchSize:          tmpl.BatchSize,
		SSLVerify:          true,
		DataFormat:         connector.FormatJSON,
		Settings:           settings,
		Metadata: map[string]interface{}{
			"template_id":   tmpl.ID,
			"template_name": tmpl.Name,
		},
	}
	return cfg, nil
}

// CreateConnector selects an adapter by cfg.Protocol, builds its Runtime,
// optionally initializes it, and registers it under cfg.ConnectorID.
func (f *Factory) CreateConnector(ctx context.Context, cfg *connector.Config, autoInit bool) (*Runtime, error) {
	adapter, ok := f.registry.New(cfg)
	if !ok {
		return nil, apperrors.Config(fmt.Sprintf("no adapter registered for protocol %q", cfg.Protocol))
	}

	var authMgr *auth.Manager
	if cfg.AuthScheme != connector.AuthNone && f.catalog != nil {
		authMgr = auth.NewManager(f.catalog)
	}

	breaker := circuit.New(f.breakerCfg)
	runtime := NewRuntime(cfg, adapter, authMgr, breaker, f.log)

	if autoInit {
		if err := runtime.Initialize(ctx); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	f.connectors[cfg.ConnectorID] = runtime
	f.mu.Unlock()
	return runtime, nil
}

// Connector returns the live connector registered under id.
func (f *Factory) Connector(id string) (*Runtime, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	r, ok := f.connectors[id]
	return r, ok
}

// DestroyConnector disconnects and unregisters the connector, if present.
func (f *Factory) DestroyConnector(ctx context.Context, id string) error {
	f.mu.Lock()
	runtime, ok := f.connectors[id]
	delete(f.connectors, id)
	f.mu.Unlock()

	if !ok {
		return apperrors.Config(fmt.Sprintf("no connector registered with id %q", id))
	}
	return runtime.Disconnect(ctx)
}

// BulkCreate runs CreateConnectorConfig + CreateConnector serially for
// every request, collecting successes and failures rather than aborting
// on the first error.
func (f *Factory) BulkCreate(ctx context.Context, requests []BulkCreateRequest) BulkCreateResult {
	result := BulkCreateResult{Failed: make(map[string]string), Total: len(requests)}

	for i, req := range requests {
		connectorID := fmt.Sprintf("%s-%d", req.TemplateID, i)
		if id, ok := req.Overrides["connector_id"].(string); ok && id != "" {
			connectorID = id
		}

		cfg, err := f.CreateConnectorConfig(req.TemplateID, connectorID, req.Overrides)
		if err != nil {
			result.Failed[connectorID] = err.Error()
			continue
		}
		if _, err := f.CreateConnector(ctx, cfg, req.AutoInit); err != nil {
			result.Failed[connectorID] = err.Error()
			continue
		}
		result.Successful = append(result.Successful, connectorID)
	}
	return result
}

// HealthCheckAll aggregates every live connector's current health
// snapshot without performing any new network calls.
func (f *Factory) HealthCheckAll() HealthCheckAllResult {
	f.mu.RLock()
	defer f.mu.RUnlock()

	result := HealthCheckAllResult{Details: make(map[string]connector.HealthStatus, len(f.connectors))}
	for id, runtime := range f.connectors {
		health := runtime.Health()
		result.Details[id] = health
		if health.Status == connector.StatusError {
			result.Unhealthy = append(result.Unhealthy, id)
		} else {
			result.Healthy = append(result.Healthy, id)
		}
	}
	return result
}

// TestConnection builds a throwaway connector from templateID+overrides,
// initializes it, measures the adapter's own Test latency, then tears it
// down unconditionally.
func (f *Factory) TestConnection(ctx context.Context, templateID string, overrides map[string]interface{}) TestConnectionResult {
	connectorID := "test-" + templateID
	cfg, err := f.CreateConnectorConfig(templateID, connectorID, overrides)
	if err != nil {
		return TestConnectionResult{Success: false, ErrorMessage: err.Error()}
	}

	adapter, ok := f.registry.New(cfg)
	if !ok {
		return TestConnectionResult{Success: false, ErrorMessage: fmt.Sprintf("no adapter registered for protocol %q", cfg.Protocol)}
	}
	defer adapter.Close(ctx)

	if err := adapter.Open(ctx, cfg); err != nil {
		return TestConnectionResult{Success: false, ErrorMessage: err.Error()}
	}

	latency, err := adapter.Test(ctx)
	if err != nil {
		return TestConnectionResult{Success: false, LatencyMS: latency, ErrorMessage: err.Error()}
	}
	return TestConnectionResult{Success: true, LatencyMS: latency}
}

func cloneStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneAnyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// GenericERPTemplate is the SAP-like OData+REST hybrid preset for ERP
// systems with no dedicated adapter: it uses OData for entity-set reads
// (the GetEntitySet/CSRF-token dance §4.1 already specifies).
// CreateConnectorConfig always takes the protocol from the template; a
// "protocol" key in the overrides lands in AuthConfig and does not switch
// the connector to REST.
func GenericERPTemplate() Template {
	return Template{
		ID:         "generic-erp",
		Name:       "Generic ERP Connector",
		Kind:       connector.KindERP,
		Protocol:   connector.ProtocolOData,
		AuthScheme: connector.AuthOAuth2,
		DefaultEndpoints: map[string]string{
			"invoices":  "/Invoices",
			"customers": "/BusinessPartners",
			"company":   "/CompanyInfo",
		},
		DefaultHeaders: map[string]string{
			"Accept": "application/json",
		},
		DefaultSettings: map[string]interface{}{
			"csrf_token_header": "X-CSRF-Token",
		},
		RequiredFields:     []string{"base_url"},
		BatchSize:          20,
		RateLimitPerMinute: 60,
		Timeout:            30 * time.Second,
	}
}
