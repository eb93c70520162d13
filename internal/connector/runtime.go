// Package connector ties the protocol adapters, authentication manager,
// and circuit breaker into one runtime per connector instance, plus the
// factory that builds and registers runtimes from templates.
package connector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/taxpoynt/connector-framework/internal/apperrors"
	"github.com/taxpoynt/connector-framework/internal/auth"
	"github.com/taxpoynt/connector-framework/internal/circuit"
	domaincircuit "github.com/taxpoynt/connector-framework/internal/domain/circuit"
	"github.com/taxpoynt/connector-framework/internal/domain/connector"
	"github.com/taxpoynt/connector-framework/internal/protocol"
)

// defaultAxis is used when a request's metadata doesn't name an operation
// class. §4.3 tags axes at call time; most CRUD traffic through a
// connector is ordinary application-layer load, so APP is the sensible
// default rather than forcing every caller to classify every call.
const defaultAxis = domaincircuit.AxisAPP

// Runtime owns one connector's adapter, credentials, breaker, metrics, and
// health snapshot, per the data model's ownership rule.
type Runtime struct {
	cfg     *connector.Config
	adapter protocol.Adapter
	authMgr *auth.Manager
	breaker *circuit.Breaker
	log     logrus.FieldLogger
	burst   *rate.Limiter

	mu              sync.Mutex
	metrics         connector.Metrics
	health          connector.HealthStatus
	authenticated   bool
	rateLimitWindow []time.Time
}

// NewRuntime builds an unopened Runtime. Call Initialize before Execute.
//
// Alongside the 60-second sliding-window quota (admitRateLimit) it carries a
// token-bucket burst limiter sized off the same per-minute quota. The
// window enforces the business-level ceiling a connector template declares;
// the bucket paces Batch so a run doesn't fire its whole quota in a burst.
func NewRuntime(cfg *connector.Config, adapter protocol.Adapter, authMgr *auth.Manager, breaker *circuit.Breaker, log logrus.FieldLogger) *Runtime {
	return &Runtime{
		cfg:     cfg,
		adapter: adapter,
		authMgr: authMgr,
		breaker: breaker,
		log:     log,
		burst:   burstLimiterFor(cfg),
		health:  connector.HealthStatus{Status: connector.StatusError},
	}
}

// burstLimiterFor returns nil when the connector has no per-minute quota,
// matching admitRateLimit's own no-limit-configured bypass. The bucket is
// sized to a quarter of the per-minute quota: enough burst to let a batch
// run ahead of the token refill rate without ever outrunning the quota
// admitRateLimit is already enforcing on every call.
func burstLimiterFor(cfg *connector.Config) *rate.Limiter {
	if cfg == nil || cfg.RateLimitPerMinute <= 0 {
		return nil
	}
	rps := float64(cfg.RateLimitPerMinute) / 60.0
	burst := cfg.RateLimitPerMinute / 4
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Initialize opens the adapter and performs the first authentication.
func (r *Runtime) Initialize(ctx context.Context) error {
	if err := r.adapter.Open(ctx, r.cfg); err != nil {
		return apperrors.Connection("failed to open protocol adapter", err)
	}
	return r.ensureAuthenticated(ctx)
}

func (r *Runtime) ensureAuthenticated(ctx context.Context) error {
	r.mu.Lock()
	needsAuth := !r.authenticated || (r.authMgr != nil && !r.authMgr.IsValid(r.cfg.ConnectorID))
	r.mu.Unlock()
	if !needsAuth || r.authMgr == nil {
		return nil
	}

	if _, err := r.authMgr.Authenticate(ctx, r.cfg.ConnectorID, r.cfg.AuthConfig); err != nil {
		return err
	}

	headers, _, err := r.authMgr.Apply(r.cfg.ConnectorID, map[string]string{}, map[string]string{})
	if err != nil {
		return err
	}
	if err := r.adapter.Authenticate(ctx, headers); err != nil {
		return err
	}

	r.mu.Lock()
	r.authenticated = true
	r.mu.Unlock()
	return nil
}

// admitRateLimit enforces the 60-second sliding-window rate limit: admit
// iff fewer than RateLimitPerMinute timestamps fall within the last 60s.
func (r *Runtime) admitRateLimit(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cfg.RateLimitPerMinute <= 0 {
		return true
	}

	cutoff := now.Add(-60 * time.Second)
	kept := r.rateLimitWindow[:0]
	for _, ts := range r.rateLimitWindow {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	r.rateLimitWindow = kept

	if len(r.rateLimitWindow) >= r.cfg.RateLimitPerMinute {
		return false
	}
	r.rateLimitWindow = append(r.rateLimitWindow, now)
	return true
}

// Execute runs one request through rate-limit admission, authentication,
// the circuit breaker, and the adapter, updating metrics and health on
// completion.
func (r *Runtime) Execute(ctx context.Context, req *connector.Request) (*connector.Response, error) {
	now := time.Now()
	if !r.admitRateLimit(now) {
		if r.log != nil {
			r.log.WithField("connector_id", r.cfg.ConnectorID).Warn("rate limit exceeded, request rejected")
		}
		return nil, apperrors.RateLimit(fmt.Sprintf("rate limit of %d requests/minute exceeded", r.cfg.RateLimitPerMinute))
	}

	if err := r.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}

	axis := axisFromMetadata(req.Metadata)
	callCtx := contextFromRequest(req)
	callTimeout := r.cfg.Timeout
	if req.Timeout > 0 && req.Timeout < callTimeout {
		callTimeout = req.Timeout
	}

	var resp *connector.Response
	execErr := r.breaker.Execute(ctx, axis, callCtx, callTimeout, func(ctx context.Context) error {
		var err error
		resp, err = r.adapter.Execute(ctx, req)
		if err != nil {
			return err
		}
		if !resp.Success {
			return apperrors.Protocol(resp.ErrorMessage)
		}
		return nil
	})

	success := execErr == nil
	elapsed := time.Since(now).Milliseconds()
	r.recordOutcome(now, success, elapsed)

	if execErr != nil && r.log != nil {
		r.log.WithError(execErr).WithField("connector_id", r.cfg.ConnectorID).Warn("connector call failed")
	}

	if execErr != nil && resp == nil {
		return &connector.Response{Success: false, ErrorMessage: execErr.Error(), RequestID: uuid.NewString(), ResponseTimeMS: elapsed}, execErr
	}
	return resp, nil
}

func (r *Runtime) recordOutcome(now time.Time, success bool, responseTimeMS int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.metrics.Record(now, success, responseTimeMS)
	r.health = connector.HealthStatus{
		Status:        r.metrics.Status(),
		SuccessRate:   r.metrics.SuccessRate(),
		LastCheckedAt: now,
		Details: map[string]interface{}{
			"total_requests": r.metrics.TotalRequests,
			"error_rate_pct": r.metrics.ErrorRatePercent(),
			"breaker_state":  r.breaker.State(),
		},
	}
}

// Create, Read, Update, Delete, and List are high-level CRUDL helpers
// mapping a resource type to a (method, endpoint key) pair.
func (r *Runtime) Create(ctx context.Context, resourceType string, body interface{}) (*connector.Response, error) {
	return r.Execute(ctx, &connector.Request{Operation: "create", EndpointKey: resourceType, Method: "POST", Body: body})
}

func (r *Runtime) Read(ctx context.Context, resourceType, id string) (*connector.Response, error) {
	return r.Execute(ctx, &connector.Request{Operation: "read", EndpointKey: resourceType, Method: "GET", Query: map[string]string{"id": id}})
}

func (r *Runtime) Update(ctx context.Context, resourceType, id string, body interface{}) (*connector.Response, error) {
	return r.Execute(ctx, &connector.Request{Operation: "update", EndpointKey: resourceType, Method: "PUT", Query: map[string]string{"id": id}, Body: body})
}

func (r *Runtime) Delete(ctx context.Context, resourceType, id string) (*connector.Response, error) {
	return r.Execute(ctx, &connector.Request{Operation: "delete", EndpointKey: resourceType, Method: "DELETE", Query: map[string]string{"id": id}})
}

func (r *Runtime) List(ctx context.Context, resourceType string, query map[string]string) (*connector.Response, error) {
	return r.Execute(ctx, &connector.Request{Operation: "list", EndpointKey: resourceType, Method: "GET", Query: query})
}

// Batch executes requests in order, pausing every BatchSize calls. When the
// connector has a configured per-minute quota, the pause waits on the
// token-bucket burst limiter (spacing calls to the quota's own rate);
// otherwise it falls back to a fixed 100ms pause.
func (r *Runtime) Batch(ctx context.Context, requests []*connector.Request) []*connector.Response {
	batchSize := r.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = len(requests)
		if batchSize == 0 {
			batchSize = 1
		}
	}

	responses := make([]*connector.Response, 0, len(requests))
	for i, req := range requests {
		resp, err := r.Execute(ctx, req)
		if resp == nil {
			resp = &connector.Response{Success: false, ErrorMessage: err.Error()}
		}
		responses = append(responses, resp)

		if (i+1)%batchSize == 0 && i+1 < len(requests) {
			r.pauseBetweenBatches(ctx)
		}
	}
	return responses
}

func (r *Runtime) pauseBetweenBatches(ctx context.Context) {
	if r.burst == nil {
		time.Sleep(100 * time.Millisecond)
		return
	}
	if err := r.burst.Wait(ctx); err != nil && r.log != nil {
		r.log.WithError(err).WithField("connector_id", r.cfg.ConnectorID).Warn("batch pacing wait interrupted")
	}
}

// Health returns the connector's current point-in-time health snapshot.
func (r *Runtime) Health() connector.HealthStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.health
}

// Metrics returns a copy of the connector's accumulated metrics.
func (r *Runtime) Metrics() connector.Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}

// Info returns a read-only snapshot combining config identity, metrics,
// and health. The factory's HealthCheckAll reads Health, not Info.
func (r *Runtime) Info() map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return map[string]interface{}{
		"connector_id": r.cfg.ConnectorID,
		"name":         r.cfg.Name,
		"kind":         r.cfg.Kind,
		"protocol":     r.cfg.Protocol,
		"status":       r.health.Status,
		"total_requests": r.metrics.TotalRequests,
		"breaker_state": r.breaker.State(),
	}
}

// Disconnect closes the protocol adapter and revokes credentials.
func (r *Runtime) Disconnect(ctx context.Context) error {
	if r.authMgr != nil {
		r.authMgr.Revoke(r.cfg.ConnectorID)
	}
	return r.adapter.Close(ctx)
}

func axisFromMetadata(metadata map[string]interface{}) domaincircuit.Axis {
	raw, ok := metadata["axis"]
	if !ok {
		return defaultAxis
	}
	s, ok := raw.(string)
	if !ok {
		return defaultAxis
	}
	switch domaincircuit.Axis(s) {
	case domaincircuit.AxisSI, domaincircuit.AxisAPP, domaincircuit.AxisHybrid, domaincircuit.AxisDomain:
		return domaincircuit.Axis(s)
	default:
		return defaultAxis
	}
}

// contextFromRequest projects a request's metadata into the string-keyed
// context map the breaker's domain-indicator matching scans.
func contextFromRequest(req *connector.Request) map[string]string {
	ctx := make(map[string]string, len(req.Metadata)+1)
	ctx["operation"] = req.Operation
	for k, v := range req.Metadata {
		if s, ok := v.(string); ok {
			ctx[k] = s
		}
	}
	return ctx
}
