// Package auth implements the multi-scheme authentication manager: it
// converts an auth config into credentials, applies them to outgoing
// requests, refreshes them when expiring, and revokes them on disconnect.
package auth

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taxpoynt/connector-framework/internal/apperrors"
)

// Scheme identifies a registered scheme handler.
type Scheme string

const (
	SchemeNone        Scheme = "None"
	SchemeBasic       Scheme = "Basic"
	SchemeAPIKey      Scheme = "APIKey"
	SchemeOAuth2      Scheme = "OAuth2"
	SchemeJWT         Scheme = "JWT"
	SchemeSAML        Scheme = "SAML"
	SchemeCustomToken Scheme = "CustomToken"
)

// schemeHandler implements one authentication scheme's lifecycle.
type schemeHandler interface {
	authenticate(ctx context.Context, cfg map[string]interface{}) (*Credentials, error)
	apply(creds *Credentials, headers, query map[string]string) (map[string]string, map[string]string, error)
	refresh(ctx context.Context, creds *Credentials) (*Credentials, error)
}

// Catalog indexes the built-in scheme handlers by Scheme.
type Catalog struct {
	handlers map[Scheme]schemeHandler
}

// NewCatalog builds the catalog of built-in scheme handlers.
func NewCatalog(httpClient *http.Client) *Catalog {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{TLSClientConfig: &tls.Config{}}, //nolint:gosec
			Timeout:   30 * time.Second,
		}
	}
	return &Catalog{handlers: map[Scheme]schemeHandler{
		SchemeNone:        noneHandler{},
		SchemeBasic:       basicHandler{},
		SchemeAPIKey:      apiKeyHandler{},
		SchemeOAuth2:      oauth2Handler{client: httpClient},
		SchemeJWT:         jwtHandler{},
		SchemeSAML:        samlHandler{},
		SchemeCustomToken: customTokenHandler{},
	}}
}

// Manager tracks one Credentials value per connector and dispatches to the
// scheme handler named by each Credentials' Scheme.
type Manager struct {
	mu      sync.RWMutex
	catalog *Catalog
	creds   map[string]*Credentials
}

// NewManager constructs a Manager backed by catalog.
func NewManager(catalog *Catalog) *Manager {
	return &Manager{catalog: catalog, creds: map[string]*Credentials{}}
}

func (m *Manager) handlerFor(scheme string) (schemeHandler, error) {
	h, ok := m.catalog.handlers[Scheme(scheme)]
	if !ok {
		return nil, apperrors.Auth(fmt.Sprintf("unknown auth scheme %q", scheme))
	}
	return h, nil
}

// Authenticate routes authConfig to its scheme handler and stores the
// resulting Credentials under connectorID.
func (m *Manager) Authenticate(ctx context.Context, connectorID string, authConfig map[string]interface{}) (*Credentials, error) {
	scheme, _ := authConfig["scheme"].(string)
	h, err := m.handlerFor(scheme)
	if err != nil {
		return nil, err
	}
	creds, err := h.authenticate(ctx, authConfig)
	if err != nil {
		return nil, err
	}
	creds.Scheme = scheme
	creds.Config = authConfig

	m.mu.Lock()
	m.creds[connectorID] = creds
	m.mu.Unlock()
	return creds, nil
}

// Apply mutates copies of headers and query with connectorID's credential
// material, without touching the caller's maps.
func (m *Manager) Apply(connectorID string, headers, query map[string]string) (map[string]string, map[string]string, error) {
	m.mu.RLock()
	creds, ok := m.creds[connectorID]
	m.mu.RUnlock()
	if !ok {
		return headers, query, apperrors.Auth(fmt.Sprintf("no credentials for connector %q", connectorID))
	}
	h, err := m.handlerFor(creds.Scheme)
	if err != nil {
		return headers, query, err
	}

	outHeaders := cloneMap(headers)
	outQuery := cloneMap(query)
	return h.apply(creds, outHeaders, outQuery)
}

// Refresh reruns the scheme's refresh path if possible, otherwise
// re-authenticates from the stored config. Returns whether credentials
// remain (or become) valid.
func (m *Manager) Refresh(ctx context.Context, connectorID string) (bool, error) {
	m.mu.RLock()
	creds, ok := m.creds[connectorID]
	m.mu.RUnlock()
	if !ok {
		return false, apperrors.Auth(fmt.Sprintf("no credentials for connector %q", connectorID))
	}
	h, err := m.handlerFor(creds.Scheme)
	if err != nil {
		return false, err
	}

	refreshed, err := h.refresh(ctx, creds)
	if err != nil {
		return false, err
	}
	refreshed.Scheme = creds.Scheme
	refreshed.Config = creds.Config

	m.mu.Lock()
	m.creds[connectorID] = refreshed
	m.mu.Unlock()
	return refreshed.IsValid(time.Now()), nil
}

// IsValid reports whether connectorID's stored credentials are present and
// unexpired.
func (m *Manager) IsValid(connectorID string) bool {
	m.mu.RLock()
	creds, ok := m.creds[connectorID]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return creds.IsValid(time.Now())
}

// Revoke discards connectorID's stored credentials.
func (m *Manager) Revoke(connectorID string) {
	m.mu.Lock()
	delete(m.creds, connectorID)
	m.mu.Unlock()
}

// Stats is a read-only snapshot of the manager's credential population,
// for the factory's bulk health reporting.
type Stats struct {
	TotalConnectors int
	ValidCount      int
	ExpiredCount    int
	SchemeCounts    map[Scheme]int
}

// Stats summarizes the schemes and validity of every credential the
// manager currently holds.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{TotalConnectors: len(m.creds), SchemeCounts: make(map[Scheme]int)}
	now := time.Now()
	for _, creds := range m.creds {
		stats.SchemeCounts[Scheme(creds.Scheme)]++
		if creds.IsValid(now) {
			stats.ValidCount++
		} else {
			stats.ExpiredCount++
		}
	}
	return stats
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// --- None ---

type noneHandler struct{}

func (noneHandler) authenticate(ctx context.Context, cfg map[string]interface{}) (*Credentials, error) {
	return &Credentials{Tokens: map[TokenKind]*Token{}}, nil
}

func (noneHandler) apply(creds *Credentials, headers, query map[string]string) (map[string]string, map[string]string, error) {
	return headers, query, nil
}

func (noneHandler) refresh(ctx context.Context, creds *Credentials) (*Credentials, error) {
	return creds, nil
}

// --- Basic ---

type basicHandler struct{}

func (basicHandler) authenticate(ctx context.Context, cfg map[string]interface{}) (*Credentials, error) {
	user, _ := cfg["username"].(string)
	pass, _ := cfg["password"].(string)
	encoded := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
	return &Credentials{Tokens: map[TokenKind]*Token{
		TokenSession: {Kind: TokenSession, Value: encoded, IssuedAt: time.Now()},
	}}, nil
}

func (basicHandler) apply(creds *Credentials, headers, query map[string]string) (map[string]string, map[string]string, error) {
	tok := creds.Tokens[TokenSession]
	if tok == nil {
		return headers, query, apperrors.Auth("basic auth credentials missing session token")
	}
	headers["Authorization"] = "Basic " + tok.Value
	return headers, query, nil
}

func (basicHandler) refresh(ctx context.Context, creds *Credentials) (*Credentials, error) {
	user, _ := creds.Config["username"].(string)
	pass, _ := creds.Config["password"].(string)
	encoded := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
	creds.Tokens[TokenSession] = &Token{Kind: TokenSession, Value: encoded, IssuedAt: time.Now()}
	return creds, nil
}

// --- APIKey ---

type apiKeyHandler struct{}

func (apiKeyHandler) authenticate(ctx context.Context, cfg map[string]interface{}) (*Credentials, error) {
	key, _ := cfg["key"].(string)
	if key == "" {
		return nil, apperrors.Auth("api key authentication requires a key")
	}
	return &Credentials{Tokens: map[TokenKind]*Token{
		TokenAPIKey: {Kind: TokenAPIKey, Value: key, IssuedAt: time.Now()},
	}}, nil
}

func (apiKeyHandler) apply(creds *Credentials, headers, query map[string]string) (map[string]string, map[string]string, error) {
	tok := creds.Tokens[TokenAPIKey]
	if tok == nil {
		return headers, query, apperrors.Auth("api key credentials missing key token")
	}
	headerName, _ := creds.Config["header_name"].(string)
	if headerName == "" {
		headerName = "X-API-Key"
	}
	location, _ := creds.Config["location"].(string)
	if location == "query" {
		paramName, _ := creds.Config["param_name"].(string)
		if paramName == "" {
			paramName = "api_key"
		}
		query[paramName] = tok.Value
		return headers, query, nil
	}
	headers[headerName] = tok.Value
	return headers, query, nil
}

func (apiKeyHandler) refresh(ctx context.Context, creds *Credentials) (*Credentials, error) {
	return creds, nil
}

// --- OAuth2 ---

type oauth2Handler struct {
	client *http.Client
}

type oauth2TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

func (h oauth2Handler) authenticate(ctx context.Context, cfg map[string]interface{}) (*Credentials, error) {
	form := url.Values{}
	grantType, _ := cfg["grant_type"].(string)
	if grantType == "" {
		grantType = "client_credentials"
	}
	form.Set("grant_type", grantType)
	if v, ok := cfg["client_id"].(string); ok {
		form.Set("client_id", v)
	}
	if v, ok := cfg["client_secret"].(string); ok {
		form.Set("client_secret", v)
	}
	if v, ok := cfg["scope"].(string); ok && v != "" {
		form.Set("scope", v)
	}
	switch grantType {
	case "authorization_code":
		if v, ok := cfg["code"].(string); ok {
			form.Set("code", v)
		}
		if v, ok := cfg["redirect_uri"].(string); ok {
			form.Set("redirect_uri", v)
		}
	case "refresh_token":
		if v, ok := cfg["refresh_token"].(string); ok {
			form.Set("refresh_token", v)
		}
	}

	tokenURL, _ := cfg["token_url"].(string)
	return h.exchange(ctx, tokenURL, form)
}

func (h oauth2Handler) exchange(ctx context.Context, tokenURL string, form url.Values) (*Credentials, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, apperrors.Connection("failed to build oauth2 token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, apperrors.Connection("oauth2 token request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Connection("failed to read oauth2 token response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Auth(fmt.Sprintf("oauth2 token endpoint returned status %d", resp.StatusCode)).WithDetail("body", string(body))
	}

	var tr oauth2TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, apperrors.Auth("oauth2 token response is not valid JSON").WithDetail("err", err.Error())
	}
	if tr.AccessToken == "" {
		return nil, apperrors.Auth("oauth2 token response missing access_token")
	}

	now := time.Now()
	expiresAt := now.Add(time.Duration(tr.ExpiresIn)*time.Second - 60*time.Second)
	tokens := map[TokenKind]*Token{
		TokenAccess: {Kind: TokenAccess, Value: tr.AccessToken, IssuedAt: now, ExpiresAt: &expiresAt, Scope: tr.Scope},
	}
	if tr.RefreshToken != "" {
		tokens[TokenRefresh] = &Token{Kind: TokenRefresh, Value: tr.RefreshToken, IssuedAt: now}
	}
	return &Credentials{Tokens: tokens, ExpiresAt: &expiresAt}, nil
}

func (oauth2Handler) apply(creds *Credentials, headers, query map[string]string) (map[string]string, map[string]string, error) {
	tok := creds.Tokens[TokenAccess]
	if tok == nil {
		return headers, query, apperrors.Auth("oauth2 credentials missing access token")
	}
	headers["Authorization"] = "Bearer " + tok.Value
	return headers, query, nil
}

func (h oauth2Handler) refresh(ctx context.Context, creds *Credentials) (*Credentials, error) {
	refreshTok := creds.Tokens[TokenRefresh]
	if refreshTok == nil {
		return h.authenticate(ctx, creds.Config)
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshTok.Value)
	if v, ok := creds.Config["client_id"].(string); ok {
		form.Set("client_id", v)
	}
	if v, ok := creds.Config["client_secret"].(string); ok {
		form.Set("client_secret", v)
	}
	tokenURL, _ := creds.Config["token_url"].(string)
	return h.exchange(ctx, tokenURL, form)
}

// --- JWT ---

type jwtHandler struct{}

// authenticate either verifies and stores a supplied token, or issues a new
// one by signing a supplied payload. A supplied token that cannot be parsed
// is a fatal error; there is no silent-acceptance path. Signature validity
// is only checked when a verification key is supplied — the decode-only
// variant accepts an unverifiable signature by design (no key to check it
// against) but never a token that fails to parse as a JWT at all.
func (jwtHandler) authenticate(ctx context.Context, cfg map[string]interface{}) (*Credentials, error) {
	if token, ok := cfg["token"].(string); ok && token != "" {
		return parseSuppliedToken(token, cfg)
	}
	return issueToken(cfg)
}

func parseSuppliedToken(tokenString string, cfg map[string]interface{}) (*Credentials, error) {
	secret, hasSecret := cfg["secret"].(string)

	parser := jwt.NewParser()
	var claims jwt.MapClaims
	var err error
	if hasSecret && secret != "" {
		var parsed *jwt.Token
		parsed, err = parser.ParseWithClaims(tokenString, jwt.MapClaims{}, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err == nil {
			claims, _ = parsed.Claims.(jwt.MapClaims)
		}
	} else {
		// Decode-only: parse the token's structure and claims without a key
		// to verify the signature against.
		parsedClaims := jwt.MapClaims{}
		_, _, err = parser.ParseUnverified(tokenString, parsedClaims)
		if err == nil {
			claims = parsedClaims
		}
	}
	if err != nil {
		return nil, apperrors.Auth("jwt token could not be parsed").WithDetail("err", err.Error())
	}

	var expiresAt *time.Time
	if exp, ok := claims["exp"].(float64); ok {
		t := time.Unix(int64(exp), 0)
		expiresAt = &t
	}

	return &Credentials{
		ExpiresAt: expiresAt,
		Tokens: map[TokenKind]*Token{
			TokenAccess: {Kind: TokenAccess, Value: tokenString, IssuedAt: time.Now(), ExpiresAt: expiresAt},
		},
	}, nil
}

func issueToken(cfg map[string]interface{}) (*Credentials, error) {
	secret, _ := cfg["secret"].(string)
	if secret == "" {
		return nil, apperrors.Auth("jwt issuance requires a secret")
	}
	alg, _ := cfg["alg"].(string)
	if alg == "" {
		alg = "HS256"
	}
	method := jwt.GetSigningMethod(alg)
	if method == nil {
		return nil, apperrors.Auth(fmt.Sprintf("unsupported jwt signing algorithm %q", alg))
	}

	payload, _ := cfg["payload"].(map[string]interface{})
	claims := jwt.MapClaims{}
	for k, v := range payload {
		claims[k] = v
	}
	now := time.Now()
	expiresAt := now.Add(time.Hour)
	claims["iat"] = now.Unix()
	claims["exp"] = expiresAt.Unix()

	token := jwt.NewWithClaims(method, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return nil, apperrors.Auth("jwt signing failed").WithDetail("err", err.Error())
	}

	return &Credentials{
		ExpiresAt: &expiresAt,
		Tokens: map[TokenKind]*Token{
			TokenAccess: {Kind: TokenAccess, Value: signed, IssuedAt: now, ExpiresAt: &expiresAt},
		},
	}, nil
}

func (jwtHandler) apply(creds *Credentials, headers, query map[string]string) (map[string]string, map[string]string, error) {
	tok := creds.Tokens[TokenAccess]
	if tok == nil {
		return headers, query, apperrors.Auth("jwt credentials missing access token")
	}
	headers["Authorization"] = "Bearer " + tok.Value
	return headers, query, nil
}

// refresh re-issues a JWT using the stored secret and payload. A credential
// set that only ever held a caller-supplied token (issued elsewhere, no
// secret on file) cannot be refreshed this way.
func (jwtHandler) refresh(ctx context.Context, creds *Credentials) (*Credentials, error) {
	if secret, ok := creds.Config["secret"].(string); ok && secret != "" {
		return issueToken(creds.Config)
	}
	return nil, apperrors.Auth("jwt credentials cannot be refreshed without a signing secret")
}

// --- SAML ---

type samlHandler struct{}

func (samlHandler) authenticate(ctx context.Context, cfg map[string]interface{}) (*Credentials, error) {
	assertion, _ := cfg["assertion"].(string)
	if assertion == "" {
		return nil, apperrors.Auth("saml authentication requires an assertion")
	}
	return &Credentials{Tokens: map[TokenKind]*Token{
		TokenSession: {Kind: TokenSession, Value: assertion, IssuedAt: time.Now()},
	}}, nil
}

func (samlHandler) apply(creds *Credentials, headers, query map[string]string) (map[string]string, map[string]string, error) {
	tok := creds.Tokens[TokenSession]
	if tok == nil {
		return headers, query, apperrors.Auth("saml credentials missing assertion")
	}
	headers["Authorization"] = "SAML " + tok.Value
	return headers, query, nil
}

func (h samlHandler) refresh(ctx context.Context, creds *Credentials) (*Credentials, error) {
	return h.authenticate(ctx, creds.Config)
}

// --- CustomToken ---

type customTokenHandler struct{}

func (customTokenHandler) authenticate(ctx context.Context, cfg map[string]interface{}) (*Credentials, error) {
	token, _ := cfg["token"].(string)
	if token == "" {
		return nil, apperrors.Auth("custom token authentication requires a token")
	}
	return &Credentials{Tokens: map[TokenKind]*Token{
		TokenCustom: {Kind: TokenCustom, Value: token, IssuedAt: time.Now()},
	}}, nil
}

func (customTokenHandler) apply(creds *Credentials, headers, query map[string]string) (map[string]string, map[string]string, error) {
	tok := creds.Tokens[TokenCustom]
	if tok == nil {
		return headers, query, apperrors.Auth("custom token credentials missing token")
	}
	headerName, _ := creds.Config["header_name"].(string)
	if headerName == "" {
		headerName = "Authorization"
	}
	prefix, _ := creds.Config["prefix"].(string)
	value := tok.Value
	if prefix != "" {
		value = strings.TrimSpace(prefix) + " " + value
	}
	headers[headerName] = value
	return headers, query, nil
}

func (h customTokenHandler) refresh(ctx context.Context, creds *Credentials) (*Credentials, error) {
	return h.authenticate(ctx, creds.Config)
}
