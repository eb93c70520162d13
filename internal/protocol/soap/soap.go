// Package soap implements a SOAP 1.1 protocol.Adapter on stdlib
// encoding/xml. No third-party SOAP/WSDL library was found anywhere in
// the retrieval corpus, so WSDL discovery and envelope construction are
// hand-rolled against the stdlib XML decoder/encoder, matching the
// stdlib-only XML handling already present in the teacher's codebase
// elsewhere.
package soap

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taxpoynt/connector-framework/internal/apperrors"
	"github.com/taxpoynt/connector-framework/internal/domain/connector"
)

// OperationInfo is one catalog entry discovered from a WSDL portType.
type OperationInfo struct {
	Name         string
	InputMessage string
	OutputMessage string
}

// Adapter implements protocol.Adapter for SOAP 1.1 services.
type Adapter struct {
	cfg              *connector.Config
	client           *http.Client
	ServiceURL       string
	TargetNamespace  string
	NamespaceMap     map[string]string
	Operations       map[string]OperationInfo
}

// New constructs a SOAP adapter.
func New(cfg *connector.Config) *Adapter {
	return &Adapter{cfg: cfg, NamespaceMap: map[string]string{}, Operations: map[string]OperationInfo{}}
}

// Open fetches and parses the WSDL when cfg.Settings["wsdl_url"] is set.
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
	a.ServiceURL = cfg.BaseURL

	wsdlURL, _ := cfg.Settings["wsdl_url"].(string)
	if wsdlURL == "" {
		return nil
	}
	return a.loadWSDL(ctx, wsdlURL)
}

type wsdlDefinitions struct {
	TargetNamespace string `xml:"targetNamespace,attr"`
	PortType        []struct {
		Operation []struct {
			Name  string `xml:"name,attr"`
			Input struct {
				Message string `xml:"message,attr"`
			} `xml:"input"`
			Output struct {
				Message string `xml:"message,attr"`
			} `xml:"output"`
		} `xml:"operation"`
	} `xml:"portType"`
	Service struct {
		Port struct {
			Address struct {
				Location string `xml:"location,attr"`
			} `xml:"address"`
		} `xml:"port"`
	} `xml:"service"`
}

func (a *Adapter) loadWSDL(ctx context.Context, wsdlURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wsdlURL, nil)
	if err != nil {
		return apperrors.Connection("building WSDL request failed", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return apperrors.Connection("fetching WSDL failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Connection("reading WSDL body failed", err)
	}

	var def wsdlDefinitions
	if err := xml.Unmarshal(raw, &def); err != nil {
		return apperrors.Protocol("failed to parse WSDL").WithDetail("err", err.Error())
	}

	a.TargetNamespace = def.TargetNamespace
	if def.Service.Port.Address.Location != "" {
		a.ServiceURL = def.Service.Port.Address.Location
	}
	for _, pt := range def.PortType {
		for _, op := range pt.Operation {
			a.Operations[op.Name] = OperationInfo{
				Name:          op.Name,
				InputMessage:  op.Input.Message,
				OutputMessage: op.Output.Message,
			}
		}
	}
	return nil
}

// Authenticate is a no-op: credentials are baked into the envelope per
// request by Execute (WS-Security UsernameToken for CustomToken scheme).
func (a *Adapter) Authenticate(ctx context.Context, headers map[string]string) error {
	return nil
}

// Test sends a plain HTTP GET (no SOAP envelope) to the service URL and
// measures latency.
func (a *Adapter) Test(ctx context.Context) (int64, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.ServiceURL, nil)
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

// Close releases the HTTP client's idle connections; the adapter holds no
// other session state.
func (a *Adapter) Close(ctx context.Context) error {
	if a.client != nil {
		a.client.CloseIdleConnections()
	}
	return nil
}

type envelope struct {
	XMLName xml.Name `xml:"soap:Envelope"`
	XMLNSSoap string `xml:"xmlns:soap,attr"`
	XMLNSTns  string `xml:"xmlns:tns,attr"`
	Header  *header `xml:"soap:Header"`
	Body    body    `xml:"soap:Body"`
}

type header struct {
	UsernameToken *usernameToken `xml:"wsse:Security>wsse:UsernameToken"`
}

type usernameToken struct {
	Username string `xml:"wsse:Username"`
	Password string `xml:"wsse:Password"`
}

type body struct {
	InnerXML []byte `xml:",innerxml"`
}

// Execute builds a SOAP envelope for req.Operation, sends it, and parses
// the response generically into a namespace-stripped map.
func (a *Adapter) Execute(ctx context.Context, req *connector.Request) (*connector.Response, error) {
	envXML, err := a.buildEnvelope(req)
	if err != nil {
		return nil, apperrors.Protocol("failed to build SOAP envelope").WithDetail("err", err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.ServiceURL, bytes.NewReader(envXML))
	if err != nil {
		return nil, apperrors.Connection("failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "text/xml; charset=utf-8")

	soapAction := `""`
	if sa, ok := req.Metadata["soap_action"].(string); ok && sa != "" {
		soapAction = sa
	}
	httpReq.Header.Set("SOAPAction", soapAction)

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

	flattened, fault, parseErr := parseResponse(raw)
	resp := &connector.Response{
		StatusCode:     httpResp.StatusCode,
		Body:           flattened,
		ResponseTimeMS: elapsed,
		RequestID:      requestID,
		Success:        httpResp.StatusCode < 400 && fault == nil && parseErr == nil,
	}
	if fault != nil {
		resp.ErrorMessage = fmt.Sprintf("%s: %s", fault.Code, fault.String)
	} else if parseErr != nil {
		resp.ErrorMessage = parseErr.Error()
	} else if httpResp.StatusCode >= 400 {
		resp.ErrorMessage = fmt.Sprintf("request failed with status %d", httpResp.StatusCode)
	}
	return resp, nil
}

func (a *Adapter) buildEnvelope(req *connector.Request) ([]byte, error) {
	var hdr *header
	if a.cfg.AuthScheme == connector.AuthCustomToken {
		if username, ok := a.cfg.AuthConfig["username"].(string); ok && username != "" {
			password, _ := a.cfg.AuthConfig["password"].(string)
			hdr = &header{UsernameToken: &usernameToken{Username: username, Password: password}}
		}
	}

	operationXML, err := buildOperationBody(req.Operation, req.Body)
	if err != nil {
		return nil, err
	}

	env := envelope{
		XMLNSSoap: "http://schemas.xmlsoap.org/soap/envelope/",
		XMLNSTns:  a.TargetNamespace,
		Header:    hdr,
		Body:      body{InnerXML: operationXML},
	}

	out, err := xml.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

func buildOperationBody(operation string, payload interface{}) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("<tns:%s>", operation))
	fields, _ := payload.(map[string]interface{})
	for k, v := range fields {
		fmt.Fprintf(&buf, "<%s>%v</%s>", k, v, k)
	}
	buf.WriteString(fmt.Sprintf("</tns:%s>", operation))
	return buf.Bytes(), nil
}

type fault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
	Detail string `xml:"detail"`
}

// parseResponse strips namespace prefixes from element names and
// flattens the Body's children into a map. A Fault child is returned
// separately.
func parseResponse(raw []byte) (map[string]interface{}, *fault, error) {
	decoder := xml.NewDecoder(bytes.NewReader(raw))
	result := make(map[string]interface{})
	var currentFault *fault
	inBody := false

	var stack []string
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := localName(t.Name.Local)
			if strings.EqualFold(name, "Body") {
				inBody = true
				continue
			}
			if inBody && strings.EqualFold(name, "Fault") {
				var f fault
				if err := decoder.DecodeElement(&f, &t); err == nil {
					currentFault = &f
				}
				continue
			}
			if inBody {
				stack = append(stack, name)
			}
		case xml.CharData:
			if inBody && len(stack) > 0 {
				text := strings.TrimSpace(string(t))
				if text != "" {
					result[stack[len(stack)-1]] = text
				}
			}
		case xml.EndElement:
			name := localName(t.Name.Local)
			if strings.EqualFold(name, "Body") {
				inBody = false
				continue
			}
			if inBody && len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return result, currentFault, nil
}

func localName(name string) string {
	if idx := strings.Index(name, ":"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}
