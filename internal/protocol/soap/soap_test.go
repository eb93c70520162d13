package soap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponseFlattensBody(t *testing.T) {
	raw := []byte(`<?xml version="1.0"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <GetInvoiceResponse>
      <InvoiceID>INV-1</InvoiceID>
      <Total>100.50</Total>
    </GetInvoiceResponse>
  </soap:Body>
</soap:Envelope>`)

	flattened, fault, err := parseResponse(raw)
	require.NoError(t, err)
	assert.Nil(t, fault)
	assert.Equal(t, "INV-1", flattened["InvoiceID"])
	assert.Equal(t, "100.50", flattened["Total"])
}

func TestParseResponseExtractsFault(t *testing.T) {
	raw := []byte(`<?xml version="1.0"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <soap:Fault>
      <faultcode>soap:Server</faultcode>
      <faultstring>Invalid invoice id</faultstring>
    </soap:Fault>
  </soap:Body>
</soap:Envelope>`)

	_, fault, err := parseResponse(raw)
	require.NoError(t, err)
	require.NotNil(t, fault)
	assert.Equal(t, "soap:Server", fault.Code)
	assert.Equal(t, "Invalid invoice id", fault.String)
}

func TestBuildOperationBodyWrapsFieldsUnderOperationName(t *testing.T) {
	out, err := buildOperationBody("CreateInvoice", map[string]interface{}{"Total": 100})
	require.NoError(t, err)
	assert.Contains(t, string(out), "<tns:CreateInvoice>")
	assert.Contains(t, string(out), "<Total>100</Total>")
	assert.Contains(t, string(out), "</tns:CreateInvoice>")
}
