package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONToXMLToJSONRoundTrip(t *testing.T) {
	original := map[string]interface{}{
		"invoiceNumber": "INV-001",
		"amount":        "1500",
	}

	xmlOut, err := convertFormat(original, "JSON", "XML", map[string]interface{}{"root_element": "invoice"})
	require.NoError(t, err)
	require.IsType(t, "", xmlOut)

	back, err := convertFormat(xmlOut, "XML", "JSON", nil)
	require.NoError(t, err)

	assert.Equal(t, original, back)
}

func TestJSONToCSVToJSONRoundTrip(t *testing.T) {
	original := []interface{}{
		map[string]interface{}{"id": "1", "status": "Paid"},
		map[string]interface{}{"id": "2", "status": "Draft"},
	}

	csvOut, err := convertFormat(original, "JSON", "CSV", map[string]interface{}{"header": true})
	require.NoError(t, err)

	back, err := convertFormat(csvOut, "CSV", "JSON", map[string]interface{}{"header": true})
	require.NoError(t, err)

	assert.Equal(t, original, back)
}

func TestConvertFormatSameFormatIsIdentity(t *testing.T) {
	data := map[string]interface{}{"a": "b"}
	out, err := convertFormat(data, "JSON", "JSON", nil)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestConvertFormatUnsupportedPairErrors(t *testing.T) {
	_, err := convertFormat("x", "XML", "CSV", nil)
	assert.Error(t, err)
}

func TestXMLListRoundTripsAsItems(t *testing.T) {
	original := map[string]interface{}{
		"items": []interface{}{"a", "b", "c"},
	}
	xmlOut, err := convertFormat(original, "JSON", "XML", map[string]interface{}{"root_element": "list"})
	require.NoError(t, err)

	back, err := convertFormat(xmlOut, "XML", "JSON", nil)
	require.NoError(t, err)
	assert.Equal(t, original, back)
}
