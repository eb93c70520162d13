package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	assert.Equal(t, "", validateEmail("ops@taxpoynt.test", nil))
	assert.NotEqual(t, "", validateEmail("not-an-email", nil))
}

func TestValidatePhoneNG(t *testing.T) {
	assert.Equal(t, "", validatePhone("+2348012345678", nil))
	assert.NotEqual(t, "", validatePhone("12345", nil))
}

func TestValidateRequired(t *testing.T) {
	assert.NotEqual(t, "", validateRequired(nil, nil))
	assert.NotEqual(t, "", validateRequired("   ", nil))
	assert.Equal(t, "", validateRequired("value", nil))
}

func TestValidateMinMaxLength(t *testing.T) {
	assert.NotEqual(t, "", validateMinLength("ab", map[string]interface{}{"length": 3}))
	assert.Equal(t, "", validateMinLength("abc", map[string]interface{}{"length": 3}))
	assert.NotEqual(t, "", validateMaxLength("abcd", map[string]interface{}{"length": 3}))
}

func TestValidateInList(t *testing.T) {
	params := map[string]interface{}{"values": []interface{}{"Draft", "Paid", "Void"}}
	assert.Equal(t, "", validateInList("Paid", params))
	assert.NotEqual(t, "", validateInList("Cancelled", params))
}

func TestValidateNumericRange(t *testing.T) {
	params := map[string]interface{}{"min": 0.0, "max": 100.0}
	assert.Equal(t, "", validateNumericRange("50", params))
	assert.NotEqual(t, "", validateNumericRange("150", params))
	assert.NotEqual(t, "", validateNumericRange("-1", params))
}

func TestValidateURL(t *testing.T) {
	assert.Equal(t, "", validateURL("https://api.taxpoynt.test/v1/invoices", nil))
	assert.NotEqual(t, "", validateURL("not a url", nil))
}
