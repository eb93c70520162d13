package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhoneNGVariants(t *testing.T) {
	cases := map[string]string{
		"08012345678":   "+2348012345678",
		"8012345678":    "+2348012345678",
		"2348012345678": "+2348012345678",
		"12345":         "",
	}
	for in, want := range cases {
		got, err := normalizePhoneNG(in, nil)
		if want == "" {
			assert.Error(t, err, in)
			continue
		}
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestCurrencyToMinorAndBack(t *testing.T) {
	minor, err := currencyToMinor(1500.50, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(150050), minor)

	back, err := minorToCurrency(int64(150050), nil)
	require.NoError(t, err)
	assert.InDelta(t, 1500.50, back, 0.001)
}

func TestTruncateAndPad(t *testing.T) {
	out, err := truncateFn("Adebayo Traders", map[string]interface{}{"length": 7})
	require.NoError(t, err)
	assert.Equal(t, "Adebayo", out)

	padded, err := padFn("42", map[string]interface{}{"length": 5, "char": "0"})
	require.NoError(t, err)
	assert.Equal(t, "00042", padded)
}

func TestExtractDigitsAndSplitJoin(t *testing.T) {
	digits, err := extractDigits("+234-801-234-5678", nil)
	require.NoError(t, err)
	assert.Equal(t, "2348012345678", digits)

	parts, err := splitFn("a,b,c", nil)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "b", "c"}, parts)

	joined, err := joinFn(parts, map[string]interface{}{"delimiter": "-"})
	require.NoError(t, err)
	assert.Equal(t, "a-b-c", joined)
}

func TestHashFnProducesStableSha256(t *testing.T) {
	h1, err := hashFn("invoice-123", nil)
	require.NoError(t, err)
	h2, _ := hashFn("invoice-123", nil)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestToIntToFloatToBool(t *testing.T) {
	n, err := toIntFn("42", nil)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	f, err := toFloatFn("3.14", nil)
	require.NoError(t, err)
	assert.InDelta(t, 3.14, f, 0.0001)

	b, err := toBoolFn("true", nil)
	require.NoError(t, err)
	assert.Equal(t, true, b)

	_, err = toIntFn("not-a-number", nil)
	assert.Error(t, err)
}
