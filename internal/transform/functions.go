package transform

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TransformFunc is a built-in value transform: it takes the field's
// current value and the rule's parameters, and returns the new value.
type TransformFunc func(value interface{}, params map[string]interface{}) (interface{}, error)

var builtinTransforms = map[string]TransformFunc{
	"to_upper":           toUpper,
	"to_lower":           toLower,
	"trim":               trimSpace,
	"to_string":          toStringFn,
	"to_int":             toIntFn,
	"to_float":           toFloatFn,
	"to_bool":            toBoolFn,
	"date_format":        dateFormat,
	"datetime_format":    dateFormat,
	"normalize_phone_ng": normalizePhoneNG,
	"normalize_email":    normalizeEmail,
	"extract_digits":     extractDigits,
	"truncate":           truncateFn,
	"pad":                padFn,
	"currency_to_minor":  currencyToMinor,
	"minor_to_currency":  minorToCurrency,
	"split":              splitFn,
	"join":               joinFn,
	"hash":               hashFn,
	"uuid":               uuidFn,
	"timestamp":          timestampFn,
}

var nonDigit = regexp.MustCompile(`\D`)

func toStr(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toUpper(value interface{}, _ map[string]interface{}) (interface{}, error) {
	return strings.ToUpper(toStr(value)), nil
}

func toLower(value interface{}, _ map[string]interface{}) (interface{}, error) {
	return strings.ToLower(toStr(value)), nil
}

func trimSpace(value interface{}, _ map[string]interface{}) (interface{}, error) {
	return strings.TrimSpace(toStr(value)), nil
}

func toStringFn(value interface{}, _ map[string]interface{}) (interface{}, error) {
	return toStr(value), nil
}

func toIntFn(value interface{}, _ map[string]interface{}) (interface{}, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("to_int: %w", err)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("to_int: unsupported type %T", value)
	}
}

func toFloatFn(value interface{}, _ map[string]interface{}) (interface{}, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("to_float: %w", err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("to_float: unsupported type %T", value)
	}
}

func toBoolFn(value interface{}, _ map[string]interface{}) (interface{}, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("to_bool: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("to_bool: unsupported type %T", value)
	}
}

// dateFormat reparses value from its "from" layout param (default
// time.RFC3339) and renders it with the "to" layout param.
func dateFormat(value interface{}, params map[string]interface{}) (interface{}, error) {
	fromLayout, _ := params["from"].(string)
	if fromLayout == "" {
		fromLayout = time.RFC3339
	}
	toLayout, _ := params["to"].(string)
	if toLayout == "" {
		toLayout = time.RFC3339
	}
	t, err := time.Parse(fromLayout, toStr(value))
	if err != nil {
		return nil, fmt.Errorf("date_format: %w", err)
	}
	return t.Format(toLayout), nil
}

// normalizePhoneNG applies the Nigerian 10/11-digit rule: an 11-digit
// local number starting with 0 becomes +234 followed by the remaining 10
// digits; a bare 10-digit subscriber number is assumed local and gets the
// same +234 prefix.
func normalizePhoneNG(value interface{}, _ map[string]interface{}) (interface{}, error) {
	digits := nonDigit.ReplaceAllString(toStr(value), "")
	switch {
	case strings.HasPrefix(digits, "234") && len(digits) == 13:
		return "+" + digits, nil
	case strings.HasPrefix(digits, "0") && len(digits) == 11:
		return "+234" + digits[1:], nil
	case len(digits) == 10:
		return "+234" + digits, nil
	default:
		return nil, fmt.Errorf("normalize_phone_ng: %q is not a recognized Nigerian number", toStr(value))
	}
}

func normalizeEmail(value interface{}, _ map[string]interface{}) (interface{}, error) {
	return strings.ToLower(strings.TrimSpace(toStr(value))), nil
}

func extractDigits(value interface{}, _ map[string]interface{}) (interface{}, error) {
	return nonDigit.ReplaceAllString(toStr(value), ""), nil
}

func truncateFn(value interface{}, params map[string]interface{}) (interface{}, error) {
	length := paramInt(params, "length", 0)
	s := toStr(value)
	if length <= 0 || length >= len(s) {
		return s, nil
	}
	return s[:length], nil
}

func padFn(value interface{}, params map[string]interface{}) (interface{}, error) {
	length := paramInt(params, "length", 0)
	padChar, _ := params["char"].(string)
	if padChar == "" {
		padChar = " "
	}
	side, _ := params["side"].(string)
	if side == "" {
		side = "left"
	}

	s := toStr(value)
	if len(s) >= length {
		return s, nil
	}
	padding := strings.Repeat(padChar, length-len(s))
	if side == "right" {
		return s + padding, nil
	}
	return padding + s, nil
}

func currencyToMinor(value interface{}, _ map[string]interface{}) (interface{}, error) {
	f, err := toFloatFn(value, nil)
	if err != nil {
		return nil, err
	}
	return int64(f.(float64)*100 + 0.5), nil
}

func minorToCurrency(value interface{}, _ map[string]interface{}) (interface{}, error) {
	f, err := toFloatFn(value, nil)
	if err != nil {
		return nil, err
	}
	return f.(float64) / 100, nil
}

func splitFn(value interface{}, params map[string]interface{}) (interface{}, error) {
	delim, _ := params["delimiter"].(string)
	if delim == "" {
		delim = ","
	}
	parts := strings.Split(toStr(value), delim)
	out := make([]interface{}, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out, nil
}

func joinFn(value interface{}, params map[string]interface{}) (interface{}, error) {
	delim, _ := params["delimiter"].(string)
	if delim == "" {
		delim = ","
	}
	items, ok := value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("join: value is not a list")
	}
	parts := make([]string, len(items))
	for i, v := range items {
		parts[i] = toStr(v)
	}
	return strings.Join(parts, delim), nil
}

func hashFn(value interface{}, params map[string]interface{}) (interface{}, error) {
	algo, _ := params["algorithm"].(string)
	switch strings.ToLower(algo) {
	case "", "sha256":
		sum := sha256.Sum256([]byte(toStr(value)))
		return hex.EncodeToString(sum[:]), nil
	default:
		return nil, fmt.Errorf("hash: unsupported algorithm %q", algo)
	}
}

func uuidFn(_ interface{}, _ map[string]interface{}) (interface{}, error) {
	return uuid.NewString(), nil
}

func timestampFn(_ interface{}, _ map[string]interface{}) (interface{}, error) {
	return time.Now().UTC().Format(time.RFC3339), nil
}

func paramInt(params map[string]interface{}, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return def
	}
}
