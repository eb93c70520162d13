package transform

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ValidateFunc checks value against params, returning a failure reason
// when invalid ("" means valid).
type ValidateFunc func(value interface{}, params map[string]interface{}) string

var builtinValidations = map[string]ValidateFunc{
	"required":      validateRequired,
	"email":         validateEmail,
	"phone":         validatePhone,
	"numeric":       validateNumeric,
	"date":          validateDate,
	"url":           validateURL,
	"min_length":    validateMinLength,
	"max_length":    validateMaxLength,
	"regex":         validateRegex,
	"in_list":       validateInList,
	"numeric_range": validateNumericRange,
}

var emailRe = regexp.MustCompile(`^[\w.+-]+@[\w-]+\.[a-zA-Z]{2,}$`)
var ngPhoneRe = regexp.MustCompile(`^(\+234|0)[7-9][0-1]\d{8}$`)

func validateRequired(value interface{}, _ map[string]interface{}) string {
	if value == nil {
		return "value is required"
	}
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return "value is required"
	}
	return ""
}

func validateEmail(value interface{}, _ map[string]interface{}) string {
	if !emailRe.MatchString(toStr(value)) {
		return "not a valid email address"
	}
	return ""
}

func validatePhone(value interface{}, _ map[string]interface{}) string {
	if !ngPhoneRe.MatchString(strings.ReplaceAll(toStr(value), " ", "")) {
		return "not a valid Nigerian phone number"
	}
	return ""
}

func validateNumeric(value interface{}, _ map[string]interface{}) string {
	if _, err := strconv.ParseFloat(toStr(value), 64); err != nil {
		return "value is not numeric"
	}
	return ""
}

func validateDate(value interface{}, params map[string]interface{}) string {
	layout, _ := params["layout"].(string)
	if layout == "" {
		layout = time.RFC3339
	}
	if _, err := time.Parse(layout, toStr(value)); err != nil {
		return fmt.Sprintf("value does not match date layout %q", layout)
	}
	return ""
}

func validateURL(value interface{}, _ map[string]interface{}) string {
	u, err := url.ParseRequestURI(toStr(value))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "not a valid URL"
	}
	return ""
}

func validateMinLength(value interface{}, params map[string]interface{}) string {
	n := paramInt(params, "length", 0)
	if len(toStr(value)) < n {
		return fmt.Sprintf("value shorter than minimum length %d", n)
	}
	return ""
}

func validateMaxLength(value interface{}, params map[string]interface{}) string {
	n := paramInt(params, "length", 0)
	if len(toStr(value)) > n {
		return fmt.Sprintf("value longer than maximum length %d", n)
	}
	return ""
}

func validateRegex(value interface{}, params map[string]interface{}) string {
	pattern, _ := params["pattern"].(string)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Sprintf("invalid regex pattern %q", pattern)
	}
	if !re.MatchString(toStr(value)) {
		return fmt.Sprintf("value does not match pattern %q", pattern)
	}
	return ""
}

func validateInList(value interface{}, params map[string]interface{}) string {
	list, _ := params["values"].([]interface{})
	s := toStr(value)
	for _, v := range list {
		if toStr(v) == s {
			return ""
		}
	}
	return fmt.Sprintf("value %q is not in the allowed list", s)
}

func validateNumericRange(value interface{}, params map[string]interface{}) string {
	f, err := strconv.ParseFloat(toStr(value), 64)
	if err != nil {
		return "value is not numeric"
	}
	min, hasMin := params["min"].(float64)
	max, hasMax := params["max"].(float64)
	if hasMin && f < min {
		return fmt.Sprintf("value %v below minimum %v", f, min)
	}
	if hasMax && f > max {
		return fmt.Sprintf("value %v above maximum %v", f, max)
	}
	return ""
}
