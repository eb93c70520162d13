package transform

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Transformer owns a keyed registry of Profiles and applies one's rule
// pipeline to a record on each Transform call.
type Transformer struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewTransformer returns an empty Transformer.
func NewTransformer() *Transformer {
	return &Transformer{profiles: make(map[string]Profile)}
}

// RegisterProfile adds or replaces a profile under its ID.
func (t *Transformer) RegisterProfile(p Profile) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.profiles[p.ID] = p
}

// Profile returns the registered profile by ID.
func (t *Transformer) Profile(id string) (Profile, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.profiles[id]
	return p, ok
}

// Transform runs data through profileID's ordered rule pipeline,
// returning the transformed value plus every error, warning, and applied
// rule the pipeline accumulated along the way.
func (t *Transformer) Transform(data interface{}, profileID string) Result {
	start := time.Now()
	profile, ok := t.Profile(profileID)
	if !ok {
		return Result{Success: false, Errors: []string{fmt.Sprintf("unknown transform profile %q", profileID)}}
	}

	rules := append([]Rule(nil), profile.Rules...)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority < rules[j].Priority })

	result := Result{Success: true}
	current := data

	for _, rule := range rules {
		applies, err := evalCondition(rule.Condition, current)
		if err != nil {
			result.Warnings = append(result.Warnings, err.Error())
			continue
		}
		if !applies {
			continue
		}

		var next interface{}
		switch rule.Type {
		case RuleFormatConversion:
			from, _ := rule.Parameters["from"].(string)
			to, _ := rule.Parameters["to"].(string)
			next, err = convertFormat(current, from, to, rule.Parameters)
		case RuleFieldMapping:
			next, err = applyFieldMappings(current, profile.FieldMappings, &result)
		case RuleValueTransformation:
			next, err = applyValueTransformation(current, rule.Parameters)
		case RuleDataValidation:
			next = current
			err = applyDataValidation(current, profile, &result)
		case RuleDataEnrichment:
			next, err = applyDataEnrichment(current, rule.Parameters)
		case RuleDataFiltering:
			next, err = applyDataFiltering(current, rule.Parameters)
		case RuleDataAggregation:
			next, err = applyDataAggregation(current, rule.Parameters)
		default:
			err = fmt.Errorf("unknown rule type %q", rule.Type)
		}

		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			result.Success = false
			continue
		}
		current = next
		result.AppliedRules = append(result.AppliedRules, string(rule.Type))
	}

	result.Data = current
	result.ProcessingMS = time.Since(start).Milliseconds()
	return result
}

// applyFieldMappings builds a fresh record by moving each mapping's
// source value to its target dot-path, applying a named transform,
// substituting a default on a null result, then validating.
func applyFieldMappings(current interface{}, mappings []FieldMapping, result *Result) (interface{}, error) {
	record, ok := current.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("field mapping requires a map record")
	}

	out := make(map[string]interface{})
	for _, m := range mappings {
		val, found := getPath(record, m.SourceField)

		if found && m.TransformFn != "" {
			fn, ok := builtinTransforms[m.TransformFn]
			if !ok {
				return nil, fmt.Errorf("unknown transform function %q", m.TransformFn)
			}
			transformed, err := fn(val, nil)
			if err != nil {
				if m.Required {
					return nil, fmt.Errorf("field %q: %w", m.SourceField, err)
				}
				result.Warnings = append(result.Warnings, err.Error())
				val, found = nil, false
			} else {
				val = transformed
			}
		}

		if (!found || val == nil) && m.Default != nil {
			val, found = m.Default, true
		}

		if m.Required && (!found || val == nil) {
			return nil, fmt.Errorf("required field %q is missing", m.SourceField)
		}

		for _, vr := range m.Validations {
			validator, ok := builtinValidations[vr.Name]
			if !ok {
				continue
			}
			if reason := validator(val, vr.Params); reason != "" {
				if m.Required {
					return nil, fmt.Errorf("validation failed for %q: %s", m.TargetField, reason)
				}
				result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %s", m.TargetField, reason))
			}
		}

		if found {
			if err := setPath(out, m.TargetField, val); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// applyValueTransformation applies a named built-in function either to
// the whole payload (no field param) or to one dotted field.
func applyValueTransformation(current interface{}, params map[string]interface{}) (interface{}, error) {
	fnName, _ := params["function"].(string)
	fn, ok := builtinTransforms[fnName]
	if !ok {
		return nil, fmt.Errorf("unknown transform function %q", fnName)
	}

	field, _ := params["field"].(string)
	if field == "" {
		return fn(current, params)
	}

	record, ok := current.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("value transformation on field %q requires a map record", field)
	}
	val, _ := getPath(record, field)
	newVal, err := fn(val, params)
	if err != nil {
		return nil, err
	}
	if err := setPath(record, field, newVal); err != nil {
		return nil, err
	}
	return record, nil
}

// applyDataValidation re-checks every field mapping's validations against
// the current record, escalating failures per profile.ValidationLevel.
func applyDataValidation(current interface{}, profile Profile, result *Result) error {
	record, ok := current.(map[string]interface{})
	if !ok {
		return fmt.Errorf("data validation requires a map record")
	}

	for _, m := range profile.FieldMappings {
		val, _ := getPath(record, m.TargetField)
		for _, vr := range m.Validations {
			validator, ok := builtinValidations[vr.Name]
			if !ok {
				continue
			}
			reason := validator(val, vr.Params)
			if reason == "" {
				continue
			}
			msg := fmt.Sprintf("%s: %s", m.TargetField, reason)
			switch profile.ValidationLevel {
			case ValidationStrict:
				return fmt.Errorf(msg)
			case ValidationNone:
				// severity suppressed
			default:
				result.Warnings = append(result.Warnings, msg)
			}
		}
	}
	return nil
}

// applyDataEnrichment adds a computed field to the current record:
// add_timestamp, add_uuid, or a goja calculate_field formula.
func applyDataEnrichment(current interface{}, params map[string]interface{}) (interface{}, error) {
	record, ok := current.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("data enrichment requires a map record")
	}

	kind, _ := params["type"].(string)
	switch kind {
	case "add_timestamp":
		field, _ := params["field"].(string)
		if field == "" {
			field = "timestamp"
		}
		record[field] = time.Now().UTC().Format(time.RFC3339)
	case "add_uuid":
		field, _ := params["field"].(string)
		if field == "" {
			field = "id"
		}
		record[field] = uuid.NewString()
	case "calculate_field":
		field, _ := params["field"].(string)
		formula, _ := params["formula"].(string)
		val, err := evalFormula(formula, record)
		if err != nil {
			return nil, err
		}
		if err := setPath(record, field, val); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown enrichment type %q", kind)
	}
	return record, nil
}

// applyDataFiltering either filters a list by a goja condition or strips
// named fields from a map record.
func applyDataFiltering(current interface{}, params map[string]interface{}) (interface{}, error) {
	kind, _ := params["type"].(string)
	switch kind {
	case "list_filter":
		items, ok := current.([]interface{})
		if !ok {
			return nil, fmt.Errorf("list_filter requires a list")
		}
		condition, _ := params["condition"].(string)
		out := make([]interface{}, 0, len(items))
		for _, item := range items {
			keep, err := evalCondition(condition, item)
			if err != nil {
				return nil, err
			}
			if keep {
				out = append(out, item)
			}
		}
		return out, nil
	case "field_removal":
		record, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("field_removal requires a map record")
		}
		fields, _ := params["fields"].([]interface{})
		for _, f := range fields {
			deletePath(record, toStr(f))
		}
		return record, nil
	default:
		return nil, fmt.Errorf("unknown filtering type %q", kind)
	}
}

// applyDataAggregation reduces a list to count, a field sum, or a
// field-keyed grouping.
func applyDataAggregation(current interface{}, params map[string]interface{}) (interface{}, error) {
	items, ok := current.([]interface{})
	if !ok {
		return nil, fmt.Errorf("data aggregation requires a list")
	}

	kind, _ := params["type"].(string)
	switch kind {
	case "count":
		return len(items), nil
	case "sum":
		field, _ := params["field"].(string)
		var sum float64
		for _, item := range items {
			rec, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			val, found := getPath(rec, field)
			if !found {
				continue
			}
			f, err := toFloatFn(val, nil)
			if err != nil {
				continue
			}
			sum += f.(float64)
		}
		return sum, nil
	case "group_by":
		field, _ := params["field"].(string)
		groups := make(map[string][]interface{})
		for _, item := range items {
			rec, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			val, _ := getPath(rec, field)
			groups[toStr(val)] = append(groups[toStr(val)], item)
		}
		out := make(map[string]interface{}, len(groups))
		for k, v := range groups {
			out[k] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown aggregation type %q", kind)
	}
}
