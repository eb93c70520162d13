package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldMappingAppliesTransformDefaultAndValidation(t *testing.T) {
	tr := NewTransformer()
	tr.RegisterProfile(Profile{
		ID: "invoice-in",
		FieldMappings: []FieldMapping{
			{SourceField: "customer_name", TargetField: "customer.name", TransformFn: "trim", Required: true},
			{SourceField: "phone", TargetField: "customer.phone", TransformFn: "normalize_phone_ng"},
			{SourceField: "currency", TargetField: "currency", Default: "NGN"},
		},
		Rules: []Rule{{Type: RuleFieldMapping, Priority: 1}},
	})

	input := map[string]interface{}{
		"customer_name": "  Adebayo Traders  ",
		"phone":         "08012345678",
	}

	result := tr.Transform(input, "invoice-in")
	require.True(t, result.Success, result.Errors)

	out := result.Data.(map[string]interface{})
	customer := out["customer"].(map[string]interface{})
	assert.Equal(t, "Adebayo Traders", customer["name"])
	assert.Equal(t, "+2348012345678", customer["phone"])
	assert.Equal(t, "NGN", out["currency"])
}

func TestFieldMappingRequiredMissingIsHardError(t *testing.T) {
	tr := NewTransformer()
	tr.RegisterProfile(Profile{
		ID: "strict-in",
		FieldMappings: []FieldMapping{
			{SourceField: "invoice_number", TargetField: "invoiceNumber", Required: true},
		},
		Rules: []Rule{{Type: RuleFieldMapping, Priority: 1}},
	})

	result := tr.Transform(map[string]interface{}{}, "strict-in")
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "invoice_number")
}

func TestDataValidationEscalatesOnStrictLevel(t *testing.T) {
	tr := NewTransformer()
	tr.RegisterProfile(Profile{
		ID: "validated",
		FieldMappings: []FieldMapping{
			{TargetField: "email", Validations: []ValidationRule{{Name: "email"}}},
		},
		ValidationLevel: ValidationStrict,
		Rules:           []Rule{{Type: RuleDataValidation, Priority: 1}},
	})

	result := tr.Transform(map[string]interface{}{"email": "not-an-email"}, "validated")
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
}

func TestDataValidationWarnsOnModerateLevel(t *testing.T) {
	tr := NewTransformer()
	tr.RegisterProfile(Profile{
		ID: "validated-moderate",
		FieldMappings: []FieldMapping{
			{TargetField: "email", Validations: []ValidationRule{{Name: "email"}}},
		},
		ValidationLevel: ValidationModerate,
		Rules:           []Rule{{Type: RuleDataValidation, Priority: 1}},
	})

	result := tr.Transform(map[string]interface{}{"email": "not-an-email"}, "validated-moderate")
	assert.True(t, result.Success)
	assert.Len(t, result.Warnings, 1)
}

func TestDataEnrichmentCalculateFieldUsesFormula(t *testing.T) {
	tr := NewTransformer()
	tr.RegisterProfile(Profile{
		ID: "enrich",
		Rules: []Rule{{
			Type:     RuleDataEnrichment,
			Priority: 1,
			Parameters: map[string]interface{}{
				"type":    "calculate_field",
				"field":   "total_with_vat",
				"formula": "record.subtotal * 1.075",
			},
		}},
	})

	result := tr.Transform(map[string]interface{}{"subtotal": 1000.0}, "enrich")
	require.True(t, result.Success, result.Errors)
	out := result.Data.(map[string]interface{})
	assert.InDelta(t, 1075.0, out["total_with_vat"], 0.001)
}

func TestDataFilteringListFilterKeepsMatchingItems(t *testing.T) {
	tr := NewTransformer()
	tr.RegisterProfile(Profile{
		ID: "filter",
		Rules: []Rule{{
			Type:     RuleDataFiltering,
			Priority: 1,
			Parameters: map[string]interface{}{
				"type":      "list_filter",
				"condition": "record.status === 'Paid'",
			},
		}},
	})

	input := []interface{}{
		map[string]interface{}{"id": "1", "status": "Paid"},
		map[string]interface{}{"id": "2", "status": "Draft"},
	}
	result := tr.Transform(input, "filter")
	require.True(t, result.Success, result.Errors)
	out := result.Data.([]interface{})
	require.Len(t, out, 1)
	assert.Equal(t, "1", out[0].(map[string]interface{})["id"])
}

func TestDataFilteringFieldRemovalStripsFields(t *testing.T) {
	tr := NewTransformer()
	tr.RegisterProfile(Profile{
		ID: "strip",
		Rules: []Rule{{
			Type:     RuleDataFiltering,
			Priority: 1,
			Parameters: map[string]interface{}{
				"type":   "field_removal",
				"fields": []interface{}{"internal_notes"},
			},
		}},
	})

	result := tr.Transform(map[string]interface{}{"id": "1", "internal_notes": "secret"}, "strip")
	require.True(t, result.Success)
	out := result.Data.(map[string]interface{})
	_, present := out["internal_notes"]
	assert.False(t, present)
}

func TestDataAggregationSum(t *testing.T) {
	tr := NewTransformer()
	tr.RegisterProfile(Profile{
		ID: "sum",
		Rules: []Rule{{
			Type:       RuleDataAggregation,
			Priority:   1,
			Parameters: map[string]interface{}{"type": "sum", "field": "amount"},
		}},
	})

	items := []interface{}{
		map[string]interface{}{"amount": 100.0},
		map[string]interface{}{"amount": 250.0},
	}
	result := tr.Transform(items, "sum")
	require.True(t, result.Success, result.Errors)
	assert.InDelta(t, 350.0, result.Data, 0.001)
}

func TestConditionSkipsRuleWhenFalse(t *testing.T) {
	tr := NewTransformer()
	tr.RegisterProfile(Profile{
		ID: "conditional",
		Rules: []Rule{{
			Type:      RuleDataEnrichment,
			Priority:  1,
			Condition: "record.needs_id === true",
			Parameters: map[string]interface{}{
				"type":  "add_uuid",
				"field": "id",
			},
		}},
	})

	result := tr.Transform(map[string]interface{}{"needs_id": false}, "conditional")
	require.True(t, result.Success)
	out := result.Data.(map[string]interface{})
	_, present := out["id"]
	assert.False(t, present)
	assert.Empty(t, result.AppliedRules)
}

func TestTransformUnknownProfileFails(t *testing.T) {
	tr := NewTransformer()
	result := tr.Transform(map[string]interface{}{}, "missing")
	assert.False(t, result.Success)
}

func TestRulesApplyInPriorityOrder(t *testing.T) {
	tr := NewTransformer()
	tr.RegisterProfile(Profile{
		ID: "ordered",
		FieldMappings: []FieldMapping{
			{SourceField: "name", TargetField: "name"},
		},
		Rules: []Rule{
			{Type: RuleDataEnrichment, Priority: 2, Parameters: map[string]interface{}{"type": "add_timestamp", "field": "processed_at"}},
			{Type: RuleFieldMapping, Priority: 1},
		},
	})

	result := tr.Transform(map[string]interface{}{"name": "Acme"}, "ordered")
	require.True(t, result.Success, result.Errors)
	out := result.Data.(map[string]interface{})
	assert.Equal(t, "Acme", out["name"])
	assert.NotEmpty(t, out["processed_at"])
	assert.Equal(t, []string{"FieldMapping", "DataEnrichment"}, result.AppliedRules)
}
