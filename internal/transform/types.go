// Package transform implements the profile-driven data transformer:
// format conversion, field mapping, validation, enrichment, filtering,
// and aggregation rules applied in priority order against a record.
package transform

import "github.com/taxpoynt/connector-framework/internal/domain/connector"

// ValidationLevel governs how DataValidation rule failures escalate.
type ValidationLevel string

const (
	ValidationStrict   ValidationLevel = "Strict"
	ValidationModerate ValidationLevel = "Moderate"
	ValidationLenient  ValidationLevel = "Lenient"
	ValidationNone     ValidationLevel = "None"
)

// RuleType enumerates the transformation rule kinds a Profile can chain.
type RuleType string

const (
	RuleFormatConversion    RuleType = "FormatConversion"
	RuleFieldMapping        RuleType = "FieldMapping"
	RuleValueTransformation RuleType = "ValueTransformation"
	RuleDataValidation      RuleType = "DataValidation"
	RuleDataEnrichment      RuleType = "DataEnrichment"
	RuleDataFiltering       RuleType = "DataFiltering"
	RuleDataAggregation     RuleType = "DataAggregation"
)

// ValidationRule names a built-in validator and its parameters, e.g.
// {Name: "min_length", Params: {"length": 3}}.
type ValidationRule struct {
	Name   string
	Params map[string]interface{}
}

// FieldMapping moves one value from SourceField to TargetField (both
// dot-paths), optionally applying a named transform function first.
type FieldMapping struct {
	SourceField string
	TargetField string
	TransformFn string
	Default     interface{}
	Required    bool
	Validations []ValidationRule
}

// Rule is one step of a Profile's ordered pipeline.
type Rule struct {
	Type       RuleType
	Priority   int
	Condition  string // goja boolean expression over `record`; "" always applies
	Parameters map[string]interface{}
}

// Profile is a closed record describing one source→target transformation:
// wire formats, field mappings, and the ordered rule pipeline.
type Profile struct {
	ID              string
	SourceFormat    connector.DataFormat
	TargetFormat    connector.DataFormat
	FieldMappings   []FieldMapping
	Rules           []Rule
	ValidationLevel ValidationLevel
}

// Result is the outcome of one Transform call.
type Result struct {
	Success      bool
	Data         interface{}
	Errors       []string
	Warnings     []string
	AppliedRules []string
	ProcessingMS int64
}
