package transform

import (
	"fmt"

	"github.com/dop251/goja"
)

// evalCondition runs a goja boolean expression with `record` bound to the
// current payload. An empty expression always applies, matching a rule
// with no Condition.
func evalCondition(expression string, record interface{}) (bool, error) {
	if expression == "" {
		return true, nil
	}
	vm := goja.New()
	if err := vm.Set("record", record); err != nil {
		return false, err
	}
	val, err := vm.RunString(expression)
	if err != nil {
		return false, fmt.Errorf("condition %q failed: %w", expression, err)
	}
	return val.ToBoolean(), nil
}

// evalFormula runs a goja expression against `record` and returns its
// exported value, used by DataEnrichment's calculate_field.
func evalFormula(formula string, record interface{}) (interface{}, error) {
	vm := goja.New()
	if err := vm.Set("record", record); err != nil {
		return nil, err
	}
	val, err := vm.RunString(formula)
	if err != nil {
		return nil, fmt.Errorf("formula %q failed: %w", formula, err)
	}
	return val.Export(), nil
}
