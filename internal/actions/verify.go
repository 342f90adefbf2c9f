package actions

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"

	"keyrunner/internal/registry"
	"keyrunner/internal/template"
	"keyrunner/pkg/logging"
)

// comparison returns whether the assertion holds.
type comparison func(actual, expected any) (bool, error)

func verifyPack(_ *Environment) []registry.Descriptor {
	pair := []registry.ParamSpec{
		param("actual", true, "observed value"),
		param("expected", true, "value to compare against"),
		param("message", false, "logged when the check fails"),
	}
	descs := []registry.Descriptor{
		verifier("verify_equal", "Check that actual equals expected", pair, func(a, e any) (bool, error) {
			return looselyEqual(a, e), nil
		}),
		verifier("verify_not_equal", "Check that actual differs from expected", pair, func(a, e any) (bool, error) {
			return !looselyEqual(a, e), nil
		}),
		verifier("verify_contains", "Check that actual contains expected", pair, func(a, e any) (bool, error) {
			return contains(a, e), nil
		}),
		verifier("verify_not_contains", "Check that actual does not contain expected", pair, func(a, e any) (bool, error) {
			return !contains(a, e), nil
		}),
		verifier("verify_greater", "Check that actual is numerically greater than expected", pair, func(a, e any) (bool, error) {
			x, y, err := numbers(a, e)
			return x > y, err
		}),
		verifier("verify_less", "Check that actual is numerically less than expected", pair, func(a, e any) (bool, error) {
			x, y, err := numbers(a, e)
			return x < y, err
		}),
	}
	single := []registry.ParamSpec{
		param("actual", true, "observed value"),
		param("message", false, "logged when the check fails"),
	}
	descs = append(descs,
		truthCheck("verify_true", "Check that actual is truthy", single, true),
		truthCheck("verify_false", "Check that actual is falsy", single, false),
	)
	return append(descs, registry.Descriptor{
		Keyword:     "verify_expr",
		Category:    CategoryVerify,
		Description: "Evaluate a boolean expression over the other parameters",
		Params: []registry.ParamSpec{
			param("expression", true, "expr-lang expression yielding a bool"),
			param("message", false, "logged when the check fails"),
		},
		Handler: verifyExpr,
	})
}

func verifier(keyword, description string, params []registry.ParamSpec, cmp comparison) registry.Descriptor {
	return registry.Descriptor{
		Keyword:     keyword,
		Category:    CategoryVerify,
		Description: description,
		Params:      params,
		Handler: func(_ context.Context, p map[string]any) (any, error) {
			actual, ok := p["actual"]
			if !ok {
				return nil, fmt.Errorf(`missing required parameter "actual"`)
			}
			expected, ok := p["expected"]
			if !ok {
				return nil, fmt.Errorf(`missing required parameter "expected"`)
			}
			held, err := cmp(actual, expected)
			if err != nil {
				return nil, err
			}
			if !held {
				msg, _ := stringParam(p, "message", false)
				logging.Info("Actions", "%s failed: actual=%q expected=%q %s",
					keyword, template.Stringify(actual), template.Stringify(expected), msg)
			}
			return held, nil
		},
	}
}

func truthCheck(keyword, description string, params []registry.ParamSpec, want bool) registry.Descriptor {
	return registry.Descriptor{
		Keyword:     keyword,
		Category:    CategoryVerify,
		Description: description,
		Params:      params,
		Handler: func(_ context.Context, p map[string]any) (any, error) {
			actual, ok := p["actual"]
			if !ok {
				return nil, fmt.Errorf(`missing required parameter "actual"`)
			}
			held := truthy(actual) == want
			if !held {
				msg, _ := stringParam(p, "message", false)
				logging.Info("Actions", "%s failed: actual=%q %s", keyword, template.Stringify(actual), msg)
			}
			return held, nil
		},
	}
}

// truthy reports whether v counts as true. nil, zero numbers, empty
// collections, the empty string and strings that parse as false are falsy.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
			return b
		}
		return x != ""
	}
	if f, err := toFloat(v); err == nil {
		return f != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	}
	return true
}

// looselyEqual compares values the way they read in a case document: two
// numbers compare numerically, anything else compares by rendered text.
func looselyEqual(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	if x, y, err := numbers(a, b); err == nil {
		return x == y
	}
	return template.Stringify(a) == template.Stringify(b)
}

func contains(actual, expected any) bool {
	switch c := actual.(type) {
	case []any:
		for _, item := range c {
			if looselyEqual(item, expected) {
				return true
			}
		}
		return false
	case map[string]any:
		_, ok := c[template.Stringify(expected)]
		return ok
	}
	return strings.Contains(template.Stringify(actual), template.Stringify(expected))
}

func numbers(a, b any) (float64, float64, error) {
	x, err := toFloat(a)
	if err != nil {
		return 0, 0, fmt.Errorf("actual: %w", err)
	}
	y, err := toFloat(b)
	if err != nil {
		return 0, 0, fmt.Errorf("expected: %w", err)
	}
	return x, y, nil
}

func verifyExpr(_ context.Context, params map[string]any) (any, error) {
	source, err := requiredString(params, "expression")
	if err != nil {
		return nil, err
	}

	env := make(map[string]any, len(params))
	for k, v := range params {
		if k == "expression" || k == "message" {
			continue
		}
		env[k] = v
	}

	program, err := expr.Compile(source, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression %q: %w", source, err)
	}
	output, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression %q: %w", source, err)
	}
	held, ok := output.(bool)
	if !ok {
		return nil, fmt.Errorf("expression %q returned %T, not bool", source, output)
	}
	if !held {
		msg, _ := stringParam(params, "message", false)
		logging.Info("Actions", "verify_expr failed: %s %s", source, msg)
	}
	return held, nil
}
