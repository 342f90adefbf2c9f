package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Replace(t *testing.T) {
	engine := New()

	tests := []struct {
		name     string
		value    any
		vars     map[string]any
		expected any
	}{
		{
			name:     "no placeholders is unchanged",
			value:    "plain text with $ and {braces}",
			vars:     map[string]any{"x": "y"},
			expected: "plain text with $ and {braces}",
		},
		{
			name:     "single placeholder",
			value:    "${greeting}",
			vars:     map[string]any{"greeting": "hello"},
			expected: "hello",
		},
		{
			name:     "multiple placeholders in one string",
			value:    "${host}:${port}",
			vars:     map[string]any{"host": "localhost", "port": 8080},
			expected: "localhost:8080",
		},
		{
			name:     "unknown placeholder left verbatim",
			value:    "${missing}",
			vars:     map[string]any{},
			expected: "${missing}",
		},
		{
			name:     "known and unknown mixed",
			value:    "${a}-${b}",
			vars:     map[string]any{"a": "1"},
			expected: "1-${b}",
		},
		{
			name:     "replacement is not re-expanded",
			value:    "${a}",
			vars:     map[string]any{"a": "${b}", "b": "deep"},
			expected: "${b}",
		},
		{
			name:     "self reference does not loop",
			value:    "${a}",
			vars:     map[string]any{"a": "${a}${a}"},
			expected: "${a}${a}",
		},
		{
			name:     "non-word name is not a placeholder",
			value:    "${not-a-name}",
			vars:     map[string]any{"not-a-name": "x"},
			expected: "${not-a-name}",
		},
		{
			name:     "non-string passes through",
			value:    42,
			vars:     map[string]any{"x": "y"},
			expected: 42,
		},
		{
			name:     "nil passes through",
			value:    nil,
			vars:     map[string]any{"x": "y"},
			expected: nil,
		},
		{
			name: "nested containers",
			value: map[string]any{
				"path": "/tmp/${dir}",
				"list": []any{"${a}", 1, map[string]any{"k": "${a}"}},
			},
			vars: map[string]any{"dir": "work", "a": "A"},
			expected: map[string]any{
				"path": "/tmp/work",
				"list": []any{"A", 1, map[string]any{"k": "A"}},
			},
		},
		{
			name:     "yaml style map",
			value:    map[any]any{"k": "${a}", 1: "${a}"},
			vars:     map[string]any{"a": "v"},
			expected: map[any]any{"k": "v", 1: "v"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, engine.Replace(tt.value, tt.vars))
		})
	}
}

func TestEngine_ReplaceReturnsCopy(t *testing.T) {
	engine := New()
	original := map[string]any{"k": "${a}", "nested": []any{"${a}"}}

	resolved := engine.Replace(original, map[string]any{"a": "x"}).(map[string]any)
	resolved["k"] = "changed"
	resolved["nested"].([]any)[0] = "changed"

	assert.Equal(t, "${a}", original["k"])
	assert.Equal(t, "${a}", original["nested"].([]any)[0])
}

func TestEngine_ReplaceParamsNil(t *testing.T) {
	engine := New()
	params := engine.ReplaceParams(nil, map[string]any{"a": 1})
	require.NotNil(t, params)
	assert.Empty(t, params)
}

func TestStringify(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected string
	}{
		{"string", "abc", "abc"},
		{"int", 7, "7"},
		{"int64", int64(-3), "-3"},
		{"uint", uint(9), "9"},
		{"float shortest", 1.5, "1.5"},
		{"float integral", 2.0, "2"},
		{"float no exponent", 1e21, "1000000000000000000000"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"nil", nil, ""},
		{"bytes", []byte("raw"), "raw"},
		{"map as json", map[string]any{"a": 1}, `{"a":1}`},
		{"slice as json", []any{"x", 2}, `["x",2]`},
		{"yaml map as json", map[any]any{"k": "v"}, `{"k":"v"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Stringify(tt.value))
		})
	}
}

func TestEngine_ExtractVariables(t *testing.T) {
	engine := New()

	value := map[string]any{
		"a": "${x} and ${y}",
		"b": []any{"${z}", "${x}"},
		"c": 5,
	}

	assert.Equal(t, []string{"x", "y", "z"}, engine.ExtractVariables(value))
	assert.Empty(t, engine.ExtractVariables("no placeholders"))
}

func TestEngine_MissingVariables(t *testing.T) {
	engine := New()

	missing := engine.MissingVariables("${last_result} ${typo}", map[string]bool{"last_result": true})
	assert.Equal(t, []string{"typo"}, missing)
}
