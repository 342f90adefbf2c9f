package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// placeholderPattern matches ${name} where name is one or more word characters.
var placeholderPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// Engine resolves ${name} placeholders in step parameters.
//
// Substitution is best effort and single pass: every placeholder in a string
// is replaced independently, placeholders naming unknown variables are left
// verbatim, and text introduced by a replacement is never scanned again.
type Engine struct {
	templatePattern *regexp.Regexp
}

// New creates a new template engine
func New() *Engine {
	return &Engine{
		templatePattern: placeholderPattern,
	}
}

// Replace returns a copy of value with every string leaf resolved against
// vars. Maps and slices are rebuilt; other values pass through unchanged.
func (e *Engine) Replace(value any, vars map[string]any) any {
	switch v := value.(type) {
	case string:
		return e.replaceStringTemplates(v, vars)
	case map[string]any:
		return e.replaceMapTemplates(v, vars)
	case map[any]any:
		return e.replaceAnyMapTemplates(v, vars)
	case []any:
		return e.replaceSliceTemplates(v, vars)
	case []string:
		out := make([]string, len(v))
		for i, s := range v {
			out[i] = e.replaceStringTemplates(s, vars)
		}
		return out
	default:
		return value
	}
}

// ReplaceParams resolves a parameter map. A nil map resolves to an empty one.
func (e *Engine) ReplaceParams(params map[string]any, vars map[string]any) map[string]any {
	if params == nil {
		return map[string]any{}
	}
	return e.replaceMapTemplates(params, vars)
}

func (e *Engine) replaceStringTemplates(template string, vars map[string]any) string {
	if len(vars) == 0 {
		return template
	}
	return e.templatePattern.ReplaceAllStringFunc(template, func(token string) string {
		name := token[2 : len(token)-1]
		replacement, exists := vars[name]
		if !exists {
			return token
		}
		return Stringify(replacement)
	})
}

func (e *Engine) replaceMapTemplates(m map[string]any, vars map[string]any) map[string]any {
	result := make(map[string]any, len(m))
	for key, value := range m {
		result[key] = e.Replace(value, vars)
	}
	return result
}

func (e *Engine) replaceAnyMapTemplates(m map[any]any, vars map[string]any) map[any]any {
	result := make(map[any]any, len(m))
	for key, value := range m {
		result[key] = e.Replace(value, vars)
	}
	return result
}

func (e *Engine) replaceSliceTemplates(s []any, vars map[string]any) []any {
	result := make([]any, len(s))
	for i, value := range s {
		result[i] = e.Replace(value, vars)
	}
	return result
}

// Stringify renders a variable value for insertion into a string.
func Stringify(value any) string {
	switch r := value.(type) {
	case nil:
		return ""
	case string:
		return r
	case []byte:
		return string(r)
	case bool:
		return strconv.FormatBool(r)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", r)
	case float32:
		return strconv.FormatFloat(float64(r), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(r, 'f', -1, 64)
	case fmt.Stringer:
		return r.String()
	case map[string]any, []any, map[any]any, []string:
		data, err := json.Marshal(normalizeForJSON(r))
		if err != nil {
			return fmt.Sprintf("%v", r)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", r)
	}
}

// normalizeForJSON converts map[any]any produced by YAML decoding into
// map[string]any so it can be marshalled.
func normalizeForJSON(value any) any {
	switch v := value.(type) {
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[fmt.Sprint(k)] = normalizeForJSON(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = normalizeForJSON(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = normalizeForJSON(val)
		}
		return out
	default:
		return value
	}
}

// ExtractVariables returns the sorted, distinct variable names referenced by value.
func (e *Engine) ExtractVariables(value any) []string {
	variables := make(map[string]bool)
	e.extractVariablesRecursive(value, variables)

	result := make([]string, 0, len(variables))
	for varName := range variables {
		result = append(result, varName)
	}
	sort.Strings(result)
	return result
}

func (e *Engine) extractVariablesRecursive(value any, variables map[string]bool) {
	switch v := value.(type) {
	case string:
		for _, match := range e.templatePattern.FindAllStringSubmatch(v, -1) {
			if len(match) >= 2 {
				variables[match[1]] = true
			}
		}
	case map[string]any:
		for _, val := range v {
			e.extractVariablesRecursive(val, variables)
		}
	case map[any]any:
		for _, val := range v {
			e.extractVariablesRecursive(val, variables)
		}
	case []any:
		for _, val := range v {
			e.extractVariablesRecursive(val, variables)
		}
	case []string:
		for _, val := range v {
			e.extractVariablesRecursive(val, variables)
		}
	}
}

// MissingVariables lists the names referenced by value that are not present
// in known. Unresolved placeholders are legal at run time; callers use this
// to surface likely typos.
func (e *Engine) MissingVariables(value any, known map[string]bool) []string {
	var missing []string
	for _, name := range e.ExtractVariables(value) {
		if !known[name] {
			missing = append(missing, name)
		}
	}
	return missing
}
