// Package template implements the variable context of a case run and the
// ${name} placeholder substitution applied to step parameters.
//
// Resolution is single pass:
//
//	vars := template.NewVariables(map[string]any{"a": "${b}", "b": "x"})
//	vars.Resolve("${a}") // "${b}", not "x"
//
// Placeholders naming undefined variables are returned unchanged.
package template
