package casefile

import (
	"fmt"

	"keyrunner/internal/template"
)

// Catalog answers whether a keyword is registered.
type Catalog interface {
	Has(keyword string) bool
}

// Finding is a static problem found in a parsed case. Findings never stop a
// run: an unknown keyword fails only its own step, and unresolved
// placeholders are passed through verbatim.
type Finding struct {
	Section string `json:"section"`
	Index   int    `json:"index"`
	Keyword string `json:"keyword"`
	Message string `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s[%d] %s: %s", f.Section, f.Index, f.Keyword, f.Message)
}

// Lint checks c against a catalog and the variables known before the run.
// It reports unknown keywords and unknown recover keywords, and placeholders
// that no earlier step, case variable or initial variable defines.
func Lint(c *Case, catalog Catalog, initial map[string]any) []Finding {
	engine := template.New()
	known := make(map[string]bool, len(initial)+len(c.Variables))
	for name := range initial {
		known[name] = true
	}
	for name := range c.Variables {
		known[name] = true
	}

	var findings []Finding
	check := func(section string, steps []Step) {
		for i, step := range steps {
			if !catalog.Has(step.Keyword) {
				findings = append(findings, Finding{section, i, step.Keyword, "unknown action word"})
			}
			if step.Recover != "" && !catalog.Has(step.Recover) {
				findings = append(findings, Finding{section, i, step.Keyword, fmt.Sprintf("unknown recover action %q", step.Recover)})
			}
			for _, name := range engine.MissingVariables(step.Params, known) {
				findings = append(findings, Finding{section, i, step.Keyword, fmt.Sprintf("variable ${%s} is not defined before this step", name)})
			}
			known[template.LastResultKey] = true
			if step.Store != "" {
				known[step.Store] = true
			}
		}
	}
	check("steps", c.Steps)
	check("teardown", c.Teardown)
	return findings
}
