package casefile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"keyrunner/internal/api"
	"keyrunner/pkg/logging"

	"gopkg.in/yaml.v3"
)

var variableNamePattern = regexp.MustCompile(`^\w+$`)

// ParseFile parses the case file at path.
func ParseFile(path string) (*Case, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read case file %s: %w", path, err)
	}
	return Parse(bytes.NewReader(content), path)
}

// Parse decodes a case document from r and converts it into a Case.
// source labels the document in errors and in Case.Source.
//
// Structural problems, including unknown fields, a missing test_case
// container, or a missing steps list, are reported as a MalformedCaseError.
func Parse(r io.Reader, source string) (*Case, error) {
	doc, err := Decode(r, source)
	if err != nil {
		return nil, err
	}
	if err := Validate(doc, source); err != nil {
		return nil, err
	}
	return build(doc, source), nil
}

// Decode reads a Document without validating it.
func Decode(r io.Reader, source string) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, api.NewMalformedCaseError(source, "document is empty")
		}
		return nil, &api.MalformedCaseError{Source: source, Err: err}
	}
	return &doc, nil
}

// Validate checks the minimum structure of a case document.
//
// A document with an empty steps list is valid: a warning is logged and the
// case runs as vacuously successful.
func Validate(doc *Document, source string) error {
	if doc == nil || doc.TestCase == nil {
		return api.NewMalformedCaseError(source, "missing test_case container")
	}

	tc := doc.TestCase
	var problems []string

	if tc.ID == "" {
		problems = append(problems, "test_case.id is required")
	}
	if tc.Steps == nil {
		problems = append(problems, "test_case.steps is required")
	}
	problems = append(problems, validateSteps("steps", tc.Steps)...)
	problems = append(problems, validateSteps("teardown", tc.Teardown)...)

	for name := range tc.Variables {
		if !variableNamePattern.MatchString(name) {
			problems = append(problems, fmt.Sprintf("variable name %q must consist of word characters", name))
		}
	}

	if len(problems) > 0 {
		return api.NewMalformedCaseError(source, problems...)
	}

	if len(tc.Steps) == 0 {
		logging.Warn("CaseParser", "Case %s in %s has no steps; it will pass vacuously", tc.ID, source)
	}
	return nil
}

func validateSteps(section string, steps []StepSpec) []string {
	var problems []string
	for i, step := range steps {
		prefix := fmt.Sprintf("%s[%d]", section, i)

		switch {
		case step.Action == "" && step.Keyword == "":
			problems = append(problems, prefix+": action is required")
		case step.Action != "" && step.Keyword != "" && step.Action != step.Keyword:
			problems = append(problems, fmt.Sprintf("%s: action %q and keyword %q disagree", prefix, step.Action, step.Keyword))
		}

		if step.Store != "" && !variableNamePattern.MatchString(step.Store) {
			problems = append(problems, fmt.Sprintf("%s: store name %q must consist of word characters", prefix, step.Store))
		}

		if step.Timeout != "" {
			d, err := time.ParseDuration(step.Timeout)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s: invalid timeout %q: %v", prefix, step.Timeout, err))
			} else if d < 0 {
				problems = append(problems, fmt.Sprintf("%s: timeout cannot be negative", prefix))
			}
		}
	}
	return problems
}

// build converts a validated document into a Case.
func build(doc *Document, source string) *Case {
	tc := doc.TestCase
	c := &Case{
		ID:          tc.ID,
		Name:        tc.Name,
		Description: tc.Description,
		Tags:        append([]string(nil), tc.Tags...),
		Variables:   make(map[string]any, len(tc.Variables)),
		Steps:       buildSteps(tc.Steps),
		Teardown:    buildSteps(tc.Teardown),
		Source:      source,
	}
	for k, v := range tc.Variables {
		c.Variables[k] = v
	}
	return c
}

func buildSteps(specs []StepSpec) []Step {
	steps := make([]Step, 0, len(specs))
	for _, spec := range specs {
		var timeout time.Duration
		if spec.Timeout != "" {
			// validated earlier
			timeout, _ = time.ParseDuration(spec.Timeout)
		}
		params := make(map[string]any, len(spec.Params))
		for k, v := range spec.Params {
			params[k] = v
		}
		steps = append(steps, Step{
			Keyword: spec.keyword(),
			Name:    spec.Name,
			Params:  params,
			Store:   spec.Store,
			Timeout: timeout,
			Recover: spec.Recover,
		})
	}
	return steps
}
