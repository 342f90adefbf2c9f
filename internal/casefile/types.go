package casefile

import (
	"fmt"
	"time"
)

// Document is the on-disk shape of a case file.
type Document struct {
	TestCase *CaseSpec `yaml:"test_case" json:"test_case" jsonschema:"required,description=The test case container"`
}

// CaseSpec is the test case container inside a Document.
type CaseSpec struct {
	ID          string         `yaml:"id" json:"id" jsonschema:"required,description=Unique case identifier"`
	Name        string         `yaml:"name,omitempty" json:"name,omitempty" jsonschema:"description=Display name"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Tags        []string       `yaml:"tags,omitempty" json:"tags,omitempty"`
	Variables   map[string]any `yaml:"variables,omitempty" json:"variables,omitempty" jsonschema:"description=Initial variables for the case run"`
	Steps       []StepSpec     `yaml:"steps" json:"steps" jsonschema:"required,description=Ordered action word steps"`
	Teardown    []StepSpec     `yaml:"teardown,omitempty" json:"teardown,omitempty" jsonschema:"description=Steps that always run after the main steps"`
}

// StepSpec is one step entry in a case file. Keyword is accepted as an
// alias for Action.
type StepSpec struct {
	Action  string         `yaml:"action,omitempty" json:"action,omitempty" jsonschema:"description=Action word to invoke"`
	Keyword string         `yaml:"keyword,omitempty" json:"keyword,omitempty" jsonschema:"description=Alias of action"`
	Name    string         `yaml:"name,omitempty" json:"name,omitempty"`
	Params  map[string]any `yaml:"params,omitempty" json:"params,omitempty" jsonschema:"description=Parameters; string values may contain ${name} placeholders"`
	Store   string         `yaml:"store,omitempty" json:"store,omitempty" jsonschema:"pattern=^\\w+$,description=Also store the result under this variable"`
	Timeout string         `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"description=Per-step deadline (Go duration syntax)"`
	Recover string         `yaml:"recover,omitempty" json:"recover,omitempty" jsonschema:"description=Compensation action word registered when the step succeeds"`
}

// keyword returns the effective action word of the step.
func (s StepSpec) keyword() string {
	if s.Action != "" {
		return s.Action
	}
	return s.Keyword
}

// Case is a parsed, validated test case.
type Case struct {
	ID          string
	Name        string
	Description string
	Tags        []string
	Variables   map[string]any
	Steps       []Step
	Teardown    []Step

	// Source is the file or label the case was parsed from.
	Source string
}

// DisplayName returns Name, falling back to ID.
func (c *Case) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// HasTag reports whether the case carries tag.
func (c *Case) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Step is one action word invocation in a case.
type Step struct {
	Keyword string
	Name    string
	Params  map[string]any

	// Store names an extra variable that receives the step result.
	Store string
	// Timeout bounds the handler's context. Zero means no step deadline.
	Timeout time.Duration
	// Recover is an ad-hoc compensation keyword for this step.
	Recover string
}

// DisplayName returns Name, falling back to Keyword.
func (s Step) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Keyword
}

// LoadError records a case file that could not be loaded.
type LoadError struct {
	Path string
	Err  error
}

func (e LoadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e LoadError) Unwrap() error {
	return e.Err
}
