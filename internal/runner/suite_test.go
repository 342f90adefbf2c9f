package runner

import (
	"context"
	"fmt"
	"testing"

	"keyrunner/internal/casefile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeCases(n int, failing map[int]bool) []*casefile.Case {
	cases := make([]*casefile.Case, n)
	for i := range cases {
		keyword := "echo"
		if failing[i] {
			keyword = "alwaysFail"
		}
		cases[i] = &casefile.Case{
			ID:    fmt.Sprintf("TC_%02d", i),
			Steps: []casefile.Step{step(keyword, map[string]any{"x": i})},
		}
	}
	return cases
}

func TestRunSuite_KeepsInputOrder(t *testing.T) {
	reporter := &recordingReporter{}
	r := New(testRegistry(t, nil, nil), WithReporter(reporter))

	cases := makeCases(8, map[int]bool{3: true})
	suite := r.RunSuite(context.Background(), cases, SuiteOptions{Parallel: 4})

	require.Len(t, suite.Cases, 8)
	for i, cr := range suite.Cases {
		assert.Equal(t, cases[i].ID, cr.CaseID)
	}
	assert.Equal(t, 7, suite.Passed)
	assert.Equal(t, 1, suite.Failed)
	assert.Equal(t, 0, suite.Skipped)
	assert.False(t, suite.OK())
	assert.NotEmpty(t, suite.RunID)
	require.Len(t, reporter.suites, 1)
	assert.Len(t, reporter.cases, 8)
}

func TestRunSuite_FailFastSequential(t *testing.T) {
	r := New(testRegistry(t, nil, nil))

	cases := makeCases(5, map[int]bool{1: true})
	suite := r.RunSuite(context.Background(), cases, SuiteOptions{Parallel: 1, FailFast: true})

	assert.Equal(t, StatusPassed, suite.Cases[0].Status)
	assert.Equal(t, StatusFailed, suite.Cases[1].Status)
	for _, cr := range suite.Cases[2:] {
		assert.Equal(t, StatusSkipped, cr.Status)
		assert.Equal(t, 0, len(cr.Steps))
	}
	assert.Equal(t, 1, suite.Passed)
	assert.Equal(t, 1, suite.Failed)
	assert.Equal(t, 3, suite.Skipped)
}

func TestRunSuite_WithoutFailFastRunsEverything(t *testing.T) {
	r := New(testRegistry(t, nil, nil))

	suite := r.RunSuite(context.Background(), makeCases(4, map[int]bool{0: true, 2: true}), SuiteOptions{})

	assert.Equal(t, 2, suite.Passed)
	assert.Equal(t, 2, suite.Failed)
	assert.Equal(t, 0, suite.Skipped)
}

func TestRunSuite_CanceledContextSkipsCases(t *testing.T) {
	r := New(testRegistry(t, nil, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	suite := r.RunSuite(ctx, makeCases(3, nil), SuiteOptions{Parallel: 2})

	assert.Equal(t, 3, suite.Skipped)
	assert.False(t, suite.OK())
}

func TestRunSuite_Empty(t *testing.T) {
	r := New(testRegistry(t, nil, nil))
	suite := r.RunSuite(context.Background(), nil, SuiteOptions{Parallel: 3})

	assert.Empty(t, suite.Cases)
	assert.True(t, suite.OK())
}
