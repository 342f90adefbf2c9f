package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"keyrunner/internal/api"
	"keyrunner/internal/casefile"
	"keyrunner/internal/registry"
	"keyrunner/internal/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingReporter collects every notification for assertions.
type recordingReporter struct {
	mu     sync.Mutex
	events []string
	steps  []StepResult
	cases  []CaseResult
	suites []SuiteResult
}

func (r *recordingReporter) CaseStarted(c *casefile.Case) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "start:"+c.ID)
}

func (r *recordingReporter) StepFinished(caseID string, step StepResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "step:"+caseID+":"+step.Keyword)
	r.steps = append(r.steps, step)
}

func (r *recordingReporter) CaseFinished(result CaseResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "finish:"+result.CaseID)
	r.cases = append(r.cases, result)
}

func (r *recordingReporter) SuiteFinished(result SuiteResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suites = append(r.suites, result)
}

type deleteCall struct {
	params map[string]any
}

// testRegistry registers the action words used throughout these tests.
func testRegistry(t *testing.T, deletes *[]deleteCall, order *[]string) *registry.Registry {
	t.Helper()
	var mu sync.Mutex
	reg := registry.New()

	reg.MustRegister(registry.Descriptor{
		Keyword: "echo",
		Handler: func(_ context.Context, params map[string]any) (any, error) {
			return params["x"], nil
		},
	})
	reg.MustRegister(registry.Descriptor{
		Keyword: "alwaysFail",
		Handler: func(context.Context, map[string]any) (any, error) {
			return false, nil
		},
	})
	reg.MustRegister(registry.Descriptor{
		Keyword: "nothing",
		Handler: func(context.Context, map[string]any) (any, error) {
			return nil, nil
		},
	})
	reg.MustRegister(registry.Descriptor{
		Keyword: "explode",
		Handler: func(context.Context, map[string]any) (any, error) {
			panic("kaboom")
		},
	})
	reg.MustRegister(registry.Descriptor{
		Keyword: "error",
		Handler: func(context.Context, map[string]any) (any, error) {
			return nil, errors.New("handler said no")
		},
	})
	reg.MustRegister(registry.Descriptor{
		Keyword: "wait",
		Handler: func(ctx context.Context, _ map[string]any) (any, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return true, nil
			}
		},
	})
	reg.MustRegister(registry.Descriptor{
		Keyword:      "create",
		Compensation: "delete",
		Handler: func(_ context.Context, params map[string]any) (any, error) {
			params["mutated_by_handler"] = true
			return "created", nil
		},
	})
	reg.MustRegister(registry.Descriptor{
		Keyword:      "ensure",
		Compensation: "delete",
		Handler: func(_ context.Context, params map[string]any) (any, error) {
			if params["exists"] == true {
				return registry.Result{Value: "kept", Skip: true}, nil
			}
			return registry.Result{Value: "made", Params: map[string]any{"name": "top"}}, nil
		},
	})
	reg.MustRegister(registry.Descriptor{
		Keyword:      "overwrite",
		Compensation: "delete",
		Handler: func(context.Context, map[string]any) (any, error) {
			return registry.Result{Value: "written", Compensation: "mark", Params: map[string]any{"label": "restored"}}, nil
		},
	})
	reg.MustRegister(registry.Descriptor{
		Keyword:      "createFails",
		Compensation: "delete",
		Handler: func(context.Context, map[string]any) (any, error) {
			return false, nil
		},
	})
	reg.MustRegister(registry.Descriptor{
		Keyword: "delete",
		Handler: func(_ context.Context, params map[string]any) (any, error) {
			mu.Lock()
			defer mu.Unlock()
			if deletes != nil {
				*deletes = append(*deletes, deleteCall{params: params})
			}
			if order != nil {
				*order = append(*order, "delete")
			}
			return true, nil
		},
	})
	reg.MustRegister(registry.Descriptor{
		Keyword: "mark",
		Handler: func(_ context.Context, params map[string]any) (any, error) {
			mu.Lock()
			defer mu.Unlock()
			if order != nil {
				*order = append(*order, "mark:"+params["label"].(string))
			}
			return true, nil
		},
	})
	return reg
}

func step(keyword string, params map[string]any) casefile.Step {
	return casefile.Step{Keyword: keyword, Params: params}
}

func TestRunCase_EchoChainsLastResult(t *testing.T) {
	reporter := &recordingReporter{}
	r := New(testRegistry(t, nil, nil), WithReporter(reporter))

	c := &casefile.Case{ID: "TC_echo", Steps: []casefile.Step{
		step("echo", map[string]any{"x": "hello"}),
		step("echo", map[string]any{"x": "${last_result}"}),
	}}

	result := r.RunCase(context.Background(), c)

	require.True(t, result.Passed)
	assert.Equal(t, StatusPassed, result.Status)
	assert.Equal(t, 0, result.FailedCount)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, "hello", result.Steps[1].Params["x"])
	assert.Equal(t, "hello", result.Steps[1].Value)
	assert.Equal(t, 1, result.Steps[0].Index)
	assert.Equal(t, 2, result.Steps[1].Index)
	assert.NotEmpty(t, result.RunID)

	assert.Equal(t, []string{"start:TC_echo", "step:TC_echo:echo", "step:TC_echo:echo", "finish:TC_echo"}, reporter.events)
}

func TestRunCase_FailureIsolation(t *testing.T) {
	r := New(testRegistry(t, nil, nil))

	c := &casefile.Case{ID: "TC_fail", Steps: []casefile.Step{
		step("echo", map[string]any{"x": "before"}),
		step("alwaysFail", nil),
		step("echo", map[string]any{"x": "after ${last_result}"}),
	}}

	result := r.RunCase(context.Background(), c)

	assert.False(t, result.Passed)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, 1, result.FailedCount)
	require.Len(t, result.Steps, 3)
	assert.Equal(t, StatusFailed, result.Steps[1].Status)
	assert.Equal(t, StatusPassed, result.Steps[2].Status)
	// last_result is only written on success
	assert.Equal(t, "after before", result.Steps[2].Value)
}

func TestRunCase_FailureSignals(t *testing.T) {
	tests := []struct {
		keyword string
		reason  string
	}{
		{"alwaysFail", api.ReasonFalse},
		{"nothing", api.ReasonNoResult},
		{"explode", api.ReasonPanic},
		{"error", api.ReasonError},
	}

	for _, tt := range tests {
		t.Run(tt.keyword, func(t *testing.T) {
			r := New(testRegistry(t, nil, nil))
			c := &casefile.Case{ID: "TC", Steps: []casefile.Step{step(tt.keyword, nil), step("echo", map[string]any{"x": 1})}}

			result := r.RunCase(context.Background(), c)

			assert.Equal(t, 1, result.FailedCount)
			var herr *api.HandlerError
			require.True(t, errors.As(result.Steps[0].Err, &herr))
			assert.Equal(t, tt.reason, herr.Reason)
			assert.NotEmpty(t, result.Steps[0].Error)
			assert.Equal(t, StatusPassed, result.Steps[1].Status)
		})
	}
}

func TestRunCase_UnknownActionContinues(t *testing.T) {
	r := New(testRegistry(t, nil, nil))
	c := &casefile.Case{ID: "TC", Steps: []casefile.Step{
		step("doesNotExist", map[string]any{"a": 1}),
		step("echo", map[string]any{"x": "still runs"}),
	}}

	result := r.RunCase(context.Background(), c)

	assert.Equal(t, 1, result.FailedCount)
	assert.True(t, api.IsUnknownAction(result.Steps[0].Err))
	assert.Equal(t, "still runs", result.Steps[1].Value)
}

func TestRunCase_EmptyCasePasses(t *testing.T) {
	r := New(testRegistry(t, nil, nil))

	result := r.RunCase(context.Background(), &casefile.Case{ID: "EMPTY"})

	assert.True(t, result.Passed)
	assert.Equal(t, 0, result.FailedCount)
	assert.Empty(t, result.Steps)
}

func TestRunCase_RecoveryCapturesParams(t *testing.T) {
	var deletes []deleteCall
	r := New(testRegistry(t, &deletes, nil))

	params := map[string]any{"name": "res-1", "size": 3}
	c := &casefile.Case{ID: "TC_recover", Steps: []casefile.Step{step("create", params)}}

	session := r.NewSession(nil)
	stepResult := session.ExecuteStep(context.Background(), c.Steps[0])
	require.Equal(t, StatusPassed, stepResult.Status)
	assert.Equal(t, "delete", stepResult.Compensation)

	entries := session.Recovery().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "create", entries[0].OriginalKeyword)
	assert.Equal(t, "delete", entries[0].CompensationKeyword)
	assert.Equal(t, map[string]any{"name": "res-1", "size": 3}, entries[0].Params)

	report := session.Close(context.Background())
	assert.Equal(t, 1, report.Succeeded)
	require.Len(t, deletes, 1)
	assert.Equal(t, map[string]any{"name": "res-1", "size": 3}, deletes[0].params)
}

func TestRunCase_RecoveryDrainedAtTeardown(t *testing.T) {
	var deletes []deleteCall
	r := New(testRegistry(t, &deletes, nil))

	c := &casefile.Case{
		ID:        "TC",
		Variables: map[string]any{"prefix": "tmp"},
		Steps: []casefile.Step{
			step("create", map[string]any{"name": "${prefix}-1"}),
			step("createFails", map[string]any{"name": "never"}),
			step("create", map[string]any{"name": "${prefix}-2"}),
		},
	}

	result := r.RunCase(context.Background(), c)

	assert.Equal(t, 1, result.FailedCount)
	assert.Equal(t, 2, result.Recovery.Succeeded)
	require.Len(t, deletes, 2)
	assert.Equal(t, "tmp-2", deletes[0].params["name"])
	assert.Equal(t, "tmp-1", deletes[1].params["name"])
}

func TestRunCase_ShapedResultSkipsCompensation(t *testing.T) {
	var deletes []deleteCall
	r := New(testRegistry(t, &deletes, nil))
	session := r.NewSession(nil)

	result := session.ExecuteStep(context.Background(),
		casefile.Step{Keyword: "ensure", Params: map[string]any{"exists": true}, Recover: "delete", Store: "out"})

	require.Equal(t, StatusPassed, result.Status)
	assert.Equal(t, "kept", result.Value)
	assert.Empty(t, result.Compensation)
	assert.Equal(t, 0, session.Recovery().Len())
	v, ok := session.Variables().Get("out")
	require.True(t, ok)
	assert.Equal(t, "kept", v)

	session.Close(context.Background())
	assert.Empty(t, deletes)
}

func TestRunCase_ShapedResultOverridesCompensation(t *testing.T) {
	var deletes []deleteCall
	var order []string
	r := New(testRegistry(t, &deletes, &order))
	session := r.NewSession(nil)

	made := session.ExecuteStep(context.Background(), step("ensure", map[string]any{"name": "top/child"}))
	written := session.ExecuteStep(context.Background(), step("overwrite", map[string]any{"path": "f.txt"}))

	assert.Equal(t, "made", made.Value)
	assert.Equal(t, "delete", made.Compensation)
	assert.Equal(t, "written", written.Value)
	assert.Equal(t, "mark", written.Compensation)

	entries := session.Recovery().Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, map[string]any{"name": "top"}, entries[0].Params)
	assert.Equal(t, map[string]any{"path": "f.txt", "label": "restored"}, entries[1].Params)

	report := session.Close(context.Background())
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, []string{"mark:restored", "delete"}, order)
	require.Len(t, deletes, 1)
	assert.Equal(t, "top", deletes[0].params["name"])
}

func TestRunCase_FailedStepPushesNoCompensation(t *testing.T) {
	r := New(testRegistry(t, nil, nil))
	session := r.NewSession(nil)

	before := session.Recovery().Len()
	result := session.ExecuteStep(context.Background(), step("createFails", nil))

	assert.Equal(t, StatusFailed, result.Status)
	assert.Empty(t, result.Compensation)
	assert.Equal(t, before, session.Recovery().Len())
}

func TestRunCase_AdHocRecoverAndStore(t *testing.T) {
	var order []string
	r := New(testRegistry(t, nil, &order))

	c := &casefile.Case{
		ID: "TC",
		Steps: []casefile.Step{
			{Keyword: "echo", Params: map[string]any{"x": "v1"}, Store: "first", Recover: "delete"},
			step("echo", map[string]any{"x": "${first}-${last_result}"}),
		},
		Teardown: []casefile.Step{step("mark", map[string]any{"label": "teardown"})},
	}

	result := r.RunCase(context.Background(), c)

	require.True(t, result.Passed)
	assert.Equal(t, "v1-v1", result.Steps[1].Value)
	assert.Equal(t, PhaseTeardown, result.Steps[2].Phase)
	// teardown steps run before the recovery drain
	assert.Equal(t, []string{"mark:teardown", "delete"}, order)
}

func TestRunCase_NoRecovery(t *testing.T) {
	var deletes []deleteCall
	r := New(testRegistry(t, &deletes, nil), WithNoRecovery())

	result := r.RunCase(context.Background(), &casefile.Case{ID: "TC", Steps: []casefile.Step{step("create", nil)}})

	assert.True(t, result.Passed)
	assert.Equal(t, 0, result.Recovery.Total())
	assert.Empty(t, deletes)
}

func TestRunCase_StepTimeout(t *testing.T) {
	r := New(testRegistry(t, nil, nil), WithStepTimeout(20*time.Millisecond))

	result := r.RunCase(context.Background(), &casefile.Case{ID: "TC", Steps: []casefile.Step{step("wait", nil)}})

	require.Equal(t, 1, result.FailedCount)
	var herr *api.HandlerError
	require.True(t, errors.As(result.Steps[0].Err, &herr))
	assert.Equal(t, api.ReasonTimeout, herr.Reason)
}

func TestRunCase_CancellationSkipsRemainingSteps(t *testing.T) {
	var deletes []deleteCall
	reg := testRegistry(t, &deletes, nil)

	ctx, cancel := context.WithCancel(context.Background())
	reg.MustRegister(registry.Descriptor{
		Keyword: "cancel",
		Handler: func(context.Context, map[string]any) (any, error) {
			cancel()
			return true, nil
		},
	})
	r := New(reg)

	c := &casefile.Case{ID: "TC", Steps: []casefile.Step{
		step("create", map[string]any{"name": "a"}),
		step("cancel", nil),
		step("echo", map[string]any{"x": 1}),
		step("echo", map[string]any{"x": 2}),
	}}

	result := r.RunCase(ctx, c)

	require.Len(t, result.Steps, 4)
	assert.Equal(t, StatusSkipped, result.Steps[2].Status)
	assert.Equal(t, StatusSkipped, result.Steps[3].Status)
	assert.Equal(t, 2, result.FailedCount)
	assert.False(t, result.Passed)
	// recovery still runs after cancellation
	assert.Equal(t, 1, result.Recovery.Succeeded)
	require.Len(t, deletes, 1)
}

func TestRunCase_InitialVariablesAndCaseOverride(t *testing.T) {
	r := New(testRegistry(t, nil, nil), WithInitialVariables(map[string]any{"env": "dev", "region": "eu"}))

	c := &casefile.Case{
		ID:        "TC",
		Variables: map[string]any{"env": "prod"},
		Steps:     []casefile.Step{step("echo", map[string]any{"x": "${env}/${region}/${unknown}"})},
	}

	result := r.RunCase(context.Background(), c)
	assert.Equal(t, "prod/eu/${unknown}", result.Steps[0].Value)
}

func TestRunCase_CasesDoNotShareState(t *testing.T) {
	r := New(testRegistry(t, nil, nil))

	first := r.RunCase(context.Background(), &casefile.Case{ID: "A", Steps: []casefile.Step{step("echo", map[string]any{"x": "from A"})}})
	second := r.RunCase(context.Background(), &casefile.Case{ID: "B", Steps: []casefile.Step{step("echo", map[string]any{"x": "${last_result}"})}})

	assert.True(t, first.Passed)
	assert.Equal(t, "${last_result}", second.Steps[0].Value)
}

func TestSession_VariablesPersistAcrossSteps(t *testing.T) {
	r := New(testRegistry(t, nil, nil))
	session := r.NewSession(map[string]any{"greeting": "hi"})

	session.ExecuteStep(context.Background(), step("echo", map[string]any{"x": "${greeting}"}))
	res := session.ExecuteStep(context.Background(), step("echo", map[string]any{"x": "${last_result}!"}))

	assert.Equal(t, "hi!", res.Value)
	assert.Equal(t, PhaseAdHoc, res.Phase)
	v, ok := session.Variables().Get(template.LastResultKey)
	require.True(t, ok)
	assert.Equal(t, "hi!", v)
}
