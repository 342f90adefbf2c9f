package runner

import (
	"context"
	"sync"
	"time"

	"keyrunner/internal/casefile"
	"keyrunner/pkg/logging"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SuiteOptions controls RunSuite.
type SuiteOptions struct {
	// Parallel is the number of cases run at once. Values below 1 mean 1.
	Parallel int
	// FailFast stops starting new cases after the first failure. Cases that
	// never started are reported as skipped.
	FailFast bool
}

// RunSuite runs cases and returns their results in input order. Each case
// gets its own session, so cases never share variables or recovery stacks.
func (r *Runner) RunSuite(ctx context.Context, cases []*casefile.Case, opts SuiteOptions) SuiteResult {
	suite := SuiteResult{
		RunID:   uuid.New().String(),
		Started: time.Now(),
		Cases:   make([]CaseResult, len(cases)),
	}

	parallel := opts.Parallel
	if parallel < 1 {
		parallel = 1
	}
	logging.Info("Runner", "Running %d cases (parallel: %d, fail-fast: %t)", len(cases), parallel, opts.FailFast)

	var (
		mu      sync.Mutex
		stopped bool
	)

	g := new(errgroup.Group)
	g.SetLimit(parallel)

	for i, c := range cases {
		mu.Lock()
		halt := stopped
		mu.Unlock()
		if halt || ctx.Err() != nil {
			suite.Cases[i] = skippedCase(c)
			continue
		}

		g.Go(func() error {
			mu.Lock()
			halt := stopped
			mu.Unlock()
			if halt {
				suite.Cases[i] = skippedCase(c)
				return nil
			}

			result := r.RunCase(ctx, c)
			suite.Cases[i] = result

			if !result.Passed && opts.FailFast {
				mu.Lock()
				stopped = true
				mu.Unlock()
				logging.Info("Runner", "Case %s failed; fail-fast stops remaining cases", c.ID)
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, cr := range suite.Cases {
		switch cr.Status {
		case StatusPassed:
			suite.Passed++
		case StatusSkipped:
			suite.Skipped++
		default:
			suite.Failed++
		}
	}
	suite.Duration = time.Since(suite.Started)

	logging.Info("Runner", "Suite %s finished: %d passed, %d failed, %d skipped", suite.RunID, suite.Passed, suite.Failed, suite.Skipped)
	r.reporter.SuiteFinished(suite)
	return suite
}

func skippedCase(c *casefile.Case) CaseResult {
	return CaseResult{
		CaseID:   c.ID,
		CaseName: c.DisplayName(),
		Source:   c.Source,
		Status:   StatusSkipped,
		Started:  time.Now(),
	}
}
