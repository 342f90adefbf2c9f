// Package recovery keeps the LIFO stack of compensating actions for one case
// run and drains it at teardown.
package recovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"keyrunner/internal/api"
	"keyrunner/internal/registry"
	"keyrunner/pkg/logging"

	"github.com/mitchellh/copystructure"
)

// Lookup resolves a compensation keyword to its handler.
type Lookup interface {
	Lookup(keyword string) (registry.Descriptor, error)
}

// Entry is one pending compensation.
type Entry struct {
	OriginalKeyword     string         `json:"original_keyword"`
	Params              map[string]any `json:"params"`
	CompensationKeyword string         `json:"compensation_keyword"`
	PushedAt            time.Time      `json:"pushed_at"`
}

// CompensationOutcome records how one popped entry was handled.
type CompensationOutcome struct {
	Entry    Entry         `json:"entry"`
	Success  bool          `json:"success"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// DrainReport summarizes a drain.
type DrainReport struct {
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
	Outcomes  []CompensationOutcome `json:"outcomes,omitempty"`
}

// Total returns the number of entries that were popped.
func (r DrainReport) Total() int {
	return r.Succeeded + r.Failed
}

// Manager owns the recovery stack of a single case run.
type Manager struct {
	mu     sync.Mutex
	stack  []Entry
	lookup Lookup
	now    func() time.Time
}

// NewManager creates an empty manager that resolves compensations through lookup.
func NewManager(lookup Lookup) *Manager {
	return &Manager{
		lookup: lookup,
		now:    time.Now,
	}
}

// Push records a compensation. params is deep-copied so later mutation of
// the caller's values cannot change what the compensation receives.
func (m *Manager) Push(originalKeyword string, params map[string]any, compensationKeyword string) {
	entry := Entry{
		OriginalKeyword:     originalKeyword,
		Params:              CopyParams(params),
		CompensationKeyword: compensationKeyword,
		PushedAt:            m.now(),
	}

	m.mu.Lock()
	m.stack = append(m.stack, entry)
	depth := len(m.stack)
	m.mu.Unlock()

	logging.Debug("Recovery", "Pushed compensation %s for %s (depth %d)", compensationKeyword, originalKeyword, depth)
}

// Len returns the number of pending compensations.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stack)
}

// Entries returns a copy of the stack, bottom first (the last element is
// the next to be drained).
func (m *Manager) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Entry, len(m.stack))
	for i, e := range m.stack {
		e.Params = CopyParams(e.Params)
		out[i] = e
	}
	return out
}

// Clear discards every pending compensation without running it.
func (m *Manager) Clear() {
	m.mu.Lock()
	n := len(m.stack)
	m.stack = nil
	m.mu.Unlock()

	if n > 0 {
		logging.Debug("Recovery", "Cleared %d pending compensations", n)
	}
}

// Drain pops entries from the top of the stack and runs each compensation
// with its captured parameters. A failing compensation is logged and
// recorded; it never stops the remaining entries from running. Drain
// returns when the stack is empty.
func (m *Manager) Drain(ctx context.Context) DrainReport {
	var report DrainReport

	total := m.Len()
	if total == 0 {
		logging.Debug("Recovery", "Recovery stack is empty, nothing to compensate")
		return report
	}
	logging.Info("Recovery", "Draining %d compensations", total)

	for {
		entry, ok := m.pop()
		if !ok {
			break
		}

		outcome := m.compensate(ctx, entry)
		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.Success {
			report.Succeeded++
			logging.Info("Recovery", "Compensation %s for %s succeeded", entry.CompensationKeyword, entry.OriginalKeyword)
		} else {
			report.Failed++
			logging.Error("Recovery", outcome.Err, "Compensation %s for %s failed", entry.CompensationKeyword, entry.OriginalKeyword)
		}
	}

	logging.Info("Recovery", "Recovery finished: %d succeeded, %d failed", report.Succeeded, report.Failed)
	return report
}

func (m *Manager) pop() (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.stack)
	if n == 0 {
		return Entry{}, false
	}
	entry := m.stack[n-1]
	m.stack = m.stack[:n-1]
	return entry, true
}

// compensate runs one entry. The handler's return value is ignored: only an
// error or a panic marks a compensation as failed.
func (m *Manager) compensate(ctx context.Context, entry Entry) (outcome CompensationOutcome) {
	start := m.now()
	outcome.Entry = entry

	fail := func(err error) CompensationOutcome {
		outcome.Err = api.NewCompensationError(entry.OriginalKeyword, entry.CompensationKeyword, err)
		outcome.Error = outcome.Err.Error()
		outcome.Duration = time.Since(start)
		return outcome
	}

	desc, err := m.lookup.Lookup(entry.CompensationKeyword)
	if err != nil {
		return fail(err)
	}

	defer func() {
		if r := recover(); r != nil {
			outcome = fail(fmt.Errorf("panic: %v", r))
		}
	}()

	if _, err := desc.Handler(ctx, CopyParams(entry.Params)); err != nil {
		return fail(err)
	}

	outcome.Success = true
	outcome.Duration = time.Since(start)
	return outcome
}

// CopyParams deep-copies a parameter map. Values that cannot be copied are
// shared, which only happens for exotic handler-produced types.
func CopyParams(params map[string]any) map[string]any {
	if params == nil {
		return map[string]any{}
	}
	copied, err := copystructure.Copy(params)
	if err != nil {
		logging.Warn("Recovery", "Falling back to shallow parameter copy: %v", err)
		out := make(map[string]any, len(params))
		for k, v := range params {
			out[k] = v
		}
		return out
	}
	return copied.(map[string]any)
}
