package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"keyrunner/internal/casefile"
	"keyrunner/internal/registry"
	"keyrunner/internal/runner"
	kstrings "keyrunner/pkg/strings"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// ConsoleOptions configures the console reporter.
type ConsoleOptions struct {
	// Verbose prints every step, not only failed ones.
	Verbose bool
	// Spinner shows a progress spinner while a case runs. Only enable it on
	// a terminal and for sequential runs.
	Spinner bool
	// NoColor disables ANSI colors.
	NoColor bool
}

// Console writes human-readable progress to a terminal.
type Console struct {
	out     io.Writer
	options ConsoleOptions

	mu      sync.Mutex
	spinner *spinner.Spinner
}

// NewConsole creates a console reporter writing to out.
func NewConsole(out io.Writer, options ConsoleOptions) *Console {
	if options.NoColor {
		text.DisableColors()
	}
	return &Console{out: out, options: options}
}

// CaseStarted implements runner.Reporter.
func (c *Console) CaseStarted(tc *casefile.Case) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.options.Verbose {
		fmt.Fprintf(c.out, "%s %s (%d steps)\n", text.FgHiBlue.Sprint("▶"), caseLabel(tc.ID, tc.Name), len(tc.Steps))
	}
	if c.options.Spinner {
		c.spinner = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(c.out))
		c.spinner.Suffix = " Running " + tc.ID + "..."
		c.spinner.Start()
	}
}

// StepFinished implements runner.Reporter.
func (c *Console) StepFinished(caseID string, step runner.StepResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.options.Verbose && !step.Failed() {
		return
	}
	c.paused(func() {
		fmt.Fprintf(c.out, "   %s %s\n", stepIcon(step.Status), FormatStep(step))
		if step.Error != "" {
			fmt.Fprintf(c.out, "      %s\n", text.FgRed.Sprint(step.Error))
		}
	})
}

// CaseFinished implements runner.Reporter.
func (c *Console) CaseFinished(result runner.CaseResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.spinner != nil {
		c.spinner.Stop()
		c.spinner = nil
	}

	icon := text.FgGreen.Sprint("✅")
	detail := fmt.Sprintf("%d steps, %s", len(result.Steps), formatDuration(result.Duration))
	if !result.Passed {
		icon = text.FgRed.Sprint("❌")
		detail = fmt.Sprintf("%d/%d steps failed, %s", result.FailedCount, len(result.Steps), formatDuration(result.Duration))
	}
	fmt.Fprintf(c.out, "%s %s (%s)\n", icon, caseLabel(result.CaseID, result.CaseName), detail)

	if total := result.Recovery.Total(); total > 0 {
		line := fmt.Sprintf("   ↩ recovery: %d/%d compensations succeeded", result.Recovery.Succeeded, total)
		if result.Recovery.Failed > 0 {
			line = text.FgYellow.Sprint(line)
		}
		fmt.Fprintln(c.out, line)
		for _, o := range result.Recovery.Outcomes {
			if !o.Success {
				fmt.Fprintf(c.out, "      %s\n", text.FgYellow.Sprint(o.Error))
			}
		}
	}
}

// SuiteFinished implements runner.Reporter.
func (c *Console) SuiteFinished(result runner.SuiteResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(result.Cases) == 0 {
		fmt.Fprintf(c.out, "%s %s\n", text.FgYellow.Sprint("📋"), text.FgYellow.Sprint("No cases to run"))
		return
	}

	t := c.createTable()
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("CASE"),
		text.FgHiCyan.Sprint("NAME"),
		text.FgHiCyan.Sprint("STATUS"),
		text.FgHiCyan.Sprint("FAILED"),
		text.FgHiCyan.Sprint("RECOVERY"),
		text.FgHiCyan.Sprint("DURATION"),
	})
	for _, cr := range result.Cases {
		recovery := "-"
		if total := cr.Recovery.Total(); total > 0 {
			recovery = fmt.Sprintf("%d/%d", cr.Recovery.Succeeded, total)
		}
		t.AppendRow(table.Row{
			cr.CaseID,
			kstrings.Truncate(cr.CaseName, kstrings.NameMaxLen),
			statusText(cr.Status),
			cr.FailedCount,
			recovery,
			formatDuration(cr.Duration),
		})
	}
	t.Render()

	fmt.Fprintf(c.out, "\n%s %s passed, %s failed, %s skipped in %s (run %s)\n",
		text.FgHiBlue.Sprint("Total:"),
		text.FgGreen.Sprint(result.Passed),
		text.FgRed.Sprint(result.Failed),
		text.FgYellow.Sprint(result.Skipped),
		formatDuration(result.Duration),
		result.RunID)
}

// paused runs fn with the spinner stopped. The caller holds c.mu.
func (c *Console) paused(fn func()) {
	if c.spinner == nil {
		fn()
		return
	}
	c.spinner.Stop()
	fn()
	c.spinner.Start()
}

func (c *Console) createTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetStyle(table.StyleRounded)
	return t
}

// RenderActions writes the catalog as a table grouped by category.
func RenderActions(out io.Writer, actions []registry.Descriptor) {
	if len(actions) == 0 {
		fmt.Fprintf(out, "%s %s\n", text.FgYellow.Sprint("📋"), text.FgYellow.Sprint("No actions registered"))
		return
	}

	sorted := append([]registry.Descriptor(nil), actions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Category != sorted[j].Category {
			return sorted[i].Category < sorted[j].Category
		}
		return sorted[i].Keyword < sorted[j].Keyword
	})

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("CATEGORY"),
		text.FgHiCyan.Sprint("KEYWORD"),
		text.FgHiCyan.Sprint("PARAMS"),
		text.FgHiCyan.Sprint("COMPENSATION"),
		text.FgHiCyan.Sprint("DESCRIPTION"),
	})
	for _, d := range sorted {
		t.AppendRow(table.Row{d.Category, d.Keyword, formatParams(d.Params), d.Compensation, kstrings.Truncate(d.Description, kstrings.DescriptionMaxLen)})
	}
	t.Render()

	fmt.Fprintf(out, "\n%s %s %s\n",
		text.FgHiBlue.Sprint("Total:"),
		text.FgHiWhite.Sprint(len(actions)),
		text.FgHiBlue.Sprint("actions"))
}

// FormatStep renders a one-line description of a step result.
func FormatStep(step runner.StepResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s", step.Index, step.Keyword)
	if step.Name != "" && step.Name != step.Keyword {
		fmt.Fprintf(&b, " %q", step.Name)
	}
	if step.Phase == runner.PhaseTeardown {
		b.WriteString(" (teardown)")
	}
	if step.Status == runner.StatusPassed && step.Value != nil {
		fmt.Fprintf(&b, " => %s", kstrings.Truncate(fmt.Sprintf("%v", step.Value), kstrings.ValueMaxLen))
	}
	if step.Compensation != "" {
		fmt.Fprintf(&b, " [undo: %s]", step.Compensation)
	}
	fmt.Fprintf(&b, " %s", formatDuration(step.Duration))
	return b.String()
}

func formatParams(params []registry.ParamSpec) string {
	names := make([]string, 0, len(params))
	for _, p := range params {
		if p.Required {
			names = append(names, p.Name+"*")
		} else {
			names = append(names, p.Name)
		}
	}
	return strings.Join(names, ", ")
}

func caseLabel(id, name string) string {
	if name == "" || name == id {
		return id
	}
	return fmt.Sprintf("%s %s", id, text.Faint.Sprint(name))
}

func stepIcon(status runner.Status) string {
	switch status {
	case runner.StatusPassed:
		return text.FgGreen.Sprint("✓")
	case runner.StatusSkipped:
		return text.FgYellow.Sprint("-")
	default:
		return text.FgRed.Sprint("✗")
	}
}

func statusText(status runner.Status) string {
	switch status {
	case runner.StatusPassed:
		return text.FgGreen.Sprint("PASSED")
	case runner.StatusSkipped:
		return text.FgYellow.Sprint("SKIPPED")
	default:
		return text.FgRed.Sprint("FAILED")
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}
