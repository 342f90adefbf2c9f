// Package shell implements an interactive keyword shell.
//
// Every line either runs a built-in command (help, actions, vars, let,
// stack, drain, exit) or executes one action word against a session that
// lives as long as the shell. Compensations accumulate like in a case run
// and are drained on drain or on exit.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"keyrunner/internal/casefile"
	"keyrunner/internal/recovery"
	"keyrunner/internal/report"
	"keyrunner/internal/runner"
	"keyrunner/internal/template"
	"keyrunner/pkg/logging"
)

// commandTimeout bounds a single line's execution.
const commandTimeout = 5 * time.Minute

// errExit is returned by Execute when the user asks to leave.
var errExit = errors.New("exit")

type command struct {
	usage       string
	description string
	run         func(s *Shell, ctx context.Context, args []string) error
}

// Shell is an interactive session over a runner.
type Shell struct {
	runner   *runner.Runner
	session  *runner.Session
	out      io.Writer
	commands map[string]command
}

// New creates a shell writing to out.
func New(r *runner.Runner, out io.Writer) *Shell {
	s := &Shell{
		runner:  r,
		session: r.NewSession(nil),
		out:     out,
	}
	s.commands = map[string]command{
		"help":    {"help", "Show this help", (*Shell).cmdHelp},
		"actions": {"actions [category]", "List action words", (*Shell).cmdActions},
		"vars":    {"vars", "Show session variables", (*Shell).cmdVars},
		"let":     {"let name=value ...", "Set session variables", (*Shell).cmdLet},
		"stack":   {"stack", "Show pending compensations, newest first", (*Shell).cmdStack},
		"drain":   {"drain", "Run pending compensations", (*Shell).cmdDrain},
		"exit":    {"exit", "Drain pending compensations and leave", (*Shell).cmdExit},
	}
	return s
}

// Session returns the shell's session.
func (s *Shell) Session() *runner.Session {
	return s.session
}

// Run reads lines until EOF, exit, or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	home, _ := os.UserHomeDir()
	historyFile := filepath.Join(os.TempDir(), ".keyrunner_history")
	if home != "" {
		historyFile = filepath.Join(home, ".keyrunner_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "keyrunner> ",
		HistoryFile:       historyFile,
		AutoComplete:      s.completer(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()

	fmt.Fprintln(s.out, "keyrunner shell. Type 'help' for commands.")
	defer s.drainOnExit(ctx)

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		if err := s.Execute(ctx, line); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
	}
}

// Execute runs one input line.
func (s *Shell) Execute(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	fields := strings.Fields(line)
	name := strings.ToLower(fields[0])
	if name == "?" {
		name = "help"
	}
	if name == "quit" {
		name = "exit"
	}
	if cmd, ok := s.commands[name]; ok {
		return cmd.run(s, ctx, fields[1:])
	}
	return s.invoke(ctx, line)
}

func (s *Shell) invoke(ctx context.Context, line string) error {
	inv, err := ParseInvocation(line)
	if err != nil {
		return err
	}
	result := s.session.ExecuteStep(ctx, casefile.Step{
		Keyword: inv.Keyword,
		Params:  inv.Params,
		Store:   inv.Store,
		Recover: inv.Recover,
	})

	if result.Failed() {
		fmt.Fprintf(s.out, "✗ %s\n  %s\n", report.FormatStep(result), result.Error)
		return nil
	}
	fmt.Fprintf(s.out, "✓ %s\n", report.FormatStep(result))
	return nil
}

func (s *Shell) drainOnExit(ctx context.Context) {
	if s.session.Recovery().Len() == 0 {
		return
	}
	fmt.Fprintf(s.out, "Draining %d pending compensations...\n", s.session.Recovery().Len())
	s.printDrain(s.session.Close(ctx))
}

func (s *Shell) cmdHelp(_ context.Context, _ []string) error {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(s.out, "Commands:")
	for _, name := range names {
		c := s.commands[name]
		fmt.Fprintf(s.out, "  %-22s %s\n", c.usage, c.description)
	}
	fmt.Fprintln(s.out, "\nAny other line runs an action word:")
	fmt.Fprintln(s.out, "  <keyword> key=value ... [@store=name] [@recover=keyword]")
	return nil
}

func (s *Shell) cmdActions(_ context.Context, args []string) error {
	category := ""
	if len(args) > 0 {
		category = args[0]
	}
	report.RenderActions(s.out, s.runner.Registry().List(category))
	return nil
}

func (s *Shell) cmdVars(_ context.Context, _ []string) error {
	vars := s.session.Variables()
	names := vars.Names()
	if len(names) == 0 {
		fmt.Fprintln(s.out, "No variables set.")
		return nil
	}
	for _, name := range names {
		v, _ := vars.Get(name)
		fmt.Fprintf(s.out, "  %s = %s\n", name, template.Stringify(v))
	}
	return nil
}

func (s *Shell) cmdLet(_ context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: let name=value ...")
	}
	inv, err := ParseInvocation("let " + strings.Join(args, " "))
	if err != nil {
		return err
	}
	for name, value := range inv.Params {
		s.session.Variables().Set(name, value)
	}
	return nil
}

func (s *Shell) cmdStack(_ context.Context, _ []string) error {
	entries := s.session.Recovery().Entries()
	if len(entries) == 0 {
		fmt.Fprintln(s.out, "Recovery stack is empty.")
		return nil
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Fprintf(s.out, "  %d. %s (undoes %s)\n", len(entries)-i, e.CompensationKeyword, e.OriginalKeyword)
	}
	return nil
}

func (s *Shell) cmdDrain(ctx context.Context, _ []string) error {
	s.printDrain(s.session.Recovery().Drain(ctx))
	return nil
}

func (s *Shell) cmdExit(_ context.Context, _ []string) error {
	return errExit
}

func (s *Shell) printDrain(rep recovery.DrainReport) {
	logging.Debug("Shell", "Drained %d compensations", rep.Total())
	for _, o := range rep.Outcomes {
		if o.Success {
			fmt.Fprintf(s.out, "  ✓ %s (undo %s)\n", o.Entry.CompensationKeyword, o.Entry.OriginalKeyword)
		} else {
			fmt.Fprintf(s.out, "  ✗ %s (undo %s): %s\n", o.Entry.CompensationKeyword, o.Entry.OriginalKeyword, o.Error)
		}
	}
	fmt.Fprintf(s.out, "Compensations: %d succeeded, %d failed.\n", rep.Succeeded, rep.Failed)
}
