package actions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"keyrunner/internal/registry"
	"keyrunner/internal/template"
	"keyrunner/pkg/logging"
)

func shellPack(_ *Environment) []registry.Descriptor {
	return []registry.Descriptor{
		{
			Keyword:     "run_command",
			Category:    CategoryShell,
			Description: "Run a command and return stdout, stderr and exit_code",
			Params: []registry.ParamSpec{
				param("command", true, "program, or a shell line when args is absent"),
				param("args", false, "argument list; disables shell interpretation"),
				param("dir", false, "working directory"),
				param("env", false, "extra environment variables"),
				param("check", false, "fail on a non-zero exit code, default true"),
			},
			Handler: runCommand,
		},
	}
}

func runCommand(ctx context.Context, params map[string]any) (any, error) {
	command, err := requiredString(params, "command")
	if err != nil {
		return nil, err
	}
	args, err := listParam(params, "args")
	if err != nil {
		return nil, err
	}
	check, err := boolParam(params, "check", true)
	if err != nil {
		return nil, err
	}
	extraEnv, err := mapParam(params, "env")
	if err != nil {
		return nil, err
	}

	var cmd *exec.Cmd
	if args == nil {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	} else {
		argv := make([]string, len(args))
		for i, a := range args {
			argv[i] = template.Stringify(a)
		}
		cmd = exec.CommandContext(ctx, command, argv...)
	}
	cmd.Dir, _ = stringParam(params, "dir", false)
	if len(extraEnv) > 0 {
		cmd.Env = os.Environ()
		for k, v := range extraEnv {
			cmd.Env = append(cmd.Env, k+"="+template.Stringify(v))
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.Debug("Actions", "run_command: %s", command)
	exitCode := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to run %q: %w", command, err)
		}
		exitCode = exitErr.ExitCode()
	}

	result := map[string]any{
		"stdout":    strings.TrimRight(stdout.String(), "\n"),
		"stderr":    strings.TrimRight(stderr.String(), "\n"),
		"exit_code": exitCode,
	}
	if check && exitCode != 0 {
		return nil, fmt.Errorf("command %q exited with code %d: %s", command, exitCode, strings.TrimSpace(stderr.String()))
	}
	return result, nil
}
