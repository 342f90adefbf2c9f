package cmd

import (
	"fmt"
	"io"
	"os"

	"keyrunner/internal/casefile"
	"keyrunner/internal/registry"

	"github.com/spf13/cobra"
)

var validateStrict bool

var validateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Check case files without running them",
	Long: `Checks every case file at path against the case schema and parses it.
Parsed cases are then linted: unknown action words, unknown recover actions
and ${name} references that no earlier step defines are reported as warnings.
With --strict, warnings fail validation too.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := loadedConfig.Cases.Path
	if len(args) == 1 {
		path = args[0]
	}

	files, err := casefile.FindFiles(path)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no case files found in %s", path)
	}

	reg, env, err := newRegistry(loadedConfig)
	if err != nil {
		return err
	}
	defer env.Close()

	out := cmd.OutOrStdout()
	invalid, warned := 0, 0
	for _, file := range files {
		errs, warnings := validateFile(out, file, reg, loadedConfig.Variables)
		switch {
		case errs > 0:
			invalid++
		case warnings > 0:
			warned++
		default:
			fmt.Fprintf(out, "✓ %s\n", file)
		}
	}
	printValidateSummary(out, len(files), invalid, warned)

	if invalid > 0 {
		return fmt.Errorf("%d of %d case files are invalid", invalid, len(files))
	}
	if validateStrict && warned > 0 {
		return fmt.Errorf("%d of %d case files have warnings", warned, len(files))
	}
	return nil
}

// validateFile reports the problems of one file and returns the number of
// errors and warnings printed.
func validateFile(out io.Writer, file string, reg *registry.Registry, initial map[string]any) (int, int) {
	raw, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(out, "✗ %s: %v\n", file, err)
		return 1, 0
	}

	violations, err := casefile.ValidateSchema(raw)
	if err != nil {
		fmt.Fprintf(out, "✗ %s: %v\n", file, err)
		return 1, 0
	}
	if len(violations) > 0 {
		fmt.Fprintf(out, "✗ %s\n", file)
		for _, v := range violations {
			fmt.Fprintf(out, "    %s\n", v)
		}
		return len(violations), 0
	}

	c, err := casefile.ParseFile(file)
	if err != nil {
		fmt.Fprintf(out, "✗ %s: %v\n", file, err)
		return 1, 0
	}

	findings := casefile.Lint(c, reg, initial)
	if len(findings) > 0 {
		fmt.Fprintf(out, "⚠ %s (%s)\n", file, c.ID)
		for _, f := range findings {
			fmt.Fprintf(out, "    %s\n", f)
		}
	}
	return 0, len(findings)
}

func printValidateSummary(out io.Writer, total, invalid, warned int) {
	fmt.Fprintf(out, "\n%d files: %d valid, %d with warnings, %d invalid\n",
		total, total-invalid-warned, warned, invalid)
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "Treat lint warnings as errors")
}
