package cmd

import (
	"keyrunner/internal/shell"

	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Run action words interactively",
	Long: `Starts an interactive session. Each line is one step:

  keyword name=value ... [@store=var] [@recover=keyword]

Variables and the recovery stack persist for the whole session. Pending
compensations run when the session ends. Type 'help' for the built-in
commands.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		vars, err := parseVarFlags(runVars)
		if err != nil {
			return err
		}
		h, err := newHarness(loadedConfig, nil, vars)
		if err != nil {
			return err
		}
		defer h.Close()

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		return shell.New(h.runner, cmd.OutOrStdout()).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
	shellCmd.Flags().StringArrayVar(&runVars, "var", nil, "Initial variable as name=value (repeatable)")
}
