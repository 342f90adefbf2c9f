package cmd

import (
	"fmt"

	"keyrunner/internal/report"

	"github.com/spf13/cobra"
)

var actionsCmd = &cobra.Command{
	Use:   "actions [category]",
	Short: "List the available action words",
	Long: `Lists the registered action words with their category, parameters and
compensation. Give a category to list only its actions.`,
	Args: cobra.MaximumNArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		reg, env, err := newRegistry(loadedConfig)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		defer env.Close()
		return reg.Categories(), cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, env, err := newRegistry(loadedConfig)
		if err != nil {
			return err
		}
		defer env.Close()

		category := ""
		if len(args) == 1 {
			category = args[0]
		}
		list := reg.List(category)
		if len(list) == 0 {
			return fmt.Errorf("no actions in category %q (categories: %v)", category, reg.Categories())
		}
		report.RenderActions(cmd.OutOrStdout(), list)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(actionsCmd)
}
