package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"keyrunner/internal/history"
	"keyrunner/internal/report"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect stored runs",
	Long: `Lists and shows suite results stored by 'keyrunner run' when
runner.store_history is enabled in config.yaml. Runs can be addressed by any
unique prefix of their run ID.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.NewStore(configPath)
		if err != nil {
			return err
		}
		runs, err := store.List(historyLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if historyJSON {
			return writeJSON(cmd, runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No stored runs.")
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(out)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Run ID", "Started", "Cases", "Passed", "Failed", "Skipped", "Duration"})
		for _, run := range runs {
			t.AppendRow(table.Row{
				shortID(run.RunID),
				run.Started.Format("2006-01-02 15:04:05"),
				run.Cases, run.Passed, run.Failed, run.Skipped,
				run.Duration.Round(time.Millisecond),
			})
		}
		t.Render()
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the results of a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.NewStore(configPath)
		if err != nil {
			return err
		}
		result, err := store.Get(args[0])
		if err != nil {
			return err
		}
		if historyJSON {
			return writeJSON(cmd, result)
		}
		console := report.NewConsole(cmd.OutOrStdout(), report.ConsoleOptions{Verbose: true, NoColor: !isTerminal(cmd.OutOrStdout())})
		for _, c := range result.Cases {
			for _, step := range c.Steps {
				console.StepFinished(c.CaseID, step)
			}
			console.CaseFinished(c)
		}
		console.SuiteFinished(*result)
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.NewStore(configPath)
		if err != nil {
			return err
		}
		if err := store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
		return nil
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyDeleteCmd)

	historyCmd.PersistentFlags().BoolVar(&historyJSON, "json", false, "Print JSON instead of tables")
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs listed (0 lists all)")
}
