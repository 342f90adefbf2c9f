package cmd

import (
	"fmt"
	"os"

	"keyrunner/internal/casefile"

	"github.com/spf13/cobra"
)

var schemaOutput string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of case documents",
	Long: `Prints the JSON schema that case documents are validated against. Point
your editor's YAML language server at it to get completion in case files.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := casefile.GenerateJSONSchema()
		if err != nil {
			return err
		}
		if schemaOutput == "" {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		}
		if err := os.WriteFile(schemaOutput, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("failed to write schema: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Schema written to %s\n", schemaOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.Flags().StringVarP(&schemaOutput, "output", "o", "", "Write the schema to this file")
}
