package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the workspace annotations to a file",
}

var exportJSONCmd = &cobra.Command{
	Use:   "json <file>",
	Short: "Export the annotation registry as tagged JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, _, err := openWorkspace()
		if err != nil {
			return err
		}
		file, err := absPath(args[0])
		if err != nil {
			return err
		}
		if err := w.ExportJSON(file); err != nil {
			return fmt.Errorf("failed to export json: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d annotations written to %s\n", w.Annotations.Len(), file)
		return nil
	},
}

var exportRecordCmd = &cobra.Command{
	Use:   "record <file>",
	Short: "Export reviewed boxes as TFRecord training examples",
	Long: `Export every box that is marked correct and not deleted. Images are re-encoded and
embedded in the records. A file name ending in .gz is gzip compressed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("skip-empty") {
			config.Export.SkipEmpty, _ = cmd.Flags().GetBool("skip-empty")
		}
		w, _, err := openWorkspace()
		if err != nil {
			return err
		}
		file, err := absPath(args[0])
		if err != nil {
			return err
		}
		res, err := w.ExportRecords(file)
		if err != nil {
			return fmt.Errorf("failed to export records: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d examples written to %s, %d images skipped\n", len(res.Written), file, len(res.Skipped))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.AddCommand(exportJSONCmd, exportRecordCmd)
	exportRecordCmd.Flags().Bool("skip-empty", false, "Skip images without exportable boxes instead of failing")
}
