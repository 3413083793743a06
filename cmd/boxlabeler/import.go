package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lewtec/boxlabeler/internal/domain"
	"github.com/lewtec/boxlabeler/internal/registry"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bring annotations into the workspace",
	Long: `Import annotations from labelImg XML files, a tagged JSON registry or a TFRecord file.
Only images that are part of the workspace are updated; the rest is reported and skipped.`,
}

var importXMLCmd = &cobra.Command{
	Use:   "xml <dir>",
	Short: "Import the labelImg XML files of a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, path, err := openWorkspace()
		if err != nil {
			return err
		}
		dir, err := absPath(args[0])
		if err != nil {
			return err
		}
		res, err := w.ImportXML(dir)
		if err != nil {
			return fmt.Errorf("failed to import xml: %w", err)
		}
		for _, warning := range res.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warning)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d annotations updated\n", len(res.Updated))
		return persist(cmd, w, path)
	},
}

var importJSONCmd = &cobra.Command{
	Use:   "json <file>",
	Short: "Import a tagged JSON annotation registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, path, err := openWorkspace()
		if err != nil {
			return err
		}
		file, err := absPath(args[0])
		if err != nil {
			return err
		}
		res, err := w.ImportJSON(file)
		if err != nil {
			return fmt.Errorf("failed to import json: %w", err)
		}
		printMerge(cmd, res)
		return persist(cmd, w, path)
	},
}

var importRecordCmd = &cobra.Command{
	Use:   "record <file>",
	Short: "Import a TFRecord file of training examples or detections",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		modeName, _ := cmd.Flags().GetString("mode")
		mode, ok := domain.ParseMode(modeName)
		if !ok {
			return fmt.Errorf("unknown mode %q", modeName)
		}
		if cmd.Flags().Changed("threshold") {
			config.Import.ConfidenceThreshold, _ = cmd.Flags().GetFloat64("threshold")
		}
		w, path, err := openWorkspace()
		if err != nil {
			return err
		}
		file, err := absPath(args[0])
		if err != nil {
			return err
		}
		res, err := w.ImportRecords(file, mode)
		if err != nil {
			return fmt.Errorf("failed to import records: %w", err)
		}
		printMerge(cmd, res)
		return persist(cmd, w, path)
	},
}

func printMerge(cmd *cobra.Command, res registry.MergeResult) {
	fmt.Fprintf(cmd.OutOrStdout(), "%d annotations updated, %d discarded\n", len(res.Updated), len(res.Discarded))
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.AddCommand(importXMLCmd, importJSONCmd, importRecordCmd)
	importRecordCmd.Flags().StringP("mode", "m", "inference", "Record layout: training or inference")
	importRecordCmd.Flags().Float64P("threshold", "t", 0, "Minimum detection score, exclusive (default from config)")
}
