package main

import (
	"github.com/spf13/cobra"

	"github.com/lewtec/boxlabeler/annotation"
	"github.com/lewtec/boxlabeler/internal/domain"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize the annotations of the workspace",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, _, err := openWorkspace()
		if err != nil {
			return err
		}
		report := annotation.BuildReport(w)
		if html, _ := cmd.Flags().GetBool("html"); html {
			_, err = cmd.OutOrStdout().Write(report.RenderHTML())
			return err
		}
		_, err = cmd.OutOrStdout().Write([]byte(report.Markdown()))
		return err
	},
}

var acceptCmd = &cobra.Command{
	Use:   "accept <image-id>...",
	Short: "Mark every box of the given images as reviewed and correct",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, path, err := openWorkspace()
		if err != nil {
			return err
		}
		user := w.User()
		for _, id := range args {
			if err := w.UpdateFromEdits(domain.ImageID(id), user); err != nil {
				return err
			}
			logger.Info("accepted", "id", id, "user", user.Name)
		}
		return persist(cmd, w, path)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd, acceptCmd)
	reportCmd.Flags().Bool("html", false, "Render the report as HTML")
}
