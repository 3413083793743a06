package main

import (
	"fmt"
	"os"

	"github.com/go-git/go-billy/v6/osfs"
	"github.com/spf13/cobra"

	"github.com/lewtec/boxlabeler/annotation"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init <images-dir>",
	Short: "Create a workspace from a folder of images",
	Long: `Scan a flat folder of images and create:
- a default configuration file, when none exists yet
- a workspace file with one empty annotation per image
- a SQLite snapshot of the workspace

Example:
  boxlabeler init ./images
  boxlabeler init ./images --extension png --workspace pills.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile, err := absPath(settings.GetString("config"))
		if err != nil {
			return err
		}
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			logger.Info("Creating default config", "file", configFile)
			if err := config.Save(configFile); err != nil {
				return fmt.Errorf("failed to create config: %w", err)
			}
		} else {
			logger.Info("Config file already exists", "file", configFile)
		}

		if ext, _ := cmd.Flags().GetString("extension"); ext != "" {
			config.Images.Extension = ext
		}
		imagesDir, err := absPath(args[0])
		if err != nil {
			return err
		}
		path, err := absPath(settings.GetString("workspace"))
		if err != nil {
			return err
		}

		w := annotation.NewWorkspace(osfs.New("/"), config, logger)
		if err := w.LoadImages(imagesDir); err != nil {
			return fmt.Errorf("failed to load images: %w", err)
		}
		if err := persist(cmd, w, path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d images in %s\n", w.Paths.Len(), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringP("extension", "e", "", "Image extension to scan (default from config)")
}
