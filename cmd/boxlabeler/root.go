package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v6/osfs"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lewtec/boxlabeler/annotation"
)

var (
	settings = viper.New()
	config   *annotation.Config
	logger   *slog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "boxlabeler",
	Short: "Review and export bounding box annotations",
	Long: strings.TrimSpace(`
Keep the bounding box annotations of a folder of images in a workspace file: import labelImg
XML, tagged JSON or TFRecord detections, review them and export TFRecord training data.

Every flag can also be set through a BOXLABELER_<FLAG> environment variable.
    `),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if settings.GetBool("debug") {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if user := settings.GetString("user"); user != "" {
			cfg.User.Name = user
		}
		config = cfg
		return nil
	},
}

// loadConfig reads the config file. A missing file means defaults when the path was not
// given explicitly, or when the command is init, which creates it.
func loadConfig(cmd *cobra.Command) (*annotation.Config, error) {
	path := settings.GetString("config")
	cfg, err := annotation.LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) && (cmd == initCmd || !cmd.Flags().Changed("config")) {
		logger.Debug("no config file, using defaults", "file", path)
		return annotation.DefaultConfig(), nil
	}
	return cfg, err
}

// absPath resolves p against the working directory; all files go through a filesystem
// rooted at /.
func absPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("while resolving %s: %w", p, err)
	}
	return abs, nil
}

func openWorkspace() (*annotation.Workspace, string, error) {
	path, err := absPath(settings.GetString("workspace"))
	if err != nil {
		return nil, "", err
	}
	w, err := annotation.OpenWorkspace(osfs.New("/"), path, config, logger)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open workspace: %w", err)
	}
	return w, path, nil
}

// persist writes the workspace file and, unless disabled, the database snapshot.
func persist(cmd *cobra.Command, w *annotation.Workspace, path string) error {
	if err := w.Save(path); err != nil {
		return fmt.Errorf("failed to save workspace: %w", err)
	}
	database := settings.GetString("database")
	if database == "" {
		return nil
	}
	database, err := absPath(database)
	if err != nil {
		return err
	}
	return w.Snapshot(cmd.Context(), database)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "config.yaml", "Config file")
	rootCmd.PersistentFlags().StringP("workspace", "w", "workspace.json", "Workspace file")
	rootCmd.PersistentFlags().StringP("database", "d", "annotations.db", "SQLite snapshot file, empty to disable")
	rootCmd.PersistentFlags().StringP("user", "u", "", "Reviewer name, overrides user.name of the config")
	rootCmd.PersistentFlags().Bool("debug", false, "Log debug messages")

	settings.SetEnvPrefix("BOXLABELER")
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()
	if err := settings.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}
}
