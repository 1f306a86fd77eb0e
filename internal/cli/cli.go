// Package cli implements the parlance command-line interface.
//
// The CLI is the maintenance surface for the scrap archive: listing what a
// dialog file's recycle bin holds, clearing it, and printing storage paths.
// Editing itself happens through the pkg/editor session API embedded in a
// host application. Commands are built with cobra and log through the
// charmbracelet/log library; --verbose (-v) switches to debug level.
package cli

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/parlance/pkg/buildinfo"
	"github.com/matzehuels/parlance/pkg/config"
	"github.com/matzehuels/parlance/pkg/scrap"
)

// appName is the application name used for directories and display.
const appName = "parlance"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "parlance",
		Short:        "Parlance maintains branching dialog documents",
		Long:         `Parlance is the consistency engine behind a branching-dialog editor: indexed pointer graphs, soft-deleted node archives, and undo history. The CLI manages the on-disk scrap archives.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ~/.config/parlance/config.toml)")

	root.AddCommand(c.scrapCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Scrap Manager Factory
// =============================================================================

// newScrapManager builds a manager from the loaded configuration.
func (c *CLI) newScrapManager() (*scrap.Manager, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	store, err := newScrapStore(cfg)
	if err != nil {
		return nil, err
	}
	return scrap.NewManager(store, time.Duration(cfg.Scrap.RetentionDays)*24*time.Hour, c.Logger), nil
}

func newScrapStore(cfg *config.Config) (scrap.Store, error) {
	switch cfg.Scrap.Backend {
	case "memory":
		return scrap.NewMemoryStore(), nil
	case "redis":
		return scrap.NewRedisStore(cfg.Scrap.RedisURL)
	default:
		return scrap.NewFileStore(cfg.Scrap.Dir)
	}
}

// =============================================================================
// Paths
// =============================================================================

// scrapDir returns the configured archive directory for the file backend.
func (c *CLI) scrapDir() (string, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return "", err
	}
	if cfg.Scrap.Dir != "" {
		return cfg.Scrap.Dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "scrap"), nil
}
