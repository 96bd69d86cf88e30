// Package cli implements the keeper command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/recordkeeper/internal/paths"
	"github.com/mesh-intelligence/recordkeeper/internal/schema"
)

// exitUserError is the process status when a command fails.
const exitUserError = 1

// app holds flag values and the state built in PersistentPreRunE.
type app struct {
	configDir string
	dataDir   string
	backend   string
	logLevel  string

	settings settings
	log      *zap.Logger
}

// NewRootCmd creates the top-level "keeper" command with global flags,
// one subcommand per built-in system, and the utility commands.
func NewRootCmd() *cobra.Command {
	a := &app{log: zap.NewNop()}
	root := &cobra.Command{
		Use:   "keeper",
		Short: "Menu-driven record keeping for small institutions",
		Long: "keeper runs the interactive record-keeping menus for a college, hospital,\n" +
			"hotel, library or school, storing each system's records as one document.",
		Version:           Version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { _ = a.log.Sync() },
	}

	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory (default: working directory)")
	root.PersistentFlags().StringVar(&a.backend, "backend", "", "storage backend: json, sqlite, postgres, s3")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newSchemasCmd())
	root.AddCommand(newShowCmd(a))
	for _, name := range schema.Names() {
		root.AddCommand(newSystemCmd(a, name))
	}
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(exitUserError)
	}
}

// setup loads configuration, applies flag overrides and builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	configDir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return err
	}
	a.configDir = configDir

	v, err := loadConfig(configDir)
	if err != nil {
		return err
	}
	if err := v.BindPFlag(cfgKeyBackend, cmd.Flags().Lookup("backend")); err != nil {
		return err
	}
	if err := v.BindPFlag(cfgKeyLogLevel, cmd.Flags().Lookup("log-level")); err != nil {
		return err
	}
	s, err := decodeSettings(v, a.dataDir)
	if err != nil {
		return fmt.Errorf("config %s: %w", configDir, err)
	}
	a.settings = s

	log, err := newLogger(s.Log.Level, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.log = log
	a.log.Debug("configuration loaded",
		zap.String("config_dir", configDir),
		zap.String("backend", s.Backend),
		zap.String("data_dir", s.DataDir))
	return nil
}
