package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/recordkeeper/internal/paths"
	"github.com/mesh-intelligence/recordkeeper/internal/schema"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init [system...]",
		Short: "Initialize configuration and empty documents",
		Long: "Create the configuration directory and config.yaml, record any --backend or\n" +
			"--data-dir given on the command line, then create an empty document for\n" +
			"each named system (all systems when none are named).",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(cmd, args)
		},
	}
}

func (a *app) runInit(cmd *cobra.Command, args []string) error {
	overrides := map[string]any{}
	if cmd.Flags().Changed("backend") {
		overrides[cfgKeyBackend] = a.settings.Backend
	}
	if cmd.Flags().Changed("data-dir") {
		overrides[cfgKeyDataDir] = a.settings.DataDir
	}
	configPath := filepath.Join(a.configDir, paths.ConfigFileName)
	if err := updateConfigFile(configPath, overrides); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	names := args
	if len(names) == 0 {
		names = schema.Names()
	}
	for _, name := range names {
		sch, err := schema.Load(name)
		if err != nil {
			return err
		}
		s, err := a.openStore(cmd.Context(), sch)
		if err != nil {
			return fmt.Errorf("initialize %s: %w", name, err)
		}
		if err := s.Close(); err != nil {
			return fmt.Errorf("finalize %s: %w", name, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s (%s backend)\n", name, a.settings.Backend)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Configuration: %s\n", configPath)
	return nil
}

// updateConfigFile sets top-level keys in config.yaml. With no overrides
// the file is left untouched.
func updateConfigFile(path string, overrides map[string]any) error {
	if len(overrides) == 0 {
		return nil
	}
	doc := map[string]any{}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	for k, v := range overrides {
		doc[k] = v
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}
