package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/recordkeeper/internal/paths"
	"github.com/mesh-intelligence/recordkeeper/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	envPrefix = "KEEPER"

	cfgKeyBackend  = "backend"
	cfgKeyDataDir  = "data_dir"
	cfgKeyLogLevel = "log.level"

	defaultLogLevel = "warn"
)

// envKeys are read from KEEPER_* variables. data_dir is absent: its
// environment override is handled by paths.ResolveDataDir, which ranks it
// below the config file.
var envKeys = []string{
	cfgKeyBackend,
	cfgKeyLogLevel,
	"postgres.dsn",
	"s3.bucket",
	"s3.region",
	"s3.endpoint",
	"s3.prefix",
	"s3.path_style",
	"metrics.addr",
	"otel.endpoint",
}

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# keeper configuration

# Storage backend: json, sqlite, postgres or s3
backend: json

# Directory for json documents and the sqlite database
# (optional; overridable by --data-dir flag)
# data_dir:

# postgres:
#   dsn: postgres://localhost/recordkeeper?sslmode=disable

# s3:
#   bucket:
#   region: us-east-1
#   endpoint:
#   prefix:
#   path_style: false

log:
  level: warn

# Serve Prometheus metrics while a system is running, e.g. 127.0.0.1:9464
# metrics:
#   addr:

# Export traces over OTLP/HTTP
# otel:
#   endpoint:
`

// settings is the decoded configuration.
type settings struct {
	types.Config `mapstructure:",squash"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	Metrics struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"metrics"`

	Otel struct {
		Endpoint string `mapstructure:"endpoint"`
	} `mapstructure:"otel"`
}

// loadConfig reads config.yaml from configDir using Viper, creating the
// directory and a default file on first run. Environment variables override
// file values.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendJSON)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// decodeSettings unmarshals v and resolves the data directory.
func decodeSettings(v *viper.Viper, dataDirFlag string) (settings, error) {
	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("decode config: %w", err)
	}
	dir, err := paths.ResolveDataDir(dataDirFlag, v.GetString(cfgKeyDataDir))
	if err != nil {
		return s, fmt.Errorf("resolve data dir: %w", err)
	}
	s.DataDir = dir
	if err := s.Config.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// ensureDefaultConfigFile writes defaultConfigYAML if config.yaml does not
// exist yet.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, paths.ConfigFileName)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
