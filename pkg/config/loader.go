package config

import (
	"bytes"
	"os"
	"regexp"
	"strings"

	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides: CLMN_COMPRESSION_LEVEL sets
// compression.level.
const EnvPrefix = "CLMN"

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads a YAML configuration file on top of Default. ${VAR} references
// are replaced by environment values before parsing, and CLMN_* variables
// override file values. An empty path loads defaults plus environment.
func Load(path string) (*Config, error) {
	var content []byte
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // G304: path is chosen by the operator
		if err != nil {
			return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeConfig, "failed to read config file").
				WithDetail("path", path)
		}
		content = []byte(substituteEnvVars(string(data)))
	}

	cfg, err := parse(content)
	if err != nil {
		if path != "" {
			err = err.WithDetail("path", path)
		}
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse(content []byte) (*Config, *clmnerrors.Error) {
	v := newViper(Default())
	if len(content) > 0 {
		if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
			return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeConfig, "failed to parse YAML")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeConfig, "failed to decode configuration")
	}

	// viper folds map keys to lower case; column names are case sensitive.
	var raw struct {
		Types map[string]string `yaml:"types"`
	}
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeConfig, "failed to parse types")
	}
	cfg.Types = raw.Types
	if cfg.Types == nil {
		cfg.Types = map[string]string{}
	}
	return cfg, nil
}

func newViper(defaults *Config) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("compression.level", defaults.Compression.Level)
	v.SetDefault("compression.chunk_size", defaults.Compression.ChunkSize)
	v.SetDefault("performance.workers", defaults.Performance.Workers)
	v.SetDefault("performance.mmap", defaults.Performance.Mmap)
	v.SetDefault("csv.delimiter", defaults.CSV.Delimiter)
	v.SetDefault("csv.trim_space", defaults.CSV.TrimSpace)
	v.SetDefault("csv.stream_compression", defaults.CSV.StreamCompression)
	v.SetDefault("csv.stream_level", defaults.CSV.StreamLevel)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.encoding", defaults.Logging.Encoding)
	v.SetDefault("logging.development", defaults.Logging.Development)
	v.SetDefault("observability.enable_metrics", defaults.Observability.EnableMetrics)
	v.SetDefault("observability.enable_tracing", defaults.Observability.EnableTracing)
	v.SetDefault("observability.tracing_sample_rate", defaults.Observability.TracingSampleRate)
	return v
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return clmnerrors.Wrap(err, clmnerrors.ErrorTypeConfig, "failed to marshal YAML")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec
		return clmnerrors.Wrap(err, clmnerrors.ErrorTypeFile, "failed to write config file").
			WithDetail("path", path)
	}
	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
// Unset variables become empty strings.
func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(m string) string {
		return os.Getenv(m[2 : len(m)-1])
	})
}
