package config

import (
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/loomworks/loom/errors"
)

// Load reads Loom configuration. Precedence: defaults, then an optional
// loom.toml in the working directory, then LOOM_* environment variables.
// An explicit configPath, when non-empty, replaces the directory search.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	v.SetEnvPrefix("LOOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Sensitive values never live in config files by default
	v.BindEnv("openrouter.api_key", "LOOM_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
		}
	} else {
		v.SetConfigName("loom")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// Missing config file is fine; defaults plus env vars apply
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "failed to read config file")
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	return &config, nil
}

// LoadWithViper loads configuration using a provided Viper instance,
// useful for tests that need to override specific values.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// DatasetsDir returns the directory holding dataset files.
func (c *Config) DatasetsDir() string {
	return filepath.Join(c.Storage.Root, "datasets")
}

// ResultsDir returns the directory holding saved job results.
func (c *Config) ResultsDir() string {
	return filepath.Join(c.Storage.Root, "results")
}
