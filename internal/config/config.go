// Package config loads texmap settings from texmap.yaml and TEXMAP_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the texmap configuration
type Config struct {
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Scene     SceneConfig     `mapstructure:"scene"`
	Aux       AuxConfig       `mapstructure:"aux"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Log       LogConfig       `mapstructure:"log"`
}

// WorkspaceConfig is the project root relative texture paths resolve
// against, and the variables available to paths.
type WorkspaceConfig struct {
	Root string            `mapstructure:"root"`
	Vars map[string]string `mapstructure:"vars"`
}

// SceneConfig names the default scene source: a scene file, a scene
// database, or both (the file is imported into the database).
type SceneConfig struct {
	File string `mapstructure:"file"`
	DB   string `mapstructure:"db"`
}

// AuxConfig selects the optimized companions reported with textures.
type AuxConfig struct {
	TX  bool `mapstructure:"tx"`
	TEX bool `mapstructure:"tex"`
}

// JournalConfig locates the relocation journal.
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

var logLevels = []string{"debug", "info", "warn", "error"}

// Load reads the configuration. An explicit path must exist; otherwise
// texmap.yaml is searched in the working directory and $HOME/.texmap, and
// defaults apply when none is found.
func Load(path string) (*Config, error) {
	v := viper.New()

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("working directory: %w", err)
	}
	v.SetDefault("workspace.root", cwd)
	v.SetDefault("workspace.vars", map[string]string{})
	v.SetDefault("scene.file", "")
	v.SetDefault("scene.db", "")
	v.SetDefault("aux.tx", true)
	v.SetDefault("aux.tex", true)
	v.SetDefault("journal.path", filepath.Join(".texmap", "journal.db"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("texmap")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".texmap"))
		}
	}

	v.SetEnvPrefix("TEXMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	level := strings.ToLower(cfg.Log.Level)
	valid := false
	for _, l := range logLevels {
		if level == l {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("log.level must be one of %s, got: %s", strings.Join(logLevels, ", "), cfg.Log.Level)
	}
	cfg.Log.Level = level

	if cfg.Journal.Path == "" {
		return fmt.Errorf("journal.path must not be empty")
	}
	if cfg.Workspace.Root != "" && !filepath.IsAbs(cfg.Workspace.Root) {
		abs, err := filepath.Abs(cfg.Workspace.Root)
		if err != nil {
			return fmt.Errorf("workspace.root: %w", err)
		}
		cfg.Workspace.Root = abs
	}
	return nil
}
