package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds the resolved application configuration.
type Config struct {
	// BaseDir is the directory whose immediate children are scanned for
	// git repositories.
	BaseDir string `mapstructure:"base_dir"`
	// LazygitCommand is the binary launched on selection.
	LazygitCommand string `mapstructure:"lazygit_command"`
	// ProbeTimeout bounds each git invocation during a refresh.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	// Debounce is the quiescence window for filesystem change bursts.
	Debounce time.Duration `mapstructure:"debounce"`
	// MaxConcurrent caps simultaneous probe bundles.
	MaxConcurrent int `mapstructure:"max_concurrent"`
	// LogLevel sets the debug log verbosity: "debug", "info", "warn".
	LogLevel string `mapstructure:"log_level"`
}

// Load reads configuration from ~/.config/lzm/config.yaml (or TOML/JSON).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(configDirectory())
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("LZM")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is fine — use defaults.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	v.SetDefault("base_dir", filepath.Join(home, "src"))
	v.SetDefault("lazygit_command", "lazygit")
	v.SetDefault("probe_timeout", "2s")
	v.SetDefault("debounce", "1s")
	v.SetDefault("max_concurrent", 8)
	v.SetDefault("log_level", "info")
}

func configDirectory() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "lzm")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "lzm")
}
