// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Settings for hosting a transport, layered from defaults, EMULINK_*
// environment variables and an optional config file.

package control

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/momentics/emulink/api"
	"github.com/spf13/viper"
)

// Settings is the host-level configuration.
type Settings struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Strategy string `mapstructure:"strategy"`

	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
	LogFile     string `mapstructure:"log_file"`
	MetricsAddr string `mapstructure:"metrics_addr"`

	// Tick is the interval of demo notifications; zero disables them.
	Tick time.Duration `mapstructure:"tick"`
}

// Defaults contains default values for Settings.
var Defaults = Settings{
	Host:        "127.0.0.1",
	Port:        api.SensorsPort,
	Strategy:    api.StrategyAsync.String(),
	LogLevel:    "info",
	LogFormat:   "text",
	LogFile:     "",
	MetricsAddr: "",
	Tick:        0,
}

// SetDefaults registers Defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("host", Defaults.Host)
	v.SetDefault("port", Defaults.Port)
	v.SetDefault("strategy", Defaults.Strategy)
	v.SetDefault("log_level", Defaults.LogLevel)
	v.SetDefault("log_format", Defaults.LogFormat)
	v.SetDefault("log_file", Defaults.LogFile)
	v.SetDefault("metrics_addr", Defaults.MetricsAddr)
	v.SetDefault("tick", Defaults.Tick)
}

// LoadSettings resolves Settings from v. When file is empty, a config.* file
// in the working directory or /etc/emulink is used if present.
func LoadSettings(v *viper.Viper, file string) (Settings, error) {
	SetDefaults(v)

	v.SetEnvPrefix("EMULINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/emulink")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || file != "" {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks value ranges.
func (s Settings) Validate() error {
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("port %d out of range", s.Port)
	}
	if _, err := api.ParseStrategy(s.Strategy); err != nil {
		return err
	}
	if s.Tick < 0 {
		return fmt.Errorf("negative tick %s", s.Tick)
	}
	return nil
}

// ChannelStrategy returns the parsed strategy. Call Validate first.
func (s Settings) ChannelStrategy() api.Strategy {
	st, _ := api.ParseStrategy(s.Strategy)
	return st
}
