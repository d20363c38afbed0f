// Package config loads scriptnet settings from a YAML file, SCRIPTNET_*
// environment variables and command flags, in increasing precedence.
// The transport limits are fixed constants and are not configurable here.
package config

import (
	stdErrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/reglet-dev/scriptnet/log"
)

const (
	// EnvPrefix prefixes every environment override, e.g. SCRIPTNET_LOG_LEVEL.
	EnvPrefix = "SCRIPTNET"

	// FileName is the config file searched for without an explicit path.
	FileName = "scriptnet"
)

// Config is the decoded configuration.
type Config struct {
	Log     log.Config    `mapstructure:"log"`
	Network NetworkConfig `mapstructure:"network"`
	REPL    TickConfig    `mapstructure:"repl"`
	Batch   TickConfig    `mapstructure:"batch"`
	Stub    StubConfig    `mapstructure:"stub"`
}

// NetworkConfig configures the HTTP backend.
type NetworkConfig struct {
	// SSRFProtection pins every connection to a policy-checked address.
	SSRFProtection bool `mapstructure:"ssrf_protection"`

	// AllowPrivate lets SSRF protection through to private and loopback ranges.
	AllowPrivate bool `mapstructure:"allow_private"`

	UserAgent    string   `mapstructure:"user_agent" validate:"max=256"`
	MaxRedirects int      `mapstructure:"max_redirects" validate:"gte=0,lte=50"`
	Allowlist    []string `mapstructure:"allowlist"`
	Blocklist    []string `mapstructure:"blocklist"`
}

// TickConfig is the interval of a poll loop.
type TickConfig struct {
	Tick time.Duration `mapstructure:"tick" validate:"min=1ms,max=1m"`
}

// StubConfig configures the demo server.
type StubConfig struct {
	Addr string `mapstructure:"addr" validate:"required,hostname_port"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("network.ssrf_protection", false)
	v.SetDefault("network.allow_private", false)
	v.SetDefault("network.user_agent", "")
	v.SetDefault("network.max_redirects", 10)
	v.SetDefault("network.allowlist", []string{})
	v.SetDefault("network.blocklist", []string{})

	v.SetDefault("repl.tick", "20ms")
	v.SetDefault("batch.tick", "5ms")

	v.SetDefault("stub.addr", "127.0.0.1:8089")
}

// New returns a viper instance with defaults and environment overrides
// installed. Callers bind their flags to it before Load.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file into v and decodes the result. With an empty
// path the working directory and the user config dir are searched and a
// missing file is not an error; an explicit path must exist.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, FileName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !stdErrors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return Decode(v)
}

// Decode unmarshals and validates the settings held by v.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
