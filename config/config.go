// File: config/config.go
// Package config holds client configuration, loadable from TOML.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-amqp/protocol"
)

// Config is the client configuration.
type Config struct {
	// URL is the broker endpoint, amqp://[user[:pass]@]host[:port][/vhost].
	URL string `toml:"url"`

	// FrameMax is the initial frame size ceiling before broker tuning.
	FrameMax uint32 `toml:"frame_max"`

	// LogLevel is a zerolog level name; "disabled" silences the client.
	LogLevel string `toml:"log_level"`

	// LogConsole switches the logger to human-readable console output.
	LogConsole bool `toml:"log_console"`

	// ConnectTimeoutSeconds bounds the wait for the open handshake.
	// Zero means wait indefinitely.
	ConnectTimeoutSeconds int `toml:"connect_timeout_seconds"`
}

// ConnectTimeout returns the handshake deadline as a duration.
func (c Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// Default returns the configuration mirroring the protocol defaults.
func Default() Config {
	return Config{
		URL:                   "amqp:///",
		FrameMax:              protocol.DefaultFrameMax,
		LogLevel:              "disabled",
		ConnectTimeoutSeconds: 30,
	}
}

// Load reads a TOML file over the defaults. Keys absent from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load client config: %w", err)
	}
	for _, key := range meta.Undecoded() {
		return Config{}, fmt.Errorf("load client config: unknown key %q", key)
	}
	if cfg.URL == "" {
		cfg.URL = Default().URL
	}
	return cfg, nil
}

// NewLogger builds the connection logger from the configuration.
func (c Config) NewLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.Disabled
	}
	if level == zerolog.Disabled {
		return zerolog.Nop()
	}
	var logger zerolog.Logger
	if c.LogConsole {
		out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		logger = zerolog.New(out)
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Str("component", "amqp").Logger()
}
