package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/momentics/hioload-amqp/protocol"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.URL != "amqp:///" {
		t.Errorf("URL = %q", cfg.URL)
	}
	if cfg.FrameMax != protocol.DefaultFrameMax {
		t.Errorf("FrameMax = %d", cfg.FrameMax)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
url = "amqp://a:b@broker:5673/prod"
frame_max = 65536
log_level = "debug"
log_console = true
connect_timeout_seconds = 5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.URL != "amqp://a:b@broker:5673/prod" {
		t.Errorf("URL = %q", cfg.URL)
	}
	if cfg.FrameMax != 65536 {
		t.Errorf("FrameMax = %d", cfg.FrameMax)
	}
	if cfg.LogLevel != "debug" || !cfg.LogConsole {
		t.Errorf("logging config = %q %v", cfg.LogLevel, cfg.LogConsole)
	}
	if cfg.ConnectTimeout() != 5*time.Second {
		t.Errorf("ConnectTimeout = %v", cfg.ConnectTimeout())
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeFile(t, `url = "amqp://broker/"`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.FrameMax != protocol.DefaultFrameMax {
		t.Errorf("FrameMax = %d", cfg.FrameMax)
	}
}

func TestLoadUnknownKeyRejected(t *testing.T) {
	path := writeFile(t, `frame_maximum = 1024`)
	if _, err := Load(path); err == nil {
		t.Fatal("unknown key accepted")
	}
}

func TestNewLoggerDisabledByDefault(t *testing.T) {
	logger := Default().NewLogger()
	// A disabled logger must not emit; this would panic on a nil writer
	// if the logger were misconstructed.
	logger.Info().Msg("dropped")
}
