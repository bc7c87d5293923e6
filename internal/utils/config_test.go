package utils

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Riboost-Studio/chalan/internal/model"
)

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chalan.toml")
	content := `
[agent]
url = "ws://127.0.0.1:9000"
handshake_timeout = "2s"

[printing]
hardware_timeout = "1500ms"
send_timeout = "4s"
max_comanda_copies = 3

[storage]
driver = "json"
path = "printers.json"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	ctx := context.WithValue(context.Background(), model.ContextConfigFile, path)
	cfg, used, err := LoadConfig(ctx)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if used != path {
		t.Errorf("used = %q, want %q", used, path)
	}
	if cfg.Agent.URL != "ws://127.0.0.1:9000" {
		t.Errorf("agent url = %q", cfg.Agent.URL)
	}
	if cfg.Agent.HandshakeTimeout.Duration != 2*time.Second {
		t.Errorf("handshake timeout = %s", cfg.Agent.HandshakeTimeout)
	}
	if cfg.Printing.HardwareTimeout.Duration != 1500*time.Millisecond {
		t.Errorf("hardware timeout = %s", cfg.Printing.HardwareTimeout)
	}
	if cfg.Printing.SendTimeout.Duration != 4*time.Second {
		t.Errorf("send timeout = %s", cfg.Printing.SendTimeout)
	}
	if cfg.Printing.MaxComandaCopies != 3 {
		t.Errorf("max copies = %d", cfg.Printing.MaxComandaCopies)
	}
	// untouched keys keep their defaults
	if cfg.Printing.ComandaStagger.Duration != 700*time.Millisecond {
		t.Errorf("comanda stagger = %s", cfg.Printing.ComandaStagger)
	}
	if cfg.Storage.Driver != "json" {
		t.Errorf("storage driver = %q", cfg.Storage.Driver)
	}
}

func TestLoadConfig_WritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "chalan.toml")
	ctx := context.WithValue(context.Background(), model.ContextConfigFile, path)

	cfg, _, err := LoadConfig(ctx)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Printing.HardwareTimeout.Duration != 3*time.Second {
		t.Errorf("default hardware timeout = %s", cfg.Printing.HardwareTimeout)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}

	again, _, err := LoadConfig(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again != cfg {
		t.Errorf("reloaded config differs:\n%+v\n%+v", again, cfg)
	}
}

func TestLoadConfig_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chalan.toml")
	if err := os.WriteFile(path, []byte("[printing]\nhardware_timout = \"1s\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	ctx := context.WithValue(context.Background(), model.ContextConfigFile, path)
	if _, _, err := LoadConfig(ctx); err == nil {
		t.Fatal("expected error for misspelled key")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("CHALAN_AGENT_URL", "wss://agent.local:8181")
	t.Setenv("CHALAN_DB_PATH", "/var/lib/chalan/printing.db")
	t.Setenv("CHALAN_LOG_LEVEL", "debug")
	t.Setenv("CHALAN_BROWSER_MODE", "file")

	path := filepath.Join(t.TempDir(), "chalan.toml")
	ctx := context.WithValue(context.Background(), model.ContextConfigFile, path)
	cfg, _, err := LoadConfig(ctx)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Agent.URL != "wss://agent.local:8181" || cfg.Storage.Path != "/var/lib/chalan/printing.db" ||
		cfg.Logging.Level != "debug" || cfg.Browser.Mode != "file" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "error"} {
		if _, err := NewLogger(level); err != nil {
			t.Errorf("NewLogger(%q): %v", level, err)
		}
	}
	if _, err := NewLogger("loud"); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestFindChrome_Configured(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "chrome")
	if err := os.WriteFile(bin, []byte{}, 0755); err != nil {
		t.Fatal(err)
	}
	if ok, path := FindChrome(bin); !ok || path != bin {
		t.Errorf("FindChrome(%q) = %v, %q", bin, ok, path)
	}
	if ok, _ := FindChrome(filepath.Join(t.TempDir(), "missing")); ok {
		t.Error("missing configured binary must not be found")
	}
}

func TestAgentAddress(t *testing.T) {
	tests := []struct {
		url, want string
		wantErr   bool
	}{
		{"ws://localhost:8182", "localhost:8182", false},
		{"wss://agent.local", "agent.local:443", false},
		{"ws://127.0.0.1", "127.0.0.1:80", false},
		{"ws://", "", true},
	}
	for _, tt := range tests {
		got, err := AgentAddress(tt.url)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("AgentAddress(%q) = %q, %v", tt.url, got, err)
		}
	}
}

func TestReportAgent(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	var buf bytes.Buffer
	if !ReportAgent(&buf, "ws://"+ln.Addr().String()) {
		t.Errorf("listening agent not detected: %s", buf.String())
	}
	addr := ln.Addr().String()
	ln.Close()
	if ReportAgent(&buf, "ws://"+addr) {
		t.Error("closed port reported as listening")
	}
}
