package model

import (
	"fmt"
	"time"
)

// --- Engine Configuration (TOML) ---

type Config struct {
	Agent    AgentConfig    `toml:"agent"`
	Printing PrintingConfig `toml:"printing"`
	Browser  BrowserConfig  `toml:"browser"`
	Storage  StorageConfig  `toml:"storage"`
	Logging  LoggingConfig  `toml:"logging"`
}

type AgentConfig struct {
	URL              string   `toml:"url"`
	CertificateFile  string   `toml:"certificate_file"`
	PrivateKeyFile   string   `toml:"private_key_file"`
	HandshakeTimeout Duration `toml:"handshake_timeout"`
}

type PrintingConfig struct {
	HardwareTimeout  Duration `toml:"hardware_timeout"`
	SendTimeout      Duration `toml:"send_timeout"`
	ComandaStagger   Duration `toml:"comanda_stagger"`
	CopyDelay        Duration `toml:"copy_delay"`
	MaxComandaCopies int      `toml:"max_comanda_copies"`
}

type BrowserConfig struct {
	Mode       string `toml:"mode"` // "chrome" or "file"
	OutputDir  string `toml:"output_dir"`
	ChromePath string `toml:"chrome_path"`
}

type StorageConfig struct {
	Driver string `toml:"driver"` // "sqlite" or "json"
	Path   string `toml:"path"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

// Duration decodes TOML strings like "3s" or "750ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func DefaultConfig() Config {
	return Config{
		Agent: AgentConfig{
			URL:              "ws://localhost:8182",
			HandshakeTimeout: Duration{10 * time.Second},
		},
		Printing: PrintingConfig{
			HardwareTimeout:  Duration{3 * time.Second},
			SendTimeout:      Duration{5 * time.Second},
			ComandaStagger:   Duration{700 * time.Millisecond},
			CopyDelay:        Duration{250 * time.Millisecond},
			MaxComandaCopies: 5,
		},
		Browser: BrowserConfig{
			Mode:      "chrome",
			OutputDir: "tmp",
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   "config/printing.db",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
