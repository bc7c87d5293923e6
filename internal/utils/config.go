package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Riboost-Studio/chalan/internal/model"
)

const configFileName = "chalan.toml"

// ConfigSearchPaths lists where LoadConfig looks when no file is given:
// the working directory first, then the user config directory.
func ConfigSearchPaths() []string {
	paths := []string{filepath.Join(".", configFileName)}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "chalan", configFileName))
	}
	return paths
}

// LoadConfig reads the engine configuration. The file named by
// model.ContextConfigFile wins; a missing explicit file is created with the
// defaults. Without an explicit file the search paths are tried and the
// defaults are used when none exists. Environment overrides apply last.
func LoadConfig(ctx context.Context) (model.Config, string, error) {
	config := model.DefaultConfig()

	configFile, _ := ctx.Value(model.ContextConfigFile).(string)
	if configFile != "" {
		if _, err := os.Stat(configFile); errors.Is(err, os.ErrNotExist) {
			if err := WriteDefaultConfig(configFile, config); err != nil {
				return config, "", err
			}
			ApplyEnvOverrides(&config)
			return config, configFile, nil
		}
		if err := decodeConfig(configFile, &config); err != nil {
			return config, "", err
		}
		ApplyEnvOverrides(&config)
		return config, configFile, nil
	}

	used := ""
	for _, path := range ConfigSearchPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := decodeConfig(path, &config); err != nil {
			return config, "", err
		}
		used = path
		break
	}
	ApplyEnvOverrides(&config)
	return config, used, nil
}

func decodeConfig(path string, config *model.Config) error {
	md, err := toml.DecodeFile(path, config)
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// WriteDefaultConfig writes config as TOML, creating the directory.
func WriteDefaultConfig(path string, config model.Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(config); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func ApplyEnvOverrides(config *model.Config) {
	if val := os.Getenv("CHALAN_AGENT_URL"); val != "" {
		config.Agent.URL = val
	}
	if val := os.Getenv("CHALAN_DB_PATH"); val != "" {
		config.Storage.Path = val
	}
	if val := os.Getenv("CHALAN_LOG_LEVEL"); val != "" {
		config.Logging.Level = val
	}
	if val := os.Getenv("CHALAN_BROWSER_MODE"); val != "" {
		config.Browser.Mode = val
	}
}

// NewLogger builds a console logger at the given level ("debug", "info",
// "warn", "error").
func NewLogger(level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg.Build()
}
