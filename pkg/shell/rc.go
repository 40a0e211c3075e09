package shell

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the rc-file configuration of the shell.
type Config struct {
	// Prompt is printed before reading each interactive line.
	Prompt string `yaml:"prompt"`
	// KeepEmptySegments controls whether ${split} keeps empty segments.
	KeepEmptySegments bool `yaml:"keep-empty-segments"`
	// HistoryDB is the path of the command-history database. The -db flag
	// overrides it.
	HistoryDB string `yaml:"history-db"`
}

func defaultConfig() Config {
	return Config{Prompt: "marsh> "}
}

// LoadConfig reads the YAML rc file at the given path. A missing file is
// not an error and yields the default configuration; a malformed file
// yields the default configuration and an error.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return defaultConfig(), fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Prompt == "" {
		cfg.Prompt = defaultConfig().Prompt
	}
	return cfg, nil
}
