package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds CLI defaults loadable from a YAML file. Flags override
// config values.
type Config struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	OllamaURL string `yaml:"ollama_url"`
	DB        string `yaml:"db"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

// loadConfig reads a YAML config file. A missing file is only an error
// when the path was given explicitly.
func loadConfig(path string, explicit bool) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}
