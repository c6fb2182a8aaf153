package commands

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/SpaceTrucker2196/fieldhand/internal/store/postgres"
)

type Globals struct {
	Debug   bool
	Version string
}

// Config is the YAML file the operator commands read their store settings
// from.
type Config struct {
	Postgres postgres.StoreConfig `yaml:"postgres"`
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}
