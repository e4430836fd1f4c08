package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Required configuration with no sensible fallback.
var (
	ErrProjectUnset = errors.New("PROJECT_ID is not set")
	ErrRegionUnset  = errors.New("REGION is not set")
)

// TriggerDefinition maps a trigger name to the Cloud Run job it starts and
// the environment variable the message payload is injected under.
type TriggerDefinition struct {
	Name         string `yaml:"name"`
	Job          string `yaml:"job"`
	EnvKey       string `yaml:"env_key"`
	Subscription string `yaml:"subscription"`
}

type TriggersConfig struct {
	Triggers []TriggerDefinition `yaml:"triggers"`
}

type Config struct {
	Port         string
	TriggersFile string
	Mode         string
	LogLevel     string
	ProjectID    string
	Region       string
	// RunEndpoint overrides the Cloud Run API endpoint, e.g. to point at a
	// local jobs emulator. Dialed without TLS or credentials when set.
	RunEndpoint string
	Triggers    *TriggersConfig
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		TriggersFile: getEnv("TRIGGERS_CONFIG", "./triggers.yaml"),
		Mode:         getEnv("MODE", "push"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		ProjectID:    os.Getenv("PROJECT_ID"),
		Region:       os.Getenv("REGION"),
		RunEndpoint:  os.Getenv("CLOUD_RUN_ENDPOINT"),
	}

	if cfg.ProjectID == "" {
		return nil, ErrProjectUnset
	}
	if cfg.Region == "" {
		return nil, ErrRegionUnset
	}

	triggers, err := loadTriggersConfig(cfg.TriggersFile)
	if err != nil {
		return nil, fmt.Errorf("loading triggers config: %w", err)
	}
	cfg.Triggers = triggers

	return cfg, nil
}

func loadTriggersConfig(path string) (*TriggersConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file is fine - the built-in trigger table applies
			return DefaultTriggers(), nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg TriggersConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	for i, td := range cfg.Triggers {
		if td.Name == "" || td.Job == "" || td.EnvKey == "" {
			return nil, fmt.Errorf("%s: trigger %d needs name, job and env_key", path, i)
		}
	}

	return &cfg, nil
}

// DefaultTriggers is the trigger table used when no triggers file exists:
// the scan and report triggers this service originally shipped with.
func DefaultTriggers() *TriggersConfig {
	return &TriggersConfig{
		Triggers: []TriggerDefinition{
			{Name: "scan", Job: "scanner-worker", EnvKey: "JOB_DATA"},
			{Name: "report", Job: "report-generator", EnvKey: "REPORT_REQUEST"},
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
