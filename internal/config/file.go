package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the optional YAML overlay named by CONFIG_FILE. Environment
// variables still win over anything set here.
type fileConfig struct {
	RailFeedURL    string   `yaml:"railFeedURL"`
	BusFeedURL     string   `yaml:"busFeedURL"`
	FetchTimeout   string   `yaml:"fetchTimeout"`
	PollInterval   string   `yaml:"pollInterval"`
	Timezone       string   `yaml:"timezone"`
	AllowedOrigins []string `yaml:"allowedOrigins"`

	fetchTimeout optionalDuration
	pollInterval optionalDuration
}

type optionalDuration struct {
	d   time.Duration
	set bool
}

func (o optionalDuration) or(defaultVal time.Duration) time.Duration {
	if o.set {
		return o.d
	}
	return defaultVal
}

func loadFile(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if fc.fetchTimeout, err = parseOptionalDuration(fc.FetchTimeout); err != nil {
		return fc, fmt.Errorf("config file %s: fetchTimeout: %w", path, err)
	}
	if fc.pollInterval, err = parseOptionalDuration(fc.PollInterval); err != nil {
		return fc, fmt.Errorf("config file %s: pollInterval: %w", path, err)
	}
	return fc, nil
}

func parseOptionalDuration(s string) (optionalDuration, error) {
	if s == "" {
		return optionalDuration{}, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return optionalDuration{}, err
	}
	return optionalDuration{d: d, set: true}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmptyList(lists ...[]string) []string {
	for _, l := range lists {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}
