package config

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"
)

// ValidateConfigPath checks that the given path exists and is a regular file.
func ValidateConfigPath(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}
	if s.IsDir() {
		return fmt.Errorf("'%s' is a directory, not a file", path)
	}
	return nil
}

// LoadYAML decodes the YAML file at configPath into data.
func LoadYAML(configPath string, data interface{}) error {
	if err := ValidateConfigPath(configPath); err != nil {
		return err
	}

	file, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	if err := d.Decode(data); err != nil {
		return err
	}

	return nil
}

// LoadConfig reads the configuration file and fills unset limit fields
// with the defaults. A missing file is not an error: the defaults apply.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := LoadYAML(configPath, &config); err != nil {
				return nil, err
			}
		}
	}

	config.Limits = config.Limits.WithDefaults()
	applyEventSinkDefaults(&config.EventSink)
	applyMatcherDefaults(&config.Matcher)

	return config, nil
}

// ValidateConfig checks that the loaded configuration has valid values.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("YAML global config: configuration object is nil")
	}
	if err := ValidateLimits(&cfg.Limits); err != nil {
		return fmt.Errorf("YAML global config: limits directive is invalid: %w", err)
	}
	return nil
}

func applyEventSinkDefaults(sink *EventSink) {
	def := DefaultEventSink()
	if sink.QueueSize <= 0 {
		sink.QueueSize = def.QueueSize
	}
	if sink.RetryCount <= 0 {
		sink.RetryCount = def.RetryCount
	}
	if sink.RetryWaitTime <= 0 {
		sink.RetryWaitTime = def.RetryWaitTime
	}
	if sink.RetryMaxWaitTime <= 0 {
		sink.RetryMaxWaitTime = def.RetryMaxWaitTime
	}
	if sink.Timeout <= 0 {
		sink.Timeout = def.Timeout
	}
}

func applyMatcherDefaults(m *Matcher) {
	if m.WorkerCooldown <= 0 {
		m.WorkerCooldown = DefaultWorkerCooldown
	}
}
