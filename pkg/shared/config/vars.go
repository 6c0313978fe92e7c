package config

import (
	"time"
)

// Config is the root of the application configuration loaded from YAML.
type Config struct {
	Logger    Logger         `yaml:"logger"`
	EventSink EventSink      `yaml:"event_sink"`
	Matcher   Matcher        `yaml:"matcher"`
	Limits    SecurityLimits `yaml:"limits"`
}

type Logger struct {
	Level string `yaml:"level"`
}

// EventSink configures delivery of structured security events.
// The webhook is optional; events always go to the logger.
type EventSink struct {
	WebhookURL       string        `yaml:"webhook_url"`
	QueueSize        int           `yaml:"queue_size"`
	Debug            bool          `yaml:"debug"`
	RetryCount       int           `yaml:"retry_count"`
	RetryWaitTime    time.Duration `yaml:"retry_wait_time"`
	RetryMaxWaitTime time.Duration `yaml:"retry_max_wait_time"`
	Timeout          time.Duration `yaml:"timeout"`
}

// Matcher configures the isolated regex-match worker.
type Matcher struct {
	WorkerPath     string        `yaml:"worker_path"`
	EnableRegex    bool          `yaml:"enable_regex"`
	WorkerCooldown time.Duration `yaml:"worker_cooldown"`
}
