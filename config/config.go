package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	LabelStream LabelStreamConfig `yaml:"labelstream"`
}

// LabelStreamConfig is the project configuration.
type LabelStreamConfig struct {
	Input   InputConfig   `yaml:"input"`
	Stream  StreamConfig  `yaml:"stream"`
	Rules   RulesConfig   `yaml:"rules"`
	Output  OutputConfig  `yaml:"output"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// InputConfig selects and configures the source connector.
type InputConfig struct {
	Mode  string      `yaml:"mode"` // redis|http
	Redis RedisConfig `yaml:"redis"`
	HTTP  HTTPConfig  `yaml:"http"`
}

// RedisConfig controls the Redis connector.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	EventsKey    string        `yaml:"events_key"`
	LabelsKey    string        `yaml:"labels_key"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// HTTPConfig controls the HTTP stream connector.
type HTTPConfig struct {
	StreamURL   string        `yaml:"stream_url"`
	LookupURL   string        `yaml:"lookup_url"`
	RulesURL    string        `yaml:"rules_url"`
	BearerToken string        `yaml:"bearer_token"`
	Timeout     time.Duration `yaml:"timeout"`
	Rules       []StreamRule  `yaml:"rules"`
}

// StreamRule is one server-side filter rule installed at connect time.
type StreamRule struct {
	Value string `yaml:"value"`
	Tag   string `yaml:"tag"`
}

// StreamConfig controls the delayed-feedback scheduling engine.
type StreamConfig struct {
	MomentField  string `yaml:"moment_field"`
	DelayField   string `yaml:"delay_field"`
	Delay        string `yaml:"delay"` // fixed delay: Go duration or plain number
	KeyField     string `yaml:"key_field"`
	MinBatchSize int    `yaml:"min_batch_size"`
	MaxBatchSize int    `yaml:"max_batch_size"`
	CopyOnEmit   bool   `yaml:"copy_on_emit"`
	FlushOnExit  bool   `yaml:"flush_on_exit"`
}

// RulesConfig controls the client-side Sigma filter.
type RulesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// OutputConfig controls where triples go.
type OutputConfig struct {
	Mode string           `yaml:"mode"` // file|stdout
	File FileOutputConfig `yaml:"file"`
}

// FileOutputConfig config for local JSONL output.
type FileOutputConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
