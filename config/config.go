package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/feaslabs/feasly/core/orchestrator"
	"github.com/feaslabs/feasly/gateway"
	"github.com/feaslabs/feasly/infra/metrics"
	"github.com/feaslabs/feasly/infra/mqtt"
)

// Config aggregates every service setting.
type Config struct {
	Server       ServerConfig        `json:"server"`
	Orchestrator orchestrator.Config `json:"orchestrator"`
	Gateway      gateway.Config      `json:"gateway"`
	Scoring      ScoringConfig       `json:"scoring"`
	Transport    TransportConfig     `json:"transport"`
	Metrics      MetricsConfig       `json:"metrics"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Orchestrator.SetDefaults()
	c.Gateway.SetDefaults()
	c.Scoring.SetDefaults()
	c.Transport.SetDefaults()
	c.Metrics.SetDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Scoring.Validate(); err != nil {
		return err
	}
	return c.Transport.Validate()
}

// Load reads the configuration file at path and applies environment
// overrides of the form K_section__key.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ServerConfig holds the HTTP front-door settings.
type ServerConfig struct {
	Addr         string `json:"addr"`
	MaxBodyBytes int64  `json:"max_body_bytes"`
	AllowOrigins string `json:"allow_origins"`
}

// SetDefaults applies sane defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":5010"
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 65536
	}
	if c.AllowOrigins == "" {
		c.AllowOrigins = "*"
	}
}

// ScoringConfig holds specialist and threshold settings.
type ScoringConfig struct {
	// SpecialistBudgetSeconds bounds each specialist evaluation.
	SpecialistBudgetSeconds int `json:"specialist_budget_seconds"`
	// Threshold is the overall score at or above which an idea passes.
	Threshold float64 `json:"threshold"`
	// Remote configures delegation to an external prediction service for the
	// listed dimensions; all others stay on local heuristics.
	Remote RemoteScoringConfig `json:"remote"`
}

// RemoteScoringConfig enables the external prediction path per dimension.
type RemoteScoringConfig struct {
	Enabled        bool     `json:"enabled"`
	URL            string   `json:"url"`
	TimeoutSeconds int      `json:"timeout_seconds"`
	Dimensions     []string `json:"dimensions"`
}

// SetDefaults applies the reference budget and threshold.
func (c *ScoringConfig) SetDefaults() {
	if c.SpecialistBudgetSeconds <= 0 {
		c.SpecialistBudgetSeconds = 8
	}
	if c.Threshold <= 0 {
		c.Threshold = 75
	}
	if c.Remote.TimeoutSeconds <= 0 {
		c.Remote.TimeoutSeconds = 15
	}
	if len(c.Remote.Dimensions) == 0 {
		c.Remote.Dimensions = []string{"tech", "market"}
	}
}

// Validate checks mandatory fields.
func (c ScoringConfig) Validate() error {
	if c.Threshold < 0 || c.Threshold > 100 {
		return fmt.Errorf("threshold must be within [0,100], got %v", c.Threshold)
	}
	if c.Remote.Enabled && c.Remote.URL == "" {
		return fmt.Errorf("remote scoring enabled but url is empty")
	}
	return nil
}

// TransportConfig selects the message-passing substrate.
type TransportConfig struct {
	// Mode is "inproc" or "mqtt".
	Mode string      `json:"mode"`
	MQTT mqtt.Config `json:"mqtt"`
}

// SetDefaults selects the in-process bus.
func (c *TransportConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = "inproc"
	}
}

// Validate checks the transport mode.
func (c TransportConfig) Validate() error {
	switch c.Mode {
	case "inproc", "mqtt":
		return nil
	default:
		return fmt.Errorf("unknown transport mode %s", c.Mode)
	}
}

// MetricsConfig holds observability settings.
type MetricsConfig struct {
	PrometheusEnabled bool                 `json:"prometheus_enabled"`
	PrometheusAddr    string               `json:"prometheus_addr"`
	Influx            metrics.InfluxConfig `json:"influx"`
}

// SetDefaults applies the default metrics address.
func (c *MetricsConfig) SetDefaults() {
	if c.PrometheusAddr == "" {
		c.PrometheusAddr = ":9090"
	}
}
