package speechrouter

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RateLimit caps traffic to a single provider. Zero values mean unlimited.
type RateLimit struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	MaxConcurrent     int `yaml:"max_concurrent" json:"max_concurrent"`
}

// ProviderConfig configures a single speech-synthesis provider.
type ProviderConfig struct {
	Name               string        `yaml:"-" json:"name"`
	Enabled            bool          `yaml:"enabled" json:"enabled"`
	Priority           int           `yaml:"priority" json:"priority"`
	Auth               Auth          `yaml:"auth" json:"auth"`
	Endpoint           string        `yaml:"endpoint" json:"endpoint"`
	MaxCharsPerRequest int           `yaml:"max_chars_per_request" json:"max_chars_per_request"` // 0 = unlimited
	RateLimit          RateLimit     `yaml:"rate_limit" json:"rate_limit"`
	CostPerChar        float64       `yaml:"cost_per_char" json:"cost_per_char"`
	DefaultVoice       string        `yaml:"default_voice" json:"default_voice"`
	Languages          []string      `yaml:"languages" json:"languages"`
	Timeout            time.Duration `yaml:"timeout" json:"timeout"`
	RetryAttempts      int           `yaml:"retry_attempts" json:"retry_attempts"`
}

// BreakerConfig configures the error-rate circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the error rate in [0,1] above which a provider is
	// forced unhealthy.
	FailureThreshold float64 `yaml:"failure_threshold" json:"failure_threshold"`

	// ResetTimeout is how long an unhealthy provider sits out before probes
	// may promote it again.
	ResetTimeout time.Duration `yaml:"reset_timeout" json:"reset_timeout"`

	// HalfOpenMaxProbes is the number of consecutive successful probes needed
	// for full promotion back to healthy.
	HalfOpenMaxProbes int `yaml:"half_open_max_probes" json:"half_open_max_probes"`
}

// Policy is the global routing policy.
type Policy struct {
	DefaultProvider     string        `yaml:"default_provider" json:"default_provider"`
	FallbackOrder       []string      `yaml:"fallback_order" json:"fallback_order"`
	MonthlyBudget       float64       `yaml:"monthly_budget" json:"monthly_budget"`
	CharacterLimit      int           `yaml:"character_limit" json:"character_limit"` // 0 = unlimited
	CostOptimization    bool          `yaml:"cost_optimization" json:"cost_optimization"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval"`
	Breaker             BreakerConfig `yaml:"circuit_breaker" json:"circuit_breaker"`
}

// Config is the top-level router configuration.
type Config struct {
	Policy    Policy                    `yaml:"policy"`
	Providers map[string]ProviderConfig `yaml:"providers"`
}

// Defaults applied when fields are left zero.
const (
	defaultHealthCheckInterval = 60 * time.Second
	defaultProviderTimeout     = 30 * time.Second
	defaultResetTimeout        = 60 * time.Second
	defaultFailureThreshold    = 0.5
	defaultHalfOpenMaxProbes   = 2
)

// LoadConfig reads and parses a YAML config file. Environment variables in
// the format ${VAR} are expanded before parsing, then ENABLE_<PROVIDERNAME>
// and DEFAULT_PROVIDER overrides are applied.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("speechrouter: read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("speechrouter: parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// applyEnvOverrides applies ENABLE_<PROVIDERNAME> flags and DEFAULT_PROVIDER.
func (c *Config) applyEnvOverrides() {
	for name, pc := range c.Providers {
		key := "ENABLE_" + strings.ToUpper(name)
		if v, ok := os.LookupEnv(key); ok {
			if enabled, err := strconv.ParseBool(v); err == nil {
				pc.Enabled = enabled
				c.Providers[name] = pc
			}
		}
	}
	if v, ok := os.LookupEnv("DEFAULT_PROVIDER"); ok && v != "" {
		c.Policy.DefaultProvider = v
	}
}

// normalize fills in names and zero-value defaults.
func (c *Config) normalize() {
	for name, pc := range c.Providers {
		pc.Name = name
		if pc.Timeout <= 0 {
			pc.Timeout = defaultProviderTimeout
		}
		c.Providers[name] = pc
	}
	if c.Policy.HealthCheckInterval <= 0 {
		c.Policy.HealthCheckInterval = defaultHealthCheckInterval
	}
	if c.Policy.Breaker.FailureThreshold <= 0 {
		c.Policy.Breaker.FailureThreshold = defaultFailureThreshold
	}
	if c.Policy.Breaker.ResetTimeout <= 0 {
		c.Policy.Breaker.ResetTimeout = defaultResetTimeout
	}
	if c.Policy.Breaker.HalfOpenMaxProbes <= 0 {
		c.Policy.Breaker.HalfOpenMaxProbes = defaultHalfOpenMaxProbes
	}
}

// Validate checks the config for consistency. It runs on load and on every
// mutation through UpdateProvider.
func (c Config) Validate() error {
	if len(c.Providers) == 0 {
		return &ConfigError{Reason: "at least one provider is required"}
	}

	for name, pc := range c.Providers {
		if pc.CostPerChar < 0 {
			return &ConfigError{Field: name + ".cost_per_char", Reason: "must not be negative"}
		}
		if pc.MaxCharsPerRequest < 0 {
			return &ConfigError{Field: name + ".max_chars_per_request", Reason: "must not be negative"}
		}
		if pc.Enabled && pc.Auth.APIKey == "" && !DescriptorFor(name).CredentialExempt {
			return &ConfigError{Field: name, Reason: "enabled provider requires credentials"}
		}
	}

	for _, name := range c.Policy.FallbackOrder {
		if _, ok := c.Providers[name]; !ok {
			return &ConfigError{Field: "fallback_order", Reason: fmt.Sprintf("references unconfigured provider %q", name)}
		}
	}

	if dp := c.Policy.DefaultProvider; dp != "" {
		pc, ok := c.Providers[dp]
		if !ok {
			return &ConfigError{Field: "default_provider", Reason: fmt.Sprintf("references unconfigured provider %q", dp)}
		}
		if !pc.Enabled {
			return &ConfigError{Field: "default_provider", Reason: fmt.Sprintf("provider %q is not enabled", dp)}
		}
	}

	if t := c.Policy.Breaker.FailureThreshold; t < 0 || t > 1 {
		return &ConfigError{Field: "circuit_breaker.failure_threshold", Reason: "must be in [0,1]"}
	}
	if c.Policy.MonthlyBudget < 0 {
		return &ConfigError{Field: "monthly_budget", Reason: "must not be negative"}
	}

	return nil
}

// EnabledProviders returns the configs of providers with Enabled=true,
// ordered by priority (highest first) then name. Callers must not rely on
// this ordering beyond tie-breaking.
func (c Config) EnabledProviders() []ProviderConfig {
	var out []ProviderConfig
	for _, pc := range c.Providers {
		if pc.Enabled {
			out = append(out, pc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// EstimateCost returns len(text) * costPerChar for the named provider.
func (c Config) EstimateCost(text, providerName string) (float64, error) {
	pc, ok := c.Providers[providerName]
	if !ok {
		return 0, &ConfigError{Field: "providers", Reason: fmt.Sprintf("unknown provider %q", providerName)}
	}
	return EstimateCost(text, pc.CostPerChar), nil
}

// MinEstimateCost returns the minimum cost across all enabled providers.
// Zero with no enabled providers means "no enabled providers priced".
func (c Config) MinEstimateCost(text string) float64 {
	min := 0.0
	first := true
	for _, pc := range c.EnabledProviders() {
		cost := EstimateCost(text, pc.CostPerChar)
		if first || cost < min {
			min = cost
			first = false
		}
	}
	if first {
		return 0
	}
	return min
}

// UpdateProvider replaces a provider's configuration, re-validating the
// whole config before applying. The receiver is only mutated on success.
func (c *Config) UpdateProvider(name string, pc ProviderConfig) error {
	next := Config{
		Policy:    c.Policy,
		Providers: make(map[string]ProviderConfig, len(c.Providers)),
	}
	for k, v := range c.Providers {
		next.Providers[k] = v
	}
	pc.Name = name
	if pc.Timeout <= 0 {
		pc.Timeout = defaultProviderTimeout
	}
	next.Providers[name] = pc

	if err := next.Validate(); err != nil {
		return err
	}
	c.Providers = next.Providers
	return nil
}
