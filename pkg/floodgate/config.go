package floodgate

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds traffic-class rate limits and cache sizing.
// It supports YAML files plus per-class environment overrides.
type Config struct {
	// Classes maps a traffic-class name to its rate limit policy.
	// Example: "ai-recommendation" -> 30 req/60s on /weather/recommendation
	Classes map[string]ClassConfig `yaml:"classes"`

	// Bypass lists path prefixes that skip rate limiting entirely
	// (health checks, auth, docs).
	Bypass []string `yaml:"bypass,omitempty"`

	// KeyExtractor specifies how to identify clients.
	// Examples: "addr", "addr-proxy", "header:X-API-Key"
	KeyExtractor string `yaml:"key_extractor,omitempty"`

	// Caches sizes the process-wide cache instances.
	Caches CachesConfig `yaml:"caches,omitempty"`
}

// ClassConfig defines the rate limit for one traffic class.
type ClassConfig struct {
	// MaxRequests is the number of requests allowed per window
	MaxRequests int `yaml:"max_requests"`

	// WindowSeconds is the length of the sliding window in seconds
	WindowSeconds int `yaml:"window_seconds"`

	// Paths are the URL fragments that classify a request into this class
	Paths []string `yaml:"paths"`

	// Detail is the human message returned on rejection
	Detail string `yaml:"detail,omitempty"`

	// Enabled allows disabling the class without removing it
	Enabled bool `yaml:"enabled"`
}

// CacheConfig sizes one cache instance.
type CacheConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
	MaxSize    int `yaml:"max_size"`
}

// CachesConfig sizes the three standard cache instances.
type CachesConfig struct {
	// Standard backs general reads (longer TTL)
	Standard CacheConfig `yaml:"standard"`

	// Realtime backs high-frequency dashboards (short TTL)
	Realtime CacheConfig `yaml:"realtime"`

	// Result backs expensive derived computations keyed by input digest
	Result CacheConfig `yaml:"result"`
}

// ConfigSource yields the configuration to apply to a gate evaluation.
// It is consulted on every request so limits can change at runtime.
type ConfigSource func() *Config

// NewConfig creates a Config with the default traffic classes and cache sizes.
func NewConfig() *Config {
	return &Config{
		Classes: map[string]ClassConfig{
			"ai-recommendation": {
				MaxRequests:   30,
				WindowSeconds: 60,
				Paths:         []string{"/weather/recommendation"},
				Detail:        "Too many AI recommendation requests. Please wait.",
				Enabled:       true,
			},
			"iot-data": {
				MaxRequests:   50,
				WindowSeconds: 60,
				Paths:         []string{"/weather/heatmap", "/weather/realtime", "/admin/spreadsheet"},
				Detail:        "Too many IoT data requests. Please wait.",
				Enabled:       true,
			},
		},
		Bypass:       []string{"/health", "/docs", "/openapi.json", "/redoc", "/auth"},
		KeyExtractor: "addr",
		Caches: CachesConfig{
			Standard: CacheConfig{TTLSeconds: 30, MaxSize: 500},
			Realtime: CacheConfig{TTLSeconds: 1, MaxSize: 500},
			Result:   CacheConfig{TTLSeconds: 1, MaxSize: 1000},
		},
	}
}

// LoadConfigFromFile loads configuration from a YAML file.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", ErrInvalidConfig, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML: %v", ErrInvalidConfig, err)
	}

	// Apply defaults if not set
	defaults := NewConfig()
	if config.KeyExtractor == "" {
		config.KeyExtractor = defaults.KeyExtractor
	}
	if config.Classes == nil {
		config.Classes = defaults.Classes
	}
	if config.Caches == (CachesConfig{}) {
		config.Caches = defaults.Caches
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	for name, class := range c.Classes {
		if err := class.Validate(); err != nil {
			return fmt.Errorf("%w: invalid class %s: %v", ErrInvalidConfig, name, err)
		}
	}
	return nil
}

// Validate checks if a ClassConfig is valid.
func (cc *ClassConfig) Validate() error {
	if cc.MaxRequests <= 0 {
		return fmt.Errorf("max_requests must be positive")
	}
	if cc.WindowSeconds <= 0 {
		return fmt.Errorf("window_seconds must be positive")
	}
	if len(cc.Paths) == 0 {
		return fmt.Errorf("at least one path is required")
	}
	return nil
}

// Classify returns the traffic class matching path, or ok=false for
// unclassified paths. Classes are tried in name order so matching is
// deterministic when fragments overlap.
func (c *Config) Classify(path string) (string, ClassConfig, bool) {
	names := make([]string, 0, len(c.Classes))
	for name := range c.Classes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		class := c.Classes[name]
		for _, fragment := range class.Paths {
			if strings.Contains(path, fragment) {
				return name, class, true
			}
		}
	}
	return "", ClassConfig{}, false
}

// Bypassed reports whether path skips rate limiting entirely.
func (c *Config) Bypassed(path string) bool {
	for _, prefix := range c.Bypass {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy, so per-request overrides never mutate the base.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Classes = make(map[string]ClassConfig, len(c.Classes))
	for name, class := range c.Classes {
		class.Paths = append([]string(nil), class.Paths...)
		clone.Classes[name] = class
	}
	clone.Bypass = append([]string(nil), c.Bypass...)
	return &clone
}

// StaticSource returns a ConfigSource that always yields cfg.
func StaticSource(cfg *Config) ConfigSource {
	return func() *Config { return cfg }
}

// EnvSource returns a ConfigSource that overlays per-class environment
// overrides on base on every call. The variable for a class is its upper-cased
// name with dashes replaced, suffixed with _RATE_LIMIT: the "iot-data" class
// reads IOT_DATA_RATE_LIMIT.
func EnvSource(base *Config) ConfigSource {
	return func() *Config {
		cfg := base.Clone()
		for name, class := range cfg.Classes {
			envName := strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_RATE_LIMIT"
			if raw := os.Getenv(envName); raw != "" {
				if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
					class.MaxRequests = limit
					cfg.Classes[name] = class
				}
			}
		}
		return cfg
	}
}
