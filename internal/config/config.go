// Package config loads and validates the proxy's JSON
// configuration file: downstream transport settings, the upstream server
// list, the global default policy, and ambient settings (logging level,
// retry escalation).
//
// DESIGN: Load/LoadFromBytes/env-expansion mechanics are ported from the
// teacher's internal/config/config.go, generalized from that package's
// YAML-only format to this spec's JSON format (spec.md §6) while keeping
// the same ${VAR}/${VAR:-default} expansion regex and the same
// read-file-then-parse-bytes split so both Load and LoadFromBytes remain
// independently testable.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/samteezy/mcproxy/internal/resolver"
)

// Config is the root of the proxy's JSON configuration file, per spec.md
// §6's documented shape.
type Config struct {
	Version     int                               `json:"version"`
	Downstream  DownstreamConfig                  `json:"downstream"`
	Upstreams   map[string]*resolver.UpstreamSpec `json:"upstreams"`
	Defaults    resolver.GlobalDefaults           `json:"defaults"`
	Compression RootCompressionConfig             `json:"compression"`
	Cache       RootCacheConfig                   `json:"cache"`
	Masking     RootMaskingConfig                 `json:"masking"`
	LogLevel    string                            `json:"logLevel"`
}

// DownstreamConfig describes how the proxy exposes itself to its single
// downstream client.
type DownstreamConfig struct {
	Transport resolver.Transport `json:"transport"` // stdio | sse | streamable-http
	Port      int                `json:"port,omitempty"`
	Host      string             `json:"host,omitempty"`
	AdminPort int                `json:"adminPort,omitempty"`
}

// RetryEscalationConfig describes the output-token-budget growth applied on
// repeated compression calls for the same logical request. Validate checks
// TokenMultiplier, but the compressor does not read this section:
// escalation is always on, with a fixed multiplier of 0.5 and a fixed
// five-minute window per cache key.
type RetryEscalationConfig struct {
	Enabled         bool    `json:"enabled"`
	WindowSeconds   int     `json:"windowSeconds"`
	TokenMultiplier float64 `json:"tokenMultiplier"`
}

// RootCompressionConfig is the top-level compression section: the LLM
// endpoint the compressor calls, the bypass master switch, and
// retry-escalation tuning — above the four-level per-tool hierarchy in
// Defaults.
type RootCompressionConfig struct {
	BaseURL         string                 `json:"baseUrl"`
	APIKey          string                 `json:"apiKey,omitempty"`
	Model           string                 `json:"model"`
	BypassEnabled   bool                   `json:"bypassEnabled"`
	RetryEscalation RetryEscalationConfig  `json:"retryEscalation,omitempty"`
	GoalPrefix      string                 `json:"goalPrefix,omitempty"`
}

// RootCacheConfig holds the cache knobs that apply to the store as a whole
// rather than to any one hierarchy level: its capacity and whether error
// responses are eligible for caching by default.
type RootCacheConfig struct {
	MaxEntries  int  `json:"maxEntries"`
	CacheErrors bool `json:"cacheErrors,omitempty"`
}

// LLMEndpointConfig names an OpenAI-compatible chat endpoint.
type LLMEndpointConfig struct {
	BaseURL string `json:"baseUrl"`
	APIKey  string `json:"apiKey,omitempty"`
	Model   string `json:"model,omitempty"`
}

// RootMaskingConfig holds the global masking master switch and the LLM
// endpoint used for the masking fallback pass (spec.md §6: `masking?:
// {enabled, llmConfig?}`). When LLMConfig is nil the fallback uses the
// compression section's endpoint and model.
type RootMaskingConfig struct {
	Enabled   bool               `json:"enabled"`
	LLMConfig *LLMEndpointConfig `json:"llmConfig,omitempty"`
}

var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandEnvWithDefaults expands ${VAR} and ${VAR:-default} references
// against the process environment.
func expandEnvWithDefaults(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config: file path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %q: %w", path, err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses raw JSON configuration, expanding environment
// variables and resolving any secretsmanager:// references before
// validating the result.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvWithDefaults(string(data))

	var cfg Config
	if err := json.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse: %w", err)
	}

	if err := cfg.resolveSecretRefs(context.Background()); err != nil {
		return nil, fmt.Errorf("config: failed to resolve secret references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks the structural and cross-field invariants this spec
// requires at load time, before any runtime resolution happens.
func (c *Config) Validate() error {
	if c.Version == 0 {
		return fmt.Errorf("version is required")
	}
	switch c.Downstream.Transport {
	case resolver.TransportStdio, resolver.TransportSSE, resolver.TransportStreamableHTTP:
	default:
		return fmt.Errorf("downstream.transport: unknown transport %q", c.Downstream.Transport)
	}
	if c.Downstream.Transport != resolver.TransportStdio && c.Downstream.Port == 0 {
		return fmt.Errorf("downstream.port is required for transport %q", c.Downstream.Transport)
	}

	for id, up := range c.Upstreams {
		if up.ID == "" {
			up.ID = id
		}
		if up.ID != id {
			return fmt.Errorf("upstreams[%q]: id field %q does not match its map key", id, up.ID)
		}
		switch up.Transport {
		case resolver.TransportStdio, resolver.TransportSSE, resolver.TransportStreamableHTTP:
		default:
			return fmt.Errorf("upstreams[%q]: unknown transport %q", id, up.Transport)
		}
		if up.Transport == resolver.TransportStdio && up.Command == "" {
			return fmt.Errorf("upstreams[%q]: stdio transport requires a command", id)
		}
		if up.Transport != resolver.TransportStdio && up.URL == "" {
			return fmt.Errorf("upstreams[%q]: transport %q requires a url", id, up.Transport)
		}

		for toolName, tool := range up.Tools {
			if err := validateHiddenParameters(id, toolName, tool); err != nil {
				return err
			}
		}
	}

	if c.Compression.RetryEscalation.TokenMultiplier < 0 {
		return fmt.Errorf("compression.retryEscalation.tokenMultiplier must not be negative")
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.maxEntries must not be negative")
	}

	return nil
}

// validateHiddenParameters enforces the load-time precondition that every
// name in hideParameters also has a value supplied via parameterOverrides
// — a hidden parameter with nothing to fill it in would silently drop a
// required argument at call time, which is a config authoring error, not
// a runtime condition to fall back from.
func validateHiddenParameters(upstreamID, toolName string, tool resolver.ToolConfig) error {
	for _, hidden := range tool.HideParameters {
		if _, ok := tool.ParameterOverrides[hidden]; !ok {
			return fmt.Errorf("upstreams[%q].tools[%q]: hideParameters contains %q with no matching parameterOverrides entry", upstreamID, toolName, hidden)
		}
	}
	return nil
}

// GoalPrefix returns the configured vendor prefix for virtual parameter
// names, defaulting to "mcp" when unset.
func (c *Config) GoalPrefix() string {
	if c.Compression.GoalPrefix == "" {
		return "mcp"
	}
	return c.Compression.GoalPrefix
}

// IsSecretRef reports whether a string value is a
// "secretsmanager://<secret-id>" reference requiring resolution.
func IsSecretRef(s string) bool {
	return strings.HasPrefix(s, "secretsmanager://")
}
