package config

import (
	"os"
	"testing"

	"github.com/samteezy/mcproxy/internal/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minimalConfigJSON() string {
	return `{
		"version": 1,
		"downstream": {"transport": "stdio"},
		"upstreams": {
			"fs": {"id": "fs", "transport": "stdio", "command": "mcp-fs-server", "enabled": true}
		},
		"defaults": {},
		"compression": {"baseUrl": "https://api.openai.com/v1", "model": "gpt-4o-mini", "retryEscalation": {"tokenMultiplier": 0.5}},
		"masking": {"enabled": false},
		"logLevel": "info"
	}`
}

func TestLoadFromBytes_ValidMinimalConfig(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(minimalConfigJSON()))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, resolver.TransportStdio, cfg.Downstream.Transport)
	assert.Contains(t, cfg.Upstreams, "fs")
}

func TestLoadFromBytes_ExpandsEnvVars(t *testing.T) {
	os.Setenv("TEST_MCPROXY_TOKEN", "shh-secret")
	defer os.Unsetenv("TEST_MCPROXY_TOKEN")

	raw := `{
		"version": 1,
		"downstream": {"transport": "stdio"},
		"upstreams": {
			"fs": {"id": "fs", "transport": "stdio", "command": "mcp-fs-server", "enabled": true,
				"env": {"TOKEN": "${TEST_MCPROXY_TOKEN}"}}
		},
		"defaults": {},
		"compression": {},
		"masking": {"enabled": false}
	}`
	cfg, err := LoadFromBytes([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "shh-secret", cfg.Upstreams["fs"].Env["TOKEN"])
}

func TestLoadFromBytes_EnvDefaultValue(t *testing.T) {
	os.Unsetenv("TEST_MCPROXY_UNSET_VAR")
	raw := `{
		"version": 1,
		"downstream": {"transport": "stdio"},
		"upstreams": {
			"fs": {"id": "fs", "transport": "stdio", "command": "x", "enabled": true,
				"env": {"TOKEN": "${TEST_MCPROXY_UNSET_VAR:-fallback}"}}
		},
		"defaults": {}, "compression": {}, "masking": {}
	}`
	cfg, err := LoadFromBytes([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "fallback", cfg.Upstreams["fs"].Env["TOKEN"])
}

func TestValidate_MissingVersion(t *testing.T) {
	_, err := LoadFromBytes([]byte(`{"downstream": {"transport": "stdio"}}`))
	assert.Error(t, err)
}

func TestValidate_UnknownDownstreamTransport(t *testing.T) {
	_, err := LoadFromBytes([]byte(`{"version": 1, "downstream": {"transport": "carrier-pigeon"}}`))
	assert.Error(t, err)
}

func TestValidate_NonStdioDownstreamRequiresPort(t *testing.T) {
	_, err := LoadFromBytes([]byte(`{"version": 1, "downstream": {"transport": "sse"}}`))
	assert.Error(t, err)
}

func TestValidate_StdioUpstreamRequiresCommand(t *testing.T) {
	raw := `{"version": 1, "downstream": {"transport": "stdio"},
		"upstreams": {"fs": {"id": "fs", "transport": "stdio", "enabled": true}}}`
	_, err := LoadFromBytes([]byte(raw))
	assert.Error(t, err)
}

func TestValidate_HttpUpstreamRequiresURL(t *testing.T) {
	raw := `{"version": 1, "downstream": {"transport": "stdio"},
		"upstreams": {"api": {"id": "api", "transport": "streamable-http", "enabled": true}}}`
	_, err := LoadFromBytes([]byte(raw))
	assert.Error(t, err)
}

func TestValidate_HiddenParameterWithoutOverride_Errors(t *testing.T) {
	raw := `{"version": 1, "downstream": {"transport": "stdio"},
		"upstreams": {"fs": {"id": "fs", "transport": "stdio", "command": "x", "enabled": true,
			"tools": {"read": {"hideParameters": ["apiKey"]}}}}}`
	_, err := LoadFromBytes([]byte(raw))
	assert.Error(t, err)
}

func TestValidate_HiddenParameterWithOverride_OK(t *testing.T) {
	raw := `{"version": 1, "downstream": {"transport": "stdio"},
		"upstreams": {"fs": {"id": "fs", "transport": "stdio", "command": "x", "enabled": true,
			"tools": {"read": {"hideParameters": ["apiKey"], "parameterOverrides": {"apiKey": "xyz"}}}}}}`
	_, err := LoadFromBytes([]byte(raw))
	assert.NoError(t, err)
}

func TestGoalPrefix_DefaultsToMcp(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(minimalConfigJSON()))
	require.NoError(t, err)
	assert.Equal(t, "mcp", cfg.GoalPrefix())
}

func TestLoad_EmptyPathErrors(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}

func TestIsSecretRef(t *testing.T) {
	assert.True(t, IsSecretRef("secretsmanager://prod/mcp/token"))
	assert.False(t, IsSecretRef("plain-value"))
}
