package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/samteezy/mcproxy/internal/config"
)

// Version is set at build time via -ldflags; left as "dev" otherwise.
var Version = "dev"

const exampleConfig = `{
  "version": 2,
  "downstream": {
    "transport": "stdio"
  },
  "upstreams": {
    "filesystem": {
      "id": "filesystem",
      "transport": "stdio",
      "command": "mcp-server-filesystem",
      "args": ["/workspace"],
      "enabled": true
    }
  },
  "defaults": {
    "compression": {"enabled": false},
    "masking": {"enabled": false},
    "cache": {"enabled": true, "ttlSeconds": 300}
  },
  "compression": {
    "baseUrl": "https://api.openai.com/v1",
    "apiKey": "${OPENAI_API_KEY}",
    "model": "gpt-4o-mini",
    "bypassEnabled": true,
    "retryEscalation": {
      "enabled": true,
      "windowSeconds": 60,
      "tokenMultiplier": 1.5
    }
  },
  "cache": {
    "maxEntries": 10000,
    "cacheErrors": false
  },
  "masking": {
    "enabled": false
  },
  "logLevel": "info"
}
`

// writeExampleConfig writes an example config to path, refusing to
// overwrite an existing file. The config file itself is always JSON
// (spec.md §6), but a path ending in .yaml/.yml gets the same example
// re-rendered as YAML for operators who keep the rest of their configs
// in that format and want to diff/template it the same way.
func writeExampleConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("refusing to overwrite existing file %s", path)
	}

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		var doc map[string]any
		if err := json.Unmarshal([]byte(exampleConfig), &doc); err != nil {
			return fmt.Errorf("mcproxy: failed to re-render example config as yaml: %w", err)
		}
		out, err := yaml.Marshal(doc)
		if err != nil {
			return err
		}
		return os.WriteFile(path, out, 0o644)
	}

	return os.WriteFile(path, []byte(exampleConfig), 0o644)
}

// loadDownstreamConfig re-reads just the downstream binding section of the
// config file on disk, used by main to decide which transport/listener to
// start independent of the supervisor's internal graph.
func loadDownstreamConfig(path string) (config.DownstreamConfig, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.DownstreamConfig{}, err
	}
	return cfg.Downstream, nil
}
