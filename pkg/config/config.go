// Package config holds the gateway configuration document: the ordered
// provider list and routing policy consumed by the proxy server. The
// document is persisted as JSON and mutated only by whole-object
// replacement through a Store.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Provider is a configured upstream endpoint able to service a proxied
// request. Identity is the ID field; uniqueness is the caller's
// responsibility.
type Provider struct {
	// ID is the stable identifier used in status events and candidate
	// matching.
	ID string `json:"id"`

	// Name is the display name. Providers whose name (or ID) contains
	// "claude" or "anthropic" receive Anthropic-style auth headers in
	// addition to the bearer token.
	Name string `json:"name"`

	// BaseURL is the upstream base URL. A trailing slash is stripped
	// before the inbound path is appended.
	BaseURL string `json:"base_url"`

	// APIKey is the upstream credential. Empty means the inbound
	// request is forwarded without auth augmentation.
	APIKey string `json:"api_key"`

	// ModelMapping remaps client model names to provider model names.
	ModelMapping map[string]string `json:"model_mapping"`

	// Enabled controls whether the provider participates in candidate
	// selection.
	Enabled bool `json:"enabled"`
}

// GatewayConfig is the full gateway document. Provider order is fallback
// priority: candidates are attempted in configured order.
type GatewayConfig struct {
	// Port is the proxy listen port.
	Port int `json:"port"`

	// Enabled controls whether the gateway accepts proxied traffic at
	// all. When false every request is answered 503 without logging.
	Enabled bool `json:"enabled"`

	// Providers is the ordered fallback chain.
	Providers []Provider `json:"providers"`

	// FallbackEnabled controls whether a failed attempt moves on to the
	// next candidate. When false at most one provider is attempted.
	FallbackEnabled bool `json:"fallback_enabled"`
}

// Clone returns a deep copy of the configuration. Snapshots handed out by
// the Store are clones so a reader can never observe a concurrent
// replacement mid-flight.
func (c GatewayConfig) Clone() GatewayConfig {
	out := c
	if c.Providers != nil {
		out.Providers = make([]Provider, len(c.Providers))
		for i, p := range c.Providers {
			out.Providers[i] = p.clone()
		}
	}
	return out
}

func (p Provider) clone() Provider {
	out := p
	if p.ModelMapping != nil {
		out.ModelMapping = make(map[string]string, len(p.ModelMapping))
		for k, v := range p.ModelMapping {
			out.ModelMapping[k] = v
		}
	}
	return out
}

// Load reads a gateway document from path. A missing file yields the
// default configuration; an unreadable or unparsable file is an error and
// never silently falls back to defaults.
func Load(path string) (GatewayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return GatewayConfig{}, fmt.Errorf("failed to read gateway config %q: %w", path, err)
	}

	var cfg GatewayConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return GatewayConfig{}, fmt.Errorf("failed to parse gateway config %q: %w", path, err)
	}
	return cfg, nil
}

// Save writes the gateway document to path as pretty-printed JSON,
// creating parent directories as needed.
func Save(path string, cfg GatewayConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize gateway config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write gateway config %q: %w", path, err)
	}
	return nil
}
