package config

// Default values for the gateway document.
const (
	// DefaultPort is the proxy listen port used when no document exists.
	DefaultPort = 12345
)

// DefaultConfig returns the gateway document used when no config file
// exists yet: gateway enabled, fallback enabled, no providers.
func DefaultConfig() GatewayConfig {
	return GatewayConfig{
		Port:            DefaultPort,
		Enabled:         true,
		Providers:       []Provider{},
		FallbackEnabled: true,
	}
}
