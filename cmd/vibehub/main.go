// Vibehub Gateway is a local reverse proxy that fans LLM API requests
// out across configured upstream providers with ordered failover.
//
// It provides:
//   - Ordered provider failover on upstream errors
//   - Streaming response pass-through
//   - Live usage and cost metering per attempt
//   - A management API with a provider status event stream
//
// Usage:
//
//	# Start the gateway with default settings
//	vibehub run
//
//	# Start with custom settings file
//	vibehub run --settings /path/to/settings.yaml
//
//	# Validate the gateway document without starting
//	vibehub validate
//
//	# Show version information
//	vibehub version
package main

func main() {
	Execute()
}
