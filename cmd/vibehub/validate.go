package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"vibehub/gateway/pkg/config"
)

var validateFlags struct {
	configPath string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the settings file and gateway document",
	Long: `Check the settings file and the gateway document for errors
without starting the gateway.

All validation failures are collected and reported together, so one
bad provider entry does not hide another.

Examples:
  # Validate with default settings
  vibehub validate

  # Validate a specific gateway document
  vibehub validate --config /var/lib/vibehub/gateway_config.json`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.configPath, "config", "", "gateway document path (defaults to the one under the data directory)")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	settings, err := config.LoadSettings(settingsFile)
	if err != nil {
		return fmt.Errorf("settings invalid: %w", err)
	}
	fmt.Printf("✓ Settings valid: %s\n", settingsFile)

	configPath := validateFlags.configPath
	if configPath == "" {
		configPath = filepath.Join(settings.DataDir, gatewayConfigFile)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("gateway document invalid: %w", err)
	}
	if err := config.Validate(&cfg); err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			fmt.Printf("✗ Gateway document invalid: %s\n", configPath)
			for _, fe := range verr.Errors {
				fmt.Printf("  - %s\n", fe.Error())
			}
			return fmt.Errorf("%d validation error(s)", len(verr.Errors))
		}
		return err
	}

	fmt.Printf("✓ Gateway document valid: %s\n", configPath)
	fmt.Printf("  Port: %d\n", cfg.Port)
	fmt.Printf("  Enabled: %t\n", cfg.Enabled)
	fmt.Printf("  Fallback: %t\n", cfg.FallbackEnabled)
	fmt.Printf("  Providers: %d\n", len(cfg.Providers))
	for _, p := range cfg.Providers {
		state := "enabled"
		if !p.Enabled {
			state = "disabled"
		}
		fmt.Printf("    - %s (%s, %s)\n", p.Name, p.BaseURL, state)
	}
	return nil
}
