package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cmdlink/cmdlink/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cmdlink status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	fmt.Printf("cmdlink Status\n\n")

	_, statErr := os.Stat(cfgPath)
	cfgMark := "✗"
	if statErr == nil {
		cfgMark = "✓"
	}
	fmt.Printf("Config:   %s %s\n", cfgPath, cfgMark)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	state := "disabled"
	if cfg.Basic.EnablePlugin {
		state = "enabled"
	}
	fmt.Printf("Plugin:   %s\n", state)
	fmt.Printf("Prefix:   %q\n", cfg.Basic.WakePrefix)
	fmt.Printf("Mode:     %s (timeout %s, interval %s)\n",
		cfg.Execution.Mode(), cfg.Execution.CaptureTimeout(), cfg.Execution.ForwardInterval())

	enabled, disabled := 0, 0
	for _, b := range cfg.Bindings.Entries {
		if b.Enabled {
			enabled++
		} else {
			disabled++
		}
	}
	fmt.Printf("Bindings: %d enabled, %d disabled\n", enabled, disabled)

	fmt.Println("\nChannels:")
	fmt.Printf("  %-10s ✓\n", "cli")
	if cfg.Channels.Telegram.Enabled {
		fmt.Printf("  %-10s ✓\n", "telegram")
	} else {
		fmt.Printf("  %-10s (not set)\n", "telegram")
	}
	if cfg.Gateway.Enabled {
		fmt.Printf("  %-10s ✓ %s:%d\n", "gateway", cfg.Gateway.Host, cfg.Gateway.Port)
	} else {
		fmt.Printf("  %-10s (not set)\n", "gateway")
	}

	if cfg.Compat.MigrationDone {
		fmt.Println("\nLegacy migration: done")
	}
	return nil
}
