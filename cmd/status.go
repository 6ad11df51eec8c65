package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tellergate/tellergate/internal/config"
	"github.com/tellergate/tellergate/internal/tools"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tellergate status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	fmt.Printf("%s tellergate Status\n\n", logo)

	_, statErr := os.Stat(cfgPath)
	cfgMark := "✗"
	if statErr == nil {
		cfgMark = "✓"
	}
	fmt.Printf("Config:     %s %s\n", cfgPath, cfgMark)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	_, dirErr := os.Stat(cfg.Sessions.Dir)
	dirMark := "✗"
	if dirErr == nil {
		dirMark = "✓"
	}
	fmt.Printf("Sessions:   %s %s\n", cfg.Sessions.Dir, dirMark)

	backend := "in-memory"
	if cfg.Bank.BaseURL != "" {
		backend = cfg.Bank.BaseURL
	}
	fmt.Printf("Bank:       %s\n", backend)
	fmt.Printf("Listen:     %s\n\n", cfg.Server.Addr)

	reg, err := tools.NewRegistry(tools.Catalog())
	if err != nil {
		return fmt.Errorf("build tool registry: %w", err)
	}
	fmt.Printf("Tools:      %d registered\n", reg.Len())

	fmt.Println("Channels:")
	telMark := "(not set)"
	if cfg.Channels.Telegram.Enabled {
		telMark = "✓"
	}
	slackMark := "(not set)"
	if cfg.Channels.Slack.Enabled {
		slackMark = "✓"
	}
	fmt.Printf("  %-10s %s\n", "telegram", telMark)
	fmt.Printf("  %-10s %s\n", "slack", slackMark)
	return nil
}
