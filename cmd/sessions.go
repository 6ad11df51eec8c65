package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tellergate/tellergate/internal/config"
	"github.com/tellergate/tellergate/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions <userID>",
	Short: "List stored sessions for a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessions,
}

func runSessions(_ *cobra.Command, args []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := session.NewStore(cfg.Sessions.Dir)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}

	sums := store.ByUser(args[0])
	if len(sums) == 0 {
		fmt.Printf("No sessions for %s\n", args[0])
		return nil
	}

	for _, sum := range sums {
		line := fmt.Sprintf("%s  %-7s  %d turns  last active %s",
			sum.SessionID, sum.Status, sum.Turns, sum.LastActivityAt.Format("2006-01-02 15:04:05"))
		if sum.PendingTool != "" {
			line += "  pending: " + sum.PendingTool
		}
		fmt.Println(line)
	}
	return nil
}
