package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tellergate/tellergate/internal/bus"
	"github.com/tellergate/tellergate/internal/config"
	"github.com/tellergate/tellergate/internal/dependency"
)

var (
	chatMessage string
	chatUser    string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the banking assistant from the terminal",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Send a single message and exit")
	chatCmd.Flags().StringVarP(&chatUser, "user", "u", "cli:direct", "User ID for the conversation")
}

var exitCommands = map[string]bool{
	"exit":  true,
	"quit":  true,
	"/exit": true,
	"/quit": true,
	":q":    true,
}

func runChat(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Bank.BaseURL = "" // the REPL always talks to the in-memory bank

	c, err := dependency.New(cfg, nil, bus.NewMessageBus(1))
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}
	orch := c.Orchestrator()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessionID := ""
	send := func(text string) error {
		reply, err := orch.Process(ctx, sessionID, chatUser, text, "")
		if err != nil {
			return err
		}
		sessionID = reply.SessionID
		fmt.Printf("%s %s\n", logo, reply.Response)
		return nil
	}

	if chatMessage != "" {
		return send(chatMessage)
	}

	fmt.Printf("%s tellergate — type a banking request, or 'exit' to quit.\n", logo)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if exitCommands[strings.ToLower(line)] {
			break
		}
		if err := send(line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil
}
