package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tellergate/tellergate/internal/bus"
	"github.com/tellergate/tellergate/internal/channels"
	"github.com/tellergate/tellergate/internal/config"
	"github.com/tellergate/tellergate/internal/dependency"
)

var (
	serveAddr  string
	serveLocal bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tellergate gateway server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "Listen address (overrides config)")
	serveCmd.Flags().BoolVar(&serveLocal, "local", false, "Use the in-memory bank backend regardless of config")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveLocal {
		cfg.Bank.BaseURL = ""
	}

	b := bus.NewMessageBus(100)
	channelMgr := channels.NewManager(cfg, b)

	c, err := dependency.New(cfg, channelMgr, b)
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}

	backend := "in-memory"
	if cfg.Bank.BaseURL != "" {
		backend = cfg.Bank.BaseURL
	}
	fmt.Printf("%s Starting tellergate on %s (bank: %s)\n", logo, cfg.Server.Addr, backend)

	if enabled := channelMgr.EnabledChannels(); len(enabled) > 0 {
		fmt.Printf("✓ Channels enabled: %s\n", strings.Join(enabled, ", "))
	} else {
		fmt.Println("No chat channels enabled; HTTP and WebSocket only.")
	}

	// Graceful shutdown context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return c.Server().ListenAndServe(cfg.Server.Addr, cfg.Server.IdleTimeout) })
	g.Go(func() error { return c.Sweeper().Start(gctx) })
	g.Go(func() error { return c.GatewayLoop().Run(gctx) })
	g.Go(func() error { return channelMgr.StartAll(gctx) })

	fmt.Printf("%s Gateway running. Press Ctrl+C to stop.\n", logo)

	if err := g.Wait(); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "serve error: %v\n", err)
		return err
	}
	fmt.Println("\nShutdown complete.")
	return nil
}
