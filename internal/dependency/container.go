// Package dependency wires core tellergate services using go.uber.org/dig.
package dependency

import (
	"context"
	"fmt"

	"go.uber.org/dig"

	"github.com/tellergate/tellergate/internal/bank"
	"github.com/tellergate/tellergate/internal/bridge"
	"github.com/tellergate/tellergate/internal/bus"
	"github.com/tellergate/tellergate/internal/config"
	"github.com/tellergate/tellergate/internal/gateway"
	"github.com/tellergate/tellergate/internal/intent"
	"github.com/tellergate/tellergate/internal/orchestrator"
	"github.com/tellergate/tellergate/internal/server"
	"github.com/tellergate/tellergate/internal/session"
	"github.com/tellergate/tellergate/internal/tools"
)

// Container holds the resolved core service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	registry *tools.Registry
	executor *tools.Executor
	store    *session.Store
	orch     *orchestrator.Orchestrator
	sweeper  *orchestrator.Sweeper
	srv      *server.Server
	msgBus   bus.Bus
	loop     *gateway.Loop
	manager  ChannelManager
}

func (c *Container) Registry() *tools.Registry              { return c.registry }
func (c *Container) Executor() *tools.Executor              { return c.executor }
func (c *Container) SessionStore() *session.Store           { return c.store }
func (c *Container) Orchestrator() *orchestrator.Orchestrator { return c.orch }
func (c *Container) Sweeper() *orchestrator.Sweeper         { return c.sweeper }
func (c *Container) Server() *server.Server                 { return c.srv }
func (c *Container) MessageBus() bus.Bus                    { return c.msgBus }
func (c *Container) GatewayLoop() *gateway.Loop             { return c.loop }
func (c *Container) Channels() ChannelManager               { return c.manager }

// ChannelManager is satisfied by channels.Manager; the indirection keeps the
// container buildable in tests that do not stand up real chat transports.
type ChannelManager interface {
	EnabledChannels() []string
	StartAll(ctx context.Context) error
}

// New builds and wires all core services from cfg.
func New(cfg *config.Config, mgr ChannelManager, b bus.Bus) (*Container, error) {
	d := dig.New()

	if err := d.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}
	if err := d.Provide(func() bus.Bus { return b }); err != nil {
		return nil, err
	}
	if err := d.Provide(newBankService); err != nil {
		return nil, err
	}
	if err := d.Provide(newRegistry); err != nil {
		return nil, err
	}
	if err := d.Provide(newExecutor); err != nil {
		return nil, err
	}
	if err := d.Provide(newSessionStore); err != nil {
		return nil, err
	}
	if err := d.Provide(newBridge); err != nil {
		return nil, err
	}
	if err := d.Provide(newClassifier); err != nil {
		return nil, err
	}
	if err := d.Provide(newOrchestrator); err != nil {
		return nil, err
	}
	if err := d.Provide(newSweeper); err != nil {
		return nil, err
	}
	if err := d.Provide(newConversations); err != nil {
		return nil, err
	}
	if err := d.Provide(newGatewayLoop); err != nil {
		return nil, err
	}
	if err := d.Provide(newServer); err != nil {
		return nil, err
	}

	var result *Container
	err := d.Invoke(func(
		registry *tools.Registry,
		executor *tools.Executor,
		store *session.Store,
		orch *orchestrator.Orchestrator,
		sweeper *orchestrator.Sweeper,
		srv *server.Server,
		loop *gateway.Loop,
	) {
		result = &Container{
			registry: registry,
			executor: executor,
			store:    store,
			orch:     orch,
			sweeper:  sweeper,
			srv:      srv,
			msgBus:   b,
			loop:     loop,
			manager:  mgr,
		}
	})
	return result, err
}

func newBankService(cfg *config.Config) tools.BankService {
	if cfg.Bank.BaseURL == "" {
		return bank.NewMemoryService()
	}
	return bank.NewHTTPClient(cfg.Bank.BaseURL, cfg.Bank.Timeout)
}

func newRegistry() (*tools.Registry, error) {
	reg, err := tools.NewRegistry(tools.Catalog())
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}
	if err := intent.ValidateMapping(reg); err != nil {
		return nil, fmt.Errorf("validate intent mapping: %w", err)
	}
	return reg, nil
}

func newExecutor(cfg *config.Config, reg *tools.Registry, svc tools.BankService) *tools.Executor {
	return tools.NewExecutor(reg, svc, tools.ExecutorOptions{
		CallDeadline: cfg.Executor.CallDeadline,
		ReadRetries:  cfg.Executor.ReadRetries,
		RetryBackoff: cfg.Executor.RetryBackoff,
		BatchWorkers: cfg.Executor.BatchWorkers,
	})
}

func newSessionStore(cfg *config.Config) (*session.Store, error) {
	return session.NewStore(cfg.Sessions.Dir)
}

func newBridge(store *session.Store) *bridge.Bridge {
	return bridge.New(store, bank.TokenFor)
}

func newClassifier() intent.Classifier {
	return intent.NewKeywordClassifier()
}

func newOrchestrator(cfg *config.Config, br *bridge.Bridge, ex *tools.Executor, cl intent.Classifier) *orchestrator.Orchestrator {
	return orchestrator.New(br, ex, cl, orchestrator.Options{
		IdleTimeout:   cfg.Sessions.IdleTimeout,
		SweepInterval: cfg.Sessions.SweepInterval,
	})
}

func newSweeper(orch *orchestrator.Orchestrator) *orchestrator.Sweeper {
	return orchestrator.NewSweeper(orch)
}

func newConversations() *gateway.Conversations {
	return gateway.NewConversations()
}

func newGatewayLoop(b bus.Bus, orch *orchestrator.Orchestrator, convs *gateway.Conversations, br *bridge.Bridge) *gateway.Loop {
	br.Register(convs)
	return gateway.NewLoop(b, orch, convs)
}

func newServer(cfg *config.Config, ex *tools.Executor, orch *orchestrator.Orchestrator) *server.Server {
	return server.New(ex, orch,
		server.WithWSQueueSize(cfg.Server.WSQueueSize),
		server.WithRateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst),
	)
}
