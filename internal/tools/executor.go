package tools

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tellergate/tellergate/internal/schema"
)

// BankService is the executor's view of the banking domain service.
// Implementations return *schema.Error for classified failures; anything
// else is treated as a tool-execution failure.
type BankService interface {
	Call(ctx context.Context, op string, args map[string]any) (map[string]any, error)
}

// ExecutorOptions tune deadlines and the transient-retry policy.
// Zero values fall back to the documented defaults.
type ExecutorOptions struct {
	CallDeadline time.Duration // per-call deadline (default 15s)
	ReadRetries  int           // retries for idempotent reads (default 2)
	RetryBackoff time.Duration // initial backoff, doubles per attempt (default 200ms)
	BatchWorkers int           // concurrent executeBatch workers (default 4)
}

func (o *ExecutorOptions) withDefaults() ExecutorOptions {
	out := *o
	if out.CallDeadline <= 0 {
		out.CallDeadline = 15 * time.Second
	}
	if out.ReadRetries <= 0 {
		out.ReadRetries = 2
	}
	if out.RetryBackoff <= 0 {
		out.RetryBackoff = 200 * time.Millisecond
	}
	if out.BatchWorkers <= 0 {
		out.BatchWorkers = 4
	}
	return out
}

// Executor validates tool invocations against the registry and dispatches
// them to the domain service. All failures come back inside the Result
// envelope; Execute never returns a Go error.
type Executor struct {
	registry *Registry
	bank     BankService
	opts     ExecutorOptions
}

// NewExecutor creates an Executor over registry and bank.
func NewExecutor(registry *Registry, bank BankService, opts ExecutorOptions) *Executor {
	return &Executor{registry: registry, bank: bank, opts: opts.withDefaults()}
}

// Registry returns the registry this executor validates against.
func (e *Executor) Registry() *Registry { return e.registry }

// Execute validates params against toolName's schema and performs the call.
func (e *Executor) Execute(ctx context.Context, toolName string, params map[string]any) schema.Result {
	def := e.registry.Get(toolName)
	if def == nil {
		return schema.Fail(schema.NewError(schema.CodeToolNotFound, "unknown tool %q", toolName))
	}

	if fields := e.registry.Validate(def, params); len(fields) > 0 {
		return schema.Fail(schema.NewValidationError(fields))
	}

	data, err := e.call(ctx, def, params)
	if err != nil {
		appErr := schema.AsError(err)
		slog.Warn("tool call failed", "tool", toolName, "code", appErr.Code, "err", appErr.Message)
		return schema.Fail(appErr)
	}

	return schema.OK(data)
}

// ExecuteBatch executes each request independently and returns one result
// per request in input order. A failure in one request never aborts the
// others.
func (e *Executor) ExecuteBatch(ctx context.Context, reqs []schema.ExecuteRequest) []schema.Result {
	results := make([]schema.Result, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.BatchWorkers)
	for i, req := range reqs {
		g.Go(func() error {
			results[i] = e.Execute(gctx, req.Tool, req.Parameters)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures live in results

	return results
}

// call performs the domain-service call under the per-call deadline,
// retrying transient failures for idempotent tools only.
func (e *Executor) call(ctx context.Context, def *schema.ToolDefinition, params map[string]any) (map[string]any, error) {
	attempts := 1
	if def.Idempotent {
		attempts += e.opts.ReadRetries
	}

	backoff := e.opts.RetryBackoff
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.Canceled) {
					return nil, canceledError(ctx.Err())
				}
				return nil, timeoutError(ctx.Err())
			}
			backoff *= 2
		}

		callCtx, cancel := context.WithTimeout(ctx, e.opts.CallDeadline)
		data, err := e.bank.Call(callCtx, def.Name, params)
		cancel()
		if err == nil {
			return data, nil
		}

		lastErr = err
		if errors.Is(err, context.Canceled) {
			// The caller went away; cancellation is not a timeout and
			// retrying on its behalf is pointless.
			return nil, canceledError(err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			lastErr = timeoutError(err)
		}
		if schema.AsError(lastErr).Kind != schema.KindTransient {
			return nil, lastErr
		}
		slog.Debug("transient bank failure", "tool", def.Name, "attempt", attempt+1, "err", err)
	}

	return nil, lastErr
}

func timeoutError(cause error) *schema.Error {
	return schema.NewTransient(schema.CodeTimeout, "bank call timed out: %v", cause)
}

func canceledError(cause error) *schema.Error {
	return schema.NewError(schema.CodeToolExecution, "bank call canceled: %v", cause)
}
