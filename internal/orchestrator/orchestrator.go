// Package orchestrator drives the conversation state machine: resolve the
// session, collect missing tool parameters across turns, execute, and fold
// results back into the session context.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tellergate/tellergate/internal/bridge"
	"github.com/tellergate/tellergate/internal/intent"
	"github.com/tellergate/tellergate/internal/schema"
	"github.com/tellergate/tellergate/internal/session"
	"github.com/tellergate/tellergate/internal/tools"
)

// Reply is the orchestrator's answer to one inbound message.
type Reply struct {
	SessionID          string         `json:"sessionId"`
	Response           string         `json:"response"`
	RequiresHumanInput bool           `json:"requiresHumanInput"`
	RequiredFields     []string       `json:"requiredFields,omitempty"`
	ExecutionID        string         `json:"executionId,omitempty"`
	Result             *schema.Result `json:"result,omitempty"`
}

// Options tune session expiry. Zero values fall back to the documented
// defaults (30m idle timeout, 1m sweep interval).
type Options struct {
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.IdleTimeout <= 0 {
		out.IdleTimeout = 30 * time.Minute
	}
	if out.SweepInterval <= 0 {
		out.SweepInterval = time.Minute
	}
	return out
}

// Orchestrator owns all session and execution state transitions. Every
// transition for a given session happens under that session's lock, so two
// concurrent messages for one session serialize instead of racing.
type Orchestrator struct {
	bridge     *bridge.Bridge
	store      *session.Store
	executor   *tools.Executor
	classifier intent.Classifier
	opts       Options

	expiryListeners []func(sessionID string, status session.Status)
}

// AddExpiryListener registers a callback invoked (on its own goroutine)
// whenever a session leaves ACTIVE. Register listeners before serving.
func (o *Orchestrator) AddExpiryListener(fn func(sessionID string, status session.Status)) {
	o.expiryListeners = append(o.expiryListeners, fn)
}

// New creates an Orchestrator. classifier may be nil when callers always
// supply a pre-detected intent; the keyword classifier is used as fallback.
func New(br *bridge.Bridge, executor *tools.Executor, classifier intent.Classifier, opts Options) *Orchestrator {
	if classifier == nil {
		classifier = intent.NewKeywordClassifier()
	}
	return &Orchestrator{
		bridge:     br,
		store:      br.Store(),
		executor:   executor,
		classifier: classifier,
		opts:       opts.withDefaults(),
	}
}

// CreateOrResumeSession resolves the authoritative session id for the user.
// Idempotent per the bridge contract.
func (o *Orchestrator) CreateOrResumeSession(userID, sessionID string) (string, error) {
	s, err := o.bridge.EnsureSession(userID, sessionID)
	if err != nil {
		return "", err
	}
	return s.ID, nil
}

// GetSession returns a summary of one session.
func (o *Orchestrator) GetSession(sessionID string) (session.Summary, error) {
	s := o.store.Get(sessionID)
	if s == nil {
		return session.Summary{}, schema.NewError(schema.CodeSessionNotFound,
			"unknown session %q", sessionID).WithSession(sessionID)
	}
	s.Lock()
	defer s.Unlock()
	return s.Summarize(), nil
}

// GetUserSessions lists the user's sessions, newest activity first.
func (o *Orchestrator) GetUserSessions(userID string) []session.Summary {
	return o.store.ByUser(userID)
}

// CloseSession closes a session explicitly. A pending execution is aborted
// and surfaced in the session context rather than silently dropped.
func (o *Orchestrator) CloseSession(sessionID string) error {
	s := o.store.Get(sessionID)
	if s == nil {
		return schema.NewError(schema.CodeSessionNotFound,
			"unknown session %q", sessionID).WithSession(sessionID)
	}

	s.Lock()
	defer s.Unlock()
	o.terminate(s, session.StatusClosed)
	return o.store.Save(s)
}

// Process handles one inbound message per the state machine: resolve the
// session, then either answer a collecting execution or start a new one.
// detectedIntent may be empty; the classifier fills it in.
func (o *Orchestrator) Process(ctx context.Context, sessionID, userID, message, detectedIntent string) (Reply, error) {
	s, err := o.bridge.EnsureSession(userID, sessionID)
	if err != nil {
		return Reply{}, err
	}

	det := intent.Detection{Intent: detectedIntent}
	if det.Intent == "" {
		if det, err = o.classifier.Classify(ctx, message); err != nil {
			return Reply{}, fmt.Errorf("classify: %w", err)
		}
	} else {
		det.Entities = intent.ExtractEntities(message)
	}

	s.Lock()
	// The sweeper or an explicit close may have terminated the session
	// between resolution and lock acquisition. Terminal states absorb, so
	// rejoin through the bridge instead of mutating a dead session.
	for s.Status != session.StatusActive {
		s.Unlock()
		if s, err = o.bridge.EnsureSession(userID, ""); err != nil {
			return Reply{}, err
		}
		s.Lock()
	}
	defer s.Unlock()

	s.AddTurn(session.Turn{Role: "user", Message: message, Intent: det.Intent, Entities: det.Entities})

	// A collecting execution treats the message as an answer.
	if exec := s.Pending; exec != nil && exec.Status == session.ExecCollecting {
		def := o.executor.Registry().Get(exec.ToolName)
		exec.Merge(def, answerValues(def, exec, message, det.Entities))
		return o.continueExecution(ctx, s, def, exec)
	}

	toolName := intent.Resolve(det.Intent)
	if toolName == "" {
		reply := o.finishTurn(s, Reply{
			SessionID: s.ID,
			Response:  "Sorry, I can't help with that yet. Try asking about balances, transfers, cards, or statements.",
		})
		return reply, nil
	}

	def := o.executor.Registry().Get(toolName)
	exec := session.NewExecution(uuid.NewString(), s.ID, def, collectedFrom(def, det.Entities))
	s.Pending = exec
	slog.Info("execution started", "session", s.ID, "execution", exec.ID, "tool", def.Name)

	return o.continueExecution(ctx, s, def, exec)
}

// Feedback supplies a value for a paused execution. A terminated or unknown
// execution yields a recoverable EXECUTION_NOT_FOUND; it never restarts
// work under the old id.
func (o *Orchestrator) Feedback(ctx context.Context, sessionID, executionID string, value any) (Reply, error) {
	s := o.store.Get(sessionID)
	if s == nil {
		return Reply{}, schema.NewError(schema.CodeSessionNotFound,
			"unknown session %q", sessionID).WithSession(sessionID)
	}

	s.Lock()
	defer s.Unlock()

	exec := s.Pending
	if exec == nil || exec.ID != executionID || exec.Status != session.ExecCollecting {
		return Reply{}, schema.NewError(schema.CodeExecutionNotFound,
			"no pending execution %q", executionID).WithSession(sessionID).WithExecution(executionID)
	}

	def := o.executor.Registry().Get(exec.ToolName)
	switch v := value.(type) {
	case map[string]any:
		exec.Merge(def, v)
	case string:
		s.AddTurn(session.Turn{Role: "user", Message: v, Entities: intent.ExtractEntities(v)})
		exec.Merge(def, answerValues(def, exec, v, intent.ExtractEntities(v)))
	default:
		exec.Merge(def, answerValues(def, exec, fmt.Sprint(value), nil))
	}

	return o.continueExecution(ctx, s, def, exec)
}

// continueExecution pauses for missing parameters or runs the tool.
// Caller holds the session lock.
func (o *Orchestrator) continueExecution(ctx context.Context, s *session.Session, def *schema.ToolDefinition, exec *session.Execution) (Reply, error) {
	if exec.Status == session.ExecCollecting {
		reply := o.finishTurn(s, Reply{
			SessionID:          s.ID,
			Response:           askFor(def, exec.Missing),
			RequiresHumanInput: true,
			RequiredFields:     exec.Missing,
			ExecutionID:        exec.ID,
		})
		return reply, nil
	}

	if !exec.Start() {
		// READY with missing fields cannot happen; treat as corrupt state.
		return Reply{}, schema.NewFatal(schema.CodeToolExecution,
			"execution %s in inconsistent state %s", exec.ID, exec.Status).
			WithSession(s.ID).WithExecution(exec.ID)
	}

	params := make(map[string]any, len(exec.Collected)+1)
	for k, v := range exec.Collected {
		params[k] = v
	}
	for _, p := range def.Params {
		if p.FromAuth {
			params[p.Name] = s.AuthToken
		}
	}

	res := o.executor.Execute(ctx, def.Name, params)
	exec.Finish(res)
	if res.Err != nil {
		res.Err.WithSession(s.ID).WithExecution(exec.ID)
	}

	// Archive the terminal execution into context and clear the slot.
	s.Pending = nil
	response := formatResult(def, res)
	reply := o.finishTurn(s, Reply{
		SessionID:   s.ID,
		Response:    response,
		ExecutionID: exec.ID,
		Result:      &res,
	})
	slog.Info("execution finished", "session", s.ID, "execution", exec.ID,
		"tool", def.Name, "status", exec.Status)
	return reply, nil
}

// finishTurn records the assistant turn and persists the session.
// Caller holds the session lock.
func (o *Orchestrator) finishTurn(s *session.Session, reply Reply) Reply {
	s.AddTurn(session.Turn{Role: "assistant", Message: reply.Response})
	if err := o.store.Save(s); err != nil {
		slog.Error("session save failed", "session", s.ID, "err", err)
	}
	return reply
}

// terminate moves a session to status, aborting any non-terminal pending
// execution so it is surfaced, never silently dropped.
// Caller holds the session lock.
func (o *Orchestrator) terminate(s *session.Session, status session.Status) {
	if exec := s.Pending; exec != nil && !exec.Terminal() {
		exec.Abort(schema.NewError(schema.CodeSessionExpired,
			"session %s before execution completed", strings.ToLower(string(status))))
		s.AddTurn(session.Turn{
			Role:    "assistant",
			Message: fmt.Sprintf("Your pending %s request was cancelled because the session %s.", exec.ToolName, strings.ToLower(string(status))),
		})
		slog.Warn("pending execution aborted", "session", s.ID, "execution", exec.ID, "status", status)
	}
	s.Status = status
	for _, fn := range o.expiryListeners {
		go fn(s.ID, status)
	}
}

// answerValues interprets a free-text answer. Extracted entities win; when
// exactly one field is missing and extraction found nothing for it, the
// whole message is coerced to that field's type.
func answerValues(def *schema.ToolDefinition, exec *session.Execution, message string, entities map[string]any) map[string]any {
	values := map[string]any{}
	for k, v := range entities {
		if def.Param(k) != nil {
			values[k] = v
		}
	}
	if len(exec.Missing) == 1 {
		name := exec.Missing[0]
		if _, got := values[name]; !got {
			if v, ok := coerce(def.Param(name), message); ok {
				values[name] = v
			}
		}
	}
	return values
}

// coerce parses a bare answer into spec's type. Unparseable answers are
// dropped so the orchestrator re-asks instead of failing validation.
func coerce(spec *schema.ParamSpec, message string) (any, bool) {
	text := strings.TrimSpace(message)
	if spec == nil || text == "" {
		return nil, false
	}
	switch spec.Type {
	case schema.ParamNumber:
		text = strings.TrimPrefix(text, "$")
		n, err := strconv.ParseFloat(text, 64)
		return n, err == nil
	case schema.ParamBool:
		b, err := strconv.ParseBool(strings.ToLower(text))
		return b, err == nil
	default:
		if len(spec.Enum) > 0 {
			lower := strings.ToLower(text)
			for _, v := range spec.Enum {
				if lower == v || lower == strings.ReplaceAll(v, "_", " ") {
					return v, true
				}
			}
			return nil, false
		}
		if strings.Contains(text, " ") && len(text) > 40 {
			return nil, false // full sentences are not a value
		}
		return text, true
	}
}

// collectedFrom filters extracted entities down to the tool's declared
// parameters.
func collectedFrom(def *schema.ToolDefinition, entities map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range entities {
		if p := def.Param(k); p != nil && !p.FromAuth {
			out[k] = v
		}
	}
	return out
}

// askFor phrases the needs-input prompt for missing fields.
func askFor(def *schema.ToolDefinition, missing []string) string {
	var parts []string
	for _, name := range missing {
		if p := def.Param(name); p != nil && p.Description != "" {
			parts = append(parts, fmt.Sprintf("%s (%s)", name, strings.ToLower(p.Description)))
		} else {
			parts = append(parts, name)
		}
	}
	return fmt.Sprintf("I need a bit more information to continue: %s.", strings.Join(parts, ", "))
}

// formatResult renders a terminal result as conversational text.
func formatResult(def *schema.ToolDefinition, res schema.Result) string {
	if !res.Success {
		return fmt.Sprintf("Sorry, %s failed: %s", def.Name, res.Err.Message)
	}
	if len(res.Data) == 0 {
		return "Done."
	}
	keys := make([]string, 0, len(res.Data))
	for k := range res.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, res.Data[k]))
	}
	return "Here you go: " + strings.Join(parts, ", ")
}
