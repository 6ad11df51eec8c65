package session

import (
	"time"

	"github.com/tellergate/tellergate/internal/schema"
)

// ExecStatus is the state of one attempted tool invocation.
type ExecStatus string

const (
	ExecCollecting ExecStatus = "COLLECTING"
	ExecReady      ExecStatus = "READY"
	ExecRunning    ExecStatus = "RUNNING"
	ExecSucceeded  ExecStatus = "SUCCEEDED"
	ExecFailed     ExecStatus = "FAILED"
)

// Execution tracks one tool invocation, possibly spanning several turns
// while parameters are collected. It is guarded by the owning session's
// lock.
type Execution struct {
	ID        string         `json:"executionId"`
	SessionID string         `json:"sessionId"`
	ToolName  string         `json:"toolName"`
	Collected map[string]any `json:"collectedParameters"`
	Missing   []string       `json:"missingParameters"`
	Status    ExecStatus     `json:"status"`
	Result    *schema.Result `json:"result,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// NewExecution starts an execution for tool, owned by sessionID.
func NewExecution(id, sessionID string, def *schema.ToolDefinition, collected map[string]any) *Execution {
	if collected == nil {
		collected = map[string]any{}
	}
	now := time.Now()
	e := &Execution{
		ID:        id,
		SessionID: sessionID,
		ToolName:  def.Name,
		Collected: collected,
		Status:    ExecCollecting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	e.Recompute(def)
	return e
}

// Merge folds newly supplied values into the collected parameters and
// recomputes the missing set. nil values are ignored.
func (e *Execution) Merge(def *schema.ToolDefinition, values map[string]any) {
	for k, v := range values {
		if v == nil {
			continue
		}
		e.Collected[k] = v
	}
	e.Recompute(def)
}

// Recompute rebuilds Missing from def's schema minus the collected values,
// in schema declaration order, and moves the execution between COLLECTING
// and READY. FromAuth parameters are the orchestrator's to fill, so they
// never appear in Missing.
func (e *Execution) Recompute(def *schema.ToolDefinition) {
	missing := []string{}
	for _, p := range def.UserParams() {
		if _, ok := e.Collected[p.Name]; !ok {
			missing = append(missing, p.Name)
		}
	}
	e.Missing = missing
	e.UpdatedAt = time.Now()

	switch e.Status {
	case ExecCollecting, ExecReady:
		if len(missing) == 0 {
			e.Status = ExecReady
		} else {
			e.Status = ExecCollecting
		}
	}
}

// Start transitions READY → RUNNING. An execution with missing parameters
// can never start.
func (e *Execution) Start() bool {
	if e.Status != ExecReady || len(e.Missing) > 0 {
		return false
	}
	e.Status = ExecRunning
	e.UpdatedAt = time.Now()
	return true
}

// Finish records the terminal result: SUCCEEDED when res.Success, FAILED
// otherwise. Every path out of RUNNING ends here.
func (e *Execution) Finish(res schema.Result) {
	if res.Success {
		e.Status = ExecSucceeded
	} else {
		e.Status = ExecFailed
	}
	e.Result = &res
	e.UpdatedAt = time.Now()
}

// Abort marks a non-terminal execution FAILED with err. Used when the
// owning session expires or closes so the pending work is surfaced rather
// than silently dropped.
func (e *Execution) Abort(err *schema.Error) {
	if e.Terminal() {
		return
	}
	res := schema.Fail(err.WithSession(e.SessionID).WithExecution(e.ID))
	e.Status = ExecFailed
	e.Result = &res
	e.UpdatedAt = time.Now()
}

// Terminal reports whether the execution has reached SUCCEEDED or FAILED.
func (e *Execution) Terminal() bool {
	return e.Status == ExecSucceeded || e.Status == ExecFailed
}
