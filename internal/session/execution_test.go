package session

import (
	"testing"

	"github.com/tellergate/tellergate/internal/schema"
	"github.com/tellergate/tellergate/internal/tools"
)

func transferDef(t *testing.T) *schema.ToolDefinition {
	t.Helper()
	for _, def := range tools.Catalog() {
		if def.Name == "banking_transfer_funds" {
			return &def
		}
	}
	t.Fatal("banking_transfer_funds not in catalog")
	return nil
}

// ─── Collection ────────────────────────────────────────────────────────────

func TestNewExecution_MissingInDeclarationOrder(t *testing.T) {
	def := transferDef(t)
	e := NewExecution("e1", "s1", def, nil)

	if e.Status != ExecCollecting {
		t.Fatalf("expected COLLECTING, got %s", e.Status)
	}
	want := []string{"amount", "toAccount"}
	if len(e.Missing) != len(want) {
		t.Fatalf("expected missing %v, got %v", want, e.Missing)
	}
	for i := range want {
		if e.Missing[i] != want[i] {
			t.Errorf("missing[%d]: expected %q, got %q", i, want[i], e.Missing[i])
		}
	}
}

func TestNewExecution_PrefilledEntitiesShrinkMissing(t *testing.T) {
	def := transferDef(t)
	e := NewExecution("e1", "s1", def, map[string]any{"amount": 50.0})

	if e.Status != ExecCollecting {
		t.Fatalf("expected COLLECTING, got %s", e.Status)
	}
	if len(e.Missing) != 1 || e.Missing[0] != "toAccount" {
		t.Fatalf("expected missing [toAccount], got %v", e.Missing)
	}
}

func TestMerge_CompletesCollection(t *testing.T) {
	def := transferDef(t)
	e := NewExecution("e1", "s1", def, nil)

	e.Merge(def, map[string]any{"amount": 50.0})
	if e.Status != ExecCollecting {
		t.Fatalf("still one param missing, expected COLLECTING, got %s", e.Status)
	}
	e.Merge(def, map[string]any{"toAccount": "savings"})
	if e.Status != ExecReady {
		t.Fatalf("expected READY, got %s", e.Status)
	}
	if len(e.Missing) != 0 {
		t.Errorf("expected no missing params, got %v", e.Missing)
	}
}

func TestMerge_NilValuesIgnored(t *testing.T) {
	def := transferDef(t)
	e := NewExecution("e1", "s1", def, nil)

	e.Merge(def, map[string]any{"amount": nil})
	if len(e.Missing) != 2 {
		t.Fatalf("nil value must not count as collected, missing=%v", e.Missing)
	}
}

// ─── Transitions ───────────────────────────────────────────────────────────

func TestStart_RefusedWhileCollecting(t *testing.T) {
	def := transferDef(t)
	e := NewExecution("e1", "s1", def, nil)

	if e.Start() {
		t.Fatal("Start must refuse while parameters are missing")
	}
	if e.Status != ExecCollecting {
		t.Errorf("status changed to %s", e.Status)
	}
}

func TestStart_ReadyToRunning(t *testing.T) {
	def := transferDef(t)
	e := NewExecution("e1", "s1", def, map[string]any{"amount": 50.0, "toAccount": "savings"})

	if e.Status != ExecReady {
		t.Fatalf("expected READY, got %s", e.Status)
	}
	if !e.Start() {
		t.Fatal("Start refused a READY execution")
	}
	if e.Status != ExecRunning {
		t.Errorf("expected RUNNING, got %s", e.Status)
	}
	if e.Start() {
		t.Error("Start must refuse a RUNNING execution")
	}
}

func TestFinish_TerminalStates(t *testing.T) {
	def := transferDef(t)

	e := NewExecution("e1", "s1", def, map[string]any{"amount": 50.0, "toAccount": "savings"})
	e.Start()
	e.Finish(schema.OK(map[string]any{"confirmation": "c-1"}))
	if e.Status != ExecSucceeded || !e.Terminal() {
		t.Errorf("expected SUCCEEDED terminal, got %s", e.Status)
	}

	e2 := NewExecution("e2", "s1", def, map[string]any{"amount": 50.0, "toAccount": "savings"})
	e2.Start()
	e2.Finish(schema.Fail(schema.NewError(schema.CodeToolExecution, "insufficient funds")))
	if e2.Status != ExecFailed || !e2.Terminal() {
		t.Errorf("expected FAILED terminal, got %s", e2.Status)
	}
}

func TestAbort_TagsSessionAndExecution(t *testing.T) {
	def := transferDef(t)
	e := NewExecution("e1", "s1", def, nil)

	e.Abort(schema.NewError(schema.CodeSessionExpired, "session expired"))
	if e.Status != ExecFailed {
		t.Fatalf("expected FAILED, got %s", e.Status)
	}
	if e.Result == nil || e.Result.Err == nil {
		t.Fatal("abort must record a failed result")
	}
	if e.Result.Err.SessionID != "s1" || e.Result.Err.ExecutionID != "e1" {
		t.Errorf("abort error not tagged: %+v", e.Result.Err)
	}
}

func TestAbort_TerminalExecutionUntouched(t *testing.T) {
	def := transferDef(t)
	e := NewExecution("e1", "s1", def, map[string]any{"amount": 50.0, "toAccount": "savings"})
	e.Start()
	e.Finish(schema.OK(map[string]any{"confirmation": "c-1"}))

	e.Abort(schema.NewError(schema.CodeSessionExpired, "session expired"))
	if e.Status != ExecSucceeded {
		t.Errorf("abort must not overwrite a terminal result, got %s", e.Status)
	}
}
