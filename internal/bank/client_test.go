package bank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tellergate/tellergate/internal/schema"
)

// ─── HTTPClient ────────────────────────────────────────────────────────────

func TestHTTPClient_CallShape(t *testing.T) {
	var gotPath, gotAuth string
	var gotArgs map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotArgs)
		_ = json.NewEncoder(w).Encode(map[string]any{"balance": 100.0})
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, time.Second)
	out, err := c.Call(context.Background(), "banking_get_account_balance", map[string]any{
		"authToken": "tok-u1",
		"accountId": "CHK-u1",
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if gotPath != "/v1/ops/banking_get_account_balance" {
		t.Errorf("wrong path: %s", gotPath)
	}
	if gotAuth != "Bearer tok-u1" {
		t.Errorf("wrong auth header: %q", gotAuth)
	}
	if gotArgs["accountId"] != "CHK-u1" {
		t.Errorf("args not forwarded: %v", gotArgs)
	}
	if out["balance"] != 100.0 {
		t.Errorf("response not decoded: %v", out)
	}
}

func TestHTTPClient_ServerErrorIsTransient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, time.Second)
	_, err := c.Call(context.Background(), "banking_get_accounts", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if schema.AsError(err).Kind != schema.KindTransient {
		t.Errorf("5xx must be transient, got kind %v", schema.AsError(err).Kind)
	}
}

func TestHTTPClient_ClientErrorIsNotTransient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such account", http.StatusNotFound)
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, time.Second)
	_, err := c.Call(context.Background(), "banking_get_account_balance", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if schema.AsError(err).Kind != schema.KindClient {
		t.Errorf("4xx must not be retried, got kind %v", schema.AsError(err).Kind)
	}
}

func TestHTTPClient_UnreachableIsTransient(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", time.Second)
	_, err := c.Call(context.Background(), "banking_get_accounts", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if schema.AsError(err).Kind != schema.KindTransient {
		t.Errorf("connection failure must be transient, got kind %v", schema.AsError(err).Kind)
	}
}

// ─── MemoryService ─────────────────────────────────────────────────────────

func TestMemoryService_TransferMovesMoney(t *testing.T) {
	svc := NewMemoryService("u1")
	ctx := context.Background()

	out, err := svc.Call(ctx, "banking_transfer_funds", map[string]any{
		"authToken": TokenFor("u1"),
		"amount":    500.0,
		"toAccount": "savings",
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if out["status"] != "completed" {
		t.Errorf("unexpected status: %v", out["status"])
	}

	bal, err := svc.Call(ctx, "banking_get_account_balance", map[string]any{
		"authToken": TokenFor("u1"),
	})
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal["balance"] != 2043.75 {
		t.Errorf("checking balance after transfer: %v", bal["balance"])
	}

	sav, err := svc.Call(ctx, "banking_get_account_balance", map[string]any{
		"authToken": TokenFor("u1"),
		"accountId": "savings",
	})
	if err != nil {
		t.Fatalf("savings balance: %v", err)
	}
	if sav["balance"] != 12500.0 {
		t.Errorf("savings balance after transfer: %v", sav["balance"])
	}
}

func TestMemoryService_InsufficientFunds(t *testing.T) {
	svc := NewMemoryService("u1")
	_, err := svc.Call(context.Background(), "banking_transfer_funds", map[string]any{
		"authToken": TokenFor("u1"),
		"amount":    1e9,
		"toAccount": "savings",
	})
	if err == nil {
		t.Fatal("expected insufficient-funds error")
	}
}

func TestMemoryService_LazyCustomerOnboarding(t *testing.T) {
	svc := NewMemoryService()
	out, err := svc.Call(context.Background(), "banking_get_accounts", map[string]any{
		"authToken": TokenFor("newcomer"),
	})
	if err != nil {
		t.Fatalf("first contact must seed the customer: %v", err)
	}
	if len(out["accounts"].([]map[string]any)) != 2 {
		t.Errorf("expected 2 seeded accounts: %v", out["accounts"])
	}
}

func TestMemoryService_BadTokenRejected(t *testing.T) {
	svc := NewMemoryService("u1")
	_, err := svc.Call(context.Background(), "banking_get_accounts", map[string]any{
		"authToken": "forged",
	})
	if !schema.IsCode(err, schema.CodeToolExecution) {
		t.Fatalf("expected tool-execution error, got %v", err)
	}
}

func TestMemoryService_PublicOpsNeedNoToken(t *testing.T) {
	svc := NewMemoryService()
	out, err := svc.Call(context.Background(), "banking_get_interest_rates", map[string]any{
		"product": "savings",
	})
	if err != nil {
		t.Fatalf("rates: %v", err)
	}
	if out["rate"] != 0.045 {
		t.Errorf("unexpected rate: %v", out["rate"])
	}
}

func TestMemoryService_BlockCard(t *testing.T) {
	svc := NewMemoryService("u1")
	ctx := context.Background()

	out, err := svc.Call(ctx, "banking_block_card", map[string]any{
		"authToken": TokenFor("u1"),
		"cardLast4": "4242",
	})
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	if out["status"] != "blocked" {
		t.Errorf("unexpected status: %v", out["status"])
	}

	st, err := svc.Call(ctx, "banking_get_card_status", map[string]any{
		"authToken": TokenFor("u1"),
		"cardLast4": "4242",
	})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st["status"] != "blocked" {
		t.Errorf("block not persisted: %v", st["status"])
	}
}
