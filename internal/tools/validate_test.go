package tools

import (
	"testing"

	"github.com/tellergate/tellergate/internal/schema"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(Catalog())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func fieldNames(fields []schema.FieldError) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Field
	}
	return names
}

// ─── Validate ──────────────────────────────────────────────────────────────

func TestValidate_AllMissingRequiredReported(t *testing.T) {
	reg := newTestRegistry(t)
	def := reg.Get("banking_transfer_funds")

	fields := reg.Validate(def, map[string]any{})
	got := fieldNames(fields)
	want := []string{"authToken", "amount", "toAccount"}
	if len(got) != len(want) {
		t.Fatalf("expected %d field errors, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestValidate_DeclarationOrderThenUnknownSorted(t *testing.T) {
	reg := newTestRegistry(t)
	def := reg.Get("banking_transfer_funds")

	fields := reg.Validate(def, map[string]any{
		"amount": "lots", // wrong type
		"zebra":  1,
		"apple":  2,
	})
	got := fieldNames(fields)
	want := []string{"authToken", "amount", "toAccount", "apple", "zebra"}
	if len(got) != len(want) {
		t.Fatalf("expected fields %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestValidate_ValidTransferPasses(t *testing.T) {
	reg := newTestRegistry(t)
	def := reg.Get("banking_transfer_funds")

	fields := reg.Validate(def, map[string]any{
		"authToken": "tok-u1",
		"amount":    120.50,
		"toAccount": "savings",
	})
	if fields != nil {
		t.Fatalf("expected no field errors, got %v", fields)
	}
}

func TestValidate_EnumRejected(t *testing.T) {
	reg := newTestRegistry(t)
	def := reg.Get("banking_pay_bill")

	fields := reg.Validate(def, map[string]any{
		"authToken": "tok-u1",
		"billType":  "gas",
		"amount":    40.0,
	})
	if len(fields) != 1 || fields[0].Field != "billType" {
		t.Fatalf("expected one billType error, got %v", fields)
	}
}

func TestValidate_MinViolated(t *testing.T) {
	reg := newTestRegistry(t)
	def := reg.Get("banking_transfer_funds")

	fields := reg.Validate(def, map[string]any{
		"authToken": "tok-u1",
		"amount":    0.0,
		"toAccount": "savings",
	})
	if len(fields) != 1 || fields[0].Field != "amount" {
		t.Fatalf("expected one amount error, got %v", fields)
	}
}

func TestValidate_PatternViolated(t *testing.T) {
	reg := newTestRegistry(t)
	def := reg.Get("banking_block_card")

	fields := reg.Validate(def, map[string]any{
		"authToken": "tok-u1",
		"cardLast4": "42a2",
	})
	if len(fields) != 1 || fields[0].Field != "cardLast4" {
		t.Fatalf("expected one cardLast4 error, got %v", fields)
	}
}

func TestValidate_IntAcceptedAsNumber(t *testing.T) {
	reg := newTestRegistry(t)
	def := reg.Get("banking_get_transactions")

	fields := reg.Validate(def, map[string]any{
		"authToken": "tok-u1",
		"limit":     10,
	})
	if fields != nil {
		t.Fatalf("expected no field errors, got %v", fields)
	}
}

func TestValidate_NilValueTreatedAsMissing(t *testing.T) {
	reg := newTestRegistry(t)
	def := reg.Get("banking_find_atm")

	fields := reg.Validate(def, map[string]any{"location": nil})
	if len(fields) != 1 || fields[0].Field != "location" {
		t.Fatalf("expected one location error, got %v", fields)
	}
}
