// Package intent maps detected intents onto tool definitions and extracts
// parameter entities from free text. The real NLU is an external
// collaborator behind the Classifier interface; the built-in keyword
// classifier keeps local mode and tests self-contained.
package intent

import (
	"fmt"

	"github.com/tellergate/tellergate/internal/tools"
)

// toolByIntent is the closed mapping from intent name to tool name.
// Checked against the registry at startup so an unknown intent is a
// startup error, not a runtime surprise.
var toolByIntent = map[string]string{
	"list_accounts":       "banking_get_accounts",
	"balance_inquiry":     "banking_get_account_balance",
	"transaction_history": "banking_get_transactions",
	"transfer_funds":      "banking_transfer_funds",
	"pay_bill":            "banking_pay_bill",
	"card_status":         "banking_get_card_status",
	"block_card":          "banking_block_card",
	"activate_card":       "banking_activate_card",
	"dispute_transaction": "banking_create_dispute",
	"report_fraud":        "banking_report_fraud",
	"request_statement":   "banking_generate_statement",
	"interest_rates":      "banking_get_interest_rates",
	"find_atm":            "banking_find_atm",
}

// Resolve returns the tool name for intent, or "" when no tool matches
// (the orchestrator answers with a fallback response in that case).
func Resolve(intent string) string {
	return toolByIntent[intent]
}

// Intents returns the known intent names.
func Intents() []string {
	out := make([]string, 0, len(toolByIntent))
	for name := range toolByIntent {
		out = append(out, name)
	}
	return out
}

// ValidateMapping checks every mapped tool exists in the registry.
// Call once at startup.
func ValidateMapping(reg *tools.Registry) error {
	for intent, tool := range toolByIntent {
		if reg.Get(tool) == nil {
			return fmt.Errorf("intent %q maps to unknown tool %q", intent, tool)
		}
	}
	return nil
}
