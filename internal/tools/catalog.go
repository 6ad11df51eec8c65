// Package tools holds the banking tool catalog, the registry built from it,
// parameter validation, and the executor that dispatches validated calls to
// the banking domain service.
package tools

import "github.com/tellergate/tellergate/internal/schema"

// Tool categories.
const (
	CategoryAccounts   = "accounts"
	CategoryPayments   = "payments"
	CategoryCards      = "cards"
	CategoryDisputes   = "disputes"
	CategoryStatements = "statements"
	CategoryInfo       = "info"
)

// authParam is the auth-context parameter shared by customer-data tools.
// It is validated like any other required parameter but never asked of the
// user; the orchestrator injects the session's token before dispatch.
func authParam() schema.ParamSpec {
	return schema.ParamSpec{
		Name:        "authToken",
		Type:        schema.ParamString,
		Required:    true,
		FromAuth:    true,
		Description: "Bearer token identifying the customer",
	}
}

// Catalog returns the static banking tool catalog. Called once at process
// start; the registry built from it is never mutated.
func Catalog() []schema.ToolDefinition {
	return []schema.ToolDefinition{
		{
			Name:        "banking_get_accounts",
			Category:    CategoryAccounts,
			Description: "List the customer's accounts with type and status",
			Idempotent:  true,
			Params:      []schema.ParamSpec{authParam()},
		},
		{
			Name:        "banking_get_account_balance",
			Category:    CategoryAccounts,
			Description: "Current and available balance of one account",
			Idempotent:  true,
			Params: []schema.ParamSpec{
				authParam(),
				{Name: "accountId", Type: schema.ParamString,
					Description: "Account to query; defaults to the primary account"},
			},
		},
		{
			Name:        "banking_get_transactions",
			Category:    CategoryAccounts,
			Description: "Recent transactions of one account",
			Idempotent:  true,
			Params: []schema.ParamSpec{
				authParam(),
				{Name: "accountId", Type: schema.ParamString,
					Description: "Account to query; defaults to the primary account"},
				{Name: "limit", Type: schema.ParamNumber,
					Min: schema.MinOf(1), Max: schema.MaxOf(100),
					Description: "Number of transactions to return (1-100)"},
			},
		},
		{
			Name:        "banking_transfer_funds",
			Category:    CategoryPayments,
			Description: "Transfer money between the customer's accounts or to a payee",
			Params: []schema.ParamSpec{
				authParam(),
				{Name: "amount", Type: schema.ParamNumber, Required: true,
					Min:         schema.MinOf(0.01),
					Description: "Amount to transfer"},
				{Name: "toAccount", Type: schema.ParamString, Required: true,
					Description: "Destination account or payee"},
				{Name: "fromAccount", Type: schema.ParamString,
					Description: "Source account; defaults to the primary account"},
			},
		},
		{
			Name:        "banking_pay_bill",
			Category:    CategoryPayments,
			Description: "Pay a bill from the customer's account",
			Params: []schema.ParamSpec{
				authParam(),
				{Name: "billType", Type: schema.ParamString, Required: true,
					Enum:        []string{"electricity", "water", "internet", "credit_card"},
					Description: "Kind of bill to pay"},
				{Name: "amount", Type: schema.ParamNumber, Required: true,
					Min:         schema.MinOf(0.01),
					Description: "Amount to pay"},
			},
		},
		{
			Name:        "banking_get_card_status",
			Category:    CategoryCards,
			Description: "Status of one of the customer's cards",
			Idempotent:  true,
			Params: []schema.ParamSpec{
				authParam(),
				{Name: "cardLast4", Type: schema.ParamString, Required: true,
					Pattern:     `^\d{4}$`,
					Description: "Last four digits of the card"},
			},
		},
		{
			Name:        "banking_block_card",
			Category:    CategoryCards,
			Description: "Block a card immediately",
			Params: []schema.ParamSpec{
				authParam(),
				{Name: "cardLast4", Type: schema.ParamString, Required: true,
					Pattern:     `^\d{4}$`,
					Description: "Last four digits of the card"},
				{Name: "reason", Type: schema.ParamString,
					Enum:        []string{"lost", "stolen", "damaged", "user_requested"},
					Description: "Why the card is being blocked"},
			},
		},
		{
			Name:        "banking_activate_card",
			Category:    CategoryCards,
			Description: "Activate a newly issued card",
			Params: []schema.ParamSpec{
				authParam(),
				{Name: "cardLast4", Type: schema.ParamString, Required: true,
					Pattern:     `^\d{4}$`,
					Description: "Last four digits of the card"},
			},
		},
		{
			Name:        "banking_create_dispute",
			Category:    CategoryDisputes,
			Description: "Open a dispute for a transaction",
			Params: []schema.ParamSpec{
				authParam(),
				{Name: "transactionId", Type: schema.ParamString, Required: true,
					Description: "Transaction being disputed"},
				{Name: "reason", Type: schema.ParamString,
					Description: "Free-text reason for the dispute"},
			},
		},
		{
			Name:        "banking_report_fraud",
			Category:    CategoryDisputes,
			Description: "Report suspected fraud on the customer's accounts",
			Params: []schema.ParamSpec{
				authParam(),
				{Name: "description", Type: schema.ParamString,
					Description: "What happened"},
			},
		},
		{
			Name:        "banking_generate_statement",
			Category:    CategoryStatements,
			Description: "Generate an account statement",
			Params: []schema.ParamSpec{
				authParam(),
				{Name: "accountId", Type: schema.ParamString,
					Description: "Account to generate a statement for"},
				{Name: "period", Type: schema.ParamString,
					Enum:        []string{"current_month", "last_month", "last_quarter"},
					Description: "Statement period; defaults to current_month"},
			},
		},
		{
			Name:        "banking_get_interest_rates",
			Category:    CategoryInfo,
			Description: "Current interest rates by product",
			Idempotent:  true,
			Params: []schema.ParamSpec{
				{Name: "product", Type: schema.ParamString,
					Enum:        []string{"savings", "mortgage", "personal_loan", "cd"},
					Description: "Product to quote; omit for all products"},
			},
		},
		{
			Name:        "banking_find_atm",
			Category:    CategoryInfo,
			Description: "Find nearby ATMs or branches",
			Idempotent:  true,
			Params: []schema.ParamSpec{
				{Name: "location", Type: schema.ParamString, Required: true,
					Description: "City, ZIP code, or address to search near"},
			},
		},
	}
}
