package bank

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tellergate/tellergate/internal/schema"
)

// TokenFor derives the local-mode auth token for a user. The real domain
// service issues opaque tokens; the in-memory service only needs a stable
// reversible mapping.
func TokenFor(userID string) string { return "tok-" + userID }

func userFromToken(token string) (string, bool) {
	id, ok := strings.CutPrefix(token, "tok-")
	return id, ok && id != ""
}

type account struct {
	ID        string
	Type      string // checking | savings
	Balance   float64
	Available float64
}

type card struct {
	Last4  string
	Type   string // debit | credit
	Status string // active | blocked | inactive
}

type transaction struct {
	ID       string
	Account  string
	Amount   float64
	Merchant string
	When     time.Time
}

type customer struct {
	accounts     []*account
	cards        []*card
	transactions []*transaction
}

// MemoryService is an in-process domain service with seeded customers.
// Safe for concurrent use.
type MemoryService struct {
	mu        sync.Mutex
	customers map[string]*customer
}

// NewMemoryService seeds a MemoryService with one demo customer per id.
func NewMemoryService(userIDs ...string) *MemoryService {
	s := &MemoryService{customers: make(map[string]*customer)}
	for _, id := range userIDs {
		s.customers[id] = seedCustomer(id)
	}
	return s
}

func seedCustomer(userID string) *customer {
	checking := &account{ID: "CHK-" + userID, Type: "checking", Balance: 2543.75, Available: 2543.75}
	savings := &account{ID: "SAV-" + userID, Type: "savings", Balance: 12000.00, Available: 12000.00}
	return &customer{
		accounts: []*account{checking, savings},
		cards: []*card{
			{Last4: "4242", Type: "debit", Status: "active"},
			{Last4: "1111", Type: "credit", Status: "inactive"},
		},
		transactions: []*transaction{
			{ID: "txn-001", Account: checking.ID, Amount: -42.10, Merchant: "Grocery Mart", When: time.Now().Add(-48 * time.Hour)},
			{ID: "txn-002", Account: checking.ID, Amount: -9.99, Merchant: "Streaming Co", When: time.Now().Add(-24 * time.Hour)},
			{ID: "txn-003", Account: checking.ID, Amount: 1500.00, Merchant: "Payroll", When: time.Now().Add(-12 * time.Hour)},
		},
	}
}

// Call implements Service.
func (s *MemoryService) Call(ctx context.Context, op string, args map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Public operations need no customer.
	switch op {
	case "banking_get_interest_rates":
		return s.interestRates(args), nil
	case "banking_find_atm":
		return s.findATM(args), nil
	}

	token, _ := args["authToken"].(string)
	userID, ok := userFromToken(token)
	if !ok {
		return nil, schema.NewError(schema.CodeToolExecution, "bank: unknown customer token")
	}
	cust := s.customers[userID]
	if cust == nil {
		// Local mode onboards any customer on first contact.
		cust = seedCustomer(userID)
		s.customers[userID] = cust
	}

	switch op {
	case "banking_get_accounts":
		return s.getAccounts(cust), nil
	case "banking_get_account_balance":
		return s.getBalance(cust, args)
	case "banking_get_transactions":
		return s.getTransactions(cust, args), nil
	case "banking_transfer_funds":
		return s.transfer(cust, args)
	case "banking_pay_bill":
		return s.payBill(cust, args)
	case "banking_get_card_status":
		return s.cardStatus(cust, args)
	case "banking_block_card":
		return s.setCardStatus(cust, args, "blocked")
	case "banking_activate_card":
		return s.setCardStatus(cust, args, "active")
	case "banking_create_dispute":
		return s.createDispute(cust, args)
	case "banking_report_fraud":
		return map[string]any{
			"caseId": "fraud-" + uuid.NewString()[:8],
			"status": "received",
		}, nil
	case "banking_generate_statement":
		return s.generateStatement(cust, args), nil
	}

	return nil, schema.NewError(schema.CodeToolExecution, "bank: unsupported operation %q", op)
}

func (s *MemoryService) getAccounts(c *customer) map[string]any {
	var list []map[string]any
	for _, a := range c.accounts {
		list = append(list, map[string]any{
			"accountId": a.ID, "type": a.Type, "balance": a.Balance,
		})
	}
	return map[string]any{"accounts": list}
}

// findAccount resolves an explicit accountId, an account-type word
// ("checking"/"savings"), or the primary (first) account when unset.
func (c *customer) findAccount(ref string) *account {
	if ref == "" {
		return c.accounts[0]
	}
	for _, a := range c.accounts {
		if a.ID == ref || a.Type == strings.ToLower(ref) {
			return a
		}
	}
	return nil
}

func (s *MemoryService) getBalance(c *customer, args map[string]any) (map[string]any, error) {
	ref, _ := args["accountId"].(string)
	acct := c.findAccount(ref)
	if acct == nil {
		return nil, schema.NewError(schema.CodeToolExecution, "bank: no account %q", ref)
	}
	return map[string]any{
		"accountId": acct.ID,
		"type":      acct.Type,
		"balance":   acct.Balance,
		"available": acct.Available,
		"currency":  "USD",
	}, nil
}

func (s *MemoryService) getTransactions(c *customer, args map[string]any) map[string]any {
	limit := 10
	if n, ok := args["limit"].(float64); ok {
		limit = int(n)
	}
	var list []map[string]any
	for i := len(c.transactions) - 1; i >= 0 && len(list) < limit; i-- {
		t := c.transactions[i]
		list = append(list, map[string]any{
			"transactionId": t.ID,
			"accountId":     t.Account,
			"amount":        t.Amount,
			"merchant":      t.Merchant,
			"timestamp":     t.When.UTC().Format(time.RFC3339),
		})
	}
	return map[string]any{"transactions": list}
}

func (s *MemoryService) transfer(c *customer, args map[string]any) (map[string]any, error) {
	amount, _ := args["amount"].(float64)
	fromRef, _ := args["fromAccount"].(string)
	toRef, _ := args["toAccount"].(string)

	from := c.findAccount(fromRef)
	if from == nil {
		return nil, schema.NewError(schema.CodeToolExecution, "bank: no source account %q", fromRef)
	}
	if from.Available < amount {
		return nil, schema.NewError(schema.CodeToolExecution,
			"bank: insufficient funds: available %.2f, requested %.2f", from.Available, amount)
	}

	from.Balance -= amount
	from.Available -= amount
	if to := c.findAccount(toRef); to != nil {
		to.Balance += amount
		to.Available += amount
	}

	ref := "xfer-" + uuid.NewString()[:8]
	c.transactions = append(c.transactions, &transaction{
		ID: ref, Account: from.ID, Amount: -amount,
		Merchant: "Transfer to " + toRef, When: time.Now(),
	})
	return map[string]any{
		"reference":   ref,
		"fromAccount": from.ID,
		"toAccount":   toRef,
		"amount":      amount,
		"status":      "completed",
	}, nil
}

func (s *MemoryService) payBill(c *customer, args map[string]any) (map[string]any, error) {
	amount, _ := args["amount"].(float64)
	billType, _ := args["billType"].(string)

	from := c.accounts[0]
	if from.Available < amount {
		return nil, schema.NewError(schema.CodeToolExecution, "bank: insufficient funds for bill")
	}
	from.Balance -= amount
	from.Available -= amount

	return map[string]any{
		"reference": "bill-" + uuid.NewString()[:8],
		"billType":  billType,
		"amount":    amount,
		"status":    "paid",
	}, nil
}

func (c *customer) findCard(last4 string) *card {
	for _, cd := range c.cards {
		if cd.Last4 == last4 {
			return cd
		}
	}
	return nil
}

func (s *MemoryService) cardStatus(c *customer, args map[string]any) (map[string]any, error) {
	last4, _ := args["cardLast4"].(string)
	cd := c.findCard(last4)
	if cd == nil {
		return nil, schema.NewError(schema.CodeToolExecution, "bank: no card ending %s", last4)
	}
	return map[string]any{"cardLast4": cd.Last4, "type": cd.Type, "status": cd.Status}, nil
}

func (s *MemoryService) setCardStatus(c *customer, args map[string]any, status string) (map[string]any, error) {
	last4, _ := args["cardLast4"].(string)
	cd := c.findCard(last4)
	if cd == nil {
		return nil, schema.NewError(schema.CodeToolExecution, "bank: no card ending %s", last4)
	}
	cd.Status = status
	return map[string]any{"cardLast4": cd.Last4, "status": cd.Status}, nil
}

func (s *MemoryService) createDispute(c *customer, args map[string]any) (map[string]any, error) {
	txnID, _ := args["transactionId"].(string)
	for _, t := range c.transactions {
		if t.ID == txnID {
			return map[string]any{
				"disputeId":     "disp-" + uuid.NewString()[:8],
				"transactionId": txnID,
				"status":        "open",
			}, nil
		}
	}
	return nil, schema.NewError(schema.CodeToolExecution, "bank: no transaction %q", txnID)
}

func (s *MemoryService) generateStatement(c *customer, args map[string]any) map[string]any {
	period, _ := args["period"].(string)
	if period == "" {
		period = "current_month"
	}
	ref, _ := args["accountId"].(string)
	acct := c.findAccount(ref)
	if acct == nil {
		acct = c.accounts[0]
	}
	return map[string]any{
		"statementId": "stmt-" + uuid.NewString()[:8],
		"accountId":   acct.ID,
		"period":      period,
		"url":         fmt.Sprintf("https://statements.example.com/%s/%s.pdf", acct.ID, period),
	}
}

func (s *MemoryService) interestRates(args map[string]any) map[string]any {
	rates := map[string]any{
		"savings":       0.045,
		"mortgage":      0.0625,
		"personal_loan": 0.099,
		"cd":            0.051,
	}
	if product, _ := args["product"].(string); product != "" {
		return map[string]any{"product": product, "rate": rates[product]}
	}
	return map[string]any{"rates": rates}
}

func (s *MemoryService) findATM(args map[string]any) map[string]any {
	location, _ := args["location"].(string)
	return map[string]any{
		"location": location,
		"results": []map[string]any{
			{"name": "Main St Branch", "address": "100 Main St", "distanceKm": 0.4, "hasATM": true},
			{"name": "Market Sq ATM", "address": "22 Market Sq", "distanceKm": 1.1, "hasATM": true},
		},
	}
}
