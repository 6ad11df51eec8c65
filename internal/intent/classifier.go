package intent

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

// Detection is what the classifier makes of one message.
type Detection struct {
	Intent   string
	Entities map[string]any
}

// Classifier is the boundary to the natural-language intent service.
// Production deployments plug a real NLU in here; callers may also bypass
// classification entirely by supplying a pre-detected intent.
type Classifier interface {
	Classify(ctx context.Context, message string) (Detection, error)
}

// KeywordClassifier is a rule-based Classifier good enough for local mode
// and tests. Rules are checked in order; first hit wins.
type KeywordClassifier struct{}

// NewKeywordClassifier creates a KeywordClassifier.
func NewKeywordClassifier() *KeywordClassifier { return &KeywordClassifier{} }

type rule struct {
	intent   string
	keywords []string
}

// Order matters: more specific phrasings come before generic ones
// ("block my card" before "card").
var rules = []rule{
	{"block_card", []string{"block", "freeze", "lost my card", "stolen", "lock my card"}},
	{"activate_card", []string{"activate", "enable my new card", "new card"}},
	{"card_status", []string{"card status", "status of my card"}},
	{"transfer_funds", []string{"transfer", "send money", "move money", "move $"}},
	{"pay_bill", []string{"pay", "bill"}},
	{"dispute_transaction", []string{"dispute", "didn't make this", "wrong charge", "challenge a charge"}},
	{"report_fraud", []string{"fraud", "compromised", "unauthorized"}},
	{"request_statement", []string{"statement"}},
	{"transaction_history", []string{"transaction", "recent activity", "purchases", "spend"}},
	{"balance_inquiry", []string{"balance", "how much money", "how much do i have"}},
	{"interest_rates", []string{"interest rate", "rates"}},
	{"find_atm", []string{"atm", "branch"}},
	{"list_accounts", []string{"my accounts", "list accounts"}},
}

// Classify never fails; an unmatched message yields an empty intent.
func (c *KeywordClassifier) Classify(_ context.Context, message string) (Detection, error) {
	lower := strings.ToLower(message)
	det := Detection{Entities: ExtractEntities(message)}
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				det.Intent = r.intent
				return det, nil
			}
		}
	}
	return det, nil
}

var (
	amountRe = regexp.MustCompile(`\$\s?(\d+(?:\.\d{1,2})?)|(\d+(?:\.\d{1,2})?)\s?(?:dollars|usd)`)
	last4Re  = regexp.MustCompile(`(?:card|ending(?:\s+in)?)\s\D*(\d{4})\b`)
	txnRe    = regexp.MustCompile(`\btxn-[A-Za-z0-9-]+\b`)
	toRe     = regexp.MustCompile(`(?i)\bto\s+(?:my\s+)?([A-Za-z0-9-]+)`)
	fromRe   = regexp.MustCompile(`(?i)\bfrom\s+(?:my\s+)?([A-Za-z0-9-]+)`)
)

// ExtractEntities pulls parameter values out of free text. Keys match the
// catalog's parameter names so extracted entities merge straight into an
// execution's collected parameters.
func ExtractEntities(message string) map[string]any {
	ents := map[string]any{}
	lower := strings.ToLower(message)

	if m := amountRe.FindStringSubmatch(lower); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if amount, err := strconv.ParseFloat(raw, 64); err == nil {
			ents["amount"] = amount
		}
	}
	if m := last4Re.FindStringSubmatch(lower); m != nil {
		ents["cardLast4"] = m[1]
	}
	if m := txnRe.FindString(message); m != "" {
		ents["transactionId"] = m
	}
	if m := toRe.FindStringSubmatch(message); m != nil {
		if v := strings.ToLower(m[1]); v == "checking" || v == "savings" || strings.Contains(m[1], "-") {
			ents["toAccount"] = m[1]
		}
	}
	if m := fromRe.FindStringSubmatch(message); m != nil {
		if v := strings.ToLower(m[1]); v == "checking" || v == "savings" || strings.Contains(m[1], "-") {
			ents["fromAccount"] = m[1]
		}
	}

	for _, bill := range []string{"electricity", "water", "internet", "credit_card"} {
		if strings.Contains(lower, strings.ReplaceAll(bill, "_", " ")) || strings.Contains(lower, bill) {
			ents["billType"] = bill
			break
		}
	}
	for _, period := range []string{"current_month", "last_month", "last_quarter"} {
		if strings.Contains(lower, strings.ReplaceAll(period, "_", " ")) {
			ents["period"] = period
			break
		}
	}
	for _, product := range []string{"savings", "mortgage", "personal_loan", "cd"} {
		if strings.Contains(lower, "rate") && strings.Contains(lower, strings.ReplaceAll(product, "_", " ")) {
			ents["product"] = product
			break
		}
	}

	return ents
}
