package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction type values.
const (
	TypeIncome  = "income"
	TypeExpense = "expense"
)

// DefaultCategory is assigned when a transaction arrives with a blank category.
const DefaultCategory = "Sem categoria"

// Transaction is a financial movement (income or expense).
//
// Date is the user-facing dd/MM/yyyy display string; DateTS is the derived
// epoch-millisecond sort key and must always agree with Date. Any mutation
// that touches Date recomputes DateTS in the same patch.
type Transaction struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Date        string  `json:"date"`
	DateTS      int64   `json:"dateTs"`
	Amount      float64 `json:"amount"`
	CreatedAt   string  `json:"created_at"`
}

// TransactionInput is the caller-supplied shape for creating a transaction.
// Amount is free text from a form field and accepts both comma and dot
// decimals ("3,50" and "3.50" both normalize to 3.5).
type TransactionInput struct {
	Type        string
	Description string
	Category    string
	Date        string
	Amount      string
}

// NormalizeAmount parses a comma- or dot-decimal amount string.
// Unparseable input normalizes to 0.
func NormalizeAmount(v string) float64 {
	s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// NewTransaction builds a transaction from form input, applying defaults and
// computing the derived DateTS. ID and CreatedAt are left for Finalize.
func NewTransaction(in TransactionInput) Transaction {
	typ := in.Type
	if typ != TypeIncome {
		typ = TypeExpense
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = DefaultCategory
	}

	return Transaction{
		Type:        typ,
		Description: strings.TrimSpace(in.Description),
		Category:    category,
		Date:        in.Date,
		DateTS:      DateToEpochMS(in.Date),
		Amount:      NormalizeAmount(in.Amount),
	}
}

// EntityID returns the record id.
func (t Transaction) EntityID() string { return t.ID }

// Validate guards the derived fields before a durable write. A transaction
// missing DateTS or CreatedAt means the construction pipeline is broken, so
// this fails loudly rather than papering over it.
func (t Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("transaction: id is required")
	}
	if t.DateTS <= 0 {
		return fmt.Errorf("transaction %s: dateTs missing or invalid", t.ID)
	}
	if t.CreatedAt == "" {
		return fmt.Errorf("transaction %s: created_at is required", t.ID)
	}
	return nil
}

// SortsBefore orders by DateTS descending, then created_at descending.
func (t Transaction) SortsBefore(o Transaction) bool {
	if t.DateTS != o.DateTS {
		return t.DateTS > o.DateTS
	}
	return isoToEpochMS(t.CreatedAt) > isoToEpochMS(o.CreatedAt)
}

// Sanitize validates a transaction received from the remote store.
// Returns false when the record must be dropped (missing id); otherwise
// returns a copy with field defaults applied.
func (t Transaction) Sanitize(now time.Time) (Transaction, bool) {
	if strings.TrimSpace(t.ID) == "" {
		return t, false
	}
	if t.Type != TypeIncome {
		t.Type = TypeExpense
	}
	if strings.TrimSpace(t.Category) == "" {
		t.Category = DefaultCategory
	}
	if t.CreatedAt == "" {
		t.CreatedAt = ISOTime(now)
	}
	if t.DateTS <= 0 {
		t.DateTS = dateToEpochMSAt(t.Date, now)
	}
	return t, true
}

// Finalize fills the identity fields of a freshly created transaction.
func (t Transaction) Finalize(id string, now time.Time) Transaction {
	if t.ID == "" {
		t.ID = id
	}
	if t.CreatedAt == "" {
		t.CreatedAt = ISOTime(now)
	}
	if strings.TrimSpace(t.Category) == "" {
		t.Category = DefaultCategory
	}
	if t.DateTS <= 0 {
		t.DateTS = dateToEpochMSAt(t.Date, now)
	}
	return t
}

// NormalizePatch strips immutable fields and keeps derived fields coherent:
// a patched date always recomputes dateTs, and amounts are coerced to a
// normalized number.
func (t Transaction) NormalizePatch(p Patch) Patch {
	out := p.Strip()
	if out.Has("date") {
		out["dateTs"] = DateToEpochMS(AsString(out["date"]))
	}
	if out.Has("amount") {
		if f, ok := AsFloat(out["amount"]); ok {
			out["amount"] = f
		} else {
			out["amount"] = float64(0)
		}
	}
	return out
}

// WithPatch returns a copy with the normalized patch applied.
func (t Transaction) WithPatch(p Patch) Transaction {
	p = t.NormalizePatch(p)
	for k, v := range p {
		switch k {
		case "type":
			t.Type = AsString(v)
		case "description":
			t.Description = AsString(v)
		case "category":
			t.Category = AsString(v)
		case "date":
			t.Date = AsString(v)
		case "dateTs":
			if ts, ok := AsInt64(v); ok {
				t.DateTS = ts
			}
		case "amount":
			if f, ok := AsFloat(v); ok {
				t.Amount = f
			}
		}
	}
	return t
}
