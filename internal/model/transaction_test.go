package model

import (
	"testing"
	"time"
)

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"3,50", 3.5},
		{"3.50", 3.5},
		{" 1200,00 ", 1200},
		{"0", 0},
		{"abc", 0},
		{"", 0},
		{"1.234", 1.234},
	}

	for _, tt := range tests {
		if got := NormalizeAmount(tt.in); got != tt.want {
			t.Errorf("NormalizeAmount(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDateToEpochMS(t *testing.T) {
	got := DateToEpochMS("05/03/2024")
	want := time.Date(2024, time.March, 5, 12, 0, 0, 0, time.Local).UnixMilli()
	if got != want {
		t.Errorf("DateToEpochMS = %d, want %d", got, want)
	}
}

func TestDateToEpochMS_Invalid(t *testing.T) {
	before := time.Now().UnixMilli()
	got := DateToEpochMS("not-a-date")
	after := time.Now().UnixMilli()

	if got < before || got > after {
		t.Errorf("invalid date should fall back to now, got %d outside [%d, %d]", got, before, after)
	}
}

func TestNewTransaction_Defaults(t *testing.T) {
	tx := NewTransaction(TransactionInput{
		Type:        "expense",
		Description: "Coffee",
		Category:    "",
		Date:        "05/03/2024",
		Amount:      "3,50",
	})

	if tx.Amount != 3.5 {
		t.Errorf("amount = %v, want 3.5", tx.Amount)
	}
	if tx.Category != DefaultCategory {
		t.Errorf("category = %q, want %q", tx.Category, DefaultCategory)
	}
	want := time.Date(2024, time.March, 5, 12, 0, 0, 0, time.Local).UnixMilli()
	if tx.DateTS != want {
		t.Errorf("dateTs = %d, want %d", tx.DateTS, want)
	}
	if tx.Type != TypeExpense {
		t.Errorf("type = %q, want %q", tx.Type, TypeExpense)
	}
}

func TestNewTransaction_UnknownTypeBecomesExpense(t *testing.T) {
	tx := NewTransaction(TransactionInput{Type: "transfer", Date: "01/01/2024", Amount: "1"})
	if tx.Type != TypeExpense {
		t.Errorf("type = %q, want %q", tx.Type, TypeExpense)
	}
}

func TestTransactionFinalize(t *testing.T) {
	now := time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC)
	tx := NewTransaction(TransactionInput{Type: "income", Date: "01/06/2024", Amount: "10"})

	out := tx.Finalize("1717000000000", now)
	if out.ID != "1717000000000" {
		t.Errorf("id = %q", out.ID)
	}
	if out.CreatedAt != ISOTime(now) {
		t.Errorf("created_at = %q, want %q", out.CreatedAt, ISOTime(now))
	}

	// Finalize never overwrites an existing id.
	again := out.Finalize("other", now.Add(time.Hour))
	if again.ID != "1717000000000" || again.CreatedAt != out.CreatedAt {
		t.Errorf("Finalize overwrote identity fields: %+v", again)
	}
}

func TestTransactionWithPatch_DateRecomputesDateTS(t *testing.T) {
	tx := NewTransaction(TransactionInput{Type: "expense", Date: "05/03/2024", Amount: "3,50"})
	tx = tx.Finalize("id-1", time.Now())

	patched := tx.WithPatch(Patch{"date": "10/04/2024"})
	want := time.Date(2024, time.April, 10, 12, 0, 0, 0, time.Local).UnixMilli()
	if patched.DateTS != want {
		t.Errorf("dateTs = %d, want %d", patched.DateTS, want)
	}
	if patched.Date != "10/04/2024" {
		t.Errorf("date = %q", patched.Date)
	}
}

func TestTransactionWithPatch_OmittedDateKeepsDateTS(t *testing.T) {
	tx := NewTransaction(TransactionInput{Type: "expense", Date: "05/03/2024", Amount: "3,50"})
	tx = tx.Finalize("id-1", time.Now())

	patched := tx.WithPatch(Patch{"description": "Groceries", "amount": "12,30"})
	if patched.DateTS != tx.DateTS {
		t.Errorf("dateTs changed: %d -> %d", tx.DateTS, patched.DateTS)
	}
	if patched.Amount != 12.3 {
		t.Errorf("amount = %v, want 12.3", patched.Amount)
	}
	if patched.Description != "Groceries" {
		t.Errorf("description = %q", patched.Description)
	}
	// Untouched fields survive byte-identical.
	if patched.Category != tx.Category || patched.Type != tx.Type || patched.CreatedAt != tx.CreatedAt {
		t.Errorf("untouched fields changed: %+v vs %+v", patched, tx)
	}
}

func TestTransactionNormalizePatch_StripsImmutable(t *testing.T) {
	tx := Transaction{ID: "a", CreatedAt: "2024-01-01T00:00:00.000Z"}
	p := tx.NormalizePatch(Patch{"id": "b", "created_at": "x", "user_id": "u", "description": "ok"})

	if p.Has("id") || p.Has("created_at") || p.Has("user_id") {
		t.Errorf("immutable fields not stripped: %v", p)
	}
	if !p.Has("description") {
		t.Errorf("legitimate field stripped: %v", p)
	}
}

func TestTransactionSortsBefore(t *testing.T) {
	a := Transaction{ID: "a", DateTS: 200}
	b := Transaction{ID: "b", DateTS: 100}
	if !a.SortsBefore(b) {
		t.Error("newer dateTs should sort first")
	}

	c := Transaction{ID: "c", DateTS: 100, CreatedAt: "2024-01-02T00:00:00Z"}
	d := Transaction{ID: "d", DateTS: 100, CreatedAt: "2024-01-01T00:00:00Z"}
	if !c.SortsBefore(d) {
		t.Error("equal dateTs should break ties on created_at")
	}
}

func TestSummarize(t *testing.T) {
	txs := []Transaction{
		{Type: TypeIncome, Amount: 1200},
		{Type: TypeExpense, Amount: 30.10},
		{Type: TypeExpense, Amount: 0.20},
		{Type: TypeIncome, Amount: 150},
	}

	got := Summarize(txs)
	if got.Income.String() != "1350" {
		t.Errorf("income = %s, want 1350", got.Income)
	}
	if got.Expense.String() != "30.3" {
		t.Errorf("expense = %s, want 30.3", got.Expense)
	}
	if got.Balance.String() != "1319.7" {
		t.Errorf("balance = %s, want 1319.7", got.Balance)
	}
}
