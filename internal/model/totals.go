package model

import "github.com/shopspring/decimal"

// Totals summarizes a list of transactions. Sums are computed with exact
// decimal arithmetic so that long runs of cent values do not drift.
type Totals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Balance decimal.Decimal
}

// Summarize computes income, expense and balance over the given transactions.
func Summarize(txs []Transaction) Totals {
	var income, expense decimal.Decimal
	for _, t := range txs {
		amount := decimal.NewFromFloat(t.Amount)
		if t.Type == TypeIncome {
			income = income.Add(amount)
		} else {
			expense = expense.Add(amount)
		}
	}
	return Totals{
		Income:  income,
		Expense: expense,
		Balance: income.Sub(expense),
	}
}
