package cache

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"organiza/internal/model"
)

// TransactionRepo is the local cache repository for transactions.
type TransactionRepo struct {
	db *DB
}

// NewTransactionRepo creates a transaction repository over the shared cache DB.
func NewTransactionRepo(db *DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

// Persistent reports that this store survives restarts, which makes it a
// valid bootstrap source for the coordinator.
func (r *TransactionRepo) Persistent() bool { return true }

// GetAll returns all transactions owned by userID, newest date first.
// An empty result is a nil slice, not an error.
func (r *TransactionRepo) GetAll(ctx context.Context, userID string) ([]model.Transaction, error) {
	query := `
	SELECT id, type, description, category, date, date_ts, amount, created_at
	FROM transactions
	WHERE user_id = ?
	ORDER BY date_ts DESC, created_at DESC
	`

	rows, err := r.db.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		var t model.Transaction
		var description, category, date sql.NullString
		var amount sql.NullFloat64

		if err := rows.Scan(&t.ID, &t.Type, &description, &category, &date, &t.DateTS, &amount, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		t.Description = description.String
		t.Category = category.String
		t.Date = date.String
		t.Amount = amount.Float64
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txs, nil
}

// Insert upserts a transaction keyed by id. A transaction with missing
// derived fields (DateTS, CreatedAt) is rejected loudly: that means the
// construction pipeline upstream is broken, not that the user typed
// something wrong.
func (r *TransactionRepo) Insert(ctx context.Context, userID string, t model.Transaction) error {
	return insertTransaction(ctx, r.db.conn, userID, t)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTransaction(ctx context.Context, ex execer, userID string, t model.Transaction) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}

	query := `
	INSERT INTO transactions (id, user_id, type, description, category, date, date_ts, amount, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		user_id = excluded.user_id,
		type = excluded.type,
		description = excluded.description,
		category = excluded.category,
		date = excluded.date,
		date_ts = excluded.date_ts,
		amount = excluded.amount,
		created_at = excluded.created_at
	`

	if _, err := ex.ExecContext(ctx, query,
		t.ID, userID, t.Type, t.Description, t.Category, t.Date, t.DateTS, t.Amount, t.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to upsert transaction %s: %w", t.ID, err)
	}
	return nil
}

// Update patches only the supplied fields of the row scoped to (userID, id).
// Immutable and unknown fields are dropped; an empty surviving patch is a
// no-op.
func (r *TransactionRepo) Update(ctx context.Context, userID, id string, fields model.Patch) error {
	fields = model.Transaction{}.NormalizePatch(fields)

	var sets []string
	var args []any
	for k, v := range fields {
		switch k {
		case "type", "description", "category", "date":
			sets = append(sets, columnFor(k)+" = ?")
			args = append(args, model.AsString(v))
		case "dateTs":
			ts, _ := model.AsInt64(v)
			sets = append(sets, "date_ts = ?")
			args = append(args, ts)
		case "amount":
			f, _ := model.AsFloat(v)
			sets = append(sets, "amount = ?")
			args = append(args, f)
		}
	}
	if len(sets) == 0 {
		return nil
	}

	query := "UPDATE transactions SET " + strings.Join(sets, ", ") + " WHERE id = ? AND user_id = ?"
	args = append(args, id, userID)

	if _, err := r.db.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", id, err)
	}
	return nil
}

// Remove deletes the row scoped to (userID, id). No-op if absent.
func (r *TransactionRepo) Remove(ctx context.Context, userID, id string) error {
	if _, err := r.db.conn.ExecContext(ctx,
		"DELETE FROM transactions WHERE id = ? AND user_id = ?", id, userID,
	); err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}
	return nil
}

// SyncFromRemote replaces the user's entire partition with the remote list.
// The delete and reinserts run in a single transaction so concurrent readers
// never observe the transient empty state.
func (r *TransactionRepo) SyncFromRemote(ctx context.Context, userID string, remote []model.Transaction) error {
	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin resync transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM transactions WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to clear transactions for resync: %w", err)
	}

	for _, t := range remote {
		if err := insertTransaction(ctx, tx, userID, t); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit resync: %w", err)
	}
	return nil
}

// columnFor maps a wire field name to its column. The only divergence is
// the derived sort key (dateTs -> date_ts); everything else matches.
func columnFor(field string) string {
	if field == "dateTs" {
		return "date_ts"
	}
	return field
}
