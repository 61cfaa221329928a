package cache

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"organiza/internal/model"
)

// MealRepo is the local cache repository for meals.
type MealRepo struct {
	db *DB
}

// NewMealRepo creates a meal repository over the shared cache DB.
func NewMealRepo(db *DB) *MealRepo {
	return &MealRepo{db: db}
}

// Persistent reports that this store survives restarts.
func (r *MealRepo) Persistent() bool { return true }

// GetAll returns all meals owned by userID, newest first.
func (r *MealRepo) GetAll(ctx context.Context, userID string) ([]model.Meal, error) {
	query := `
	SELECT id, day, type, title, notes, calories, tag, created_at
	FROM meals
	WHERE user_id = ?
	ORDER BY created_at DESC
	`

	rows, err := r.db.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query meals: %w", err)
	}
	defer rows.Close()

	var meals []model.Meal
	for rows.Next() {
		var m model.Meal
		var notes, tag sql.NullString
		var calories sql.NullFloat64

		if err := rows.Scan(&m.ID, &m.Day, &m.Type, &m.Title, &notes, &calories, &tag, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}

		m.Notes = notes.String
		m.Tag = tag.String
		if calories.Valid {
			c := calories.Float64
			m.Calories = &c
		}
		meals = append(meals, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating meals: %w", err)
	}

	return meals, nil
}

// Insert upserts a meal keyed by id. Missing created_at fails loudly.
func (r *MealRepo) Insert(ctx context.Context, userID string, m model.Meal) error {
	return insertMeal(ctx, r.db.conn, userID, m)
}

func insertMeal(ctx context.Context, ex execer, userID string, m model.Meal) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid meal: %w", err)
	}

	var calories any
	if m.Calories != nil {
		calories = *m.Calories
	}

	query := `
	INSERT INTO meals (id, user_id, day, type, title, notes, calories, tag, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		user_id = excluded.user_id,
		day = excluded.day,
		type = excluded.type,
		title = excluded.title,
		notes = excluded.notes,
		calories = excluded.calories,
		tag = excluded.tag,
		created_at = excluded.created_at
	`

	if _, err := ex.ExecContext(ctx, query,
		m.ID, userID, m.Day, m.Type, m.Title, m.Notes, calories, m.Tag, m.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to upsert meal %s: %w", m.ID, err)
	}
	return nil
}

// Update patches only the supplied fields of the row scoped to (userID, id).
func (r *MealRepo) Update(ctx context.Context, userID, id string, fields model.Patch) error {
	fields = model.Meal{}.NormalizePatch(fields)

	var sets []string
	var args []any
	for k, v := range fields {
		switch k {
		case "day", "type", "title", "notes", "tag":
			sets = append(sets, k+" = ?")
			args = append(args, model.AsString(v))
		case "calories":
			sets = append(sets, "calories = ?")
			if v == nil {
				args = append(args, nil)
			} else {
				f, _ := model.AsFloat(v)
				args = append(args, f)
			}
		}
	}
	if len(sets) == 0 {
		return nil
	}

	query := "UPDATE meals SET " + strings.Join(sets, ", ") + " WHERE id = ? AND user_id = ?"
	args = append(args, id, userID)

	if _, err := r.db.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update meal %s: %w", id, err)
	}
	return nil
}

// Remove deletes the row scoped to (userID, id). No-op if absent.
func (r *MealRepo) Remove(ctx context.Context, userID, id string) error {
	if _, err := r.db.conn.ExecContext(ctx,
		"DELETE FROM meals WHERE id = ? AND user_id = ?", id, userID,
	); err != nil {
		return fmt.Errorf("failed to delete meal %s: %w", id, err)
	}
	return nil
}

// SyncFromRemote replaces the user's entire partition with the remote list
// inside a single transaction.
func (r *MealRepo) SyncFromRemote(ctx context.Context, userID string, remote []model.Meal) error {
	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin resync transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM meals WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to clear meals for resync: %w", err)
	}

	for _, m := range remote {
		if err := insertMeal(ctx, tx, userID, m); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit resync: %w", err)
	}
	return nil
}
