package cache

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"organiza/internal/model"
)

// IdeaRepo is the local cache repository for ideas.
type IdeaRepo struct {
	db *DB
}

// NewIdeaRepo creates an idea repository over the shared cache DB.
func NewIdeaRepo(db *DB) *IdeaRepo {
	return &IdeaRepo{db: db}
}

// Persistent reports that this store survives restarts.
func (r *IdeaRepo) Persistent() bool { return true }

// GetAll returns all ideas owned by userID, pinned first, then newest first.
func (r *IdeaRepo) GetAll(ctx context.Context, userID string) ([]model.Idea, error) {
	query := `
	SELECT id, title, content, tag, fixed, created_at
	FROM ideas
	WHERE user_id = ?
	ORDER BY fixed DESC, created_at DESC
	`

	rows, err := r.db.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ideas: %w", err)
	}
	defer rows.Close()

	var ideas []model.Idea
	for rows.Next() {
		var i model.Idea
		var content, tag sql.NullString
		var fixed int

		if err := rows.Scan(&i.ID, &i.Title, &content, &tag, &fixed, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan idea: %w", err)
		}

		i.Content = content.String
		i.Tag = tag.String
		i.Fixed = fixed == 1
		ideas = append(ideas, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ideas: %w", err)
	}

	return ideas, nil
}

// Insert upserts an idea keyed by id. The pin flag is stored as 0/1.
func (r *IdeaRepo) Insert(ctx context.Context, userID string, i model.Idea) error {
	return insertIdea(ctx, r.db.conn, userID, i)
}

func insertIdea(ctx context.Context, ex execer, userID string, i model.Idea) error {
	if err := i.Validate(); err != nil {
		return fmt.Errorf("invalid idea: %w", err)
	}

	fixed := 0
	if i.Fixed {
		fixed = 1
	}

	query := `
	INSERT INTO ideas (id, user_id, title, content, tag, fixed, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		user_id = excluded.user_id,
		title = excluded.title,
		content = excluded.content,
		tag = excluded.tag,
		fixed = excluded.fixed,
		created_at = excluded.created_at
	`

	if _, err := ex.ExecContext(ctx, query,
		i.ID, userID, i.Title, i.Content, i.Tag, fixed, i.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to upsert idea %s: %w", i.ID, err)
	}
	return nil
}

// Update patches only the supplied fields of the row scoped to (userID, id).
// Booleans are translated to the cache's 0/1 representation.
func (r *IdeaRepo) Update(ctx context.Context, userID, id string, fields model.Patch) error {
	fields = model.Idea{}.NormalizePatch(fields)

	var sets []string
	var args []any
	for k, v := range fields {
		switch k {
		case "title", "content", "tag":
			sets = append(sets, k+" = ?")
			args = append(args, model.AsString(v))
		case "fixed":
			fixed := 0
			if model.AsBool(v) {
				fixed = 1
			}
			sets = append(sets, "fixed = ?")
			args = append(args, fixed)
		}
	}
	if len(sets) == 0 {
		return nil
	}

	query := "UPDATE ideas SET " + strings.Join(sets, ", ") + " WHERE id = ? AND user_id = ?"
	args = append(args, id, userID)

	if _, err := r.db.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update idea %s: %w", id, err)
	}
	return nil
}

// Remove deletes the row scoped to (userID, id). No-op if absent.
func (r *IdeaRepo) Remove(ctx context.Context, userID, id string) error {
	if _, err := r.db.conn.ExecContext(ctx,
		"DELETE FROM ideas WHERE id = ? AND user_id = ?", id, userID,
	); err != nil {
		return fmt.Errorf("failed to delete idea %s: %w", id, err)
	}
	return nil
}

// SyncFromRemote replaces the user's entire partition with the remote list
// inside a single transaction.
func (r *IdeaRepo) SyncFromRemote(ctx context.Context, userID string, remote []model.Idea) error {
	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin resync transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM ideas WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to clear ideas for resync: %w", err)
	}

	for _, i := range remote {
		if err := insertIdea(ctx, tx, userID, i); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit resync: %w", err)
	}
	return nil
}
