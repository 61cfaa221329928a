package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Document is one stored record, keyed by (user, collection, id). The
// payload is the client's JSON verbatim.
type Document struct {
	UserID     string          `gorm:"primaryKey;size:64"`
	Collection string          `gorm:"primaryKey;size:32"`
	DocID      string          `gorm:"primaryKey;size:64"`
	Payload    json.RawMessage `gorm:"type:jsonb;not null"`
	UpdatedAt  time.Time
}

// GormStore is the Postgres-backed Store and Accounts implementation.
type GormStore struct {
	db *gorm.DB
}

// OpenGorm connects to Postgres and migrates the document and account
// tables.
func OpenGorm(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := db.AutoMigrate(&Document{}, &Account{}); err != nil {
		return nil, fmt.Errorf("failed to migrate server schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) List(ctx context.Context, userID, collection string) ([]json.RawMessage, error) {
	var docs []Document
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND collection = ?", userID, collection).
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list %s documents: %w", collection, err)
	}
	out := make([]json.RawMessage, len(docs))
	for i, d := range docs {
		out[i] = d.Payload
	}
	return out, nil
}

func (s *GormStore) Put(ctx context.Context, userID, collection, id string, payload json.RawMessage) error {
	doc := Document{UserID: userID, Collection: collection, DocID: id, Payload: payload}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "collection"}, {Name: "doc_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).
		Create(&doc).Error
	if err != nil {
		return fmt.Errorf("failed to upsert %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *GormStore) Patch(ctx context.Context, userID, collection, id string, fields map[string]any) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc Document
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND collection = ? AND doc_id = ?", userID, collection, id).
			First(&doc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load %s/%s: %w", collection, id, err)
		}

		merged, err := mergeDocument(doc.Payload, fields)
		if err != nil {
			return fmt.Errorf("failed to merge %s/%s: %w", collection, id, err)
		}

		err = tx.Model(&Document{}).
			Where("user_id = ? AND collection = ? AND doc_id = ?", userID, collection, id).
			Update("payload", merged).Error
		if err != nil {
			return fmt.Errorf("failed to store %s/%s: %w", collection, id, err)
		}
		return nil
	})
}

func (s *GormStore) Delete(ctx context.Context, userID, collection, id string) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND collection = ? AND doc_id = ?", userID, collection, id).
		Delete(&Document{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) Create(ctx context.Context, a Account) error {
	err := s.db.WithContext(ctx).Create(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (s *GormStore) FindByEmail(ctx context.Context, email string) (Account, error) {
	var a Account
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("failed to look up account: %w", err)
	}
	return a, nil
}
