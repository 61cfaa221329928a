// Package importer ingests records dropped as JSON files into a watched
// directory. Each file holds one record or an array of records, tagged
// with the entity kind; files are deleted after every record in them has
// been created successfully, so a crash leaves the file in place for the
// next pass.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"organiza/internal/model"
)

// Record kinds accepted in drop files.
const (
	KindTransaction = "transaction"
	KindMeal        = "meal"
	KindIdea        = "idea"
)

// Creator receives the parsed records. The sync coordinators satisfy this
// through a thin adapter in the command layer.
type Creator interface {
	CreateTransaction(ctx context.Context, in model.TransactionInput) error
	CreateMeal(ctx context.Context, in model.MealInput) error
	CreateIdea(ctx context.Context, in model.IdeaInput) error
}

// record is the drop-file wire shape: a kind tag plus the union of the
// per-kind input fields.
type record struct {
	Kind string `json:"kind"`

	// transaction fields
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Date        string `json:"date,omitempty"`
	Amount      string `json:"amount,omitempty"`

	// meal fields
	Day      string `json:"day,omitempty"`
	Notes    string `json:"notes,omitempty"`
	Calories string `json:"calories,omitempty"`

	// idea fields
	Content string `json:"content,omitempty"`

	// shared
	Title string `json:"title,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Importer parses drop files and hands their records to a Creator.
type Importer struct {
	creator Creator
	logger  *log.Logger
}

// New creates an importer. A nil logger falls back to stderr.
func New(creator Creator, logger *log.Logger) *Importer {
	if logger == nil {
		logger = log.New(os.Stderr, "[import] ", log.LstdFlags)
	}
	return &Importer{creator: creator, logger: logger}
}

// IngestDir processes every .json file in dir, oldest first. Files that
// fail stay in place and are reported; the rest of the directory is still
// processed.
func (im *Importer) IngestDir(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read drop directory: %w", err)
	}

	var firstErr error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := im.IngestFile(ctx, path); err != nil {
			im.logger.Printf("failed to ingest %s: %v", entry.Name(), err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// IngestFile parses one drop file, creates every record in it, and deletes
// the file once all records are in. A partial failure keeps the file.
func (im *Importer) IngestFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read drop file: %w", err)
	}

	records, err := parseDropFile(data)
	if err != nil {
		return err
	}

	for i, rec := range records {
		if err := im.create(ctx, rec); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove ingested file: %w", err)
	}
	im.logger.Printf("ingested %d record(s) from %s", len(records), filepath.Base(path))
	return nil
}

func (im *Importer) create(ctx context.Context, rec record) error {
	switch rec.Kind {
	case KindTransaction:
		return im.creator.CreateTransaction(ctx, model.TransactionInput{
			Type:        rec.Type,
			Description: rec.Description,
			Category:    rec.Category,
			Date:        rec.Date,
			Amount:      rec.Amount,
		})
	case KindMeal:
		return im.creator.CreateMeal(ctx, model.MealInput{
			Day:      rec.Day,
			Type:     rec.Type,
			Title:    rec.Title,
			Notes:    rec.Notes,
			Calories: rec.Calories,
			Tag:      rec.Tag,
		})
	case KindIdea:
		return im.creator.CreateIdea(ctx, model.IdeaInput{
			Title:   rec.Title,
			Content: rec.Content,
			Tag:     rec.Tag,
		})
	default:
		return fmt.Errorf("unknown record kind %q", rec.Kind)
	}
}

// parseDropFile accepts either a single record object or an array.
func parseDropFile(data []byte) ([]record, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var records []record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("invalid drop file: %w", err)
		}
		return records, nil
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("invalid drop file: %w", err)
	}
	return []record{rec}, nil
}
