package importer

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"organiza/internal/model"
)

type stubCreator struct {
	transactions []model.TransactionInput
	meals        []model.MealInput
	ideas        []model.IdeaInput
	failTx       bool
}

func (s *stubCreator) CreateTransaction(ctx context.Context, in model.TransactionInput) error {
	if s.failTx {
		return errors.New("store unavailable")
	}
	s.transactions = append(s.transactions, in)
	return nil
}

func (s *stubCreator) CreateMeal(ctx context.Context, in model.MealInput) error {
	s.meals = append(s.meals, in)
	return nil
}

func (s *stubCreator) CreateIdea(ctx context.Context, in model.IdeaInput) error {
	s.ideas = append(s.ideas, in)
	return nil
}

func writeDropFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write drop file: %v", err)
	}
	return path
}

func quietImporter(creator Creator) *Importer {
	return New(creator, log.New(io.Discard, "", 0))
}

func TestIngestFileSingleRecord(t *testing.T) {
	dir := t.TempDir()
	creator := &stubCreator{}
	im := quietImporter(creator)

	path := writeDropFile(t, dir, "tx.json",
		`{"kind":"transaction","type":"expense","description":"padaria","date":"05/03/2024","amount":"3,50"}`)

	if err := im.IngestFile(context.Background(), path); err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}

	if len(creator.transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(creator.transactions))
	}
	got := creator.transactions[0]
	if got.Description != "padaria" || got.Amount != "3,50" {
		t.Errorf("unexpected input: %+v", got)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected drop file removed after ingest")
	}
}

func TestIngestFileArrayMixedKinds(t *testing.T) {
	dir := t.TempDir()
	creator := &stubCreator{}
	im := quietImporter(creator)

	path := writeDropFile(t, dir, "batch.json", `[
		{"kind":"meal","day":"monday","type":"lunch","title":"feijoada","calories":"850"},
		{"kind":"idea","title":"app de receitas","tag":"projetos"}
	]`)

	if err := im.IngestFile(context.Background(), path); err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if len(creator.meals) != 1 || len(creator.ideas) != 1 {
		t.Fatalf("expected 1 meal and 1 idea, got %d and %d", len(creator.meals), len(creator.ideas))
	}
	if creator.meals[0].Calories != "850" {
		t.Errorf("unexpected meal input: %+v", creator.meals[0])
	}
}

func TestIngestFileKeepsFileOnFailure(t *testing.T) {
	dir := t.TempDir()
	creator := &stubCreator{failTx: true}
	im := quietImporter(creator)

	path := writeDropFile(t, dir, "tx.json", `{"kind":"transaction","description":"x"}`)

	if err := im.IngestFile(context.Background(), path); err == nil {
		t.Fatal("expected ingest failure")
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("expected failed drop file kept for retry")
	}
}

func TestIngestFileUnknownKind(t *testing.T) {
	dir := t.TempDir()
	im := quietImporter(&stubCreator{})

	path := writeDropFile(t, dir, "bad.json", `{"kind":"password","title":"nope"}`)
	if err := im.IngestFile(context.Background(), path); err == nil {
		t.Fatal("expected unknown kind to fail")
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("expected unparseable file kept in place")
	}
}

func TestIngestDirContinuesPastFailures(t *testing.T) {
	dir := t.TempDir()
	creator := &stubCreator{}
	im := quietImporter(creator)

	writeDropFile(t, dir, "a-bad.json", `not json at all`)
	writeDropFile(t, dir, "b-good.json", `{"kind":"idea","title":"sobrevive"}`)
	writeDropFile(t, dir, "notes.txt", `ignored`)

	err := im.IngestDir(context.Background(), dir)
	if err == nil {
		t.Fatal("expected the bad file's error to be reported")
	}
	if len(creator.ideas) != 1 {
		t.Fatalf("expected the good file ingested anyway, got %d ideas", len(creator.ideas))
	}
}
