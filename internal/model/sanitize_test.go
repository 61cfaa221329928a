package model

import (
	"testing"
	"time"
)

var sanitizeNow = time.Date(2024, time.May, 1, 9, 30, 0, 0, time.UTC)

func TestTransactionSanitize_DropsMissingID(t *testing.T) {
	if _, ok := (Transaction{ID: ""}).Sanitize(sanitizeNow); ok {
		t.Error("blank id should be dropped")
	}
	if _, ok := (Transaction{ID: "   "}).Sanitize(sanitizeNow); ok {
		t.Error("whitespace id should be dropped")
	}
}

func TestTransactionSanitize_Defaults(t *testing.T) {
	tx, ok := Transaction{ID: "t1", Date: "05/03/2024"}.Sanitize(sanitizeNow)
	if !ok {
		t.Fatal("well-formed record dropped")
	}
	if tx.Type != TypeExpense {
		t.Errorf("type = %q, want expense default", tx.Type)
	}
	if tx.Category != DefaultCategory {
		t.Errorf("category = %q, want %q", tx.Category, DefaultCategory)
	}
	if tx.CreatedAt != ISOTime(sanitizeNow) {
		t.Errorf("created_at = %q, want sanitize-time default", tx.CreatedAt)
	}
	want := time.Date(2024, time.March, 5, 12, 0, 0, 0, time.Local).UnixMilli()
	if tx.DateTS != want {
		t.Errorf("dateTs = %d, want derived %d", tx.DateTS, want)
	}
}

func TestMealSanitize(t *testing.T) {
	bad := -5.0
	m, ok := Meal{ID: "m1", Type: "brunch", Calories: &bad}.Sanitize(sanitizeNow)
	if !ok {
		t.Fatal("well-formed record dropped")
	}
	if m.Type != MealSnack {
		t.Errorf("type = %q, want snack fallback", m.Type)
	}
	if m.Tag != DefaultTag {
		t.Errorf("tag = %q, want %q", m.Tag, DefaultTag)
	}
	if m.Calories == nil || *m.Calories != -5 {
		t.Errorf("finite calories should survive, got %v", m.Calories)
	}

	if _, ok := (Meal{ID: ""}).Sanitize(sanitizeNow); ok {
		t.Error("blank id should be dropped")
	}
}

func TestIdeaSanitize(t *testing.T) {
	i, ok := Idea{ID: "i1", Title: "x"}.Sanitize(sanitizeNow)
	if !ok {
		t.Fatal("well-formed record dropped")
	}
	if i.Tag != DefaultTag {
		t.Errorf("tag = %q, want %q", i.Tag, DefaultTag)
	}
	if i.CreatedAt == "" {
		t.Error("created_at default missing")
	}

	if _, ok := (Idea{}).Sanitize(sanitizeNow); ok {
		t.Error("blank id should be dropped")
	}
}

func TestIdeaSortsBefore_PinnedFirst(t *testing.T) {
	pinnedOld := Idea{ID: "a", Fixed: true, CreatedAt: "2024-01-01T00:00:00Z"}
	unpinnedNew := Idea{ID: "b", Fixed: false, CreatedAt: "2024-04-01T00:00:00Z"}

	if !pinnedOld.SortsBefore(unpinnedNew) {
		t.Error("pinned idea should sort before unpinned regardless of age")
	}
	if unpinnedNew.SortsBefore(pinnedOld) {
		t.Error("unpinned idea must not sort before pinned")
	}
}

func TestNormalizeCalories(t *testing.T) {
	if c := NormalizeCalories("450,5"); c == nil || *c != 450.5 {
		t.Errorf("NormalizeCalories(450,5) = %v", c)
	}
	if c := NormalizeCalories(""); c != nil {
		t.Errorf("blank calories should be nil, got %v", *c)
	}
	if c := NormalizeCalories("many"); c != nil {
		t.Errorf("unparseable calories should be nil, got %v", *c)
	}
}

func TestNewIdeaDefaults(t *testing.T) {
	i := NewIdea(IdeaInput{Title: "  ", Content: " brainstorm ", Tag: ""})
	if i.Title != DefaultIdeaTitle {
		t.Errorf("title = %q, want %q", i.Title, DefaultIdeaTitle)
	}
	if i.Tag != DefaultTag {
		t.Errorf("tag = %q, want %q", i.Tag, DefaultTag)
	}
	if i.Content != "brainstorm" {
		t.Errorf("content = %q", i.Content)
	}
	if i.Fixed {
		t.Error("new ideas must start unpinned")
	}
}

func TestNewMealDefaults(t *testing.T) {
	m := NewMeal(MealInput{Day: "Segunda", Type: "lunch", Title: "", Calories: "320"})
	if m.Title != DefaultMealTitle {
		t.Errorf("title = %q, want %q", m.Title, DefaultMealTitle)
	}
	if m.Type != MealLunch {
		t.Errorf("type = %q", m.Type)
	}
	if m.Calories == nil || *m.Calories != 320 {
		t.Errorf("calories = %v", m.Calories)
	}
}

func TestIdeaWithPatch_Fixed(t *testing.T) {
	i := Idea{ID: "i1", Fixed: false, CreatedAt: "2024-01-01T00:00:00Z"}

	// Booleans may arrive as the cache's 0/1 representation.
	p1 := i.WithPatch(Patch{"fixed": float64(1)})
	if !p1.Fixed {
		t.Error("fixed=1 should pin")
	}
	p2 := p1.WithPatch(Patch{"fixed": false})
	if p2.Fixed {
		t.Error("fixed=false should unpin")
	}
}

func TestMealNormalizePatch_Type(t *testing.T) {
	// An unknown type must normalize before it reaches any store, so the
	// in-memory record, the cache and the remote all hold the same value.
	p := Meal{}.NormalizePatch(Patch{"type": "brunch"})
	if p["type"] != MealSnack {
		t.Errorf("unknown type normalized to %v, want %q", p["type"], MealSnack)
	}

	p = Meal{}.NormalizePatch(Patch{"type": MealLunch})
	if p["type"] != MealLunch {
		t.Errorf("known type changed to %v", p["type"])
	}
}
