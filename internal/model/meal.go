package model

import (
	"math"
	"strings"
	"time"
)

// Meal type values.
const (
	MealBreakfast = "breakfast"
	MealLunch     = "lunch"
	MealDinner    = "dinner"
	MealSnack     = "snack"
)

// DefaultTag is assigned when a meal or idea arrives with a blank tag.
const DefaultTag = "Sem tag"

// DefaultMealTitle is assigned when a meal is created without a title.
const DefaultMealTitle = "Refeição sem título"

// Meal is a planned meal on a weekday. Calories is optional; nil means
// "not tracked" and is stored as NULL locally and omitted remotely.
type Meal struct {
	ID        string   `json:"id"`
	Day       string   `json:"day"`
	Type      string   `json:"type"`
	Title     string   `json:"title"`
	Notes     string   `json:"notes,omitempty"`
	Calories  *float64 `json:"calories,omitempty"`
	Tag       string   `json:"tag"`
	CreatedAt string   `json:"created_at"`
}

// MealInput is the caller-supplied shape for creating a meal. Calories is
// free text and accepts comma decimals; blank input means untracked.
type MealInput struct {
	Day      string
	Type     string
	Title    string
	Notes    string
	Calories string
	Tag      string
}

// NormalizeCalories parses an optional calories field.
// Blank or unparseable input yields nil.
func NormalizeCalories(v string) *float64 {
	s := strings.TrimSpace(v)
	if s == "" {
		return nil
	}
	f, ok := AsFloat(s)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func normalizeMealType(typ string) string {
	switch typ {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
		return typ
	}
	return MealSnack
}

// NewMeal builds a meal from form input, applying defaults.
// ID and CreatedAt are left for Finalize.
func NewMeal(in MealInput) Meal {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = DefaultMealTitle
	}

	tag := strings.TrimSpace(in.Tag)
	if tag == "" {
		tag = DefaultTag
	}

	return Meal{
		Day:      in.Day,
		Type:     normalizeMealType(in.Type),
		Title:    title,
		Notes:    strings.TrimSpace(in.Notes),
		Calories: NormalizeCalories(in.Calories),
		Tag:      tag,
	}
}

// EntityID returns the record id.
func (m Meal) EntityID() string { return m.ID }

// Validate guards required fields before a durable write.
func (m Meal) Validate() error {
	if m.ID == "" {
		return errRequired("meal", "id")
	}
	if m.CreatedAt == "" {
		return errRequired("meal", "created_at")
	}
	return nil
}

// SortsBefore orders by created_at descending.
func (m Meal) SortsBefore(o Meal) bool {
	return isoToEpochMS(m.CreatedAt) > isoToEpochMS(o.CreatedAt)
}

// Sanitize validates a meal received from the remote store. Returns false
// when the record must be dropped (missing id); otherwise returns a copy
// with field defaults applied.
func (m Meal) Sanitize(now time.Time) (Meal, bool) {
	if strings.TrimSpace(m.ID) == "" {
		return m, false
	}
	m.Type = normalizeMealType(m.Type)
	if strings.TrimSpace(m.Tag) == "" {
		m.Tag = DefaultTag
	}
	if m.CreatedAt == "" {
		m.CreatedAt = ISOTime(now)
	}
	if m.Calories != nil {
		if c := *m.Calories; math.IsNaN(c) || math.IsInf(c, 0) {
			m.Calories = nil
		}
	}
	return m, true
}

// Finalize fills the identity fields of a freshly created meal.
func (m Meal) Finalize(id string, now time.Time) Meal {
	if m.ID == "" {
		m.ID = id
	}
	if m.CreatedAt == "" {
		m.CreatedAt = ISOTime(now)
	}
	if strings.TrimSpace(m.Tag) == "" {
		m.Tag = DefaultTag
	}
	return m
}

// NormalizePatch strips immutable fields, coerces the meal type to a known
// value, and coerces calories, which may arrive as form text. Normalizing
// here keeps the in-memory record and both stores in agreement instead of
// leaving the raw value in the stores until the next push re-sanitizes it.
func (m Meal) NormalizePatch(p Patch) Patch {
	out := p.Strip()
	if out.Has("type") {
		out["type"] = normalizeMealType(AsString(out["type"]))
	}
	if out.Has("calories") {
		switch v := out["calories"].(type) {
		case nil:
			// explicit clear
		case string:
			if c := NormalizeCalories(v); c != nil {
				out["calories"] = *c
			} else {
				out["calories"] = nil
			}
		default:
			if f, ok := AsFloat(v); ok {
				out["calories"] = f
			} else {
				out["calories"] = nil
			}
		}
	}
	return out
}

// WithPatch returns a copy with the normalized patch applied.
func (m Meal) WithPatch(p Patch) Meal {
	p = m.NormalizePatch(p)
	for k, v := range p {
		switch k {
		case "day":
			m.Day = AsString(v)
		case "type":
			m.Type = normalizeMealType(AsString(v))
		case "title":
			m.Title = AsString(v)
		case "notes":
			m.Notes = AsString(v)
		case "tag":
			m.Tag = AsString(v)
		case "calories":
			if v == nil {
				m.Calories = nil
			} else if f, ok := AsFloat(v); ok {
				m.Calories = &f
			}
		}
	}
	return m
}
