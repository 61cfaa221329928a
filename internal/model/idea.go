package model

import (
	"fmt"
	"strings"
	"time"
)

// DefaultIdeaTitle is assigned when an idea is created without a title.
const DefaultIdeaTitle = "Ideia sem título"

// Idea is a free-form note. Fixed pins the idea to the top of the list;
// it is stored as 0/1 in the local cache and as a native boolean remotely.
type Idea struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Tag       string `json:"tag"`
	Fixed     bool   `json:"fixed"`
	CreatedAt string `json:"created_at"`
}

// IdeaInput is the caller-supplied shape for creating an idea.
type IdeaInput struct {
	Title   string
	Content string
	Tag     string
}

// NewIdea builds an idea from form input, applying defaults.
// New ideas always start unpinned. ID and CreatedAt are left for Finalize.
func NewIdea(in IdeaInput) Idea {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = DefaultIdeaTitle
	}

	tag := strings.TrimSpace(in.Tag)
	if tag == "" {
		tag = DefaultTag
	}

	return Idea{
		Title:   title,
		Content: strings.TrimSpace(in.Content),
		Tag:     tag,
	}
}

// EntityID returns the record id.
func (i Idea) EntityID() string { return i.ID }

// Pinned reports whether the idea is pinned to the top of the list.
func (i Idea) Pinned() bool { return i.Fixed }

// Validate guards required fields before a durable write.
func (i Idea) Validate() error {
	if i.ID == "" {
		return errRequired("idea", "id")
	}
	if i.CreatedAt == "" {
		return errRequired("idea", "created_at")
	}
	return nil
}

// SortsBefore orders pinned ideas first, then created_at descending.
func (i Idea) SortsBefore(o Idea) bool {
	if i.Fixed != o.Fixed {
		return i.Fixed
	}
	return isoToEpochMS(i.CreatedAt) > isoToEpochMS(o.CreatedAt)
}

// Sanitize validates an idea received from the remote store. Returns false
// when the record must be dropped (missing id); otherwise returns a copy
// with field defaults applied.
func (i Idea) Sanitize(now time.Time) (Idea, bool) {
	if strings.TrimSpace(i.ID) == "" {
		return i, false
	}
	if strings.TrimSpace(i.Tag) == "" {
		i.Tag = DefaultTag
	}
	if i.CreatedAt == "" {
		i.CreatedAt = ISOTime(now)
	}
	return i, true
}

// Finalize fills the identity fields of a freshly created idea.
func (i Idea) Finalize(id string, now time.Time) Idea {
	if i.ID == "" {
		i.ID = id
	}
	if i.CreatedAt == "" {
		i.CreatedAt = ISOTime(now)
	}
	if strings.TrimSpace(i.Tag) == "" {
		i.Tag = DefaultTag
	}
	return i
}

// NormalizePatch strips immutable fields and coerces the pin flag, which
// may arrive as a 0/1 number from the local cache representation.
func (i Idea) NormalizePatch(p Patch) Patch {
	out := p.Strip()
	if out.Has("fixed") {
		out["fixed"] = AsBool(out["fixed"])
	}
	return out
}

// WithPatch returns a copy with the normalized patch applied.
func (i Idea) WithPatch(p Patch) Idea {
	p = i.NormalizePatch(p)
	for k, v := range p {
		switch k {
		case "title":
			i.Title = AsString(v)
		case "content":
			i.Content = AsString(v)
		case "tag":
			i.Tag = AsString(v)
		case "fixed":
			i.Fixed = AsBool(v)
		}
	}
	return i
}

func errRequired(kind, field string) error {
	return fmt.Errorf("%s: %s is required", kind, field)
}
