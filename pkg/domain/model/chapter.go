package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// ChapterID is a UUID-based identifier for Chapter
type ChapterID string

// NewChapterID generates a new UUID v4 ChapterID
func NewChapterID() ChapterID {
	return ChapterID(uuid.New().String())
}

func (x ChapterID) String() string { return string(x) }

// Chapter is one generated section of a memoir draft
type Chapter struct {
	ID        ChapterID
	ProjectID ProjectID
	AuthorID  AuthorID
	Title     string
	Content   *Document
	Order     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks required fields of the chapter
func (c *Chapter) Validate() error {
	if c.ProjectID == "" {
		return goerr.Wrap(ErrValidation, "project is required")
	}
	if strings.TrimSpace(c.Title) == "" {
		return goerr.Wrap(ErrValidation, "chapter title is required", goerr.V(ChapterIDKey, c.ID))
	}
	if c.Order < 1 {
		return goerr.Wrap(ErrValidation, "chapter order must be positive",
			goerr.V(ChapterIDKey, c.ID),
			goerr.V("order", c.Order),
		)
	}
	return nil
}

// Copy returns a deep copy of the chapter
func (c *Chapter) Copy() *Chapter {
	copied := *c
	copied.Content = c.Content.Copy()
	return &copied
}

// ChapterUpdate holds the editable fields of a chapter. Nil fields are left untouched.
type ChapterUpdate struct {
	Title   *string
	Content *Document
}

// Apply writes the update into c
func (u ChapterUpdate) Apply(c *Chapter) {
	if u.Title != nil {
		c.Title = *u.Title
	}
	if u.Content != nil {
		c.Content = u.Content.Copy()
	}
}
