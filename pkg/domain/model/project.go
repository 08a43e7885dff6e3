package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// AuthorID identifies the owner of projects and fragments. It is issued by the
// external authentication collaborator.
type AuthorID string

func (x AuthorID) String() string { return string(x) }

// ProjectID is a UUID-based identifier for Project
type ProjectID string

// NewProjectID generates a new UUID v4 ProjectID
func NewProjectID() ProjectID {
	return ProjectID(uuid.New().String())
}

func (x ProjectID) String() string { return string(x) }

// OutlineItem is a suggested life stage shown when a project starts
type OutlineItem struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Order       int    `json:"order"`
}

// DefaultOutline returns the outline given to every new project
func DefaultOutline() []OutlineItem {
	return []OutlineItem{
		{Title: "유년 시절", Description: "어린 시절의 기억", Order: 1},
		{Title: "학창 시절", Description: "학교에서의 추억", Order: 2},
		{Title: "청춘의 꿈", Description: "젊은 시절의 도전", Order: 3},
		{Title: "가족과의 시간", Description: "가족과 함께한 순간들", Order: 4},
		{Title: "인생의 전환점", Description: "중요한 변화의 순간들", Order: 5},
	}
}

// Project owns the fragments and chapters of one memoir
type Project struct {
	ID          ProjectID
	AuthorID    AuthorID
	Title       string
	Description string
	Outline     []OutlineItem
	Status      types.ProjectStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks required fields of the project
func (p *Project) Validate() error {
	if p.AuthorID == "" {
		return goerr.Wrap(ErrValidation, "author is required")
	}
	if strings.TrimSpace(p.Title) == "" {
		return goerr.Wrap(ErrValidation, "title is required")
	}
	if p.Status != "" && !p.Status.IsValid() {
		return goerr.Wrap(ErrValidation, "invalid project status", goerr.V(StatusKey, p.Status))
	}
	return nil
}

// Advance moves the project to next if the lifecycle allows it.
// It reports whether the status actually changed.
func (p *Project) Advance(next types.ProjectStatus) (bool, error) {
	current := p.Status.Normalize()
	if !current.CanTransitionTo(next) {
		return false, goerr.Wrap(ErrInvalidStatusTransition, "cannot change project status",
			goerr.V(ProjectIDKey, p.ID),
			goerr.V("from", current),
			goerr.V("to", next),
		)
	}
	if current == next {
		return false, nil
	}
	p.Status = next
	return true, nil
}

// Copy returns a deep copy of the project
func (p *Project) Copy() *Project {
	copied := *p
	if p.Outline != nil {
		copied.Outline = make([]OutlineItem, len(p.Outline))
		copy(copied.Outline, p.Outline)
	}
	return &copied
}
