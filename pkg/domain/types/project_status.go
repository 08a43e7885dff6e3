package types

import "fmt"

// ProjectStatus represents the lifecycle stage of a memoir project
type ProjectStatus string

const (
	ProjectStatusDraft      ProjectStatus = "draft"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusCompleted  ProjectStatus = "completed"
)

// AllProjectStatuses returns all valid project statuses in lifecycle order
func AllProjectStatuses() []ProjectStatus {
	return []ProjectStatus{
		ProjectStatusDraft,
		ProjectStatusInProgress,
		ProjectStatusCompleted,
	}
}

// IsValid checks if the project status is valid
func (s ProjectStatus) IsValid() bool {
	switch s {
	case ProjectStatusDraft,
		ProjectStatusInProgress,
		ProjectStatusCompleted:
		return true
	default:
		return false
	}
}

// Normalize returns the status, treating empty as ProjectStatusDraft.
func (s ProjectStatus) Normalize() ProjectStatus {
	if s == "" {
		return ProjectStatusDraft
	}
	return s
}

func (s ProjectStatus) rank() int {
	switch s.Normalize() {
	case ProjectStatusDraft:
		return 0
	case ProjectStatusInProgress:
		return 1
	case ProjectStatusCompleted:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Status only moves forward one step at a time; staying in place is allowed.
func (s ProjectStatus) CanTransitionTo(next ProjectStatus) bool {
	if !s.Normalize().IsValid() || !next.IsValid() {
		return false
	}
	diff := next.rank() - s.rank()
	return diff == 0 || diff == 1
}

// String returns the string representation of the project status
func (s ProjectStatus) String() string {
	return string(s)
}

// ParseProjectStatus parses a string into a ProjectStatus
func ParseProjectStatus(s string) (ProjectStatus, error) {
	status := ProjectStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid project status: %s", s)
	}
	return status, nil
}
