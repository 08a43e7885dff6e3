package model

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors shared by every layer. Callers wrap them with goerr.Wrap and
// compare with errors.Is.
var (
	// ErrValidation indicates missing or malformed input
	ErrValidation = goerr.New("validation error")
	// ErrNotFound indicates a project, fragment, chapter or session outside the caller's scope
	ErrNotFound = goerr.New("not found")
	// ErrUpstreamService indicates a failure of the embedding or generation service
	ErrUpstreamService = goerr.New("upstream service error")
	// ErrGenerationParse indicates generated output without a recoverable chapter structure
	ErrGenerationParse = goerr.New("failed to parse generated chapters")
	// ErrEmptySource indicates synthesis was requested for a project without fragments
	ErrEmptySource = goerr.New("no story fragments found, capture stories first")
	// ErrSessionBusy indicates an interview session that cannot accept the submission in its current state
	ErrSessionBusy = goerr.New("interview session is not accepting answers")
	// ErrInvalidStatusTransition indicates a project status change that would move backwards or skip a stage
	ErrInvalidStatusTransition = goerr.New("invalid project status transition")
)

// Context keys for error values
const (
	ProjectIDKey  = "project_id"
	AuthorIDKey   = "author_id"
	FragmentIDKey = "fragment_id"
	ChapterIDKey  = "chapter_id"
	SessionIDKey  = "session_id"
	StatusKey     = "status"
	ResponseKey   = "response"
)
