package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// EmbeddingDimension is the dimension of fragment embeddings. It must match the
// vector indexes created by the migrate command.
const EmbeddingDimension = 768

// FragmentID is a UUID-based identifier for Fragment
type FragmentID string

// NewFragmentID generates a new UUID v4 FragmentID
func NewFragmentID() FragmentID {
	return FragmentID(uuid.New().String())
}

func (x FragmentID) String() string { return string(x) }

// Fragment is one captured story unit: an interview answer with the question that
// prompted it, or a standalone memo with an empty Question.
type Fragment struct {
	ID        FragmentID
	ProjectID ProjectID
	AuthorID  AuthorID
	Question  string
	Answer    string
	AudioURL  string
	// Embedded is true once a FragmentEmbedding has been stored for the fragment
	Embedded  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks required fields of the fragment
func (f *Fragment) Validate() error {
	if f.ProjectID == "" {
		return goerr.Wrap(ErrValidation, "project is required")
	}
	if f.AuthorID == "" {
		return goerr.Wrap(ErrValidation, "author is required")
	}
	if strings.TrimSpace(f.Answer) == "" {
		return goerr.Wrap(ErrValidation, "answer is required", goerr.V(ProjectIDKey, f.ProjectID))
	}
	return nil
}

// HasQuestion reports whether the fragment was produced by an interview question
func (f *Fragment) HasQuestion() bool {
	return f.Question != ""
}

// EmbeddingText returns the text that represents the fragment in vector space
func (f *Fragment) EmbeddingText() string {
	return f.Answer
}

// Copy returns a copy of the fragment
func (f *Fragment) Copy() *Fragment {
	copied := *f
	return &copied
}

// FragmentEmbedding is the vector representation of a fragment's answer
type FragmentEmbedding struct {
	FragmentID FragmentID
	Vector     []float32
}

// Validate checks the embedding has the system-wide dimension
func (e *FragmentEmbedding) Validate() error {
	if e.FragmentID == "" {
		return goerr.Wrap(ErrValidation, "fragment is required")
	}
	if len(e.Vector) != EmbeddingDimension {
		return goerr.Wrap(ErrValidation, "unexpected embedding dimension",
			goerr.V(FragmentIDKey, e.FragmentID),
			goerr.V("dimension", len(e.Vector)),
		)
	}
	return nil
}

// FragmentUpdate holds the editable fields of a fragment. Nil fields are left untouched.
type FragmentUpdate struct {
	Question *string
	Answer   *string
	AudioURL *string
}

// Apply writes the update into f and reports whether the answer changed
func (u FragmentUpdate) Apply(f *Fragment) (answerChanged bool) {
	if u.Question != nil {
		f.Question = *u.Question
	}
	if u.AudioURL != nil {
		f.AudioURL = *u.AudioURL
	}
	if u.Answer != nil && *u.Answer != f.Answer {
		f.Answer = *u.Answer
		answerChanged = true
	}
	return answerChanged
}
