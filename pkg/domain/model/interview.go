package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// SessionID is the handle of an interview session
type SessionID string

// NewSessionID generates a new UUID v4 SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

func (x SessionID) String() string { return string(x) }

// Turn is one entry of an interview transcript
type Turn struct {
	Role    types.Role
	Content string
}

// InterviewSession holds the transcript and state of one interview.
// It is not safe for concurrent use; the owner serializes access.
type InterviewSession struct {
	ID              SessionID
	ProjectID       ProjectID
	AuthorID        AuthorID
	State           types.SessionState
	Turns           []Turn
	CurrentQuestion string
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// epoch increases on every reset so a generation started before a reset can
	// be recognized and dropped when it completes.
	epoch uint64
}

// NewInterviewSession creates a session in the Start state
func NewInterviewSession(projectID ProjectID, authorID AuthorID, now time.Time) *InterviewSession {
	return &InterviewSession{
		ID:        NewSessionID(),
		ProjectID: projectID,
		AuthorID:  authorID,
		State:     types.SessionStateStart,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ReconstructTranscript rebuilds transcript turns from fragments in chronological
// order: every question is immediately followed by the answer it produced.
func ReconstructTranscript(fragments []*Fragment) []Turn {
	turns := make([]Turn, 0, len(fragments)*2)
	for _, f := range fragments {
		if f.HasQuestion() {
			turns = append(turns, Turn{Role: types.RoleQuestioner, Content: f.Question})
		}
		turns = append(turns, Turn{Role: types.RoleRespondent, Content: f.Answer})
	}
	return turns
}

// BeginQuestion moves the session from Start to Generating and returns a token
// identifying this generation.
func (s *InterviewSession) BeginQuestion(now time.Time) (uint64, error) {
	if s.State != types.SessionStateStart {
		return 0, goerr.Wrap(ErrSessionBusy, "session is not ready for a new question",
			goerr.V(SessionIDKey, s.ID),
			goerr.V("state", s.State),
		)
	}
	s.State = types.SessionStateGenerating
	s.UpdatedAt = now
	return s.epoch, nil
}

// CheckAnswerable returns an error unless the session is awaiting an answer
func (s *InterviewSession) CheckAnswerable() error {
	if s.State != types.SessionStateAwaitingAnswer {
		return goerr.Wrap(ErrSessionBusy, "session is not awaiting an answer",
			goerr.V(SessionIDKey, s.ID),
			goerr.V("state", s.State),
		)
	}
	return nil
}

// AcceptAnswer appends the respondent turn and moves to Generating. The caller
// persists the fragment before calling it.
func (s *InterviewSession) AcceptAnswer(answer string, now time.Time) (uint64, error) {
	if err := s.CheckAnswerable(); err != nil {
		return 0, err
	}
	s.Turns = append(s.Turns, Turn{Role: types.RoleRespondent, Content: answer})
	s.State = types.SessionStateGenerating
	s.UpdatedAt = now
	return s.epoch, nil
}

// CompleteQuestion appends the generated question and moves to AwaitingAnswer.
// It returns false without changes when the session was reset after token was issued.
func (s *InterviewSession) CompleteQuestion(token uint64, question string, now time.Time) bool {
	if token != s.epoch || s.State != types.SessionStateGenerating {
		return false
	}
	s.Turns = append(s.Turns, Turn{Role: types.RoleQuestioner, Content: question})
	s.CurrentQuestion = question
	s.State = types.SessionStateAwaitingAnswer
	s.UpdatedAt = now
	return true
}

// FailQuestion returns the session to Start after a failed generation so the
// question can be requested again. The transcript is kept.
func (s *InterviewSession) FailQuestion(token uint64, now time.Time) {
	if token != s.epoch || s.State != types.SessionStateGenerating {
		return
	}
	s.CurrentQuestion = ""
	s.State = types.SessionStateStart
	s.UpdatedAt = now
}

// Reset discards the transcript and question cursor and returns to Start.
// Persisted fragments are not affected.
func (s *InterviewSession) Reset(now time.Time) {
	s.epoch++
	s.Turns = nil
	s.CurrentQuestion = ""
	s.State = types.SessionStateStart
	s.UpdatedAt = now
}

// RecentAnswers returns up to n latest respondent turns, oldest first
func (s *InterviewSession) RecentAnswers(n int) []string {
	var answers []string
	for i := len(s.Turns) - 1; i >= 0 && len(answers) < n; i-- {
		if s.Turns[i].Role == types.RoleRespondent {
			answers = append(answers, s.Turns[i].Content)
		}
	}
	for i, j := 0, len(answers)-1; i < j; i, j = i+1, j-1 {
		answers[i], answers[j] = answers[j], answers[i]
	}
	return answers
}

// QueryText builds the similarity query from the last n answers, or seed when
// there are none.
func (s *InterviewSession) QueryText(n int, seed string) string {
	query := strings.TrimSpace(strings.Join(s.RecentAnswers(n), " "))
	if query == "" {
		return seed
	}
	return query
}

// Copy returns a snapshot of the session safe to hand out
func (s *InterviewSession) Copy() *InterviewSession {
	copied := *s
	if s.Turns != nil {
		copied.Turns = make([]Turn, len(s.Turns))
		copy(copied.Turns, s.Turns)
	}
	return &copied
}
