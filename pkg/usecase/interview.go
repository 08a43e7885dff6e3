package usecase

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/service/embedding"
	"github.com/secmon-lab/mnemosyne/pkg/service/llm"
	"github.com/secmon-lab/mnemosyne/pkg/service/retrieval"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// InterviewUseCase drives interview sessions. Sessions live in process memory and
// are addressed by their handle.
type InterviewUseCase struct {
	repo    interfaces.Repository
	llm     llm.Service
	indexer *embedding.Indexer
	matcher *retrieval.Matcher
	cfg     Config
	now     func() time.Time

	mu       sync.Mutex
	sessions map[model.SessionID]*sessionEntry
}

// sessionEntry guards one session. mu is held while the session is inspected or
// changed and released while a question is generated.
type sessionEntry struct {
	mu       sync.Mutex
	session  *model.InterviewSession
	lastUsed time.Time
}

// AnswerResult is the outcome of a successful Answer
type AnswerResult struct {
	Fragment *model.Fragment
	Session  *model.InterviewSession
}

type interviewerPromptData struct {
	Context string
}

type interviewPromptData struct {
	Topic string
	Turns []model.Turn
}

func NewInterviewUseCase(repo interfaces.Repository, llmService llm.Service, indexer *embedding.Indexer, matcher *retrieval.Matcher, cfg Config, now func() time.Time) *InterviewUseCase {
	return &InterviewUseCase{
		repo:     repo,
		llm:      llmService,
		indexer:  indexer,
		matcher:  matcher,
		cfg:      cfg,
		now:      now,
		sessions: make(map[model.SessionID]*sessionEntry),
	}
}

// Open starts a session and asks the opening question. With resume the transcript
// is rebuilt from the project's fragments. When the opening question cannot be
// generated the session is discarded.
func (uc *InterviewUseCase) Open(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, resume bool) (*model.InterviewSession, error) {
	if _, err := uc.repo.Project().Get(ctx, authorID, projectID); err != nil {
		return nil, goerr.Wrap(err, "failed to get project", goerr.V(model.ProjectIDKey, projectID))
	}

	now := uc.now()
	session := model.NewInterviewSession(projectID, authorID, now)
	if resume {
		fragments, err := uc.repo.Fragment().List(ctx, authorID, projectID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list fragments", goerr.V(model.ProjectIDKey, projectID))
		}
		session.Turns = model.ReconstructTranscript(fragments)
	}

	entry := &sessionEntry{session: session, lastUsed: now}
	uc.mu.Lock()
	uc.sweepLocked(now)
	uc.sessions[session.ID] = entry
	uc.mu.Unlock()

	opened, err := uc.ask(ctx, entry)
	if err != nil {
		uc.remove(session.ID)
		return nil, err
	}

	logging.From(ctx).Info("interview session opened",
		slog.String(model.SessionIDKey, session.ID.String()),
		slog.String(model.ProjectIDKey, projectID.String()),
		slog.Int("resumed_turns", len(session.Turns)),
	)
	return opened, nil
}

// Get returns a snapshot of the session
func (uc *InterviewUseCase) Get(ctx context.Context, authorID model.AuthorID, sessionID model.SessionID) (*model.InterviewSession, error) {
	entry, err := uc.lookup(authorID, sessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session.Copy(), nil
}

// Answer records the answer to the current question as a fragment and asks the
// next question. The fragment is kept even when the next question fails; the
// session then returns to Start and Ask retries.
func (uc *InterviewUseCase) Answer(ctx context.Context, authorID model.AuthorID, sessionID model.SessionID, answer string) (*AnswerResult, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, goerr.Wrap(model.ErrValidation, "answer is required", goerr.V(model.SessionIDKey, sessionID))
	}

	entry, err := uc.lookup(authorID, sessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	session := entry.session
	if err := session.CheckAnswerable(); err != nil {
		entry.mu.Unlock()
		return nil, err
	}

	fragment, err := uc.repo.Fragment().Create(ctx, &model.Fragment{
		ProjectID: session.ProjectID,
		AuthorID:  session.AuthorID,
		Question:  session.CurrentQuestion,
		Answer:    answer,
	})
	if err != nil {
		entry.mu.Unlock()
		return nil, goerr.Wrap(err, "failed to store answer", goerr.V(model.SessionIDKey, sessionID))
	}
	uc.indexer.Dispatch(ctx, fragment)

	token, err := session.AcceptAnswer(answer, uc.now())
	if err != nil {
		entry.mu.Unlock()
		return nil, err
	}
	entry.mu.Unlock()

	next, err := uc.generate(ctx, entry, token)
	if err != nil {
		return nil, err
	}
	return &AnswerResult{Fragment: fragment, Session: next}, nil
}

// Ask generates a question for a session in Start, e.g. after a failed generation
func (uc *InterviewUseCase) Ask(ctx context.Context, authorID model.AuthorID, sessionID model.SessionID) (*model.InterviewSession, error) {
	entry, err := uc.lookup(authorID, sessionID)
	if err != nil {
		return nil, err
	}
	return uc.ask(ctx, entry)
}

// Reset discards the transcript and asks the opening question again. Fragments
// are not touched. A generation in flight is dropped when it completes.
func (uc *InterviewUseCase) Reset(ctx context.Context, authorID model.AuthorID, sessionID model.SessionID) (*model.InterviewSession, error) {
	entry, err := uc.lookup(authorID, sessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	entry.session.Reset(uc.now())
	entry.mu.Unlock()

	return uc.ask(ctx, entry)
}

// Close forgets the session
func (uc *InterviewUseCase) Close(ctx context.Context, authorID model.AuthorID, sessionID model.SessionID) error {
	if _, err := uc.lookup(authorID, sessionID); err != nil {
		return err
	}
	uc.remove(sessionID)
	return nil
}

func (uc *InterviewUseCase) ask(ctx context.Context, entry *sessionEntry) (*model.InterviewSession, error) {
	entry.mu.Lock()
	token, err := entry.session.BeginQuestion(uc.now())
	entry.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return uc.generate(ctx, entry, token)
}

// generate produces the next question for a session in Generating and applies it
// unless the session was reset meanwhile.
func (uc *InterviewUseCase) generate(ctx context.Context, entry *sessionEntry, token uint64) (*model.InterviewSession, error) {
	entry.mu.Lock()
	snapshot := entry.session.Copy()
	entry.lastUsed = uc.now()
	entry.mu.Unlock()

	genCtx, cancel := withTimeout(ctx, uc.cfg.QuestionTimeout)
	defer cancel()

	question, genErr := uc.generateQuestion(genCtx, snapshot)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	now := uc.now()
	entry.lastUsed = now

	if genErr != nil {
		entry.session.FailQuestion(token, now)
		return nil, goerr.Wrap(genErr, "failed to generate interview question", goerr.V(model.SessionIDKey, snapshot.ID))
	}
	if !entry.session.CompleteQuestion(token, question, now) {
		return nil, goerr.Wrap(model.ErrSessionBusy, "session was reset while the question was generated", goerr.V(model.SessionIDKey, snapshot.ID))
	}
	return entry.session.Copy(), nil
}

func (uc *InterviewUseCase) generateQuestion(ctx context.Context, session *model.InterviewSession) (string, error) {
	query := session.QueryText(uc.cfg.RecentAnswers, uc.cfg.SeedTopic)
	results, err := uc.matcher.Search(ctx, session.AuthorID, session.ProjectID, query, uc.cfg.RetrievalLimit)
	if err != nil {
		return "", err
	}

	system, err := renderPrompt(interviewerSystem, interviewerPromptData{Context: retrieval.Assemble(results)})
	if err != nil {
		return "", err
	}
	prompt, err := renderPrompt(interviewUser, interviewPromptData{Topic: uc.cfg.SeedTopic, Turns: session.Turns})
	if err != nil {
		return "", err
	}

	question, err := uc.llm.Generate(ctx, llm.Request{
		Name:         "interview_question",
		SystemPrompt: system,
		Prompt:       prompt,
		Params:       uc.cfg.Question,
	})
	if err != nil {
		return "", err
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return "", goerr.Wrap(model.ErrUpstreamService, "generated question is empty")
	}
	return question, nil
}

func (uc *InterviewUseCase) lookup(authorID model.AuthorID, sessionID model.SessionID) (*sessionEntry, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	entry, ok := uc.sessions[sessionID]
	// AuthorID and ProjectID never change after creation
	if !ok || entry.session.AuthorID != authorID {
		return nil, goerr.Wrap(model.ErrNotFound, "interview session not found", goerr.V(model.SessionIDKey, sessionID))
	}
	return entry, nil
}

func (uc *InterviewUseCase) remove(sessionID model.SessionID) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	delete(uc.sessions, sessionID)
}

// sweepLocked drops idle sessions. A session with a question being generated is
// never idle. uc.mu must be held.
func (uc *InterviewUseCase) sweepLocked(now time.Time) {
	if uc.cfg.SessionIdleTTL <= 0 {
		return
	}
	for id, entry := range uc.sessions {
		if !entry.mu.TryLock() {
			continue
		}
		idle := entry.session.State != types.SessionStateGenerating &&
			now.Sub(entry.lastUsed) > uc.cfg.SessionIdleTTL
		entry.mu.Unlock()
		if idle {
			delete(uc.sessions, id)
		}
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
