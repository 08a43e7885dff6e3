package usecase

import (
	"time"

	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/service/embedding"
	"github.com/secmon-lab/mnemosyne/pkg/service/llm"
	"github.com/secmon-lab/mnemosyne/pkg/service/retrieval"
)

type UseCases struct {
	repo    interfaces.Repository
	llm     llm.Service
	cfg     Config
	now     func() time.Time
	indexer *embedding.Indexer
	matcher *retrieval.Matcher

	Project   *ProjectUseCase
	Fragment  *FragmentUseCase
	Chapter   *ChapterUseCase
	Interview *InterviewUseCase
	Synthesis *SynthesisUseCase
	Refine    *RefineUseCase
}

type Option func(*UseCases)

func WithConfig(cfg Config) Option {
	return func(uc *UseCases) {
		uc.cfg = cfg
	}
}

// WithClock replaces time.Now for session timestamps
func WithClock(now func() time.Time) Option {
	return func(uc *UseCases) {
		uc.now = now
	}
}

func New(repo interfaces.Repository, llmService llm.Service, opts ...Option) *UseCases {
	uc := &UseCases{
		repo: repo,
		llm:  llmService,
		cfg:  DefaultConfig(),
		now:  func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.indexer = embedding.New(repo.Fragment(), llmService)
	uc.matcher = retrieval.NewMatcher(repo.Fragment(), llmService, retrieval.WithThreshold(uc.cfg.SimilarityThreshold))

	uc.Project = NewProjectUseCase(repo, uc.cfg)
	uc.Fragment = NewFragmentUseCase(repo, uc.indexer, uc.matcher, uc.cfg)
	uc.Chapter = NewChapterUseCase(repo)
	uc.Interview = NewInterviewUseCase(repo, llmService, uc.indexer, uc.matcher, uc.cfg, uc.now)
	uc.Synthesis = NewSynthesisUseCase(repo, llmService, uc.cfg)
	uc.Refine = NewRefineUseCase(llmService, uc.cfg)

	return uc
}

// Indexer exposes embedding bookkeeping, e.g. the failure counter
func (uc *UseCases) Indexer() *embedding.Indexer {
	return uc.indexer
}
