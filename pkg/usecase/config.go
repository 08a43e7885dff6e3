package usecase

import (
	"time"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/service/llm"
)

// Config tunes the interview, synthesis and refine flows
type Config struct {
	// SeedTopic is the retrieval query used before the respondent has answered anything
	SeedTopic string
	// RecentAnswers is how many latest answers form the retrieval query
	RecentAnswers int
	// RetrievalLimit is the number of past fragments given to the interviewer
	RetrievalLimit int
	// SimilarityThreshold is the exclusive lower bound for retrieved fragments
	SimilarityThreshold float64

	Question  llm.Params
	Synthesis llm.Params
	Refine    llm.Params

	// QuestionTimeout bounds one interview question generation
	QuestionTimeout time.Duration
	// SynthesisTimeout bounds one chapter generation
	SynthesisTimeout time.Duration
	// SessionIdleTTL drops interview sessions unused for longer
	SessionIdleTTL time.Duration

	// ReindexConcurrency is the number of embeddings computed in parallel by Reindex
	ReindexConcurrency int

	// Outline is given to every new project
	Outline []model.OutlineItem
}

// DefaultConfig returns the built-in tuning
func DefaultConfig() Config {
	return Config{
		SeedTopic:           "자서전",
		RecentAnswers:       3,
		RetrievalLimit:      3,
		SimilarityThreshold: model.SimilarityThreshold,
		Question:            llm.Params{Temperature: 0.7, MaxTokens: 200},
		Synthesis:           llm.Params{Temperature: 0.7, MaxTokens: 3000},
		Refine:              llm.Params{Temperature: 0.3, MaxTokens: 500},
		QuestionTimeout:     30 * time.Second,
		SynthesisTimeout:    3 * time.Minute,
		SessionIdleTTL:      2 * time.Hour,
		ReindexConcurrency:  4,
		Outline:             model.DefaultOutline(),
	}
}
