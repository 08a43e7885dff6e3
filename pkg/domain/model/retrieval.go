package model

import "time"

// SimilarityThreshold is the minimum cosine similarity, exclusive, for a fragment
// to count as relevant context.
const SimilarityThreshold = 0.5

// RetrievalResult is a fragment matched by similarity search. It is never persisted.
type RetrievalResult struct {
	FragmentID FragmentID
	Question   string
	Answer     string
	Similarity float64
	CreatedAt  time.Time
}

// SimilarityQuery scopes a vector search to one author's project
type SimilarityQuery struct {
	AuthorID  AuthorID
	ProjectID ProjectID
	Vector    []float32
	Threshold float64
	Limit     int
}
