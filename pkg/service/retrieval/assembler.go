package retrieval

import (
	"fmt"
	"strings"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

const (
	// AnswerRuneBudget bounds each answer rendered into the context block
	AnswerRuneBudget = 300

	noQuestionMarker = "(질문 없음)"
	emptyMarker      = "(아직 대화가 없습니다)"
	ellipsis         = "…"
)

// Assemble renders retrieval results as a numbered context block in the given order
func Assemble(results []*model.RetrievalResult) string {
	if len(results) == 0 {
		return emptyMarker
	}

	blocks := make([]string, 0, len(results))
	for i, r := range results {
		question := r.Question
		if question == "" {
			question = noQuestionMarker
		}
		blocks = append(blocks, fmt.Sprintf("%d. Q: %s\n   A: %s", i+1, question, truncateRunes(r.Answer, AnswerRuneBudget)))
	}
	return strings.Join(blocks, "\n\n")
}

func truncateRunes(s string, budget int) string {
	runes := []rune(s)
	if len(runes) <= budget {
		return s
	}
	return string(runes[:budget]) + ellipsis
}
