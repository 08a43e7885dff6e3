package synthesis

import (
	"fmt"
	"strings"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// RenderEpisodes lays out fragments as numbered episodes in the given order. The
// question line is written only for fragments that have one.
func RenderEpisodes(fragments []*model.Fragment) string {
	var sb strings.Builder
	for i, f := range fragments {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "### 에피소드 %d\n", i+1)
		if f.HasQuestion() {
			fmt.Fprintf(&sb, "질문: %s\n", f.Question)
		}
		fmt.Fprintf(&sb, "답변: %s\n", f.Answer)
	}
	return sb.String()
}
