package synthesis

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// DraftChapter is one chapter as returned by the generation call
type DraftChapter struct {
	Title   string
	Content string
	// Order is nil when the entry carried no usable order
	Order *int
}

type rawDraft struct {
	Chapters *[]rawChapter `json:"chapters"`
}

type rawChapter struct {
	Title   string          `json:"title"`
	Content string          `json:"content"`
	Order   json.RawMessage `json:"order"`
}

var fencedJSON = regexp.MustCompile("(?s)```json[ \t]*\\r?\\n(.*?)\\r?\\n?```")

// ParseChapters decodes generated output into draft chapters. The whole text is
// tried as JSON first; failing that, one recovery pass takes the first fenced json
// block, else the first balanced object. A missing or empty chapters array is a
// parse error.
func ParseChapters(generated string) ([]DraftChapter, error) {
	drafts, err := decodeDraft(strings.TrimSpace(generated))
	if err == nil {
		return drafts, nil
	}

	recovered, ok := extractJSON(generated)
	if !ok {
		return nil, goerr.Wrap(model.ErrGenerationParse, "no JSON object in generated content",
			goerr.V("cause", err.Error()),
			goerr.V(model.ResponseKey, generated),
		)
	}

	drafts, err = decodeDraft(recovered)
	if err != nil {
		return nil, goerr.Wrap(model.ErrGenerationParse, "generated content does not match chapter schema",
			goerr.V("cause", err.Error()),
			goerr.V(model.ResponseKey, generated),
		)
	}
	return drafts, nil
}

func decodeDraft(text string) ([]DraftChapter, error) {
	var raw rawDraft
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, goerr.Wrap(err, "invalid JSON")
	}
	if raw.Chapters == nil {
		return nil, goerr.New("chapters array is missing")
	}
	if len(*raw.Chapters) == 0 {
		return nil, goerr.New("chapters array is empty")
	}

	drafts := make([]DraftChapter, len(*raw.Chapters))
	for i, c := range *raw.Chapters {
		drafts[i] = DraftChapter{
			Title:   c.Title,
			Content: c.Content,
			Order:   parseOrder(c.Order),
		}
	}
	return drafts, nil
}

// parseOrder accepts a JSON number or a numeric string
func parseOrder(raw json.RawMessage) *int {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		v := int(n)
		return &v
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return &v
		}
	}
	return nil
}

// extractJSON returns the first fenced json block, else the first balanced {...}
func extractJSON(text string) (string, bool) {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return firstObject(text)
}

func firstObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// BuildChapters turns drafts into chapters with contiguous order 1..n. Missing
// titles become "챕터 N" and missing orders the entry's position, both counted in
// input order. Entries are sorted by order with ties kept in input order.
func BuildChapters(drafts []DraftChapter) []*model.Chapter {
	type entry struct {
		chapter *model.Chapter
		order   int
	}

	entries := make([]entry, len(drafts))
	for i, d := range drafts {
		title := strings.TrimSpace(d.Title)
		if title == "" {
			title = "챕터 " + strconv.Itoa(i+1)
		}
		order := i + 1
		if d.Order != nil {
			order = *d.Order
		}
		entries[i] = entry{
			chapter: &model.Chapter{
				Title:   title,
				Content: model.NewDocumentFromText(d.Content),
			},
			order: order,
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].order < entries[j].order
	})

	chapters := make([]*model.Chapter, len(entries))
	for i, e := range entries {
		e.chapter.Order = i + 1
		chapters[i] = e.chapter
	}
	return chapters
}
