package llm

import (
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter measures and bounds text in model tokens
type TokenCounter interface {
	Count(text string) int
	Truncate(text string, maxTokens int) string
}

const defaultEncoding = "cl100k_base"

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter returns a counter backed by the cl100k_base BPE. The encoding
// table is downloaded on first use unless TIKTOKEN_CACHE_DIR holds a copy.
func NewTiktokenCounter() (TokenCounter, error) {
	enc, err := tiktoken.GetEncoding(defaultEncoding)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load token encoding", goerr.V("encoding", defaultEncoding))
	}
	return &tiktokenCounter{enc: enc}, nil
}

func (c *tiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

func (c *tiktokenCounter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	// a cut inside a multi-byte rune leaves an invalid tail
	return strings.ToValidUTF8(c.enc.Decode(tokens[:maxTokens]), "")
}

// approxCounter treats every rune as one token. Hangul text averages close to one
// token per syllable, so the bound errs on the short side for Latin text only.
type approxCounter struct{}

// NewApproxCounter returns a counter that needs no encoding table
func NewApproxCounter() TokenCounter {
	return approxCounter{}
}

func (approxCounter) Count(text string) int {
	return utf8.RuneCountInString(text)
}

func (approxCounter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 || utf8.RuneCountInString(text) <= maxTokens {
		return text
	}
	return string([]rune(text)[:maxTokens])
}
