package types

import "fmt"

// Tone is the writing style requested when refining text
type Tone string

const (
	ToneWarm   Tone = "warm"
	ToneFormal Tone = "formal"
	ToneCasual Tone = "casual"
)

// IsValid checks if the tone is valid
func (t Tone) IsValid() bool {
	switch t {
	case ToneWarm, ToneFormal, ToneCasual:
		return true
	default:
		return false
	}
}

// Normalize returns the tone, treating empty as ToneWarm.
func (t Tone) Normalize() Tone {
	if t == "" {
		return ToneWarm
	}
	return t
}

// Description returns the Korean phrase used in prompts for the tone
func (t Tone) Description() string {
	switch t.Normalize() {
	case ToneFormal:
		return "정중하고 격식 있는"
	case ToneCasual:
		return "편안하고 친근한"
	default:
		return "따뜻하고 감성적인"
	}
}

// ParseTone parses a string into a Tone. Empty input yields ToneWarm.
func ParseTone(s string) (Tone, error) {
	tone := Tone(s).Normalize()
	if !tone.IsValid() {
		return "", fmt.Errorf("invalid tone: %s", s)
	}
	return tone, nil
}
