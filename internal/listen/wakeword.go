package listen

import (
	"strings"
	"sync"
	"unicode"
)

// WakeWordConfig holds the trigger phrase. It may be changed at runtime;
// the spotter reads it fresh on every attempt.
type WakeWordConfig struct {
	mu     sync.RWMutex
	phrase string
}

// NewWakeWordConfig creates a config for phrase
func NewWakeWordConfig(phrase string) *WakeWordConfig {
	return &WakeWordConfig{phrase: phrase}
}

// Phrase returns the current wake phrase
func (c *WakeWordConfig) Phrase() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phrase
}

// SetPhrase replaces the wake phrase. Blank phrases are rejected.
func (c *WakeWordConfig) SetPhrase(phrase string) bool {
	if Normalize(phrase) == "" {
		return false
	}
	c.mu.Lock()
	c.phrase = strings.TrimSpace(phrase)
	c.mu.Unlock()
	return true
}

// Matches reports whether transcript contains the wake phrase, ignoring case
// and punctuation
func (c *WakeWordConfig) Matches(transcript string) bool {
	return ContainsPhrase(transcript, c.Phrase())
}

// ContainsPhrase reports whether the normalized phrase occurs in the normalized text
func ContainsPhrase(text, phrase string) bool {
	phrase = Normalize(phrase)
	if phrase == "" {
		return false
	}
	return strings.Contains(Normalize(text), phrase)
}

// Normalize lowercases text, drops punctuation and collapses whitespace
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case r == '\'':
			// keep contractions intact ("what's")
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
