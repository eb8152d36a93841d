package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lexiqai/voice-assistant/internal/agent"
	"github.com/lexiqai/voice-assistant/internal/listen"
)

type noParams struct{}

type setWakePhraseParams struct {
	Phrase string `json:"phrase" jsonschema:"description=The new wake phrase such as hey computer"`
}

// BuiltinOperations returns the operations the assistant itself provides.
// now may be nil.
func BuiltinOperations(wake *listen.WakeWordConfig, now func() time.Time) []agent.Operation {
	if now == nil {
		now = time.Now
	}

	return []agent.Operation{
		agent.NewOperation("get_current_time", "Get the current local date and time",
			func(ctx context.Context, _ noParams) (string, error) {
				return now().Format("Monday, January 2, 2006 3:04 PM MST"), nil
			}),
		agent.NewOperation("get_wake_phrase", "Get the phrase that wakes the assistant",
			func(ctx context.Context, _ noParams) (string, error) {
				return wake.Phrase(), nil
			}),
		agent.NewOperation("set_wake_phrase", "Change the phrase that wakes the assistant. Takes effect on the next listen.",
			func(ctx context.Context, p setWakePhraseParams) (string, error) {
				if !wake.SetPhrase(p.Phrase) {
					return "", errors.New("wake phrase must contain at least one word")
				}
				return fmt.Sprintf("wake phrase is now %q", wake.Phrase()), nil
			}),
	}
}
