package agent

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// PendingCommand correlates one prompt with the turn that answers it.
// It is resolved exactly once; later resolutions are ignored.
type PendingCommand struct {
	ID      string
	Prompt  string
	Created time.Time

	mu    sync.Mutex
	reply string

	once sync.Once
	done chan struct{}
	err  error
}

func newPendingCommand(prompt string) *PendingCommand {
	return &PendingCommand{
		ID:      uuid.New().String(),
		Prompt:  prompt,
		Created: time.Now(),
		done:    make(chan struct{}),
	}
}

// Record stores the latest reply text without resolving
func (p *PendingCommand) Record(text string) {
	if text == "" {
		return
	}
	p.mu.Lock()
	p.reply = text
	p.mu.Unlock()
}

// Resolve completes the command. It reports whether this call did the resolving.
func (p *PendingCommand) Resolve(err error) bool {
	resolved := false
	p.once.Do(func() {
		p.err = err
		resolved = true
		close(p.done)
	})
	return resolved
}

// Done is closed once the command is resolved
func (p *PendingCommand) Done() <-chan struct{} {
	return p.done
}

// Result returns the last recorded reply and the resolution error.
// It is only meaningful after Done is closed.
func (p *PendingCommand) Result() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reply, p.err
}
