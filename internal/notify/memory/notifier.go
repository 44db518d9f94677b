// Package memory contains an in-memory notifier for tests.
package memory

import (
	"context"
	"sync"
)

// Notifier stores sent messages for inspection.
type Notifier struct {
	mu       sync.RWMutex
	messages []string
	err      error
}

// New returns a memory Notifier.
func New() *Notifier {
	return &Notifier{}
}

// FailWith makes subsequent Send calls record the message and return err.
// A nil err restores normal behavior.
func (n *Notifier) FailWith(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

// Send records the message.
func (n *Notifier) Send(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return n.err
}

// Messages returns the recorded messages.
func (n *Notifier) Messages() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]string, len(n.messages))
	copy(out, n.messages)
	return out
}
