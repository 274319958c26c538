// ABOUTME: Append-only message log, the sole source of truth for conversation order.
// ABOUTME: The trailing history window is always derived from it, never stored separately.

package session

import "sync"

// Log is the ordered, append-only sequence of turns for one session.
// There is no delete, edit, or reorder operation. The log lives for the
// process only; it is never persisted.
type Log struct {
	mu       sync.RWMutex
	turns    []Message
	onAppend func(Message)
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// OnAppend registers a hook invoked after every append, for display
// refresh (e.g. scrolling the view to the newest turn). At most one hook;
// later calls replace earlier ones.
func (l *Log) OnAppend(fn func(Message)) {
	l.mu.Lock()
	l.onAppend = fn
	l.mu.Unlock()
}

// Append adds one turn to the end of the log.
func (l *Log) Append(m Message) {
	l.mu.Lock()
	l.turns = append(l.turns, m)
	fn := l.onAppend
	l.mu.Unlock()

	if fn != nil {
		fn(m)
	}
}

// Tail returns the last n turns in original chronological order.
// If the log holds fewer than n turns, all of them are returned.
func (l *Log) Tail(n int) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n > len(l.turns) {
		n = len(l.turns)
	}
	if n <= 0 {
		return nil
	}
	out := make([]Message, n)
	copy(out, l.turns[len(l.turns)-n:])
	return out
}

// Len returns the number of turns in the log.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// Messages returns a snapshot of the full log in order.
func (l *Log) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Message, len(l.turns))
	copy(out, l.turns)
	return out
}
