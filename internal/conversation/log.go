// Package conversation holds the client-side chat transcript for one coin.
package conversation

import (
	"errors"
	"strings"
	"sync"

	"coin-chat/internal/domain"
)

var (
	ErrExchangeInFlight = errors.New("conversation: an answer is still streaming")
	ErrEmptyQuestion    = errors.New("conversation: question is empty")
)

const noOpenMessage = -1

// Log is an append-only list of messages. While an exchange is in flight a
// single assistant message, the open one, receives every delta.
type Log struct {
	mu       sync.Mutex
	messages []domain.ConversationMessage
	inFlight bool
	open     int
}

func New() *Log {
	return &Log{open: noOpenMessage}
}

// Submit appends the user's question and starts an exchange.
func (l *Log) Submit(question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight {
		return "", ErrExchangeInFlight
	}
	l.messages = append(l.messages, domain.ConversationMessage{Role: domain.RoleUser, Content: question})
	l.inFlight = true
	l.open = noOpenMessage
	return question, nil
}

// Apply appends delta to the open assistant message, creating it on the
// first delta of the exchange. Deltas outside an exchange are ignored.
func (l *Log) Apply(delta string) {
	if delta == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.inFlight {
		return
	}
	if l.open == noOpenMessage {
		l.messages = append(l.messages, domain.ConversationMessage{Role: domain.RoleAssistant})
		l.open = len(l.messages) - 1
	}
	l.messages[l.open].Content += delta
}

// Finish closes the current exchange. Text already received stays in place.
func (l *Log) Finish() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inFlight = false
	l.open = noOpenMessage
}

// Busy reports whether an exchange is in flight.
func (l *Log) Busy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight
}

// Answer returns the content of the open assistant message, or of the last
// assistant message once the exchange has finished.
func (l *Log) Answer() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.open != noOpenMessage {
		return l.messages[l.open].Content
	}
	last := len(l.messages) - 1
	if last >= 0 && l.messages[last].Role == domain.RoleAssistant {
		return l.messages[last].Content
	}
	return ""
}

// Messages returns a copy of the transcript.
func (l *Log) Messages() []domain.ConversationMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.ConversationMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// Clear empties the transcript. It fails while an answer is streaming.
func (l *Log) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight {
		return ErrExchangeInFlight
	}
	l.messages = nil
	return nil
}
