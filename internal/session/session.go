// ABOUTME: Submission pipeline for one conversation session.
// ABOUTME: Optimistic append, single in-flight exchange, and pure settlement of outcomes.

package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/carebridge/mediline/internal/chat"
)

// State is the request lifecycle of the pipeline.
type State int

const (
	StateIdle State = iota
	StateSending
)

func (s State) String() string {
	if s == StateSending {
		return "sending"
	}
	return "idle"
}

// Guard violations. Both make Submit a no-op: nothing is appended and no
// request is issued.
var (
	ErrEmptyDraft   = errors.New("draft is empty")
	ErrSendInFlight = errors.New("a send is already in flight")
)

// HistoryWindow is the maximum number of prior turns sent as context with
// each request.
const HistoryWindow = 10

// blankImagePrompt substitutes for an empty message when an image is
// attached, matching the backend contract.
const blankImagePrompt = "Analyze this image"

// unreachableText is the fixed fallback assistant turn for transport
// failures.
const unreachableText = "I'm sorry, I failed to connect to the medical assistant backend. " +
	"Please verify the server is running and reachable, then try again."

// Sender abstracts the backend exchange. *chat.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, req *chat.Request) (*chat.Reply, error)
}

// Session owns the message log, the draft buffer, and the request
// lifecycle for one conversation. All state transitions happen in response
// to discrete events; a second submission while one is outstanding is
// rejected, but the draft stays editable throughout.
type Session struct {
	log    *Log
	draft  *Draft
	sender Sender
	logger *slog.Logger

	mu    sync.Mutex
	state State
}

// New creates a session backed by the given sender.
func New(sender Sender, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		log:    NewLog(),
		draft:  NewDraft(),
		sender: sender,
		logger: logger.With("component", "session"),
	}
}

// Log returns the session's message log.
func (s *Session) Log() *Log { return s.log }

// Draft returns the session's draft buffer.
func (s *Session) Draft() *Draft { return s.draft }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Submit freezes the draft into a user turn, issues one backend request,
// and settles the exchange with exactly one assistant turn. It blocks
// until settlement and returns the assistant turn that was appended.
//
// Guards: an empty draft or an in-flight send returns a sentinel error
// without touching the log. The draft is cleared as soon as the user turn
// is appended, before the response outcome is known.
func (s *Session) Submit(ctx context.Context) (Message, error) {
	req, err := s.begin()
	if err != nil {
		return Message{}, err
	}

	reply, sendErr := s.sender.Send(ctx, req)
	assistant := Settle(reply, sendErr)

	s.mu.Lock()
	s.log.Append(assistant)
	s.state = StateIdle
	s.mu.Unlock()

	if sendErr != nil {
		s.logger.Debug("exchange settled with error", "error", sendErr)
	}
	return assistant, nil
}

// begin runs the guarded submit transition: build the request from the
// draft and the trailing history window, append the user turn, clear the
// draft, and enter the sending state.
func (s *Session) begin() (*chat.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateSending {
		return nil, ErrSendInFlight
	}
	if s.draft.Empty() {
		return nil, ErrEmptyDraft
	}

	text := s.draft.Text()
	agent := s.draft.Agent()

	var image *string
	var inline string
	if a := s.draft.Attachment(); a != nil {
		inline = a.DataURL()
		image = &inline
	}
	if text == "" && image != nil {
		text = blankImagePrompt
	}

	// The history window reflects the log as it stood before this
	// submission's optimistic append.
	history := historyWindow(s.log.Tail(HistoryWindow))

	userTurn := NewUserMessage(text, inline)
	s.log.Append(userTurn)
	s.draft.Clear()
	s.state = StateSending

	s.logger.Debug("submitting",
		"message_id", userTurn.ID,
		"agent_type", agent,
		"history", len(history),
		"has_image", image != nil)

	return &chat.Request{
		Message:   text,
		History:   history,
		Image:     image,
		AgentType: agent,
	}, nil
}

// Settle converts a send outcome into the assistant turn to append. It is
// a pure function of its inputs, one branch per failure class:
//
//   - nil error: the server's markdown reply, agent label, and validation flag
//   - *chat.RemoteError: an error turn embedding the server-supplied message
//   - anything else (transport failure): the fixed unreachable fallback
func Settle(reply *chat.Reply, err error) Message {
	if err == nil {
		return NewAssistantMessage(reply.Text, reply.Agent, reply.RequiresValidation)
	}

	var remote *chat.RemoteError
	if errors.As(err, &remote) {
		return NewAssistantMessage("The assistant reported an error: "+remote.Message, "", false)
	}
	return NewAssistantMessage(unreachableText, "", false)
}

// historyWindow converts log turns to the wire history shape, oldest first.
func historyWindow(turns []Message) []chat.Turn {
	out := make([]chat.Turn, 0, len(turns))
	for _, m := range turns {
		out = append(out, chat.Turn{
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
			Agent:     m.Agent,
		})
	}
	return out
}
