// ABOUTME: Wire types for the backend chat contract.
// ABOUTME: Requests carry the trailing history window; responses parse into a tagged outcome.

package chat

import (
	"errors"
	"fmt"

	"github.com/carebridge/mediline/internal/agents"
)

// ErrUnreachable wraps every transport-level failure: connection errors,
// timeouts, non-JSON bodies, unexpected status codes. Callers branch on it
// with errors.Is.
var ErrUnreachable = errors.New("backend unreachable")

// RemoteError is an application-level failure: the backend answered with
// success=false and (usually) an error string. The conversation continues;
// the caller surfaces Message inline.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("backend error: %s", e.Message)
}

// Turn is one prior conversational turn in the request history window.
type Turn struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Agent     string `json:"agent,omitempty"`
}

// Request is the JSON body for POST /api/chat.
type Request struct {
	Message   string      `json:"message"`
	History   []Turn      `json:"history"`
	Image     *string     `json:"image"`
	AgentType agents.Type `json:"agent_type"`
}

// Response is the raw JSON body returned by POST /api/chat. It is decoded
// at the boundary and immediately converted to either a Reply or an error;
// the loosely-shaped form never travels further inward.
type Response struct {
	Success            bool   `json:"success"`
	Response           string `json:"response,omitempty"`
	Agent              string `json:"agent,omitempty"`
	Error              string `json:"error,omitempty"`
	RequiresValidation bool   `json:"requires_validation,omitempty"`
}

// Reply is a successful assistant response.
type Reply struct {
	Text               string
	Agent              string
	RequiresValidation bool
}

// outcome converts the wire response into the tagged result: a Reply on
// success, a *RemoteError on an application-level failure.
func (r *Response) outcome() (*Reply, error) {
	if !r.Success {
		msg := r.Error
		if msg == "" {
			msg = "the server reported an unspecified error"
		}
		return nil, &RemoteError{Message: msg}
	}
	return &Reply{
		Text:               r.Response,
		Agent:              r.Agent,
		RequiresValidation: r.RequiresValidation,
	}, nil
}
