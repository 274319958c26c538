// ABOUTME: Agent catalog for the mediline backend routing agents.
// ABOUTME: Defines the closed agent type enumeration, display metadata, and keyword auto-routing.

package agents

import (
	"fmt"
	"strings"
)

// Type identifies which backend agent handles a request.
// It is a closed enumeration; TypeAuto defers the choice to keyword routing.
type Type string

const (
	TypeAuto         Type = "auto"
	TypeMedicalChat  Type = "medical-chat"
	TypePrescription Type = "prescription"
	TypeMultiAgent   Type = "multi-agent"
)

// ErrUnknownType is returned when a string does not name a valid agent type.
var ErrUnknownType = fmt.Errorf("unknown agent type")

// Parse converts a string to a Type, returning ErrUnknownType for anything
// outside the closed enumeration.
func Parse(s string) (Type, error) {
	switch Type(s) {
	case TypeAuto, TypeMedicalChat, TypePrescription, TypeMultiAgent:
		return Type(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// Valid reports whether t is a member of the closed enumeration.
func (t Type) Valid() bool {
	_, err := Parse(string(t))
	return err == nil
}

// All returns the selectable agent types in display order.
func All() []Type {
	return []Type{TypeAuto, TypeMedicalChat, TypePrescription, TypeMultiAgent}
}

// Agent describes one backend agent: display metadata for the client,
// routing keywords and the system prompt for the gateway.
type Agent struct {
	Type         Type
	Name         string
	Description  string
	Keywords     []string
	SystemPrompt string
}

// Catalog holds the agent definitions keyed by type.
type Catalog struct {
	agents map[Type]Agent
}

// Builtin returns the default catalog shipped with the gateway.
func Builtin() *Catalog {
	c := &Catalog{agents: make(map[Type]Agent)}
	for _, a := range builtinAgents {
		c.agents[a.Type] = a
	}
	return c
}

// Get returns the agent definition for a type.
func (c *Catalog) Get(t Type) (Agent, bool) {
	a, ok := c.agents[t]
	return a, ok
}

// Route resolves TypeAuto to a concrete agent based on message keywords
// and whether an image is attached. Non-auto types pass through unchanged.
//
// Prescription routing requires both prescription keywords and an image;
// research or imaging keywords select the multi-agent system; everything
// else falls back to the conversation agent.
func (c *Catalog) Route(message string, hasImage bool) Type {
	lower := strings.ToLower(message)

	if hasImage {
		if a, ok := c.agents[TypePrescription]; ok && containsAny(lower, a.Keywords) {
			return TypePrescription
		}
	}
	if a, ok := c.agents[TypeMultiAgent]; ok && containsAny(lower, a.Keywords) {
		return TypeMultiAgent
	}
	return TypeMedicalChat
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

var builtinAgents = []Agent{
	{
		Type:        TypeAuto,
		Name:        "Auto",
		Description: "Pick the best agent for each message automatically",
	},
	{
		Type:        TypeMedicalChat,
		Name:        "Medical Conversation Agent",
		Description: "General medical questions and symptom discussion",
		SystemPrompt: "You are a professional Medical AI Assistant. Provide accurate, " +
			"empathetic medical information. Always include disclaimers that this is " +
			"not a substitute for professional medical advice.",
	},
	{
		Type:        TypePrescription,
		Name:        "Prescription Parser",
		Description: "Extract medications from a prescription photo",
		Keywords:    []string{"prescription", "medication list", "parse prescription"},
	},
	{
		Type:        TypeMultiAgent,
		Name:        "Multi-Agent System",
		Description: "Research, medical imaging, and knowledge-base queries",
		Keywords:    []string{"research", "latest", "study", "analyze image", "x-ray", "scan"},
	},
}
