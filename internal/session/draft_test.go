// ABOUTME: Tests for the draft input buffer: attachment replacement, detach, and clearing.

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/mediline/internal/agents"
)

func TestDraft_AttachReplaces(t *testing.T) {
	d := NewDraft()

	a := testAttachment(t, "first.png")
	b := testAttachment(t, "second.png")

	d.Attach(a)
	d.Attach(b)

	got := d.Attachment()
	require.NotNil(t, got)
	assert.Equal(t, "second.png", got.Filename)
}

func TestDraft_DetachClearsBothForms(t *testing.T) {
	d := NewDraft()
	d.Attach(testAttachment(t, "scan.png"))

	d.Detach()

	assert.Nil(t, d.Attachment())
	assert.True(t, d.Empty())
}

func TestDraft_Empty(t *testing.T) {
	d := NewDraft()
	assert.True(t, d.Empty())

	d.SetText("hello")
	assert.False(t, d.Empty())

	d.SetText("")
	assert.True(t, d.Empty())

	d.Attach(testAttachment(t, "scan.png"))
	assert.False(t, d.Empty())
}

func TestDraft_ClearKeepsAgent(t *testing.T) {
	d := NewDraft()
	require.NoError(t, d.SelectAgent(agents.TypePrescription))
	d.SetText("parse this")
	d.Attach(testAttachment(t, "rx.png"))

	d.Clear()

	assert.True(t, d.Empty())
	assert.Equal(t, agents.TypePrescription, d.Agent())
}

func TestDraft_SelectAgentRejectsUnknown(t *testing.T) {
	d := NewDraft()
	err := d.SelectAgent(agents.Type("chatbot"))
	assert.ErrorIs(t, err, agents.ErrUnknownType)
	assert.Equal(t, agents.TypeAuto, d.Agent())
}

func TestDraft_SetTextReplaces(t *testing.T) {
	d := NewDraft()
	d.SetText("I have a headache")
	// A voice transcript replaces, never appends.
	d.SetText("chest pain for three days")
	assert.Equal(t, "chest pain for three days", d.Text())
}
