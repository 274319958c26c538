// ABOUTME: Draft input buffer: pending text, at most one image, and the agent selector.
// ABOUTME: Cleared on submission initiation; the agent selection persists across sends.

package session

import (
	"fmt"
	"sync"

	"github.com/carebridge/mediline/internal/agents"
	"github.com/carebridge/mediline/internal/attach"
)

// Draft is the in-progress composition. Text and attachment are reset on
// submit; the selected agent carries over from one send to the next.
type Draft struct {
	mu         sync.RWMutex
	text       string
	attachment *attach.Attachment
	agent      agents.Type
}

// NewDraft returns an empty draft with the agent selector at auto.
func NewDraft() *Draft {
	return &Draft{agent: agents.TypeAuto}
}

// SetText replaces the draft text.
func (d *Draft) SetText(text string) {
	d.mu.Lock()
	d.text = text
	d.mu.Unlock()
}

// Text returns the current draft text.
func (d *Draft) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text
}

// Attach sets the pending image, replacing any previous attachment.
func (d *Draft) Attach(a *attach.Attachment) {
	d.mu.Lock()
	d.attachment = a
	d.mu.Unlock()
}

// Detach removes the pending image. Both the raw payload and the preview
// form go away together; a subsequent Attach may re-use the same file.
func (d *Draft) Detach() {
	d.mu.Lock()
	d.attachment = nil
	d.mu.Unlock()
}

// Attachment returns the pending image, or nil.
func (d *Draft) Attachment() *attach.Attachment {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.attachment
}

// SelectAgent sets the agent routing hint for subsequent sends.
func (d *Draft) SelectAgent(t agents.Type) error {
	if !t.Valid() {
		return fmt.Errorf("selecting agent: %w: %q", agents.ErrUnknownType, t)
	}
	d.mu.Lock()
	d.agent = t
	d.mu.Unlock()
	return nil
}

// Agent returns the currently selected agent type.
func (d *Draft) Agent() agents.Type {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.agent
}

// Empty reports whether the draft has neither text nor an attachment.
func (d *Draft) Empty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text == "" && d.attachment == nil
}

// Clear resets text and attachment. The agent selection is kept.
func (d *Draft) Clear() {
	d.mu.Lock()
	d.text = ""
	d.attachment = nil
	d.mu.Unlock()
}
