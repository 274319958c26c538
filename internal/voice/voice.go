// ABOUTME: Capability-conditional voice capture adapter.
// ABOUTME: Wraps an external speech-to-text command when present, a no-op otherwise.

package voice

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

// ErrUnavailable is returned by Start when no recognizer is present.
var ErrUnavailable = errors.New("voice capture unavailable")

// TranscriptFunc receives the final transcript of a capture session.
type TranscriptFunc func(text string)

// Adapter is the voice capture surface. Exactly one variant is selected at
// startup: a Recognizer wrapping the host's speech-to-text command, or
// Unavailable when none exists. The rest of the pipeline never branches on
// platform capability directly.
type Adapter interface {
	// Available reports whether voice capture can be started at all.
	Available() bool
	// Start begins a single-utterance capture session. While a session is
	// active, Start stops it instead.
	Start(ctx context.Context) error
	// Stop ends any active capture session without delivering a transcript.
	Stop()
	// Capturing reports whether a capture session is active.
	Capturing() bool
}

// Detect probes the host for the configured recognizer command and returns
// the matching adapter variant.
func Detect(command string, args []string, fn TranscriptFunc, logger *slog.Logger) Adapter {
	if command == "" {
		return Unavailable{}
	}
	if _, err := exec.LookPath(command); err != nil {
		if logger != nil {
			logger.Debug("recognizer command not found", "command", command)
		}
		return Unavailable{}
	}
	return NewRecognizer(command, args, fn, logger)
}

// Unavailable is the adapter variant for hosts without speech recognition.
// Every operation is a no-op; Start reports ErrUnavailable so the caller
// can label the control accordingly.
type Unavailable struct{}

func (Unavailable) Available() bool               { return false }
func (Unavailable) Start(_ context.Context) error { return ErrUnavailable }
func (Unavailable) Stop()                         {}
func (Unavailable) Capturing() bool               { return false }

// Recognizer captures one utterance by running an external speech-to-text
// command and reading its first output line as the final transcript.
type Recognizer struct {
	command      string
	args         []string
	onTranscript TranscriptFunc
	logger       *slog.Logger

	mu        sync.Mutex
	capturing bool
	cancel    context.CancelFunc
}

// NewRecognizer wraps the given command. The transcript callback runs on
// the capture goroutine after a successful final transcript.
func NewRecognizer(command string, args []string, fn TranscriptFunc, logger *slog.Logger) *Recognizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recognizer{
		command:      command,
		args:         args,
		onTranscript: fn,
		logger:       logger.With("component", "voice"),
	}
}

// Available always reports true for a detected recognizer.
func (r *Recognizer) Available() bool { return true }

// Capturing reports whether a capture session is active.
func (r *Recognizer) Capturing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.capturing
}

// Start begins a single-utterance, non-continuous capture session. If a
// session is already active it is stopped instead, and no new session
// begins. Capture errors reset state to idle with no transcript delivered.
func (r *Recognizer) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.capturing {
		cancel := r.cancel
		r.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return nil
	}

	captureCtx, cancel := context.WithCancel(ctx)
	r.capturing = true
	r.cancel = cancel
	r.mu.Unlock()

	go r.capture(captureCtx)
	return nil
}

// Stop ends the active capture session, if any.
func (r *Recognizer) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// capture runs the recognizer command and delivers at most one transcript.
func (r *Recognizer) capture(ctx context.Context) {
	defer r.reset()

	cmd := exec.CommandContext(ctx, r.command, r.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.logger.Debug("capture setup failed", "error", err)
		return
	}
	if err := cmd.Start(); err != nil {
		r.logger.Debug("recognizer failed to start", "error", err)
		return
	}

	var transcript string
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			transcript = line
			break
		}
	}

	// Single-utterance: once a final transcript arrives the recognizer is
	// done, whether or not it planned to keep listening.
	if transcript != "" && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	_ = cmd.Wait()

	if transcript == "" {
		// Natural end of utterance or error: silent reset, no text change.
		return
	}
	if ctx.Err() != nil {
		// Session was stopped; discard the transcript.
		return
	}
	if r.onTranscript != nil {
		r.onTranscript(transcript)
	}
}

func (r *Recognizer) reset() {
	r.mu.Lock()
	r.capturing = false
	r.cancel = nil
	r.mu.Unlock()
}
