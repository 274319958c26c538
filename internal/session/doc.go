// Package session implements the client-side conversation session manager.
//
// # Overview
//
// A Session owns three pieces of state:
//
//   - Log: the append-only, ordered sequence of turns. Conversation order
//     is defined by the log alone; the trailing history window sent with
//     each request is derived from it on demand.
//   - Draft: the in-progress composition — pending text, at most one image
//     attachment, and the selected agent.
//   - Lifecycle: idle → sending → idle. One exchange in flight at a time.
//
// # Submission
//
// Submit freezes the draft into a user turn (optimistic append), clears
// the draft, and issues exactly one request. Every settled exchange grows
// the log by exactly two turns: the user turn and one assistant turn,
// which is either the server's reply, an inline error turn carrying the
// server's error string, or a fixed fallback when the backend was
// unreachable. Settlement is a pure function (Settle) so each branch is
// unit-testable without a network or a rendered interface.
//
// There is no retry, no cancellation, and no queuing: submitting while a
// send is in flight, or with an empty draft, is a no-op signalled by a
// sentinel error.
package session
