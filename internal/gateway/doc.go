// Package gateway implements the medical chat HTTP API.
//
// The gateway exposes four endpoints: POST /api/chat routes each message
// to one of three agents (general conversation, prescription parsing, or
// the multi-agent research system), POST /api/prescription/parse extracts
// structured medication data from an image, POST /api/voice/command turns
// a transcribed utterance into an ordering intent, and GET /api/health
// reports liveness.
//
// Agent selection follows the request's agent_type field; "auto" routes
// by message keywords and image presence. All agent-level failures are
// reported in the response body with success=false so the conversation
// can continue; HTTP error statuses are reserved for malformed requests.
//
// Every round trip is appended to the exchange ledger in the store
// package. Ledger writes are best effort and never fail a request.
package gateway
