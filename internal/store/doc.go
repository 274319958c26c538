// Package store provides persistent storage for the gateway using SQLite.
//
// The gateway records every chat round trip as an Exchange: the user's
// message, the agent that handled it, and the reply or error. The ledger
// is append-only and exists for operator review; nothing in the request
// path reads from it.
//
// SQLiteStore is the production implementation, backed by modernc.org/sqlite
// (pure Go, no cgo). It creates its schema on first open and enables WAL
// mode for concurrent reads. MockStore is an in-memory implementation for
// tests.
package store
