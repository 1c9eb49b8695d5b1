// Package app implements the application service layer.
//
// Service orchestrates the vote ledger (one vote per user per poll, idempotent
// repeats, atomic mutate-then-broadcast), the snapshot builder, and the user/poll
// CRUD around the Store. MemoryStore is a mutex-guarded Store implementation for
// tests and zero-dependency development.
package app
