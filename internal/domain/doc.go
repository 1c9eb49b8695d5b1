// Package domain defines the core domain types and interfaces.
//
// Concept-oriented types (User, Poll, Option, Vote, PollSnapshot), sentinel
// errors, and the Store contract. No implementation code - just contracts.
// Prevents circular imports by keeping interfaces on the consumer side.
package domain
