// Package database provides the PostgreSQL-backed poll store: connection
// pooling, startup migrations, and a domain.Store implementation whose vote
// insert is atomic per (user, poll) pair.
package database
