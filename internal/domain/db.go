package domain

import "context"

// Database is the lifecycle of the record store behind the repositories.
// The health check pings it; main migrates and closes it.
type Database interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
