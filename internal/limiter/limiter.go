// Package limiter throttles failed websocket handshakes per (user, address).
package limiter

import (
	"context"
	"time"
)

// Limiter controls handshake attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether a handshake is currently allowed and an
	// optional retry-after.
	Allow(ctx context.Context, userRef string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful handshake.
	Success(ctx context.Context, userRef string, ipHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, userRef string, ipHash []byte) (bool, time.Duration, error)
}
