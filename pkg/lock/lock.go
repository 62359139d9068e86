package lock

import "context"

// Locker serializes work on a single entity. Every mutation of shared state
// (a ride's seat count, a wallet's balance, a transaction's terminal status)
// runs inside WithLock for that entity's key, so reads, validation and writes
// form one atomic unit. Locks must never be held across provider calls.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}
