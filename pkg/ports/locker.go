package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock acquired through DistributedLocker.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes turns of the same session across replicas.
// The session manager always holds its in-process lock first, so a locker only
// arbitrates between processes.
type DistributedLocker interface {
	// Lock blocks until the lock for key is held or ctx is done.
	// The lock expires after ttl if the holder never releases it.
	// The returned UnlockFunc MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
