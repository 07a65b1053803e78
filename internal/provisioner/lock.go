package provisioner

import (
	"context"
	"time"
)

// Locker serializes the check-then-create section across invocations.
// The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context) (unlock func() error, err error)
}

const defaultLockPoll = 250 * time.Millisecond

// FileLock is a host-wide advisory lock on Path.
type FileLock struct {
	Path         string
	PollInterval time.Duration
}

// NewFileLock returns a FileLock on path.
func NewFileLock(path string) *FileLock {
	return &FileLock{Path: path, PollInterval: defaultLockPoll}
}

func (l *FileLock) pollInterval() time.Duration {
	if l.PollInterval <= 0 {
		return defaultLockPoll
	}
	return l.PollInterval
}
