//go:build !unix

package provisioner

import (
	"context"
	"errors"
)

var errLockUnsupported = errors.New("host lock is not supported on this platform")

// Lock always fails outside unix systems.
func (l *FileLock) Lock(context.Context) (func() error, error) {
	return nil, errLockUnsupported
}
