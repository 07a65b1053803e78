package provisioner

import (
	"context"
	"errors"

	"github.com/todoroff/multipass-ensure/internal/models"
)

// Ensure returns the VM named req.Name, launching it first if the manager
// does not know it. An existing VM is returned as is, whatever its
// resources or state.
//
// Before a launch the call sleeps for a random jitter so that parallel
// invocations do not all pull images at once. Without a Locker two
// invocations for the same name can still both launch; the second launch
// then fails in multipass.
func (p *Provisioner) Ensure(ctx context.Context, req models.VMRequest) (*models.VMInfo, error) {
	logger := p.logger.With("name", req.Name)

	info, err := p.Lookup(ctx, req.Name)
	if err == nil {
		logger.Debug("vm already exists", "state", info.State, "ip", info.IP)
		return info, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	delay := p.jitter.Delay()
	logger.Info("vm not found, waiting before launch", "delay", delay.String())
	if err := p.jitter.Wait(ctx, delay); err != nil {
		return nil, wrap(OpJitter, req.Name, err)
	}

	if p.lock != nil {
		unlock, err := p.lock.Lock(ctx)
		if err != nil {
			return nil, wrap(OpLock, req.Name, err)
		}
		defer func() {
			if err := unlock(); err != nil {
				logger.Warn("failed to release host lock", "error", err)
			}
		}()

		// Another invocation may have launched the VM while we waited.
		info, err := p.Lookup(ctx, req.Name)
		if err == nil {
			logger.Info("vm appeared while waiting for the host lock", "state", info.State)
			return info, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	info, err = p.Provision(ctx, req)
	if err != nil {
		return nil, err
	}
	logger.Info("vm launched", "ip", info.IP, "state", info.State, "release", info.Release)
	return info, nil
}
