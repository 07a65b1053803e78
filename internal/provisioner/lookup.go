package provisioner

import (
	"context"

	"github.com/todoroff/multipass-ensure/internal/models"
)

// Lookup returns the VM named name as currently reported by the manager.
// It returns ErrNotFound when no entry matches and ErrNoAddress when the
// matching entry has not been assigned an IPv4 address.
func (p *Provisioner) Lookup(ctx context.Context, name string) (*models.VMInfo, error) {
	return p.lookup(ctx, name, true)
}

// LookupCached is Lookup for read-only callers that tolerate a listing a few
// seconds old. Many reads in one plan share a single `multipass list`.
func (p *Provisioner) LookupCached(ctx context.Context, name string) (*models.VMInfo, error) {
	return p.lookup(ctx, name, false)
}

func (p *Provisioner) lookup(ctx context.Context, name string, refresh bool) (*models.VMInfo, error) {
	instances, err := p.manager.ListInstances(ctx, refresh)
	if err != nil {
		return nil, wrap(OpLookup, name, err)
	}

	for _, inst := range instances {
		if inst.Name != name {
			continue
		}
		if len(inst.IPv4) == 0 {
			return nil, &Error{Op: OpLookup, Name: name, Err: ErrNoAddress}
		}
		return &models.VMInfo{
			Name:    name,
			IP:      inst.IPv4[0],
			Release: inst.Release,
			State:   inst.State,
		}, nil
	}

	return nil, &Error{Op: OpLookup, Name: name, Err: ErrNotFound}
}
