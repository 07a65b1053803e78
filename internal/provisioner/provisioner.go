// Package provisioner implements the lookup-or-create flow that backs the
// multipass-ensure adapter: find a VM by name in the Multipass inventory and
// launch it when it is missing.
package provisioner

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/todoroff/multipass-ensure/internal/models"
)

// Manager is the slice of the VM manager the provisioner needs.
// multipasscli.Client satisfies it.
type Manager interface {
	ListInstances(ctx context.Context, refresh bool) ([]models.Instance, error)
	LaunchInstance(ctx context.Context, opts models.LaunchOptions) (*models.LaunchResult, error)
}

// Options configures a Provisioner. Zero values select the defaults.
type Options struct {
	// Sink receives one record per launch. Defaults to DiscardSink.
	Sink Sink
	// Jitter bounds the delay before a launch. Defaults to DefaultJitter.
	Jitter *Jitter
	// Lock, when set, serializes the check-then-create section.
	Lock Locker
	Logger hclog.Logger
	// TempDir holds the transient cloud-init files. Empty means os.TempDir.
	TempDir string
	// LaunchTimeout is passed to `multipass launch --timeout`, in seconds.
	LaunchTimeout int
}

// Provisioner ensures VMs exist in a Manager.
type Provisioner struct {
	manager       Manager
	sink          Sink
	jitter        *Jitter
	lock          Locker
	logger        hclog.Logger
	tempDir       string
	launchTimeout int
}

// New returns a Provisioner backed by manager.
func New(manager Manager, opts Options) *Provisioner {
	p := &Provisioner{
		manager:       manager,
		sink:          opts.Sink,
		jitter:        opts.Jitter,
		lock:          opts.Lock,
		logger:        opts.Logger,
		tempDir:       opts.TempDir,
		launchTimeout: opts.LaunchTimeout,
	}
	if p.sink == nil {
		p.sink = DiscardSink{}
	}
	if p.jitter == nil {
		p.jitter = DefaultJitter()
	}
	if p.logger == nil {
		p.logger = hclog.NewNullLogger()
	}
	if p.launchTimeout <= 0 {
		p.launchTimeout = models.DefaultLaunchTimeout
	}
	return p
}
