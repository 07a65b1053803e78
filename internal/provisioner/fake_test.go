package provisioner

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/todoroff/multipass-ensure/internal/models"
)

// fakeManager is an in-memory VM manager. Launched VMs get a fixed address
// and appear in subsequent listings.
type fakeManager struct {
	mu sync.Mutex

	instances []models.Instance
	listErr   error
	launchErr error

	listCalls int
	refreshes []bool
	launches  []models.LaunchOptions
	// cloudInit holds the content of the cloud-init file as seen at launch.
	cloudInit []string

	// beforeList runs at the start of every ListInstances call.
	beforeList func(call int)
}

func (f *fakeManager) ListInstances(_ context.Context, refresh bool) ([]models.Instance, error) {
	f.mu.Lock()
	f.listCalls++
	f.refreshes = append(f.refreshes, refresh)
	call := f.listCalls
	hook := f.beforeList
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.Instance, len(f.instances))
	copy(out, f.instances)
	return out, nil
}

func (f *fakeManager) LaunchInstance(_ context.Context, opts models.LaunchOptions) (*models.LaunchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.launches = append(f.launches, opts)
	data, err := os.ReadFile(opts.CloudInitFile)
	if err != nil {
		return nil, fmt.Errorf("read cloud-init: %w", err)
	}
	f.cloudInit = append(f.cloudInit, string(data))

	if f.launchErr != nil {
		return nil, f.launchErr
	}

	for _, inst := range f.instances {
		if inst.Name == opts.Name {
			return nil, fmt.Errorf("instance %q already exists", opts.Name)
		}
	}
	f.instances = append(f.instances, models.Instance{
		Name:    opts.Name,
		State:   "Running",
		Release: "Ubuntu " + opts.Image + " LTS",
		IPv4:    []string{"192.168.64.10"},
	})

	return &models.LaunchResult{
		Command: []string{"multipass", "launch", "--name", opts.Name},
		Output:  []byte("Launched: " + opts.Name + "\n"),
	}, nil
}

func (f *fakeManager) launchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.launches)
}

// memorySink keeps records in memory.
type memorySink struct {
	mu      sync.Mutex
	records []string
	err     error
}

func (s *memorySink) Record(command []string, output []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, fmt.Sprintf("%v: %s", command, output))
	return nil
}

// noSleepJitter draws delays without sleeping and remembers them.
func noSleepJitter(slept *[]time.Duration) *Jitter {
	j := DefaultJitter()
	j.Sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return j
}

func testRequest(name string) models.VMRequest {
	return models.VMRequest{
		Name:   name,
		CPU:    "2",
		Memory: "2G",
		Disk:   "10G",
		Init:   "#cloud-config\npackages:\n  - curl\n",
		Image:  models.DefaultImage,
	}
}
