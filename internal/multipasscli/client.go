package multipasscli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-version"

	"github.com/todoroff/multipass-ensure/internal/models"
)

// Client exposes typed helpers for interacting with the Multipass CLI.
type Client interface {
	Version(ctx context.Context) (string, error)
	ListInstances(ctx context.Context, refresh bool) ([]models.Instance, error)
	LaunchInstance(ctx context.Context, opts models.LaunchOptions) (*models.LaunchResult, error)
}

// Config controls the multipass CLI client instantiation.
type Config struct {
	BinaryPath string
	Timeout    int // Seconds
}

type client struct {
	binaryPath string
	timeout    time.Duration

	mu            sync.Mutex
	instanceCache *cacheEntry[[]models.Instance]
}

const (
	defaultBinaryName = "multipass"
	defaultTimeout    = 2 * time.Minute
	cacheTTL          = 3 * time.Second
	jsonFormatFlag    = "--format"
	jsonFormatValue   = "json"

	// launchGrace is added on top of the launch --timeout so multipass gets
	// to report its own timeout before the process is killed.
	launchGrace = time.Minute
)

// MinimumVersion is the oldest multipass release whose JSON output matches
// what the parsers here expect.
var MinimumVersion = version.Must(version.NewVersion("1.13.0"))

// NewClient validates the supplied configuration and returns an initialized Client.
func NewClient(ctx context.Context, cfg Config) (Client, error) {
	binary := cfg.BinaryPath
	if binary == "" {
		binary = defaultBinaryName
	}

	if !strings.Contains(binary, "/") && !strings.Contains(binary, "\\") {
		// Look up in PATH to produce early errors.
		if _, err := exec.LookPath(binary); err != nil {
			return nil, fmt.Errorf("unable to find multipass binary %q in PATH: %w", binary, err)
		}
	}

	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	return &client{
		binaryPath: binary,
		timeout:    timeout,
	}, nil
}

func (c *client) Version(ctx context.Context) (string, error) {
	var payload versionResponse
	if err := c.runJSON(ctx, &payload, "version"); err != nil {
		return "", err
	}
	return payload.Multipass, nil
}

func (c *client) ListInstances(ctx context.Context, refresh bool) ([]models.Instance, error) {
	c.mu.Lock()
	if !refresh && c.instanceCache.valid(time.Now()) {
		defer c.mu.Unlock()
		return cloneInstances(c.instanceCache.value), nil
	}
	c.mu.Unlock()

	var payload listResponse
	if err := c.runJSON(ctx, &payload, "list"); err != nil {
		return nil, err
	}

	instances := payload.toModel()

	c.mu.Lock()
	c.instanceCache = newCacheEntry(instances, cacheTTL, time.Now())
	c.mu.Unlock()

	return cloneInstances(instances), nil
}

func (c *client) LaunchInstance(ctx context.Context, opts models.LaunchOptions) (*models.LaunchResult, error) {
	if opts.Name == "" {
		return nil, errors.New("instance name is required to launch")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = models.DefaultLaunchTimeout
	}

	args := LaunchArgs(opts)
	deadline := time.Duration(opts.Timeout)*time.Second + launchGrace
	out, err := c.runWithTimeout(ctx, deadline, args...)
	c.invalidateInstances()
	if err != nil {
		return nil, err
	}

	return &models.LaunchResult{
		Command: append([]string{c.binaryPath}, args...),
		Output:  out,
	}, nil
}

// LaunchArgs renders the `multipass launch` argument list for opts. Resource
// values are passed through even when empty so multipass rejects them rather
// than silently applying its defaults. The image is positional and always
// comes last.
func LaunchArgs(opts models.LaunchOptions) []string {
	args := []string{
		"launch",
		"--name", opts.Name,
		"--cpus", opts.CPUs,
		"--disk", opts.Disk,
		"--memory", opts.Memory,
	}
	if opts.Timeout > 0 {
		args = append(args, "--timeout", strconv.Itoa(opts.Timeout))
	}
	if opts.CloudInitFile != "" {
		args = append(args, "--cloud-init", opts.CloudInitFile)
	}
	for _, net := range opts.Networks {
		if net.Name == "" {
			continue
		}
		args = append(args, "--network", NetworkArg(net))
	}
	if opts.Image != "" {
		args = append(args, opts.Image)
	}
	return args
}

// NetworkArg renders one --network value. A bare network name is used when
// neither mode nor mac is set.
func NetworkArg(net models.NetworkAttachment) string {
	var extras []string
	if net.Mode != "" {
		extras = append(extras, fmt.Sprintf("mode=%s", net.Mode))
	}
	if net.Mac != "" {
		extras = append(extras, fmt.Sprintf("mac=%s", net.Mac))
	}
	if len(extras) == 0 {
		return net.Name
	}
	return strings.Join(append([]string{"name=" + net.Name}, extras...), ",")
}

// CheckVersion reports an error when raw is unparseable or older than
// MinimumVersion.
func CheckVersion(raw string) error {
	current, err := version.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("could not parse multipass version %q: %w", raw, err)
	}

	if current.LessThan(MinimumVersion) {
		return fmt.Errorf("multipass version %s is older than supported minimum %s", current.Original(), MinimumVersion.Original())
	}
	return nil
}

func (c *client) runJSON(ctx context.Context, dest any, args ...string) error {
	args = append(args, jsonFormatFlag, jsonFormatValue)
	out, err := c.runWithTimeout(ctx, c.timeout, args...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(out, dest); err != nil {
		return fmt.Errorf("unable to parse multipass JSON output for %q: %w", strings.Join(args, " "), err)
	}
	return nil
}

func (c *client) runWithTimeout(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	command := strings.Join(args, " ")
	switch ctxErr := ctx.Err(); {
	case errors.Is(ctxErr, context.DeadlineExceeded):
		return nil, &TimeoutError{Command: command}
	case ctxErr != nil:
		return nil, fmt.Errorf("multipass %s interrupted: %w", command, ctxErr)
	}

	return nil, &CLIError{
		Command: command,
		Stdout:  strings.TrimSpace(stdout.String()),
		Stderr:  strings.TrimSpace(stderr.String()),
		Err:     err,
	}
}

func (c *client) invalidateInstances() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instanceCache = nil
}

func cloneInstances(in []models.Instance) []models.Instance {
	out := make([]models.Instance, len(in))
	copy(out, in)
	return out
}
