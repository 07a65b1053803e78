package provisioner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/todoroff/multipass-ensure/internal/models"
)

// networkMode is the attachment mode used for the secondary interface. The
// address is configured by cloud-init, not by multipass.
const networkMode = "manual"

// Provision launches the VM described by req and returns its observed state.
// The cloud-init payload is staged in a temporary file for the duration of
// the launch.
func (p *Provisioner) Provision(ctx context.Context, req models.VMRequest) (*models.VMInfo, error) {
	path, err := p.writeCloudInit(req.Init)
	if err != nil {
		return nil, wrap(OpProvision, req.Name, err)
	}
	removed := false
	defer func() {
		if !removed {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				p.logger.Warn("failed to remove cloud-init file", "path", path, "error", err)
			}
		}
	}()

	opts := p.launchOptions(req, path)
	p.logger.Info("launching vm", "name", opts.Name, "image", opts.Image, "cpus", opts.CPUs, "memory", opts.Memory, "disk", opts.Disk)

	res, err := p.manager.LaunchInstance(ctx, opts)
	if err != nil {
		return nil, wrap(OpProvision, req.Name, err)
	}

	if err := p.sink.Record(res.Command, res.Output); err != nil {
		return nil, wrap(OpRecord, req.Name, err)
	}

	removed = true
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, wrap(OpProvision, req.Name, fmt.Errorf("remove cloud-init file: %w", err))
	}

	return p.Lookup(ctx, req.Name)
}

func (p *Provisioner) launchOptions(req models.VMRequest, cloudInitFile string) models.LaunchOptions {
	image := req.Image
	if image == "" {
		image = models.DefaultImage
	}

	opts := models.LaunchOptions{
		Name:          req.Name,
		Image:         image,
		CPUs:          req.CPU,
		Memory:        req.Memory,
		Disk:          req.Disk,
		Timeout:       p.launchTimeout,
		CloudInitFile: cloudInitFile,
	}
	if req.NetworkName != "" {
		opts.Networks = []models.NetworkAttachment{{
			Name: req.NetworkName,
			Mode: networkMode,
			Mac:  req.MacAddress,
		}}
	}
	return opts
}

func (p *Provisioner) writeCloudInit(data string) (string, error) {
	f, err := os.CreateTemp(p.tempDir, "cloud-init-*.yaml")
	if err != nil {
		return "", fmt.Errorf("create cloud-init file: %w", err)
	}
	if _, err := f.WriteString(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write cloud-init file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close cloud-init file: %w", err)
	}
	return f.Name(), nil
}
