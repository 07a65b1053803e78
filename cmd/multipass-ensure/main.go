// Command multipass-ensure is a Terraform external data source program: it
// reads a VM description as JSON on stdin, makes sure a Multipass VM with
// that name exists, and prints the VM's name, ip, release and state as JSON
// on stdout.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/todoroff/multipass-ensure/internal/config"
	"github.com/todoroff/multipass-ensure/internal/multipasscli"
	"github.com/todoroff/multipass-ensure/internal/provisioner"
)

var (
	// version is set at build time through -ldflags and defaults to dev.
	version = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(os.Stdin, os.Stdout, os.Stderr, newMultipassManager)
	if err := root.ExecuteContext(ctx); err != nil {
		logger := hclog.New(&hclog.LoggerOptions{Name: "multipass-ensure", Output: os.Stderr})
		logger.Error("invocation failed", "error", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps a failed invocation to the process exit status. An
// interrupted run exits 130 like a shell killed by SIGINT.
func exitCode(err error) int {
	if errors.Is(err, context.Canceled) {
		return 130
	}
	return 1
}

// managerFactory builds the VM manager once the configuration is known.
type managerFactory func(ctx context.Context, cfg config.Config, logger hclog.Logger) (provisioner.Manager, error)

func newMultipassManager(ctx context.Context, cfg config.Config, logger hclog.Logger) (provisioner.Manager, error) {
	client, err := multipasscli.NewClient(ctx, multipasscli.Config{
		BinaryPath: cfg.MultipassPath,
		Timeout:    cfg.CommandTimeout,
	})
	if err != nil {
		return nil, err
	}

	ver, err := client.Version(ctx)
	if err != nil {
		logger.Warn("unable to detect multipass version", "error", err)
	} else if err := multipasscli.CheckVersion(ver); err != nil {
		logger.Warn("unsupported multipass version", "error", err)
	} else {
		logger.Debug("detected multipass CLI", "version", ver)
	}
	return client, nil
}

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer, newManager managerFactory) *cobra.Command {
	var (
		configPath string
		flagCfg    = config.Default()
		jitterMin  = time.Duration(flagCfg.JitterMin)
		jitterMax  = time.Duration(flagCfg.JitterMax)
	)

	cmd := &cobra.Command{
		Use:   "multipass-ensure",
		Short: "Ensure a Multipass VM exists and report its address",
		Long: `multipass-ensure reads a VM description from stdin, for example

  {"name":"k8s-master","cpu":"2","mem":"4G","disk":"20G","init":"#cloud-config\n..."}

launches the VM with multipass when no VM of that name exists, and writes
{"name","ip","release","state"} to stdout. Nothing is written to stdout when
the invocation fails.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.LoadFile(configPath, cfg)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			applyFlags(cmd, &cfg, flagCfg, jitterMin, jitterMax)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			level := hclog.LevelFromString(cfg.LogLevel)
			if level == hclog.NoLevel {
				return fmt.Errorf("unknown log level %q", cfg.LogLevel)
			}
			invocation := uuid.NewString()
			logger := hclog.New(&hclog.LoggerOptions{
				Name:   "multipass-ensure",
				Level:  level,
				Output: stderr,
			}).With("invocation", invocation)

			return run(cmd.Context(), cfg, invocation, stdin, stdout, logger, newManager)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	flags.StringVar(&flagCfg.MultipassPath, "multipass-path", flagCfg.MultipassPath, "Path to the multipass binary")
	flags.IntVar(&flagCfg.CommandTimeout, "command-timeout", flagCfg.CommandTimeout, "Timeout in seconds for multipass list and version")
	flags.IntVar(&flagCfg.LaunchTimeout, "launch-timeout", flagCfg.LaunchTimeout, "Value passed to multipass launch --timeout, in seconds")
	flags.StringVar(&flagCfg.DefaultImage, "default-image", flagCfg.DefaultImage, "Image launched when the request has none")
	flags.StringVar(&flagCfg.LogFile, "log-file", flagCfg.LogFile, "Append launch commands and their output to this file (empty disables)")
	flags.StringVar(&flagCfg.LogLevel, "log-level", flagCfg.LogLevel, "Stderr log level (trace, debug, info, warn, error)")
	flags.StringVar(&flagCfg.LockFile, "lock-file", flagCfg.LockFile, "Serialize VM creation on this host through a lock on this file")
	flags.StringVar(&flagCfg.TempDir, "temp-dir", flagCfg.TempDir, "Directory for transient cloud-init files")
	flags.DurationVar(&jitterMin, "jitter-min", jitterMin, "Lower bound of the random delay before a launch")
	flags.DurationVar(&jitterMax, "jitter-max", jitterMax, "Upper bound (exclusive) of the random delay before a launch")

	return cmd
}

// applyFlags copies explicitly set flags over cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config, flagCfg config.Config, jitterMin, jitterMax time.Duration) {
	changed := cmd.Flags().Changed
	if changed("multipass-path") {
		cfg.MultipassPath = flagCfg.MultipassPath
	}
	if changed("command-timeout") {
		cfg.CommandTimeout = flagCfg.CommandTimeout
	}
	if changed("launch-timeout") {
		cfg.LaunchTimeout = flagCfg.LaunchTimeout
	}
	if changed("default-image") {
		cfg.DefaultImage = flagCfg.DefaultImage
	}
	if changed("log-file") {
		cfg.LogFile = flagCfg.LogFile
	}
	if changed("log-level") {
		cfg.LogLevel = flagCfg.LogLevel
	}
	if changed("lock-file") {
		cfg.LockFile = flagCfg.LockFile
	}
	if changed("temp-dir") {
		cfg.TempDir = flagCfg.TempDir
	}
	if changed("jitter-min") {
		cfg.JitterMin = config.Duration(jitterMin)
	}
	if changed("jitter-max") {
		cfg.JitterMax = config.Duration(jitterMax)
	}
}

func run(ctx context.Context, cfg config.Config, invocation string, stdin io.Reader, stdout io.Writer, logger hclog.Logger, newManager managerFactory) error {
	req, err := provisioner.ParseRequest(stdin, cfg.DefaultImage)
	if err != nil {
		return err
	}

	manager, err := newManager(ctx, cfg, logger)
	if err != nil {
		return err
	}

	opts := provisioner.Options{
		Jitter: cfg.Jitter(),
		Logger:        logger,
		TempDir:       cfg.TempDir,
		LaunchTimeout: cfg.LaunchTimeout,
	}
	if cfg.LogFile != "" {
		opts.Sink = provisioner.NewFileSink(cfg.LogFile, invocation)
	}
	if cfg.LockFile != "" {
		opts.Lock = provisioner.NewFileLock(cfg.LockFile)
	}

	info, err := provisioner.New(manager, opts).Ensure(ctx, req)
	if err != nil {
		return err
	}
	return provisioner.WriteInfo(stdout, info)
}
