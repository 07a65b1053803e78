package provider

import (
	"context"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/todoroff/multipass-ensure/internal/multipasscli"
	"github.com/todoroff/multipass-ensure/internal/provisioner"
)

type providerConfigModel struct {
	MultipassPath  types.String `tfsdk:"multipass_path"`
	CommandTimeout types.Int64  `tfsdk:"command_timeout"`
	DefaultImage   types.String `tfsdk:"default_image"`
	LogFile        types.String `tfsdk:"log_file"`
	LockFile       types.String `tfsdk:"lock_file"`
}

type providerConfig struct {
	BinaryPath     string
	CommandTimeout int
	DefaultImage   string
	LogFile        string
	LockFile       string
}

type providerData struct {
	client       multipasscli.Client
	defaultImage string
	logFile      string
	lockFile     string
}

// provisioner builds a Provisioner whose launch records go to the Terraform
// log and, when configured, to the log file.
func (d providerData) provisioner(ctx context.Context) *provisioner.Provisioner {
	sinks := provisioner.MultiSink{tflogSink{ctx: ctx}}
	if d.logFile != "" {
		sinks = append(sinks, provisioner.NewFileSink(d.logFile, ""))
	}

	opts := provisioner.Options{Sink: sinks}
	if d.lockFile != "" {
		opts.Lock = provisioner.NewFileLock(d.lockFile)
	}
	return provisioner.New(d.client, opts)
}

// tflogSink forwards launch records to the provider log.
type tflogSink struct {
	ctx context.Context
}

func (s tflogSink) Record(command []string, output []byte) error {
	tflog.Info(s.ctx, "multipass launch completed", map[string]any{
		"command": strings.Join(command, " "),
		"output":  strings.TrimSpace(string(output)),
	})
	return nil
}

func valueOrEmpty(v types.String) string {
	if v.IsNull() || v.IsUnknown() {
		return ""
	}
	return v.ValueString()
}

func hasStringValue(v types.String) bool {
	return !v.IsNull() && !v.IsUnknown() && v.ValueString() != ""
}
