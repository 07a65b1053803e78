package provider

import (
	"context"

	stringvalidator "github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/todoroff/multipass-ensure/internal/models"
)

var (
	_ datasource.DataSource              = (*vmDataSource)(nil)
	_ datasource.DataSourceWithConfigure = (*vmDataSource)(nil)
)

// NewVMDataSource returns the multipass_vm data source, which launches the
// VM when it does not exist yet.
func NewVMDataSource() datasource.DataSource {
	return &vmDataSource{}
}

type vmDataSource struct {
	data       providerData
	configured bool
}

type vmDataSourceModel struct {
	Name        types.String `tfsdk:"name"`
	CPU         types.String `tfsdk:"cpu"`
	Memory      types.String `tfsdk:"mem"`
	Disk        types.String `tfsdk:"disk"`
	Init        types.String `tfsdk:"init"`
	Image       types.String `tfsdk:"image"`
	NetworkName types.String `tfsdk:"network_name"`
	MacAddress  types.String `tfsdk:"mac_address"`
	IP          types.String `tfsdk:"ip"`
	Release     types.String `tfsdk:"release"`
	State       types.String `tfsdk:"state"`
}

func (d *vmDataSource) Metadata(_ context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_vm"
}

func (d *vmDataSource) Schema(_ context.Context, _ datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		Description: "Ensures a Multipass VM with the given name exists and reports its address. " +
			"An existing VM is returned as is; a missing one is launched with the given resources.",
		Attributes: map[string]schema.Attribute{
			"name": schema.StringAttribute{
				Required:    true,
				Description: "VM name. Must be unique per Multipass host.",
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"cpu": schema.StringAttribute{
				Required:    true,
				Description: "Number of virtual CPUs, passed to `multipass launch --cpus`.",
			},
			"mem": schema.StringAttribute{
				Required:    true,
				Description: "Memory size (e.g., `2G`), passed to `multipass launch --memory`.",
			},
			"disk": schema.StringAttribute{
				Required:    true,
				Description: "Disk size (e.g., `10G`), passed to `multipass launch --disk`.",
			},
			"init": schema.StringAttribute{
				Required:    true,
				Sensitive:   true,
				Description: "Inline cloud-init document applied at launch.",
			},
			"image": schema.StringAttribute{
				Optional:    true,
				Description: "Image alias or release. Defaults to the provider `default_image`.",
			},
			"network_name": schema.StringAttribute{
				Optional:    true,
				Description: "Host network for a secondary interface, attached in manual mode.",
			},
			"mac_address": schema.StringAttribute{
				Optional:    true,
				Description: "MAC address of the secondary interface.",
				Validators: []validator.String{
					stringvalidator.AlsoRequires(path.MatchRoot("network_name")),
				},
			},
			"ip": schema.StringAttribute{
				Computed:    true,
				Description: "First IPv4 address reported by Multipass.",
			},
			"release": schema.StringAttribute{
				Computed:    true,
				Description: "Operating system release running in the VM.",
			},
			"state": schema.StringAttribute{
				Computed:    true,
				Description: "Current state reported by Multipass.",
			},
		},
	}
}

func (d *vmDataSource) Configure(_ context.Context, req datasource.ConfigureRequest, _ *datasource.ConfigureResponse) {
	if req.ProviderData == nil {
		return
	}
	d.data = req.ProviderData.(providerData)
	d.configured = true
}

func (d *vmDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	if !d.configured || d.data.client == nil {
		resp.Diagnostics.AddError("Client not configured", "The provider Multipass client was not configured.")
		return
	}

	var config vmDataSourceModel
	resp.Diagnostics.Append(req.Config.Get(ctx, &config)...)
	if resp.Diagnostics.HasError() {
		return
	}

	vmReq := toVMRequest(config, d.data.defaultImage)
	ctx = tflog.SetField(ctx, "name", vmReq.Name)

	info, err := d.data.provisioner(ctx).Ensure(ctx, vmReq)
	if err != nil {
		resp.Diagnostics.AddError("Failed to ensure VM", err.Error())
		return
	}

	config.IP = types.StringValue(info.IP)
	config.Release = types.StringValue(info.Release)
	config.State = types.StringValue(info.State)

	resp.Diagnostics.Append(resp.State.Set(ctx, &config)...)
}

func toVMRequest(m vmDataSourceModel, defaultImage string) models.VMRequest {
	image := valueOrEmpty(m.Image)
	if image == "" {
		image = defaultImage
	}
	if image == "" {
		image = models.DefaultImage
	}

	return models.VMRequest{
		Name:        valueOrEmpty(m.Name),
		CPU:         valueOrEmpty(m.CPU),
		Memory:      valueOrEmpty(m.Memory),
		Disk:        valueOrEmpty(m.Disk),
		Init:        valueOrEmpty(m.Init),
		Image:       image,
		NetworkName: valueOrEmpty(m.NetworkName),
		MacAddress:  valueOrEmpty(m.MacAddress),
	}
}
