package provider

import (
	"context"
	"errors"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/types"

	"github.com/todoroff/multipass-ensure/internal/provisioner"
)

var (
	_ datasource.DataSource              = (*instanceDataSource)(nil)
	_ datasource.DataSourceWithConfigure = (*instanceDataSource)(nil)
)

// NewInstanceDataSource returns the instance data source.
func NewInstanceDataSource() datasource.DataSource {
	return &instanceDataSource{}
}

type instanceDataSource struct {
	data       providerData
	configured bool
}

type instanceDataSourceModel struct {
	Name    types.String `tfsdk:"name"`
	IP      types.String `tfsdk:"ip"`
	Release types.String `tfsdk:"release"`
	State   types.String `tfsdk:"state"`
}

func (d *instanceDataSource) Metadata(_ context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_instance"
}

func (d *instanceDataSource) Schema(_ context.Context, _ datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		Description: "Reads an existing Multipass instance without launching anything.",
		Attributes: map[string]schema.Attribute{
			"name": schema.StringAttribute{
				Required:    true,
				Description: "Instance name to inspect.",
			},
			"ip": schema.StringAttribute{
				Computed: true,
			},
			"release": schema.StringAttribute{
				Computed: true,
			},
			"state": schema.StringAttribute{
				Computed: true,
			},
		},
	}
}

func (d *instanceDataSource) Configure(_ context.Context, req datasource.ConfigureRequest, _ *datasource.ConfigureResponse) {
	if req.ProviderData == nil {
		return
	}
	d.data = req.ProviderData.(providerData)
	d.configured = true
}

func (d *instanceDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	if !d.configured || d.data.client == nil {
		resp.Diagnostics.AddError("Client not configured", "Multipass client is nil.")
		return
	}

	var config instanceDataSourceModel
	resp.Diagnostics.Append(req.Config.Get(ctx, &config)...)
	if resp.Diagnostics.HasError() {
		return
	}

	info, err := d.data.provisioner(ctx).LookupCached(ctx, config.Name.ValueString())
	if err != nil {
		if errors.Is(err, provisioner.ErrNotFound) {
			resp.Diagnostics.AddError("Instance not found", "The requested Multipass instance does not exist.")
			return
		}
		resp.Diagnostics.AddError("Failed to read instance", err.Error())
		return
	}

	state := instanceDataSourceModel{
		Name:    types.StringValue(info.Name),
		IP:      types.StringValue(info.IP),
		Release: types.StringValue(info.Release),
		State:   types.StringValue(info.State),
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &state)...)
}
