package multipasscli

import (
	"strings"

	"github.com/todoroff/multipass-ensure/internal/models"
)

type versionResponse struct {
	Multipass string `json:"multipass"`
}

type listResponse struct {
	List []listEntry `json:"list"`
}

type listEntry struct {
	Name    string   `json:"name"`
	State   string   `json:"state"`
	Release string   `json:"release"`
	IPv4    []string `json:"ipv4"`
}

func (r listResponse) toModel() []models.Instance {
	out := make([]models.Instance, 0, len(r.List))
	for _, entry := range r.List {
		out = append(out, models.Instance{
			Name:    entry.Name,
			State:   entry.State,
			Release: entry.Release,
			IPv4:    sanitizeIPs(entry.IPv4),
		})
	}
	return out
}

// sanitizeIPs drops the placeholders multipass prints for instances that
// have no address yet.
func sanitizeIPs(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || strings.EqualFold(v, "N/A") || strings.EqualFold(v, "--") {
			continue
		}
		out = append(out, v)
	}
	return out
}
