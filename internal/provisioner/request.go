package provisioner

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/todoroff/multipass-ensure/internal/models"
)

// rawRequest mirrors the query object Terraform's external data source
// sends. Every value arrives as a JSON string.
type rawRequest struct {
	Name        *string `json:"name"`
	Memory      *string `json:"mem"`
	Disk        *string `json:"disk"`
	CPU         *string `json:"cpu"`
	Init        *string `json:"init"`
	Image       *string `json:"image"`
	NetworkName *string `json:"network_name"`
	MacAddress  *string `json:"mac_address"`
}

// ParseRequest decodes exactly one request object from r. Required fields
// must be present; their contents are not inspected. An absent or empty
// image becomes defaultImage, or models.DefaultImage when that is empty.
func ParseRequest(r io.Reader, defaultImage string) (models.VMRequest, error) {
	dec := json.NewDecoder(r)

	var raw rawRequest
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return models.VMRequest{}, &Error{Op: OpParse, Err: errors.New("empty request")}
		}
		return models.VMRequest{}, &Error{Op: OpParse, Err: fmt.Errorf("decode request: %w", err)}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return models.VMRequest{}, &Error{Op: OpParse, Err: errors.New("unexpected data after request object")}
	}

	required := []struct {
		key   string
		value *string
	}{
		{"name", raw.Name},
		{"mem", raw.Memory},
		{"disk", raw.Disk},
		{"cpu", raw.CPU},
		{"init", raw.Init},
	}
	var missing []string
	for _, f := range required {
		if f.value == nil {
			missing = append(missing, f.key)
		}
	}
	if len(missing) > 0 {
		return models.VMRequest{}, &Error{
			Op:  OpParse,
			Err: fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", ")),
		}
	}

	if defaultImage == "" {
		defaultImage = models.DefaultImage
	}
	image := deref(raw.Image)
	if image == "" {
		image = defaultImage
	}

	return models.VMRequest{
		Name:        *raw.Name,
		CPU:         *raw.CPU,
		Memory:      *raw.Memory,
		Disk:        *raw.Disk,
		Init:        *raw.Init,
		Image:       image,
		NetworkName: deref(raw.NetworkName),
		MacAddress:  deref(raw.MacAddress),
	}, nil
}

// WriteInfo writes info as a single JSON object. The payload is fully
// encoded before anything reaches w.
func WriteInfo(w io.Writer, info *models.VMInfo) error {
	if info == nil {
		return errors.New("no vm info to write")
	}
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode vm info: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write vm info: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
