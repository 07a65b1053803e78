package models

// DefaultImage is the release launched when a request does not name one.
const DefaultImage = "22.04"

// DefaultLaunchTimeout is passed to `multipass launch --timeout` (seconds).
// Image pulls on a cold cache routinely take several minutes.
const DefaultLaunchTimeout = 1800

// VMRequest is the desired VM as described by the orchestrator.
// Resource quantities are passed to Multipass untouched.
type VMRequest struct {
	Name        string
	CPU         string
	Memory      string
	Disk        string
	Init        string
	Image       string
	NetworkName string
	MacAddress  string
}

// VMInfo is what the adapter reports back for a VM.
type VMInfo struct {
	Name    string `json:"name"`
	IP      string `json:"ip"`
	Release string `json:"release"`
	State   string `json:"state"`
}

// Instance represents one entry of `multipass list`.
type Instance struct {
	Name    string
	State   string
	Release string
	IPv4    []string
}

// LaunchOptions controls instance creation parameters.
type LaunchOptions struct {
	Name          string
	Image         string
	CPUs          string
	Memory        string
	Disk          string
	Timeout       int // Seconds
	CloudInitFile string
	Networks      []NetworkAttachment
}

// NetworkAttachment describes a network interface to attach during launch.
type NetworkAttachment struct {
	Name string
	Mode string
	Mac  string
}

// LaunchResult carries the executed command line and its raw output.
type LaunchResult struct {
	Command []string
	Output  []byte
}
