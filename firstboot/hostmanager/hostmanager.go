package hostmanager

import "context"

type HostInfo struct {
	Hostname      string
	Kernel        string
	KernelVersion string
	NumberOfCores int
	TotalMemory   uint64 // bytes
}

// OSRelease holds the fields of /etc/os-release used to pick a package manager.
// On Darwin only ID is set, to "darwin".
type OSRelease struct {
	ID        string
	IDLike    []string
	VersionID string
	Name      string
}

// HostManager encompasses read-only queries about the host.
type HostManager interface {
	Info(ctx context.Context) (HostInfo, error)
	Hostname(ctx context.Context) (string, error)
	OSRelease(ctx context.Context) (OSRelease, error)
}
