package hostgroup

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/steelcutops/firstboot/firstboot/host"
)

type HostGroup struct {
	sync.RWMutex
	Hosts map[string]*host.Host
}

// NewHostGroup creates a new HostGroup with the given hosts.
func NewHostGroup(hosts ...*host.Host) *HostGroup {
	hostMap := make(map[string]*host.Host)
	for _, h := range hosts {
		hostMap[h.Hostname] = h
	}
	return &HostGroup{Hosts: hostMap}
}

// AddHost adds a host to the HostGroup.
func (hg *HostGroup) AddHost(h *host.Host) {
	hg.Lock()
	defer hg.Unlock()
	hg.Hosts[h.Hostname] = h
}

// RemoveHost removes a host from the HostGroup by its hostname.
func (hg *HostGroup) RemoveHost(hostname string) {
	hg.Lock()
	defer hg.Unlock()
	delete(hg.Hosts, hostname)
}

// HasHost checks if a host with the given hostname exists in the HostGroup.
func (hg *HostGroup) HasHost(hostname string) bool {
	hg.RLock()
	defer hg.RUnlock()
	_, exists := hg.Hosts[hostname]
	return exists
}

// Hostnames returns the hostnames in the group, sorted.
func (hg *HostGroup) Hostnames() []string {
	hg.RLock()
	defer hg.RUnlock()
	return hg.sortedLocked()
}

// Provision runs fn once per host with at most concurrency hosts in flight.
// Every host is attempted; the failures are returned together.
func (hg *HostGroup) Provision(ctx context.Context, fn func(context.Context, *host.Host) error, concurrency int) error {
	if concurrency < 1 {
		concurrency = 1
	}

	hg.RLock()
	hosts := make([]*host.Host, 0, len(hg.Hosts))
	for _, name := range hg.sortedLocked() {
		hosts = append(hosts, hg.Hosts[name])
	}
	hg.RUnlock()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result *multierror.Error
	)
	sem := make(chan struct{}, concurrency)

	for _, h := range hosts {
		select {
		case <-ctx.Done():
			mu.Lock()
			result = multierror.Append(result, fmt.Errorf("%s: %w", h.Hostname, ctx.Err()))
			mu.Unlock()
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(h *host.Host) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := fn(ctx, h); err != nil {
				mu.Lock()
				result = multierror.Append(result, fmt.Errorf("%s: %w", h.Hostname, err))
				mu.Unlock()
			}
		}(h)
	}

	wg.Wait()
	return result.ErrorOrNil()
}

func (hg *HostGroup) sortedLocked() []string {
	names := make([]string, 0, len(hg.Hosts))
	for name := range hg.Hosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
