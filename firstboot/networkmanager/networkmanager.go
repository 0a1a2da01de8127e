package networkmanager

import (
	"context"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultProbeTarget   = "https://www.google.com"
	DefaultProbeAttempts = 3
	DefaultProbeTimeout  = 5 * time.Second
	DefaultProbeInterval = time.Second
)

// PingResult represents the result of a ping operation.
type PingResult struct {
	Address string
	RTT     float64 // Round Trip Time in milliseconds
	Success bool
}

// Prober decides whether target is reachable, trying at most attempts times
// with timeout per attempt.
type Prober interface {
	Probe(ctx context.Context, target string, attempts int, timeout time.Duration) bool
}

type NetworkManager interface {
	Prober
	Ping(ctx context.Context, address string, timeout time.Duration) (PingResult, error)
}

// hostOf strips scheme, port and path so that a URL target can be pinged.
func hostOf(target string) string {
	if strings.Contains(target, "://") {
		if u, err := url.Parse(target); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
	}
	return target
}

// wait sleeps for d unless ctx ends first.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
