package statemanager

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no run matches a lookup.
var ErrNotFound = errors.New("no provisioning run found")

type Outcome string

const (
	OutcomeInstalled Outcome = "installed"
	OutcomeNoop      Outcome = "noop"
	OutcomeOffline   Outcome = "offline"
	OutcomeFailed    Outcome = "failed"
)

// Run is one provisioning attempt against one host.
type Run struct {
	ID        string
	Hostname  string
	Profile   string
	StartedAt time.Time
	Duration  time.Duration
	Outcome   Outcome
	Missing   []string // packages that were not installed when the run started
	Error     string
}

// StateManager records provisioning runs.
type StateManager interface {
	// Save stores run and returns its ID, assigning one when run.ID is empty.
	Save(ctx context.Context, run Run) (string, error)

	// Latest returns the newest run for hostname.
	Latest(ctx context.Context, hostname string) (Run, error)

	// List returns at most limit runs, newest first. A limit of 0 means all.
	List(ctx context.Context, limit int) ([]Run, error)
}
