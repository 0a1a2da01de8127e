package commandmanager

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CommandConfig describes a single command invocation.
type CommandConfig struct {
	Command string
	Args    []string
	Sudo    bool
	Env     []string
}

// String renders the command line the way it would be typed in a shell.
func (c CommandConfig) String() string {
	return strings.TrimSpace(c.Command + " " + strings.Join(c.Args, " "))
}

// CommandResult encapsulates the results from a command execution.
type CommandResult struct {
	Command   string
	STDOUT    string
	STDERR    string
	ExitCode  int
	Duration  time.Duration
	Timestamp time.Time
}

// CommandError is returned when a command ran but exited with a non-zero status.
type CommandError struct {
	Result CommandResult
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Result.STDERR)
	if msg == "" {
		msg = strings.TrimSpace(e.Result.STDOUT)
	}
	if msg == "" {
		return fmt.Sprintf("command %q exited with status %d", e.Result.Command, e.Result.ExitCode)
	}
	return fmt.Sprintf("command %q exited with status %d: %s", e.Result.Command, e.Result.ExitCode, msg)
}

// CommandManager provides methods to execute commands, both locally and remotely.
type CommandManager interface {
	// RunLocal executes a command on the local system.
	RunLocal(ctx context.Context, config CommandConfig) (CommandResult, error)

	// RunRemote executes a command on a remote system via SSH.
	RunRemote(ctx context.Context, config CommandConfig) (CommandResult, error)

	// Run dispatches to RunLocal or RunRemote depending on the target host.
	Run(ctx context.Context, config CommandConfig) (CommandResult, error)
}
