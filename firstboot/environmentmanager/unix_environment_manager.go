package environmentmanager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	cm "github.com/steelcutops/firstboot/firstboot/commandmanager"
)

const DefaultPath = "/etc/environment"

// ErrNotSet is returned by Get for a key that is not in the file.
var ErrNotSet = errors.New("environment variable not set")

// UnixEnvironmentManager keeps KEY=value lines in a pam_env style file.
type UnixEnvironmentManager struct {
	CommandManager cm.CommandManager
	// Path defaults to DefaultPath.
	Path string
}

func (e *UnixEnvironmentManager) path() string {
	if e.Path == "" {
		return DefaultPath
	}
	return e.Path
}

func (e *UnixEnvironmentManager) Get(ctx context.Context, key string) (string, error) {
	envs, err := e.List(ctx)
	if err != nil {
		return "", err
	}
	value, ok := envs[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotSet, key)
	}
	return value, nil
}

// Set writes key=value, leaving the file untouched when it already holds it.
// Other lines, comments included, are kept in place.
func (e *UnixEnvironmentManager) Set(ctx context.Context, key, value string) error {
	if key == "" || strings.ContainsAny(key, "= \t\n") {
		return fmt.Errorf("invalid environment variable name %q", key)
	}
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("environment variable %s: value spans lines", key)
	}
	lines, err := e.read(ctx)
	if err != nil {
		return err
	}
	if current, ok := parseEnvironment(lines)[key]; ok && current == value {
		return nil
	}

	updated := make([]string, 0, len(lines)+1)
	replaced := false
	for _, line := range lines {
		if k, _, ok := parseLine(line); ok && k == key {
			if !replaced {
				updated = append(updated, formatLine(key, value))
				replaced = true
			}
			continue
		}
		updated = append(updated, line)
	}
	if !replaced {
		updated = append(updated, formatLine(key, value))
	}
	return e.write(ctx, updated)
}

func (e *UnixEnvironmentManager) Unset(ctx context.Context, key string) error {
	lines, err := e.read(ctx)
	if err != nil {
		return err
	}

	updated := make([]string, 0, len(lines))
	for _, line := range lines {
		if k, _, ok := parseLine(line); ok && k == key {
			continue
		}
		updated = append(updated, line)
	}
	if len(updated) == len(lines) {
		return nil
	}
	return e.write(ctx, updated)
}

// List parses the file. A missing file is an empty environment.
func (e *UnixEnvironmentManager) List(ctx context.Context) (map[string]string, error) {
	lines, err := e.read(ctx)
	if err != nil {
		return nil, err
	}
	return parseEnvironment(lines), nil
}

func (e *UnixEnvironmentManager) read(ctx context.Context) ([]string, error) {
	output, err := e.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "cat",
		Args:    []string{e.path()},
	})
	if err != nil {
		if strings.Contains(output.STDERR, "No such file") || strings.Contains(err.Error(), "No such file") {
			return nil, nil
		}
		return nil, err
	}

	content := strings.TrimRight(output.STDOUT, "\n")
	if content == "" {
		return nil, nil
	}
	return strings.Split(content, "\n"), nil
}

func parseEnvironment(lines []string) map[string]string {
	envs := make(map[string]string)
	for _, line := range lines {
		if key, value, ok := parseLine(line); ok {
			envs[key] = value
		}
	}
	return envs
}

// parseLine reads KEY=value the way pam_env does: one pair of matching
// outer quotes is removed and nothing inside is unescaped.
func parseLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	if n := len(value); n >= 2 && (value[0] == '"' || value[0] == '\'') && value[n-1] == value[0] {
		value = value[1 : n-1]
	}
	return key, value, true
}

func formatLine(key, value string) string {
	return key + `="` + value + `"`
}

// write replaces the file. Lines are passed to printf as arguments so no
// value is ever interpreted by the shell.
func (e *UnixEnvironmentManager) write(ctx context.Context, lines []string) error {
	args := append([]string{"-c", `printf '%s\n' "$@" > "$0"`, e.path()}, lines...)
	_, err := e.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "sh",
		Args:    args,
		Sudo:    true,
	})
	return err
}
