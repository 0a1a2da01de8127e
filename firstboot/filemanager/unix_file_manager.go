package filemanager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	cm "github.com/steelcutops/firstboot/firstboot/commandmanager"
)

// UnixFileManager manipulates files on the managed host through coreutils.
// Every operation runs with sudo because assets land in another user's home.
type UnixFileManager struct {
	CommandManager cm.CommandManager
}

func (ufm *UnixFileManager) run(ctx context.Context, command string, args ...string) (cm.CommandResult, error) {
	result, err := ufm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: command,
		Args:    args,
		Sudo:    true,
	})
	return result, handleCommandResult(result, err)
}

// CreateDirectory creates path and any missing parents.
func (ufm *UnixFileManager) CreateDirectory(ctx context.Context, path string) error {
	_, err := ufm.run(ctx, "mkdir", "-p", path)
	return err
}

// CopyDirectory copies the contents of sourcePath into destPath.
func (ufm *UnixFileManager) CopyDirectory(ctx context.Context, sourcePath, destPath string) error {
	_, err := ufm.run(ctx, "cp", "-R", strings.TrimSuffix(sourcePath, "/")+"/.", destPath)
	return err
}

func (ufm *UnixFileManager) ListDirectory(ctx context.Context, path string) ([]string, error) {
	result, err := ufm.run(ctx, "ls", "-A", path)
	if err != nil {
		return nil, err
	}

	output := strings.TrimSpace(result.STDOUT)
	if output == "" {
		return nil, nil
	}
	return strings.Split(output, "\n"), nil
}

func (ufm *UnixFileManager) CopyFile(ctx context.Context, sourcePath, destPath string) error {
	_, err := ufm.run(ctx, "cp", "-f", sourcePath, destPath)
	return err
}

func (ufm *UnixFileManager) Chmod(ctx context.Context, path string, mode os.FileMode) error {
	_, err := ufm.run(ctx, "chmod", fmt.Sprintf("%o", mode.Perm()), path)
	return err
}

// Chown hands path, recursively, to owner ("user" or "user:group").
func (ufm *UnixFileManager) Chown(ctx context.Context, path, owner string) error {
	_, err := ufm.run(ctx, "chown", "-R", owner, path)
	return err
}

func (ufm *UnixFileManager) GetFileAttributes(ctx context.Context, path string) (File, error) {
	// Get size, modification time and file type; the type may contain spaces.
	result, err := ufm.run(ctx, "stat", "-c", "%s %Y %F", path)
	var cmdErr *cm.CommandError
	if errors.As(err, &cmdErr) {
		// BSD stat, as shipped on macOS, has no -c.
		result, err = ufm.run(ctx, "stat", "-f", "%z %m %HT", path)
	}
	if err != nil {
		return File{}, err
	}

	return parseStat(path, result.STDOUT)
}

func parseStat(path, output string) (File, error) {
	parts := strings.SplitN(strings.TrimSpace(output), " ", 3)
	if len(parts) != 3 {
		return File{}, fmt.Errorf("unexpected stat output format: %q", output)
	}

	size, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return File{}, fmt.Errorf("error parsing file size: %w", err)
	}

	modifiedSeconds, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return File{}, fmt.Errorf("error parsing modification time: %w", err)
	}

	return File{
		Path:     path,
		Size:     size,
		IsDir:    strings.EqualFold(parts[2], "directory"),
		Modified: time.Unix(modifiedSeconds, 0),
	}, nil
}
