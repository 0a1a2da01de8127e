package filemanager

import (
	"context"
	"os"
	"time"

	cm "github.com/steelcutops/firstboot/firstboot/commandmanager"
)

// DirOperations represents operations that can be performed on directories.
type DirOperations interface {
	CreateDirectory(ctx context.Context, path string) error
	CopyDirectory(ctx context.Context, sourcePath, destPath string) error
	ListDirectory(ctx context.Context, path string) ([]string, error)
}

// FileOperations represents operations that can be performed on files.
type FileOperations interface {
	CopyFile(ctx context.Context, sourcePath, destPath string) error
	GetFileAttributes(ctx context.Context, path string) (File, error)
	Chmod(ctx context.Context, path string, mode os.FileMode) error
	Chown(ctx context.Context, path, owner string) error
}

// FileManager encompasses operations on both files and directories.
type FileManager interface {
	FileOperations
	DirOperations
}

// File describes basic file attributes.
type File struct {
	Path     string
	Size     int64 // bytes
	IsDir    bool
	Modified time.Time
}

func handleCommandResult(result cm.CommandResult, err error) error {
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return &cm.CommandError{Result: result}
	}
	return nil
}
