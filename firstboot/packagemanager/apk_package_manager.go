package packagemanager

import (
	"context"
	"fmt"
	"strings"

	cm "github.com/steelcutops/firstboot/firstboot/commandmanager"
)

type ApkPackageManager struct {
	CommandManager cm.CommandManager
}

func (apkm *ApkPackageManager) Name() string { return string(Apk) }

func (apkm *ApkPackageManager) Query(ctx context.Context, name string) (PackageRecord, error) {
	output, err := apkm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "apk",
		Args:    []string{"list", "--installed", name},
	})
	if err != nil {
		return PackageRecord{}, fmt.Errorf("apk list %s: %w", name, err)
	}
	if version, ok := parseApkList(name, output.STDOUT); ok {
		return installed(name, version), nil
	}

	output, err = apkm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "apk",
		Args:    []string{"search", "-x", name},
	})
	if err != nil {
		return PackageRecord{}, fmt.Errorf("apk search %s: %w", name, err)
	}
	if strings.TrimSpace(output.STDOUT) == "" {
		return notKnown(name), nil
	}
	return knownNotInstalled(name), nil
}

// parseApkList extracts the version of name from lines like
// "vim-9.0.2073-r0 x86_64 {vim} (Vim) [installed]".
func parseApkList(name, list string) (string, bool) {
	prefix := name + "-"
	for _, line := range strings.Split(list, "\n") {
		parts := strings.Fields(line)
		if len(parts) == 0 || !strings.HasPrefix(parts[0], prefix) {
			continue
		}
		version := strings.TrimPrefix(parts[0], prefix)
		// "py3-foo" must not match "py3-foo-bar-1.0-r0".
		if version == "" || version[0] < '0' || version[0] > '9' {
			continue
		}
		return version, true
	}
	return "", false
}

func (apkm *ApkPackageManager) RefreshIndex(ctx context.Context) error {
	_, err := apkm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "apk",
		Sudo:    true,
		Args:    []string{"update"},
	})
	return err
}

func (apkm *ApkPackageManager) InstallBatch(ctx context.Context, names []string) error {
	_, err := apkm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "apk",
		Sudo:    true,
		Args:    append([]string{"add"}, names...),
	})
	return err
}

// Autoremove is a no-op: apk drops orphaned dependencies as part of every
// world change.
func (apkm *ApkPackageManager) Autoremove(ctx context.Context) error {
	return nil
}

func (apkm *ApkPackageManager) CleanCache(ctx context.Context) error {
	_, err := apkm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "apk",
		Sudo:    true,
		Args:    []string{"cache", "clean"},
	})
	return err
}
