package packagemanager

import (
	"context"
	"fmt"
	"strings"

	cm "github.com/steelcutops/firstboot/firstboot/commandmanager"
)

// rpmPackageManager covers dnf and yum, which differ only in the front-end binary.
type rpmPackageManager struct {
	CommandManager cm.CommandManager
	binary         string
}

func (r *rpmPackageManager) Name() string { return r.binary }

// Query asks the rpm database first. rpm exits 1 for a package that is not
// installed, in which case the repositories decide whether the name is known.
func (r *rpmPackageManager) Query(ctx context.Context, name string) (PackageRecord, error) {
	output, err := r.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "rpm",
		Args:    []string{"-q", "--qf", "%{VERSION}-%{RELEASE}\n", name},
	})
	if err == nil {
		version := strings.TrimSpace(strings.SplitN(strings.TrimSpace(output.STDOUT), "\n", 2)[0])
		if version != "" {
			return installed(name, version), nil
		}
		return knownNotInstalled(name), nil
	}
	if !exitedWith(err, 1) {
		return PackageRecord{}, fmt.Errorf("rpm -q %s: %w", name, err)
	}

	_, err = r.CommandManager.Run(ctx, cm.CommandConfig{
		Command: r.binary,
		Args:    []string{"-q", "info", name},
	})
	if err == nil {
		return knownNotInstalled(name), nil
	}
	if exitedWith(err, 1) {
		return notKnown(name), nil
	}
	return PackageRecord{}, fmt.Errorf("%s info %s: %w", r.binary, name, err)
}

func (r *rpmPackageManager) RefreshIndex(ctx context.Context) error {
	_, err := r.CommandManager.Run(ctx, cm.CommandConfig{
		Command: r.binary,
		Sudo:    true,
		Args:    []string{"-y", "makecache"},
	})
	return err
}

func (r *rpmPackageManager) InstallBatch(ctx context.Context, names []string) error {
	_, err := r.CommandManager.Run(ctx, cm.CommandConfig{
		Command: r.binary,
		Sudo:    true,
		Args:    append([]string{"install", "-y"}, names...),
	})
	return err
}

func (r *rpmPackageManager) Autoremove(ctx context.Context) error {
	_, err := r.CommandManager.Run(ctx, cm.CommandConfig{
		Command: r.binary,
		Sudo:    true,
		Args:    []string{"autoremove", "-y"},
	})
	return err
}

func (r *rpmPackageManager) CleanCache(ctx context.Context) error {
	_, err := r.CommandManager.Run(ctx, cm.CommandConfig{
		Command: r.binary,
		Sudo:    true,
		Args:    []string{"clean", "all"},
	})
	return err
}
