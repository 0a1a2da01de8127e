package packagemanager

import (
	"context"
	"fmt"
	"strings"

	cm "github.com/steelcutops/firstboot/firstboot/commandmanager"
)

var brewEnv = []string{"HOMEBREW_NO_AUTO_UPDATE=1", "HOMEBREW_NO_INSTALL_CLEANUP=1"}

type BrewPackageManager struct {
	CommandManager cm.CommandManager
}

func (bpm *BrewPackageManager) Name() string { return string(Brew) }

func (bpm *BrewPackageManager) Query(ctx context.Context, name string) (PackageRecord, error) {
	output, err := bpm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "brew",
		Args:    []string{"list", "--versions", name},
		Env:     brewEnv,
	})
	if err == nil {
		// "git 2.43.0 2.42.0" lists every keg; the first is the linked one.
		parts := strings.Fields(output.STDOUT)
		if len(parts) >= 2 {
			return installed(name, parts[1]), nil
		}
		return knownNotInstalled(name), nil
	}
	if !exitedWith(err, 1) {
		return PackageRecord{}, fmt.Errorf("brew list %s: %w", name, err)
	}

	_, err = bpm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "brew",
		Args:    []string{"info", name},
		Env:     brewEnv,
	})
	if err == nil {
		return knownNotInstalled(name), nil
	}
	if exitedWith(err, 1) {
		return notKnown(name), nil
	}
	return PackageRecord{}, fmt.Errorf("brew info %s: %w", name, err)
}

func (bpm *BrewPackageManager) RefreshIndex(ctx context.Context) error {
	_, err := bpm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "brew",
		Args:    []string{"update"},
	})
	return err
}

func (bpm *BrewPackageManager) InstallBatch(ctx context.Context, names []string) error {
	_, err := bpm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "brew",
		Args:    append([]string{"install"}, names...),
		Env:     brewEnv,
	})
	return err
}

func (bpm *BrewPackageManager) Autoremove(ctx context.Context) error {
	_, err := bpm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "brew",
		Args:    []string{"autoremove"},
		Env:     brewEnv,
	})
	return err
}

func (bpm *BrewPackageManager) CleanCache(ctx context.Context) error {
	_, err := bpm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "brew",
		Args:    []string{"cleanup"},
		Env:     brewEnv,
	})
	return err
}
