package packagemanager

import (
	"context"
	"fmt"
	"strings"

	cm "github.com/steelcutops/firstboot/firstboot/commandmanager"
)

var aptEnv = []string{"DEBIAN_FRONTEND=noninteractive"}

var aptDpkgOptions = []string{"-o", "Dpkg::Options::=--force-confdef", "-o", "Dpkg::Options::=--force-confold"}

type AptPackageManager struct {
	CommandManager cm.CommandManager
}

func (apm *AptPackageManager) Name() string { return string(Apt) }

// Query reads the "Installed:" field of apt-cache policy. An empty policy
// means apt has never heard of the package.
func (apm *AptPackageManager) Query(ctx context.Context, name string) (PackageRecord, error) {
	output, err := apm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "apt-cache",
		Args:    []string{"policy", name},
		Env:     []string{"LANG=C"},
	})
	if err != nil {
		return PackageRecord{}, fmt.Errorf("apt-cache policy %s: %w", name, err)
	}

	return parseAptPolicy(name, output.STDOUT), nil
}

func parseAptPolicy(name, policy string) PackageRecord {
	if strings.TrimSpace(policy) == "" {
		return notKnown(name)
	}

	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Installed:") {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(line, "Installed:"))
		if value == "" || value == "(none)" {
			return knownNotInstalled(name)
		}
		return installed(name, value)
	}

	// A record without an Installed line, e.g. a purely virtual package.
	return knownNotInstalled(name)
}

func (apm *AptPackageManager) RefreshIndex(ctx context.Context) error {
	_, err := apm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "apt-get",
		Sudo:    true,
		Env:     aptEnv,
		Args:    []string{"update"},
	})
	return err
}

func (apm *AptPackageManager) InstallBatch(ctx context.Context, names []string) error {
	args := append([]string{"install", "-y"}, aptDpkgOptions...)
	_, err := apm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "apt-get",
		Sudo:    true,
		Env:     aptEnv,
		Args:    append(args, names...),
	})
	return err
}

func (apm *AptPackageManager) Autoremove(ctx context.Context) error {
	_, err := apm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "apt-get",
		Sudo:    true,
		Env:     aptEnv,
		Args:    []string{"autoremove", "-y"},
	})
	return err
}

func (apm *AptPackageManager) CleanCache(ctx context.Context) error {
	_, err := apm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "apt-get",
		Sudo:    true,
		Args:    []string{"clean"},
	})
	return err
}
