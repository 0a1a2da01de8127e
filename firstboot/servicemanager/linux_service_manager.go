package servicemanager

import (
	"context"
	"strings"

	cm "github.com/steelcutops/firstboot/firstboot/commandmanager"
)

type LinuxServiceManager struct {
	CommandManager cm.CommandManager
}

func (lsm *LinuxServiceManager) EnableService(ctx context.Context, serviceName string) error {
	_, err := lsm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "systemctl",
		Sudo:    true,
		Args:    []string{"enable", serviceName},
	})
	return err
}

func (lsm *LinuxServiceManager) StartService(ctx context.Context, serviceName string) error {
	_, err := lsm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "systemctl",
		Sudo:    true,
		Args:    []string{"start", serviceName},
	})
	return err
}

// CheckServiceStatus maps the output of systemctl is-active. The command exits
// non-zero for every state but active, so the output is read even on error.
func (lsm *LinuxServiceManager) CheckServiceStatus(ctx context.Context, serviceName string) (ServiceStatus, error) {
	output, err := lsm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "systemctl",
		Args:    []string{"is-active", serviceName},
	})
	switch strings.TrimSpace(output.STDOUT) {
	case "active":
		return Active, nil
	case "inactive":
		return Inactive, nil
	case "failed":
		return Failed, nil
	}
	if err != nil {
		return Unknown, err
	}
	return Unknown, nil
}

func (lsm *LinuxServiceManager) IsServiceEnabled(ctx context.Context, serviceName string) (bool, error) {
	output, err := lsm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "systemctl",
		Args:    []string{"is-enabled", serviceName},
	})
	state := strings.TrimSpace(output.STDOUT)
	if state == "enabled" {
		return true, nil
	}
	if state != "" {
		// disabled, static, masked, ...
		return false, nil
	}
	return false, err
}
