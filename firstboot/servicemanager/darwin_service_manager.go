package servicemanager

import (
	"context"
	"fmt"
	"strings"

	cm "github.com/steelcutops/firstboot/firstboot/commandmanager"
)

type DarwinServiceManager struct {
	CommandManager cm.CommandManager
}

func (dsm *DarwinServiceManager) EnableService(ctx context.Context, serviceName string) error {
	_, err := dsm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "launchctl",
		Sudo:    true,
		Args:    []string{"bootstrap", "system", fmt.Sprintf("/Library/LaunchDaemons/%s.plist", serviceName)},
	})
	return err
}

func (dsm *DarwinServiceManager) StartService(ctx context.Context, serviceName string) error {
	_, err := dsm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "launchctl",
		Sudo:    true,
		Args:    []string{"kickstart", "-k", fmt.Sprintf("system/%s", serviceName)},
	})
	return err
}

func (dsm *DarwinServiceManager) CheckServiceStatus(ctx context.Context, serviceName string) (ServiceStatus, error) {
	output, err := dsm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "launchctl",
		Args:    []string{"print", fmt.Sprintf("system/%s", serviceName)},
	})
	if err != nil {
		return Unknown, err
	}
	if strings.Contains(output.STDOUT, "state = running") {
		return Active, nil
	}
	return Inactive, nil
}

// IsServiceEnabled treats a service launchd knows about as enabled. The
// plist being present in /Library/LaunchDaemons is not enough on its own.
func (dsm *DarwinServiceManager) IsServiceEnabled(ctx context.Context, serviceName string) (bool, error) {
	_, err := dsm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "launchctl",
		Args:    []string{"print", fmt.Sprintf("system/%s", serviceName)},
	})
	return err == nil, nil
}
