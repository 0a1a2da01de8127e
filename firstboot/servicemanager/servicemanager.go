package servicemanager

import "context"

type ServiceStatus string

const (
	Active   ServiceStatus = "active"
	Inactive ServiceStatus = "inactive"
	Failed   ServiceStatus = "failed"
	Unknown  ServiceStatus = "unknown"
)

// ServiceManager represents operations that can be performed on system services.
type ServiceManager interface {
	EnableService(ctx context.Context, serviceName string) error
	StartService(ctx context.Context, serviceName string) error
	IsServiceEnabled(ctx context.Context, serviceName string) (bool, error)
	CheckServiceStatus(ctx context.Context, serviceName string) (ServiceStatus, error)
}

// Ensure enables and starts serviceName, skipping whichever half already holds.
func Ensure(ctx context.Context, sm ServiceManager, serviceName string) error {
	enabled, err := sm.IsServiceEnabled(ctx, serviceName)
	if err != nil {
		return err
	}
	if !enabled {
		if err := sm.EnableService(ctx, serviceName); err != nil {
			return err
		}
	}

	status, err := sm.CheckServiceStatus(ctx, serviceName)
	if err != nil {
		return err
	}
	if status == Active {
		return nil
	}
	return sm.StartService(ctx, serviceName)
}
