package environmentmanager

import "context"

// EnvironmentManager edits the system-wide environment read at login.
type EnvironmentManager interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Unset(ctx context.Context, key string) error
	List(ctx context.Context) (map[string]string, error)
}
