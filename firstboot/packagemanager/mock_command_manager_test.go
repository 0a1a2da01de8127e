package packagemanager

import (
	"context"

	"github.com/stretchr/testify/mock"

	cm "github.com/steelcutops/firstboot/firstboot/commandmanager"
)

type MockCommandManager struct {
	mock.Mock
}

func (m *MockCommandManager) RunLocal(ctx context.Context, config cm.CommandConfig) (cm.CommandResult, error) {
	return m.Run(ctx, config)
}

func (m *MockCommandManager) RunRemote(ctx context.Context, config cm.CommandConfig) (cm.CommandResult, error) {
	return m.Run(ctx, config)
}

func (m *MockCommandManager) Run(ctx context.Context, config cm.CommandConfig) (cm.CommandResult, error) {
	args := m.Called(config)
	return args.Get(0).(cm.CommandResult), args.Error(1)
}

func stdout(s string) cm.CommandResult {
	return cm.CommandResult{STDOUT: s}
}

func exitStatus(code int) error {
	return &cm.CommandError{Result: cm.CommandResult{ExitCode: code}}
}
