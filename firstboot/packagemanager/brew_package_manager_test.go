package packagemanager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cm "github.com/steelcutops/firstboot/firstboot/commandmanager"
)

func TestBrewQuery(t *testing.T) {
	mockCmd := new(MockCommandManager)
	bpm := &BrewPackageManager{CommandManager: mockCmd}
	ctx := context.Background()

	mockCmd.On("Run", cm.CommandConfig{Command: "brew", Args: []string{"list", "--versions", "git"}, Env: brewEnv}).
		Return(stdout("git 2.43.0 2.42.0\n"), nil)
	mockCmd.On("Run", cm.CommandConfig{Command: "brew", Args: []string{"list", "--versions", "wget"}, Env: brewEnv}).
		Return(cm.CommandResult{}, exitStatus(1))
	mockCmd.On("Run", cm.CommandConfig{Command: "brew", Args: []string{"info", "wget"}, Env: brewEnv}).
		Return(stdout("==> wget: stable 1.21.4\n"), nil)
	mockCmd.On("Run", cm.CommandConfig{Command: "brew", Args: []string{"list", "--versions", "nope"}, Env: brewEnv}).
		Return(cm.CommandResult{}, exitStatus(1))
	mockCmd.On("Run", cm.CommandConfig{Command: "brew", Args: []string{"info", "nope"}, Env: brewEnv}).
		Return(cm.CommandResult{}, exitStatus(1))

	record, err := bpm.Query(ctx, "git")
	require.NoError(t, err)
	assert.Equal(t, installed("git", "2.43.0"), record)

	record, err = bpm.Query(ctx, "wget")
	require.NoError(t, err)
	assert.Equal(t, knownNotInstalled("wget"), record)

	record, err = bpm.Query(ctx, "nope")
	require.NoError(t, err)
	assert.Equal(t, notKnown("nope"), record)
}

func TestBrewInstallBatch(t *testing.T) {
	mockCmd := new(MockCommandManager)
	bpm := &BrewPackageManager{CommandManager: mockCmd}

	mockCmd.On("Run", cm.CommandConfig{Command: "brew", Args: []string{"install", "jq", "wget"}, Env: brewEnv}).
		Return(cm.CommandResult{}, exitStatus(1))

	err := bpm.InstallBatch(context.Background(), []string{"jq", "wget"})
	var cmdErr *cm.CommandError
	assert.ErrorAs(t, err, &cmdErr)
}
