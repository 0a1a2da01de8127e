package packagemanager

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cm "github.com/steelcutops/firstboot/firstboot/commandmanager"
)

func rpmQuery(name string) cm.CommandConfig {
	return cm.CommandConfig{
		Command: "rpm",
		Args:    []string{"-q", "--qf", "%{VERSION}-%{RELEASE}\n", name},
	}
}

func TestDnfQueryInstalled(t *testing.T) {
	mockCmd := new(MockCommandManager)
	dpm := NewDnfPackageManager(mockCmd)

	mockCmd.On("Run", rpmQuery("kernel")).Return(stdout("6.5.6-300.fc39\n6.5.5-200.fc39\n"), nil)

	record, err := dpm.Query(context.Background(), "kernel")
	require.NoError(t, err)
	assert.Equal(t, PackageRecord{Name: "kernel", Known: true, InstalledPolicy: "6.5.6-300.fc39"}, record)
}

func TestDnfQueryKnownNotInstalled(t *testing.T) {
	mockCmd := new(MockCommandManager)
	dpm := NewDnfPackageManager(mockCmd)

	mockCmd.On("Run", rpmQuery("nginx")).Return(stdout("package nginx is not installed\n"), exitStatus(1))
	mockCmd.On("Run", cm.CommandConfig{Command: "dnf", Args: []string{"-q", "info", "nginx"}}).
		Return(stdout("Name : nginx\n"), nil)

	record, err := dpm.Query(context.Background(), "nginx")
	require.NoError(t, err)
	assert.Equal(t, knownNotInstalled("nginx"), record)
}

func TestYumQueryUnknown(t *testing.T) {
	mockCmd := new(MockCommandManager)
	ypm := NewYumPackageManager(mockCmd)

	mockCmd.On("Run", rpmQuery("nope")).Return(cm.CommandResult{}, exitStatus(1))
	mockCmd.On("Run", cm.CommandConfig{Command: "yum", Args: []string{"-q", "info", "nope"}}).
		Return(cm.CommandResult{}, exitStatus(1))

	record, err := ypm.Query(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, record.Known)
}

func TestRpmQueryFailure(t *testing.T) {
	mockCmd := new(MockCommandManager)
	dpm := NewDnfPackageManager(mockCmd)

	mockCmd.On("Run", rpmQuery("git")).Return(cm.CommandResult{}, errors.New("ssh: connection lost"))

	_, err := dpm.Query(context.Background(), "git")
	assert.ErrorContains(t, err, "connection lost")
}

func TestDnfInstaller(t *testing.T) {
	mockCmd := new(MockCommandManager)
	dpm := NewDnfPackageManager(mockCmd)
	ctx := context.Background()

	mockCmd.On("Run", cm.CommandConfig{Command: "dnf", Sudo: true, Args: []string{"-y", "makecache"}}).Return(cm.CommandResult{}, nil)
	mockCmd.On("Run", cm.CommandConfig{Command: "dnf", Sudo: true, Args: []string{"install", "-y", "vim", "nginx"}}).Return(cm.CommandResult{}, nil)
	mockCmd.On("Run", cm.CommandConfig{Command: "dnf", Sudo: true, Args: []string{"autoremove", "-y"}}).Return(cm.CommandResult{}, nil)
	mockCmd.On("Run", cm.CommandConfig{Command: "dnf", Sudo: true, Args: []string{"clean", "all"}}).Return(cm.CommandResult{}, nil)

	assert.NoError(t, dpm.RefreshIndex(ctx))
	assert.NoError(t, dpm.InstallBatch(ctx, []string{"vim", "nginx"}))
	assert.NoError(t, dpm.Autoremove(ctx))
	assert.NoError(t, dpm.CleanCache(ctx))
	mockCmd.AssertExpectations(t)
}
