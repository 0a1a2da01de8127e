package host

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steelcutops/firstboot/firstboot/commandmanager"
	"github.com/steelcutops/firstboot/firstboot/hostmanager"
	"github.com/steelcutops/firstboot/firstboot/networkmanager"
	"github.com/steelcutops/firstboot/firstboot/packagemanager"
	"github.com/steelcutops/firstboot/firstboot/servicemanager"
	"github.com/steelcutops/firstboot/firstboot/usermanager"
)

type MockCommandManager struct {
	Outputs map[string]string
	Err     error
}

func (m *MockCommandManager) RunLocal(ctx context.Context, config commandmanager.CommandConfig) (commandmanager.CommandResult, error) {
	return m.Run(ctx, config)
}

func (m *MockCommandManager) RunRemote(ctx context.Context, config commandmanager.CommandConfig) (commandmanager.CommandResult, error) {
	return m.Run(ctx, config)
}

func (m *MockCommandManager) Run(ctx context.Context, config commandmanager.CommandConfig) (commandmanager.CommandResult, error) {
	return commandmanager.CommandResult{STDOUT: m.Outputs[config.String()]}, m.Err
}

func TestNewHostDetectsDebian(t *testing.T) {
	mockCmd := &MockCommandManager{Outputs: map[string]string{
		"uname -s":            "Linux\n",
		"cat /etc/os-release": "ID=debian\nVERSION_ID=\"12\"\n",
	}}

	h, err := NewHost(context.Background(), "vm1", WithCommandManager(mockCmd), WithUser("admin"))
	require.NoError(t, err)
	assert.Equal(t, LinuxDebian, h.OSType)
	assert.Equal(t, "admin", h.User)
	assert.IsType(t, &packagemanager.AptPackageManager{}, h.PackageManager)
	assert.IsType(t, &servicemanager.LinuxServiceManager{}, h.ServiceManager)
	assert.IsType(t, &usermanager.LinuxUserManager{}, h.UserManager)
	assert.NotNil(t, h.EnvironmentManager)

	network, ok := h.NetworkManager.(*networkmanager.UnixNetworkManager)
	require.True(t, ok)
	assert.False(t, network.Darwin)
}

func TestNewHostWithOSSkipsDetection(t *testing.T) {
	mockCmd := &MockCommandManager{Err: errors.New("should not run")}

	h, err := NewHost(context.Background(), "mac", WithCommandManager(mockCmd), WithOS(Darwin))
	require.NoError(t, err)
	assert.IsType(t, &packagemanager.BrewPackageManager{}, h.PackageManager)
	assert.IsType(t, &servicemanager.DarwinServiceManager{}, h.ServiceManager)
	assert.IsType(t, &usermanager.DarwinUserManager{}, h.UserManager)
	assert.Nil(t, h.EnvironmentManager)

	network, ok := h.NetworkManager.(*networkmanager.UnixNetworkManager)
	require.True(t, ok)
	assert.True(t, network.Darwin)
}

func TestNewHostUnsupportedOS(t *testing.T) {
	mockCmd := &MockCommandManager{Outputs: map[string]string{
		"uname -s":            "Linux\n",
		"cat /etc/os-release": "ID=gentoo\n",
	}}

	_, err := NewHost(context.Background(), "vm1", WithCommandManager(mockCmd))
	assert.EqualError(t, err, "unsupported operating system: unknown")
}

func TestNewHostDetectionError(t *testing.T) {
	mockCmd := &MockCommandManager{Err: errors.New("ssh: handshake failed")}

	_, err := NewHost(context.Background(), "vm1", WithCommandManager(mockCmd))
	assert.ErrorContains(t, err, "detecting operating system of vm1")
}

func TestNewHostBuildsUnixCommandManager(t *testing.T) {
	h, err := NewHost(context.Background(), "vm1", WithOS(LinuxAlpine), WithSudoPassword("s3cret"))
	require.NoError(t, err)

	unix, ok := h.CommandManager.(*commandmanager.UnixCommandManager)
	require.True(t, ok)
	assert.Equal(t, "vm1", unix.Hostname)
	assert.Equal(t, "s3cret", unix.SudoPassword)
	assert.IsType(t, &packagemanager.ApkPackageManager{}, h.PackageManager)
}

func TestDetermineOS(t *testing.T) {
	tests := []struct {
		release hostmanager.OSRelease
		want    OSType
	}{
		{hostmanager.OSRelease{ID: "ubuntu", IDLike: []string{"debian"}}, LinuxUbuntu},
		{hostmanager.OSRelease{ID: "linuxmint", IDLike: []string{"ubuntu", "debian"}}, LinuxUbuntu},
		{hostmanager.OSRelease{ID: "ol", IDLike: []string{"fedora"}}, LinuxFedora},
		{hostmanager.OSRelease{ID: "rocky", IDLike: []string{"rhel", "centos", "fedora"}}, LinuxRocky},
		{hostmanager.OSRelease{ID: "darwin"}, Darwin},
		{hostmanager.OSRelease{ID: "void"}, Unknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DetermineOS(tt.release), tt.release.ID)
	}
}

func TestFamilyFor(t *testing.T) {
	family, err := FamilyFor(LinuxAlma)
	require.NoError(t, err)
	assert.Equal(t, packagemanager.Yum, family)

	_, err = FamilyFor(Unknown)
	assert.Error(t, err)
}

func TestIsLocal(t *testing.T) {
	assert.True(t, (&Host{Hostname: "localhost"}).IsLocal())
	assert.False(t, (&Host{Hostname: "vm1"}).IsLocal())
}
