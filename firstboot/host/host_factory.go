package host

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/steelcutops/firstboot/firstboot/commandmanager"
	"github.com/steelcutops/firstboot/firstboot/environmentmanager"
	"github.com/steelcutops/firstboot/firstboot/filemanager"
	"github.com/steelcutops/firstboot/firstboot/hostmanager"
	"github.com/steelcutops/firstboot/firstboot/networkmanager"
	"github.com/steelcutops/firstboot/firstboot/packagemanager"
	"github.com/steelcutops/firstboot/firstboot/servicemanager"
	"github.com/steelcutops/firstboot/firstboot/usermanager"
)

func NewHost(ctx context.Context, hostname string, options ...HostOption) (*Host, error) {
	ch := &Host{Hostname: hostname}

	for _, option := range options {
		option(ch)
	}

	if ch.Logger == nil {
		ch.Logger = logrus.StandardLogger().WithField("host", hostname)
	}

	// Initializing the CommandManager is required before determining the OS
	if ch.CommandManager == nil {
		dialer := ch.SSHClient
		if dialer == nil {
			dialer = commandmanager.DefaultSSHDialer{}
		}
		ch.CommandManager = &commandmanager.UnixCommandManager{
			Hostname:    hostname,
			SSHClient:   dialer,
			Logger:      ch.Logger,
			Credentials: ch.Credentials,
		}
	}
	ch.HostManager = &hostmanager.UnixHostManager{CommandManager: ch.CommandManager}

	if ch.OSType == "" {
		release, err := ch.HostManager.OSRelease(ctx)
		if err != nil {
			return nil, fmt.Errorf("detecting operating system of %s: %w", hostname, err)
		}
		ch.OSType = DetermineOS(release)
		ch.Logger.WithField("os", ch.OSType).Debug("Detected operating system")
	}

	family, err := FamilyFor(ch.OSType)
	if err != nil {
		return nil, err
	}
	if ch.PackageManager, err = packagemanager.New(family, ch.CommandManager); err != nil {
		return nil, err
	}

	ch.FileManager = &filemanager.UnixFileManager{CommandManager: ch.CommandManager}
	ch.NetworkManager = &networkmanager.UnixNetworkManager{
		CommandManager: ch.CommandManager,
		Logger:         ch.Logger,
		Darwin:         ch.OSType == Darwin,
	}

	if ch.OSType == Darwin {
		ch.ServiceManager = &servicemanager.DarwinServiceManager{CommandManager: ch.CommandManager}
		ch.UserManager = &usermanager.DarwinUserManager{CommandManager: ch.CommandManager}
	} else {
		ch.ServiceManager = &servicemanager.LinuxServiceManager{CommandManager: ch.CommandManager}
		ch.UserManager = &usermanager.LinuxUserManager{CommandManager: ch.CommandManager}
		ch.EnvironmentManager = &environmentmanager.UnixEnvironmentManager{CommandManager: ch.CommandManager}
	}

	return ch, nil
}

// DetermineOS maps an os-release record to an OSType, falling back on
// ID_LIKE for derivatives such as Linux Mint or Oracle Linux.
func DetermineOS(release hostmanager.OSRelease) OSType {
	for _, id := range append([]string{release.ID}, release.IDLike...) {
		switch OSType(id) {
		case LinuxUbuntu, LinuxDebian, LinuxFedora, LinuxRedHat, LinuxCentOS, LinuxRocky, LinuxAlma, LinuxAlpine, Darwin:
			return OSType(id)
		}
	}
	return Unknown
}

// FamilyFor returns the package manager family used on os.
func FamilyFor(os OSType) (packagemanager.Family, error) {
	switch os {
	case LinuxUbuntu, LinuxDebian:
		return packagemanager.Apt, nil
	case LinuxFedora:
		return packagemanager.Dnf, nil
	case LinuxRedHat, LinuxCentOS, LinuxRocky, LinuxAlma:
		return packagemanager.Yum, nil
	case LinuxAlpine:
		return packagemanager.Apk, nil
	case Darwin:
		return packagemanager.Brew, nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", os)
	}
}
