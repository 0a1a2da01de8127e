package host

import (
	"github.com/sirupsen/logrus"
	"github.com/steelcutops/firstboot/common"
	"github.com/steelcutops/firstboot/firstboot/commandmanager"
	"github.com/steelcutops/firstboot/firstboot/environmentmanager"
	"github.com/steelcutops/firstboot/firstboot/filemanager"
	"github.com/steelcutops/firstboot/firstboot/hostmanager"
	"github.com/steelcutops/firstboot/firstboot/networkmanager"
	"github.com/steelcutops/firstboot/firstboot/packagemanager"
	"github.com/steelcutops/firstboot/firstboot/servicemanager"
	"github.com/steelcutops/firstboot/firstboot/usermanager"
)

type OSType string

const (
	LinuxUbuntu OSType = "ubuntu"
	LinuxDebian OSType = "debian"
	LinuxFedora OSType = "fedora"
	LinuxRedHat OSType = "rhel"
	LinuxCentOS OSType = "centos"
	LinuxRocky  OSType = "rocky"
	LinuxAlma   OSType = "almalinux"
	LinuxAlpine OSType = "alpine"
	Darwin      OSType = "darwin"
	Unknown     OSType = "unknown"
)

// Host is a single machine together with the managers configured for its OS.
type Host struct {
	Hostname string
	OSType   OSType
	common.Credentials

	SSHClient commandmanager.SSHDialer
	Logger    logrus.FieldLogger

	CommandManager commandmanager.CommandManager
	// EnvironmentManager is nil on Darwin, which has no /etc/environment.
	EnvironmentManager environmentmanager.EnvironmentManager
	FileManager        filemanager.FileManager
	HostManager        hostmanager.HostManager
	NetworkManager     networkmanager.NetworkManager
	PackageManager     packagemanager.PackageManager
	ServiceManager     servicemanager.ServiceManager
	UserManager        usermanager.UserManager
}

// IsLocal reports whether commands for this host run on this machine.
func (h *Host) IsLocal() bool {
	return h.Hostname == "" || h.Hostname == "localhost" || h.Hostname == "127.0.0.1"
}
