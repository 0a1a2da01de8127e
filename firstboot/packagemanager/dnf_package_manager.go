package packagemanager

import cm "github.com/steelcutops/firstboot/firstboot/commandmanager"

type DnfPackageManager struct {
	rpmPackageManager
}

func NewDnfPackageManager(commandManager cm.CommandManager) *DnfPackageManager {
	return &DnfPackageManager{rpmPackageManager{CommandManager: commandManager, binary: "dnf"}}
}
