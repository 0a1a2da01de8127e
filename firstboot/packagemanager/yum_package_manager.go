package packagemanager

import cm "github.com/steelcutops/firstboot/firstboot/commandmanager"

type YumPackageManager struct {
	rpmPackageManager
}

func NewYumPackageManager(commandManager cm.CommandManager) *YumPackageManager {
	return &YumPackageManager{rpmPackageManager{CommandManager: commandManager, binary: "yum"}}
}
