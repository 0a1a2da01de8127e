package host

import (
	"github.com/sirupsen/logrus"
	"github.com/steelcutops/firstboot/firstboot/commandmanager"
)

type HostOption func(*Host)

// WithUser returns a HostOption that sets the user for a Host.
func WithUser(user string) HostOption {
	return func(host *Host) {
		host.User = user
	}
}

// WithPassword returns a HostOption that sets the password for a Host.
func WithPassword(password string) HostOption {
	return func(host *Host) {
		host.Password = password
	}
}

// WithKeyPassphrase returns a HostOption that sets the key passphrase for a Host.
func WithKeyPassphrase(keyPassphrase string) HostOption {
	return func(host *Host) {
		host.KeyPassphrase = keyPassphrase
	}
}

// WithOS returns a HostOption that sets the OS for a Host and skips detection.
func WithOS(os OSType) HostOption {
	return func(host *Host) {
		host.OSType = os
	}
}

// WithSudoPassword returns a HostOption that sets the sudo password for a Host.
func WithSudoPassword(password string) HostOption {
	return func(host *Host) {
		host.SudoPassword = password
	}
}

// WithSSHClient returns a HostOption that replaces the SSH dialer.
func WithSSHClient(client commandmanager.SSHDialer) HostOption {
	return func(host *Host) {
		host.SSHClient = client
	}
}

// WithLogger returns a HostOption that sets the logger for a Host.
func WithLogger(logger logrus.FieldLogger) HostOption {
	return func(host *Host) {
		host.Logger = logger
	}
}

// WithCommandManager returns a HostOption that runs every manager through cmd
// instead of a UnixCommandManager.
func WithCommandManager(cmd commandmanager.CommandManager) HostOption {
	return func(host *Host) {
		host.CommandManager = cmd
	}
}
