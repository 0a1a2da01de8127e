package packagemanager

import (
	"context"
	"errors"
	"fmt"

	cm "github.com/steelcutops/firstboot/firstboot/commandmanager"
)

// PolicyNone is the installed policy reported for a package the database knows
// about but that is not installed.
const PolicyNone = "none"

// PackageRecord is what the package database says about a single name.
type PackageRecord struct {
	Name string
	// Known is false when the database has no record at all for Name.
	Known bool
	// InstalledPolicy is the installed version, PolicyNone, or empty when absent.
	InstalledPolicy string
}

// Querier answers whether a package is known and what is installed.
type Querier interface {
	Query(ctx context.Context, name string) (PackageRecord, error)
}

// Installer mutates the package database. Every method may fail independently.
type Installer interface {
	RefreshIndex(ctx context.Context) error
	InstallBatch(ctx context.Context, names []string) error
	Autoremove(ctx context.Context) error
	CleanCache(ctx context.Context) error
}

// PackageManager is a Querier and Installer backed by one system package manager.
type PackageManager interface {
	Querier
	Installer
	Name() string
}

// Family identifies a package manager implementation.
type Family string

const (
	Apt  Family = "apt"
	Dnf  Family = "dnf"
	Yum  Family = "yum"
	Apk  Family = "apk"
	Brew Family = "brew"
)

// New returns the package manager for family running through commandManager.
func New(family Family, commandManager cm.CommandManager) (PackageManager, error) {
	switch family {
	case Apt:
		return &AptPackageManager{CommandManager: commandManager}, nil
	case Dnf:
		return NewDnfPackageManager(commandManager), nil
	case Yum:
		return NewYumPackageManager(commandManager), nil
	case Apk:
		return &ApkPackageManager{CommandManager: commandManager}, nil
	case Brew:
		return &BrewPackageManager{CommandManager: commandManager}, nil
	default:
		return nil, fmt.Errorf("unsupported package manager: %q", family)
	}
}

// exitedWith reports whether err is a command that ran and exited with code.
func exitedWith(err error, code int) bool {
	var cmdErr *cm.CommandError
	return errors.As(err, &cmdErr) && cmdErr.Result.ExitCode == code
}

func notKnown(name string) PackageRecord {
	return PackageRecord{Name: name}
}

func knownNotInstalled(name string) PackageRecord {
	return PackageRecord{Name: name, Known: true, InstalledPolicy: PolicyNone}
}

func installed(name, version string) PackageRecord {
	return PackageRecord{Name: name, Known: true, InstalledPolicy: version}
}
