package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/steelcutops/firstboot/config"
	"github.com/steelcutops/firstboot/firstboot/host"
	"github.com/steelcutops/firstboot/firstboot/hostgroup"
	"github.com/steelcutops/firstboot/firstboot/statemanager"
	"github.com/steelcutops/firstboot/logger"
)

type flags struct {
	Concurrency        int
	DBPath             string
	Debug              bool
	Hostnames          []string
	IniFilePath        string
	KeyPassPrompt      bool
	LogFileName        string
	PasswordPrompt     bool
	ProfilePath        string
	SudoPasswordPrompt bool
	Username           string
}

// app is the state shared by every subcommand.
type app struct {
	flags  flags
	logger *logrus.Logger
	closer io.Closer

	// readPassword is swapped in tests.
	readPassword func(prompt string) (string, error)
}

func newRootCmd() *cobra.Command {
	a := &app{readPassword: promptPassword}

	root := &cobra.Command{
		Use:   "firstboot",
		Short: "Provision freshly booted machines from a declarative profile",
		Long: `firstboot waits for the network, installs whatever packages of a profile
are missing in one batch through the system package manager, then installs
dotfiles, fonts and services. Runs are recorded in a local journal.

Hosts other than localhost are reached over SSH.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, closer, err := logger.New(logger.Options{
				Debug:  a.flags.Debug,
				File:   a.flags.LogFileName,
				Output: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			a.logger, a.closer = l, closer
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.closer != nil {
				return a.closer.Close()
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.flags.ProfilePath, "profile", "p", "", "Path to the provisioning profile (.toml, .yaml)")
	pf.StringArrayVar(&a.flags.Hostnames, "hostname", nil, "Hostname to provision (repeatable, default localhost)")
	pf.StringVar(&a.flags.IniFilePath, "ini", "", "Path to INI file with host inventory")
	pf.StringVar(&a.flags.DBPath, "db", "", "Journal path (default: ~/.firstboot/firstboot.db)")
	pf.BoolVar(&a.flags.Debug, "debug", false, "Enable debug log level")
	pf.StringVar(&a.flags.LogFileName, "log", "", "Append log output to this file")
	pf.IntVar(&a.flags.Concurrency, "concurrency", 1, "Maximum number of hosts provisioned at once")
	pf.StringVar(&a.flags.Username, "username", "", "Username to use for SSH connection")
	pf.BoolVar(&a.flags.PasswordPrompt, "password", false, "Prompt for the SSH password")
	pf.BoolVar(&a.flags.KeyPassPrompt, "keypass", false, "Prompt for the SSH key passphrase")
	pf.BoolVar(&a.flags.SudoPasswordPrompt, "sudo-password", false, "Prompt for the sudo password")

	root.SuggestionsMinimumDistance = 2

	root.AddCommand(a.newProvisionCmd())
	root.AddCommand(a.newCheckCmd())
	root.AddCommand(a.newHistoryCmd())

	return root
}

func (a *app) dbPath() (string, error) {
	if a.flags.DBPath != "" {
		return a.flags.DBPath, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	dir := filepath.Join(home, ".firstboot")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create firstboot directory: %w", err)
	}

	return filepath.Join(dir, "firstboot.db"), nil
}

func (a *app) openJournal() (*statemanager.SQLiteStateManager, error) {
	path, err := a.dbPath()
	if err != nil {
		return nil, err
	}
	journal, err := statemanager.New(path)
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	return journal, nil
}

func (a *app) loadProfile() (config.Profile, error) {
	if a.flags.ProfilePath == "" {
		return config.Profile{}, fmt.Errorf("--profile is required")
	}
	return config.LoadProfile(a.flags.ProfilePath)
}

// hostnames merges the inventory with --hostname, defaulting to localhost.
func (a *app) hostnames() ([]string, error) {
	var names []string
	if a.flags.IniFilePath != "" {
		inventory, err := config.ReadInventory(a.flags.IniFilePath)
		if err != nil {
			return nil, fmt.Errorf("reading inventory: %w", err)
		}
		for group, hosts := range inventory {
			a.logger.WithField("group", group).WithField("hosts", len(hosts)).Debug("Adding hosts from group")
		}
		names = config.Hostnames(inventory)
	}
	names = append(names, a.flags.Hostnames...)
	if len(names) == 0 {
		names = []string{"localhost"}
	}
	return names, nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (a *app) buildHostOptions() ([]host.HostOption, error) {
	options := []host.HostOption{}
	if a.flags.Username != "" {
		options = append(options, host.WithUser(a.flags.Username))
	}

	prompts := []struct {
		enabled bool
		prompt  string
		option  func(string) host.HostOption
	}{
		{a.flags.PasswordPrompt, "Enter the password: ", host.WithPassword},
		{a.flags.KeyPassPrompt, "Enter the key passphrase: ", host.WithKeyPassphrase},
		{a.flags.SudoPasswordPrompt, "Enter the sudo password: ", host.WithSudoPassword},
	}
	for _, p := range prompts {
		if !p.enabled {
			continue
		}
		secret, err := a.readPassword(p.prompt)
		if err != nil {
			return nil, fmt.Errorf("reading password: %w", err)
		}
		if secret != "" {
			options = append(options, p.option(secret))
		}
	}

	return options, nil
}

// hostGroup connects to every host. Hosts that fail to initialise are
// reported and left out; the error lists them.
func (a *app) hostGroup(ctx context.Context) (*hostgroup.HostGroup, error) {
	names, err := a.hostnames()
	if err != nil {
		return nil, err
	}
	options, err := a.buildHostOptions()
	if err != nil {
		return nil, err
	}

	hostGroup := hostgroup.NewHostGroup()
	var errs *multierror.Error
	for _, hostname := range names {
		log := a.logger.WithField("host", hostname)
		log.Debug("Adding host")
		server, err := host.NewHost(ctx, hostname, append(options, host.WithLogger(log))...)
		if err != nil {
			log.WithError(err).Error("Failed to create new host")
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", hostname, err))
			continue
		}
		hostGroup.AddHost(server)
	}

	return hostGroup, errs.ErrorOrNil()
}
