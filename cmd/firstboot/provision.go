package main

import (
	"context"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/steelcutops/firstboot/firstboot/host"
	"github.com/steelcutops/firstboot/firstboot/output"
	"github.com/steelcutops/firstboot/firstboot/provisioner"
)

func (a *app) newProvisionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "provision",
		Short: "Install missing packages and assets of a profile",
		Long: `Probe the network, then install every package of the profile that is not
installed yet in a single batch, followed by autoremove and a cache clean.
Dotfiles, fonts and services are installed afterwards.

An unreachable network is not an error: the run is skipped and recorded as
offline.`,
		Example: `  # Provision this machine
  sudo firstboot provision --profile /etc/firstboot/workstation.toml

  # Provision every host of an inventory, four at a time
  firstboot provision -p base.yaml --ini hosts.ini --concurrency 4 --sudo-password`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runProvision(cmd)
		},
	}
}

func (a *app) runProvision(cmd *cobra.Command) error {
	ctx := cmd.Context()

	profile, err := a.loadProfile()
	if err != nil {
		return err
	}

	journal, err := a.openJournal()
	if err != nil {
		return err
	}
	defer journal.Close()

	var result *multierror.Error
	hg, err := a.hostGroup(ctx)
	if hg == nil {
		return err
	}
	if err != nil {
		result = multierror.Append(result, err)
	}

	printer := output.NewPrinter(cmd.OutOrStdout())
	err = hg.Provision(ctx, func(ctx context.Context, h *host.Host) error {
		hostPrinter := printer.ForHost(h.Hostname)
		defer hostPrinter.Flush()
		_, err := provisioner.New(h, profile, hostPrinter, journal).Run(ctx)
		return err
	}, a.flags.Concurrency)
	if err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}
