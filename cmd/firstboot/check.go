package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steelcutops/firstboot/firstboot/host"
	"github.com/steelcutops/firstboot/firstboot/output"
	"github.com/steelcutops/firstboot/firstboot/reconciler"
)

func (a *app) newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Show which packages of a profile are missing, without installing",
		Example: `  firstboot check --profile workstation.toml
  firstboot check -p base.yaml --hostname vm1 --hostname vm2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCheck(cmd)
		},
	}
}

func (a *app) runCheck(cmd *cobra.Command) error {
	ctx := cmd.Context()

	profile, err := a.loadProfile()
	if err != nil {
		return err
	}

	hg, hostErr := a.hostGroup(ctx)
	if hg == nil {
		return hostErr
	}

	printer := output.NewPrinter(cmd.OutOrStdout())
	err = hg.Provision(ctx, func(ctx context.Context, h *host.Host) error {
		hostPrinter := printer.ForHost(fmt.Sprintf("%s (%s)", h.Hostname, h.PackageManager.Name()))
		defer hostPrinter.Flush()
		missing := reconciler.New(h.PackageManager, hostPrinter, h.Logger).Plan(ctx, profile.Packages)
		hostPrinter.Missing(len(missing), len(profile.Packages))
		return ctx.Err()
	}, a.flags.Concurrency)

	if hostErr != nil {
		return hostErr
	}
	return err
}
