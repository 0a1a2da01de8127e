package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/steelcutops/firstboot/firstboot/statemanager"
)

func (a *app) newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded provisioning runs",
		Long: `List provisioning runs from the journal, newest first. With --hostname only
the latest run of each named host is shown.`,
		Example: `  firstboot history
  firstboot history --limit 5
  firstboot history --hostname vm1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runHistory(cmd, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")

	return cmd
}

func (a *app) runHistory(cmd *cobra.Command, limit int) error {
	if limit < 0 {
		return fmt.Errorf("invalid limit: %d (must not be negative)", limit)
	}

	journal, err := a.openJournal()
	if err != nil {
		return err
	}
	defer journal.Close()

	var runs []statemanager.Run
	if len(a.flags.Hostnames) > 0 {
		for _, hostname := range a.flags.Hostnames {
			run, err := journal.Latest(cmd.Context(), hostname)
			if errors.Is(err, statemanager.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			runs = append(runs, run)
		}
	} else {
		runs, err = journal.List(cmd.Context(), limit)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No provisioning runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tHOST\tPROFILE\tOUTCOME\tSTARTED\tDURATION\tMISSING")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(run.ID),
			run.Hostname,
			run.Profile,
			run.Outcome,
			humanize.Time(run.StartedAt),
			run.Duration.Round(time.Millisecond),
			humanize.Comma(int64(len(run.Missing))),
		)
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
