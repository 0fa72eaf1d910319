package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

func newExceptionCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "exception",
		Aliases: []string{"e", "exc"},
		Short:   "Temporarily lift a block (limited per day)",
	}
	cmd.AddCommand(
		newExceptionAllowCmd(flags),
		newExceptionSetLimitCmd(flags),
		newExceptionHistoryCmd(flags),
	)
	return cmd
}

func newExceptionAllowCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "allow <domain> <minutes>",
		Aliases: []string{"a"},
		Short:   "Allow a blocked domain for some minutes",
		Long: `Suspends every rule of the domain for the given minutes. Each grant
uses one of the daily exceptions, however many rules it covers.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			minutes, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("%w: minutes must be a number, got %q", domain.ErrValidation, args[1])
			}

			a, err := loadApp(cmd, flags)
			if err != nil {
				return err
			}
			svc, done := a.ruleService(true)
			defer done()

			outcome, err := svc.GrantException(args[0], minutes)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exception granted: %s allowed until %s\n",
				outcome.Domain, outcome.ExpiresAt.Local().Format("15:04"))
			fmt.Fprintf(cmd.OutOrStdout(), "Exceptions remaining today: %d\n", outcome.Remaining)
			a.applyHostsNow(cmd)
			return nil
		},
	}
}

func newExceptionSetLimitCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "set-limit <n>",
		Short: "Set how many exceptions are allowed per day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("%w: limit must be a non-negative number, got %q", domain.ErrValidation, args[0])
			}

			a, err := loadApp(cmd, flags)
			if err != nil {
				return err
			}
			svc, done := a.ruleService(false)
			defer done()

			if err := svc.SetExceptionLimit(uint(limit)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daily exception limit set to %d\n", limit)
			return nil
		},
	}
}

func newExceptionHistoryCmd(flags *rootFlags) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show granted exceptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("%w: --days must be positive", domain.ErrValidation)
			}

			a, err := loadApp(cmd, flags)
			if err != nil {
				return err
			}
			ledger := a.openLedger()
			if ledger == nil {
				return fmt.Errorf("%w: exception history is unavailable", domain.ErrPersistence)
			}
			defer ledger.Close()

			since := time.Now().AddDate(0, 0, -days)
			grants, err := ledger.Since(since)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n=== Exceptions (last %d days) ===\n", days)
			if len(grants) == 0 {
				fmt.Fprintln(out, "  (none)")
			}
			for _, g := range grants {
				fmt.Fprintf(out, "  %s  %-30s %3d min  (%d/%d that day)\n",
					g.GrantedAt.Local().Format("2006-01-02 15:04"),
					g.Domain,
					int(g.ExpiresAt.Sub(g.GrantedAt).Minutes()),
					g.UsedToday, g.DailyLimit)
			}
			fmt.Fprintln(out, "================================")
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "How many days back to show")
	return cmd
}
