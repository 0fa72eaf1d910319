package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
	"github.com/eliteGoblin/focusd/site_mon/internal/policy"
)

func newAddCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "add <domain> <start> <end>",
		Aliases: []string{"a"},
		Short:   "Block a domain between two times of day",
		Long: `Adds a daily block window for a domain. Times are HH:MM (24h).
A window whose start is after its end wraps midnight (22:00 06:00).
A bare name gets .com appended (youtube -> youtube.com); www. is implied.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, flags)
			if err != nil {
				return err
			}
			svc, done := a.ruleService(false)
			defer done()

			rule, err := svc.AddRule(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added rule: %s blocked %s-%s\n",
				rule.Domain, rule.StartTime, rule.EndTime)
			return nil
		},
	}
}

func newRemoveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <domain>",
		Aliases: []string{"r", "rm"},
		Short:   "Remove every rule for a domain",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, flags)
			if err != nil {
				return err
			}
			svc, done := a.ruleService(false)
			defer done()

			name, removed, err := svc.RemoveRule(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d rule(s) for %s\n", removed, name)
			a.applyHostsNow(cmd)
			return nil
		},
	}
}

func newListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show rules, display schedule and exception quota",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, flags)
			if err != nil {
				return err
			}
			svc, done := a.ruleService(false)
			defer done()

			cfg, err := svc.Config()
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), cfg, svc.Now(), svc.RemainingExceptions(cfg))
			return nil
		},
	}
}

// printConfig renders the rule set. Only running exceptions are shown.
func printConfig(out io.Writer, cfg domain.Config, now time.Time, remaining uint) {
	fmt.Fprintln(out, "\n=== Blocked Domains ===")
	if len(cfg.Rules) == 0 {
		fmt.Fprintln(out, "  (none)")
	} else {
		fmt.Fprintf(out, "  %-30s %-13s %-8s %s\n", "DOMAIN", "WINDOW", "ACTIVE", "EXCEPTION UNTIL")
		for _, r := range cfg.Rules {
			active := "no"
			if policy.InWindow(now, r.StartTime, r.EndTime) {
				active = "yes"
			}
			until := "-"
			if policy.IsSuspended(r.ExceptionUntil, now) {
				until = r.ExceptionUntil.Local().Format("15:04")
				active = "paused"
			}
			fmt.Fprintf(out, "  %-30s %-13s %-8s %s\n",
				r.Domain, fmt.Sprintf("%s-%s", r.StartTime, r.EndTime), active, until)
		}
	}

	fmt.Fprintln(out, "\n=== Display ===")
	mode := "off"
	if cfg.ManualDisplayOverride {
		mode = "on (manual)"
	}
	fmt.Fprintf(out, "  Manual grayscale: %s\n", mode)
	if len(cfg.DisplayRules) == 0 {
		fmt.Fprintln(out, "  Schedule: (none)")
	}
	for _, r := range cfg.DisplayRules {
		state := "inactive"
		if policy.InWindow(now, r.StartTime, r.EndTime) {
			state = "active"
		}
		fmt.Fprintf(out, "  Schedule: %s-%s (%s)\n", r.StartTime, r.EndTime, state)
	}
	fmt.Fprintf(out, "  Grayscale now: %v\n", policy.ComputeDisplayTarget(cfg, now))

	fmt.Fprintln(out, "\n=== Exceptions ===")
	fmt.Fprintf(out, "  Remaining today: %d of %d\n", remaining, cfg.ExceptionDailyLimit)
	fmt.Fprintln(out, "=======================")
}
