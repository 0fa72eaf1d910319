package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/site_mon/internal/policy"
	"github.com/eliteGoblin/focusd/site_mon/internal/usecase"
)

func newDisplayCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "display",
		Aliases: []string{"bw"},
		Short:   "Control grayscale mode",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "on",
			Short: "Force grayscale until turned off",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runDisplayChange(cmd, flags, "Grayscale forced on", func(s *usecase.RuleService) error {
					return s.SetManualDisplay(true)
				})
			},
		},
		&cobra.Command{
			Use:   "off",
			Short: "Stop forcing grayscale (schedules still apply)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runDisplayChange(cmd, flags, "Manual grayscale off", func(s *usecase.RuleService) error {
					return s.SetManualDisplay(false)
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove all grayscale schedules and the manual override",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runDisplayChange(cmd, flags, "Display rules cleared", func(s *usecase.RuleService) error {
					return s.ClearDisplay()
				})
			},
		},
		&cobra.Command{
			Use:   "rule <start> <end>",
			Short: "Add a daily grayscale window",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := loadApp(cmd, flags)
				if err != nil {
					return err
				}
				svc, done := a.ruleService(false)
				defer done()

				rule, err := svc.AddDisplayRule(args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added display rule: grayscale %s-%s\n", rule.StartTime, rule.EndTime)
				return nil
			},
		},
	)
	return cmd
}

// runDisplayChange saves a display setting, then applies the resulting
// target to the displays right away. The target is recomputed from the
// whole config so an active schedule is honored after "off".
func runDisplayChange(cmd *cobra.Command, flags *rootFlags, msg string, change func(*usecase.RuleService) error) error {
	a, err := loadApp(cmd, flags)
	if err != nil {
		return err
	}
	svc, done := a.ruleService(false)
	defer done()

	if err := change(svc); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)

	cfg, err := svc.Config()
	if err != nil {
		return err
	}
	target := policy.ComputeDisplayTarget(cfg, svc.Now())

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	if err := usecase.ApplyGrayscale(ctx, a.display(), target); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not update displays now: %v\n", err)
	}
	return nil
}
