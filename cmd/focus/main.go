// Package main is the CLI entry point for focus.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
	"github.com/eliteGoblin/focusd/site_mon/internal/infra"
	"github.com/eliteGoblin/focusd/site_mon/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.3.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootFlags are the persistent flags shared by every command.
type rootFlags struct {
	configPath   string
	hostsPath    string
	settingsFile string
	debug        bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "focus",
		Short: "Focus - blocks distracting sites and grays out the screen on a schedule",
		Long: `focus keeps a managed block in /etc/hosts that redirects distracting
domains to 127.0.0.1 during their configured windows, and switches the
displays to grayscale on a schedule or on demand.

Rules live in a JSON config; the daemon reconciles every 10 seconds and
whenever the config changes. Blocking requires root.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Rule config file (default depends on root/user mode)")
	pf.StringVar(&flags.hostsPath, "hosts", "", "Hosts file to manage (default /etc/hosts)")
	pf.StringVar(&flags.settingsFile, "settings", "", "Daemon settings file (YAML)")
	pf.BoolVar(&flags.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		newAddCmd(flags),
		newRemoveCmd(flags),
		newListCmd(flags),
		newExceptionCmd(flags),
		newDisplayCmd(flags),
		newSyncCmd(flags),
		newDaemonCmd(flags),
		newStartCmd(flags),
		newStatusCmd(flags),
		newVersionCmd(),
	)
	return rootCmd
}

// app wires settings to infrastructure for a single command invocation.
type app struct {
	mode     *infra.ExecModeConfig
	settings *infra.Settings
	flags    *rootFlags
	logger   *zap.Logger
}

func loadApp(cmd *cobra.Command, flags *rootFlags) (*app, error) {
	mode := infra.DetectExecMode()
	v := infra.NewSettingsViper(mode)

	pf := cmd.Root().PersistentFlags()
	for key, name := range map[string]string{
		infra.KeyConfigPath: "config",
		infra.KeyHostsPath:  "hosts",
		infra.KeyDebug:      "debug",
	} {
		if err := v.BindPFlag(key, pf.Lookup(name)); err != nil {
			return nil, err
		}
	}

	settings, err := infra.LoadSettings(v, flags.settingsFile, mode)
	if err != nil {
		return nil, err
	}

	return &app{
		mode:     mode,
		settings: settings,
		flags:    flags,
		logger:   infra.NewConsoleLogger(settings.Debug),
	}, nil
}

func (a *app) configStore() *infra.JSONConfigStore {
	return infra.NewJSONConfigStore(a.settings.ConfigPath)
}

func (a *app) hostsFile() *infra.HostsFileImpl {
	return infra.NewHostsFileWithPath(a.settings.HostsPath)
}

func (a *app) display() *infra.XrandrDisplay {
	return infra.NewXrandrDisplay(a.settings.DisplayCommand, a.settings.XDisplay, a.logger)
}

func (a *app) reconciler() *usecase.ReconcilerImpl {
	return usecase.NewReconciler(a.configStore(), a.hostsFile(), a.display(), a.logger)
}

func (a *app) registry() *infra.FileRegistry {
	return infra.NewFileRegistry(a.settings.DataDir, infra.NewProcessManager())
}

// openLedger opens the exception history. The ledger is optional: a
// failure is logged and the command proceeds without it.
func (a *app) openLedger() domain.ExceptionLedger {
	ledger, err := infra.OpenLedger(a.settings.DataDir)
	if err != nil {
		a.logger.Warn("exception history unavailable", zap.Error(err))
		return nil
	}
	return ledger
}

// ruleService returns the rule editor and a func releasing its ledger.
func (a *app) ruleService(withLedger bool) (*usecase.RuleService, func()) {
	var ledger domain.ExceptionLedger
	if withLedger {
		ledger = a.openLedger()
	}
	svc := usecase.NewRuleService(a.configStore(), ledger, a.logger)
	return svc, func() {
		if ledger != nil {
			_ = ledger.Close()
		}
	}
}

// applyHostsNow rewrites the hosts block right away so a change takes
// effect without waiting for the daemon. Failures are warnings only.
func (a *app) applyHostsNow(cmd *cobra.Command) {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	if _, err := a.reconciler().ReconcileHosts(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not update %s now: %v\n", a.settings.HostsPath, err)
		fmt.Fprintln(cmd.ErrOrStderr(), "         (the daemon will apply it on its next cycle)")
	}
}

func newVersionCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
		Run: func(cmd *cobra.Command, args []string) {
			runVersion(cmd, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	return cmd
}

func runVersion(cmd *cobra.Command, jsonOutput bool) {
	out := cmd.OutOrStdout()
	if jsonOutput {
		fmt.Fprintf(out, `{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Fprintf(out, "focus %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
