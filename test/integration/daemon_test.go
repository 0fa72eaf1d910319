//go:build integration

package integration

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
	"github.com/eliteGoblin/focusd/site_mon/internal/infra"
	"github.com/eliteGoblin/focusd/site_mon/internal/usecase"
	"github.com/eliteGoblin/focusd/site_mon/test/fixtures"
)

// windowAround returns a rule window that contains the current wall-clock time.
func windowAround(t time.Time) (string, string) {
	return t.Add(-time.Hour).Format("15:04"), t.Add(time.Hour).Format("15:04")
}

var _ = Describe("Watcher daemon", func() {
	var (
		env      *fixtures.FocusEnv
		rules    *usecase.RuleService
		registry *infra.FileRegistry
		backup   *infra.HostsBackup
		cancel   context.CancelFunc
		done     chan error
	)

	BeforeEach(func() {
		tmpDir, err := os.MkdirTemp("", "focus-daemon-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, tmpDir)

		env, err = fixtures.NewFocusEnv(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		logger := zap.NewNop()
		store := infra.NewJSONConfigStore(env.ConfigPath)
		rules = usecase.NewRuleService(store, nil, logger)
		registry = infra.NewFileRegistry(env.DataDir, infra.NewProcessManager())
		backup = infra.NewHostsBackup(env.DataDir, logger)

		configWatcher, err := infra.NewConfigWatcher(env.ConfigPath, logger)
		Expect(err).NotTo(HaveOccurred())

		reconciler := usecase.NewReconciler(
			store,
			infra.NewHostsFileWithPath(env.HostsPath),
			infra.NewXrandrDisplay(env.XrandrPath, ":7", logger),
			logger,
		)
		watcher := daemon.NewWatcher(
			daemon.WatcherConfig{
				// Long enough that only config changes can explain a quick rewrite
				ReconcileInterval: time.Minute,
				HeartbeatInterval: 100 * time.Millisecond,
				HostsPath:         env.HostsPath,
			},
			reconciler,
			registry,
			backup,
			configWatcher.Changes(),
			domain.Daemon{PID: os.Getpid(), Role: domain.RoleWatcher, StartedAt: time.Now(), AppVersion: "test"},
			logger,
		)

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		go configWatcher.Run(ctx)
		done = make(chan error, 1)
		go func() { done <- watcher.Run(ctx) }()

		DeferCleanup(func() {
			cancel()
			Eventually(done, 2*time.Second).Should(Receive(MatchError(context.Canceled)))
		})
	})

	It("should register itself and back up the original hosts file", func() {
		Eventually(func() bool {
			alive, _ := registry.IsAlive()
			return alive
		}, 2*time.Second).Should(BeTrue())

		var info *infra.HostsBackupInfo
		Eventually(func() error {
			var err error
			info, err = backup.Info()
			return err
		}, 2*time.Second).Should(Succeed())
		Expect(info.SourcePath).To(Equal(env.HostsPath))

		original, err := os.ReadFile(info.BackupPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(original)).To(Equal(fixtures.BaseHosts))
	})

	It("should apply a new rule as soon as the config file changes", func() {
		start, end := windowAround(time.Now())
		_, err := rules.AddRule("youtube", start, end)
		Expect(err).NotTo(HaveOccurred())

		Eventually(env.ReadHosts, 3*time.Second, 50*time.Millisecond).
			Should(ContainSubstring("127.0.0.1 youtube.com"))

		Eventually(func() []string {
			entry, err := registry.GetAll()
			if err != nil || entry == nil {
				return nil
			}
			return entry.BlockedDomains
		}, 2*time.Second).Should(ConsistOf("youtube.com"))
	})

	It("should lift the block when the rule is removed", func() {
		start, end := windowAround(time.Now())
		_, err := rules.AddRule("reddit", start, end)
		Expect(err).NotTo(HaveOccurred())
		Eventually(env.ReadHosts, 3*time.Second, 50*time.Millisecond).
			Should(ContainSubstring("reddit.com"))

		_, _, err = rules.RemoveRule("reddit")
		Expect(err).NotTo(HaveOccurred())
		Eventually(env.ReadHosts, 3*time.Second, 50*time.Millisecond).
			Should(Equal(fixtures.BaseHosts))
	})
})
