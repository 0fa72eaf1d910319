//go:build integration

package integration

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
	"github.com/eliteGoblin/focusd/site_mon/internal/infra"
	"github.com/eliteGoblin/focusd/site_mon/internal/usecase"
	"github.com/eliteGoblin/focusd/site_mon/test/fixtures"
)

var _ = Describe("Reconcile against real files", func() {
	var (
		env        *fixtures.FocusEnv
		now        time.Time
		store      *infra.JSONConfigStore
		rules      *usecase.RuleService
		reconciler *usecase.ReconcilerImpl
	)

	clock := func() time.Time { return now }

	BeforeEach(func() {
		tmpDir, err := os.MkdirTemp("", "focus-integration-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, tmpDir)

		env, err = fixtures.NewFocusEnv(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local)
		store = infra.NewJSONConfigStore(env.ConfigPath)
		rules = usecase.NewRuleServiceWithClock(store, nil, clock, zap.NewNop())
		display := infra.NewXrandrDisplay(env.XrandrPath, ":7", zap.NewNop())
		reconciler = usecase.NewReconcilerWithClock(store, infra.NewHostsFileWithPath(env.HostsPath), display, clock, zap.NewNop())
	})

	Context("with no config file", func() {
		It("should leave the hosts file untouched", func() {
			result, err := reconciler.Reconcile(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(result.BlockedDomains).To(BeEmpty())
			Expect(result.HostsChanged).To(BeFalse())
			Expect(env.ReadHosts()).To(Equal(fixtures.BaseHosts))
		})
	})

	Context("when a rule is active", func() {
		BeforeEach(func() {
			_, err := rules.AddRule("youtube", "09:00", "17:00")
			Expect(err).NotTo(HaveOccurred())
			_, err = rules.AddRule("https://www.reddit.com/r/golang", "09:00", "17:00")
			Expect(err).NotTo(HaveOccurred())
		})

		It("should write one managed block after the original lines", func() {
			result, err := reconciler.Reconcile(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(result.HostsChanged).To(BeTrue())
			Expect(result.BlockedDomains).To(ConsistOf("youtube.com", "reddit.com"))

			hosts := env.ReadHosts()
			Expect(hosts).To(HavePrefix(fixtures.BaseHosts))
			Expect(hosts).To(ContainSubstring(domain.MarkerStart))
			Expect(hosts).To(ContainSubstring("127.0.0.1 youtube.com\n"))
			Expect(hosts).To(ContainSubstring("127.0.0.1 www.youtube.com\n"))
			Expect(hosts).To(ContainSubstring("127.0.0.1 reddit.com\n"))
			Expect(hosts).To(HaveSuffix(domain.MarkerEnd + "\n"))
		})

		It("should be idempotent across cycles", func() {
			_, err := reconciler.Reconcile(context.Background())
			Expect(err).NotTo(HaveOccurred())
			first := env.ReadHosts()

			result, err := reconciler.Reconcile(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(result.HostsChanged).To(BeFalse())
			Expect(env.ReadHosts()).To(Equal(first))
		})

		It("should restore the original hosts once the window closes", func() {
			_, err := reconciler.Reconcile(context.Background())
			Expect(err).NotTo(HaveOccurred())

			now = now.Add(8 * time.Hour)
			result, err := reconciler.Reconcile(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(result.BlockedDomains).To(BeEmpty())
			Expect(env.ReadHosts()).To(Equal(fixtures.BaseHosts))
		})

		It("should lift a domain during its exception and block it again after", func() {
			_, err := reconciler.Reconcile(context.Background())
			Expect(err).NotTo(HaveOccurred())

			outcome, err := rules.GrantException("youtube.com", 15)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Remaining).To(Equal(uint(1)))

			result, err := reconciler.Reconcile(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(result.BlockedDomains).To(ConsistOf("reddit.com"))
			Expect(env.ReadHosts()).NotTo(ContainSubstring("youtube.com"))

			now = now.Add(16 * time.Minute)
			result, err = reconciler.Reconcile(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(result.BlockedDomains).To(ConsistOf("youtube.com", "reddit.com"))
		})
	})

	Context("when the hosts file already has a managed block", func() {
		It("should replace stale blocks instead of stacking them", func() {
			stale := fixtures.BaseHosts +
				domain.MarkerStart + "\n127.0.0.1 old.com\n" + domain.MarkerEnd + "\n" +
				"10.0.0.5 nas.lan\n" +
				domain.MarkerStart + "\n127.0.0.1 older.com\n" + domain.MarkerEnd + "\n"
			Expect(os.WriteFile(env.HostsPath, []byte(stale), 0644)).To(Succeed())

			_, err := reconciler.Reconcile(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(env.ReadHosts()).To(Equal(fixtures.BaseHosts + "10.0.0.5 nas.lan\n"))
		})
	})

	Describe("display", func() {
		It("should drive every connected output through xrandr", func() {
			Expect(rules.SetManualDisplay(true)).To(Succeed())

			result, err := reconciler.Reconcile(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(result.DisplayTarget).To(BeTrue())
			Expect(result.DisplayApplied).To(BeTrue())

			Eventually(env.XrandrCalls).Should(ConsistOf(
				":7 --output eDP-1 --set CTM "+infra.GrayscaleMatrix,
				":7 --output HDMI-1 --set CTM "+infra.GrayscaleMatrix,
			))
			Expect(reconciler.DisplayState()).To(Equal(domain.DisplayGrayscale))
		})

		It("should report a missing tool and still write the hosts file", func() {
			Expect(os.Remove(env.XrandrPath)).To(Succeed())
			_, err := rules.AddRule("youtube", "09:00", "17:00")
			Expect(err).NotTo(HaveOccurred())

			result, err := reconciler.Reconcile(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(result.DisplayErr).To(HaveOccurred())
			Expect(result.HostsChanged).To(BeTrue())
			Expect(reconciler.DisplayState()).To(Equal(domain.DisplayUnknown))
		})
	})
})
