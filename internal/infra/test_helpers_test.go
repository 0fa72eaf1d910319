package infra

import (
	"context"
	"os"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	runningPIDs map[int]bool
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		runningPIDs: make(map[int]bool),
	}
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessManager) SetRunning(pid int, running bool) {
	m.runningPIDs[pid] = running
}

// fakeRunner records commands and replays canned output
type fakeRunner struct {
	output   map[string][]byte
	errs     map[string]error
	commands [][]string
	envs     [][]string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{output: map[string][]byte{}, errs: map[string]error{}}
}

func (f *fakeRunner) key(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func (f *fakeRunner) Output(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	f.commands = append(f.commands, append([]string{name}, args...))
	f.envs = append(f.envs, env)
	return f.output[f.key(args)], f.errs[f.key(args)]
}

func (f *fakeRunner) Start(env []string, name string, args ...string) error {
	f.commands = append(f.commands, append([]string{name}, args...))
	f.envs = append(f.envs, env)
	return f.errs[f.key(args)]
}

// Ensure test doubles implement their interfaces
var (
	_ domain.ProcessManager = (*mockProcessManager)(nil)
	_ CommandRunner         = (*fakeRunner)(nil)
)
