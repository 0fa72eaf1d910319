package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// StartDaemon spawns "<self> daemon <args...>" detached from the terminal
// and returns its PID.
func StartDaemon(args ...string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, err
	}
	return StartDaemonWithPath(executable, args...)
}

// StartDaemonWithPath spawns the daemon from a specific binary.
func StartDaemonWithPath(executable string, args ...string) (int, error) {
	cmd := exec.Command(executable, append([]string{"daemon"}, args...)...)

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session (detach from terminal)
	}

	// No stdin/stdout/stderr - fully detached
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon: %w", err)
	}
	return cmd.Process.Pid, nil
}
