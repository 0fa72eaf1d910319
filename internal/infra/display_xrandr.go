package infra

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// Color transformation matrices passed to "xrandr --set CTM".
const (
	GrayscaleMatrix = "0.2126, 0.7152, 0.0722, 0.2126, 0.7152, 0.0722, 0.2126, 0.7152, 0.0722"
	NormalMatrix    = "1, 0, 0, 0, 1, 0, 0, 0, 1"
)

const (
	DefaultDisplayCommand = "xrandr"
	DefaultXDisplay       = ":0"
)

// CommandRunner abstracts command execution for testing
type CommandRunner interface {
	// Output runs a command to completion and returns its stdout.
	Output(ctx context.Context, env []string, name string, args ...string) ([]byte, error)
	// Start launches a command without waiting for it.
	Start(env []string, name string, args ...string) error
}

// RealCommandRunner executes real system commands
type RealCommandRunner struct{}

// Output executes a command and returns its stdout
func (r *RealCommandRunner) Output(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	return cmd.Output()
}

// Start launches a command and reaps it in the background
func (r *RealCommandRunner) Start(env []string, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Env = append(os.Environ(), env...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// XrandrDisplay implements domain.DisplayController with xrandr's CTM property.
type XrandrDisplay struct {
	command   string
	xDisplay  string
	cmdRunner CommandRunner
	logger    *zap.Logger
}

// NewXrandrDisplay creates a display controller. Empty arguments take the defaults.
func NewXrandrDisplay(command, xDisplay string, logger *zap.Logger) *XrandrDisplay {
	return NewXrandrDisplayWithRunner(command, xDisplay, logger, &RealCommandRunner{})
}

// NewXrandrDisplayWithRunner creates a controller with an injectable runner (for testing)
func NewXrandrDisplayWithRunner(command, xDisplay string, logger *zap.Logger, runner CommandRunner) *XrandrDisplay {
	if command == "" {
		command = DefaultDisplayCommand
	}
	if xDisplay == "" {
		xDisplay = DefaultXDisplay
	}
	return &XrandrDisplay{
		command:   command,
		xDisplay:  xDisplay,
		cmdRunner: runner,
		logger:    logger,
	}
}

func (x *XrandrDisplay) env() []string {
	return []string{"DISPLAY=" + x.xDisplay}
}

// ListDisplays returns the names of connected outputs.
func (x *XrandrDisplay) ListDisplays(ctx context.Context) ([]string, error) {
	out, err := x.cmdRunner.Output(ctx, x.env(), x.command, "--current")
	if err != nil {
		return nil, fmt.Errorf("%s --current: %w", x.command, err)
	}
	return ParseConnectedOutputs(out), nil
}

// SetGrayscale launches xrandr to set the color matrix of one output.
// The command is not awaited; a failure shows up on a later cycle.
func (x *XrandrDisplay) SetGrayscale(ctx context.Context, display string, enabled bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	matrix := NormalMatrix
	if enabled {
		matrix = GrayscaleMatrix
	}
	if err := x.cmdRunner.Start(x.env(), x.command, "--output", display, "--set", "CTM", matrix); err != nil {
		return fmt.Errorf("%s --output %s: %w", x.command, display, err)
	}
	x.logger.Debug("display matrix set",
		zap.String("display", display),
		zap.Bool("grayscale", enabled))
	return nil
}

// ParseConnectedOutputs extracts output names from "xrandr --current" output.
func ParseConnectedOutputs(out []byte) []string {
	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, " connected") {
			continue
		}
		if fields := strings.Fields(line); len(fields) > 0 {
			names = append(names, fields[0])
		}
	}
	return names
}

// Ensure XrandrDisplay implements domain.DisplayController.
var _ domain.DisplayController = (*XrandrDisplay)(nil)
