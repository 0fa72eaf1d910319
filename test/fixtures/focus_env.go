// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BaseHosts is the unmanaged hosts content a fresh FocusEnv starts with.
const BaseHosts = "127.0.0.1 localhost\n::1 localhost\n"

// FocusEnv is a throwaway directory holding everything a focus process
// touches: rule config, hosts file, data dir and a fake xrandr.
type FocusEnv struct {
	Root       string
	ConfigPath string
	HostsPath  string
	DataDir    string
	LogPath    string
	XrandrPath string
	XrandrLog  string
}

// NewFocusEnv lays out a FocusEnv under root.
func NewFocusEnv(root string) (*FocusEnv, error) {
	env := &FocusEnv{
		Root:       root,
		ConfigPath: filepath.Join(root, "etc", "config.json"),
		HostsPath:  filepath.Join(root, "etc", "hosts"),
		DataDir:    filepath.Join(root, "data"),
		LogPath:    filepath.Join(root, "focus.log"),
		XrandrPath: filepath.Join(root, "bin", "xrandr"),
		XrandrLog:  filepath.Join(root, "xrandr.log"),
	}

	for _, dir := range []string{filepath.Dir(env.ConfigPath), env.DataDir, filepath.Dir(env.XrandrPath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	if err := os.WriteFile(env.HostsPath, []byte(BaseHosts), 0644); err != nil {
		return nil, err
	}
	if err := env.WriteFakeXrandr("eDP-1", "HDMI-1"); err != nil {
		return nil, err
	}
	return env, nil
}

// WriteFakeXrandr installs a shell script that reports the given outputs as
// connected for "--current" and appends every other invocation to XrandrLog.
func (e *FocusEnv) WriteFakeXrandr(outputs ...string) error {
	var current strings.Builder
	current.WriteString("Screen 0: minimum 8 x 8, current 1920 x 1080\n")
	for _, o := range outputs {
		fmt.Fprintf(&current, "%s connected primary 1920x1080+0+0\n", o)
	}
	current.WriteString("DP-2 disconnected (normal left inverted right x axis y axis)\n")

	script := fmt.Sprintf(`#!/bin/sh
if [ "$1" = "--current" ]; then
cat <<'OUT'
%sOUT
exit 0
fi
echo "$DISPLAY $*" >> %q
`, current.String(), e.XrandrLog)
	return os.WriteFile(e.XrandrPath, []byte(script), 0755)
}

// ReadHosts returns the current hosts file content.
func (e *FocusEnv) ReadHosts() string {
	data, err := os.ReadFile(e.HostsPath)
	if err != nil {
		return ""
	}
	return string(data)
}

// XrandrCalls returns the logged xrandr invocations, one per line.
func (e *FocusEnv) XrandrCalls() []string {
	data, err := os.ReadFile(e.XrandrLog)
	if err != nil {
		return nil
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}
