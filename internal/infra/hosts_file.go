package infra

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// DefaultHostsPath is the system hosts file.
const DefaultHostsPath = "/etc/hosts"

// HostsFileImpl implements domain.HostsFile on a real file.
type HostsFileImpl struct {
	path string
}

// NewHostsFile creates a hosts file accessor for /etc/hosts.
func NewHostsFile() *HostsFileImpl {
	return NewHostsFileWithPath(DefaultHostsPath)
}

// NewHostsFileWithPath creates a hosts file accessor at a custom path (for testing).
func NewHostsFileWithPath(path string) *HostsFileImpl {
	return &HostsFileImpl{path: path}
}

// Path returns the hosts file path.
func (h *HostsFileImpl) Path() string {
	return h.path
}

// Read returns the file content. A missing file reads as empty.
func (h *HostsFileImpl) Read() (string, error) {
	data, err := os.ReadFile(h.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", h.path, err)
	}
	return string(data), nil
}

// Write replaces the file content in place, keeping its mode and inode.
// /etc/hosts is often a bind mount where rename is not possible.
func (h *HostsFileImpl) Write(content string) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(h.path); err == nil {
		mode = info.Mode().Perm()
	} else if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(h.path), 0755); err != nil {
			return fmt.Errorf("create hosts directory: %w", err)
		}
	}

	f, err := os.OpenFile(h.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("open %s: %w", h.path, err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", h.path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", h.path, err)
	}
	return f.Close()
}

// Ensure HostsFileImpl implements domain.HostsFile.
var _ domain.HostsFile = (*HostsFileImpl)(nil)
