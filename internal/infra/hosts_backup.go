package infra

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const (
	hostsBackupName     = "hosts.orig"
	hostsBackupMetaName = "hosts.orig.json"
)

// HostsBackupInfo describes the saved copy of the hosts file.
type HostsBackupInfo struct {
	SourcePath string `json:"source_path"`
	BackupPath string `json:"backup_path"`
	SHA256     string `json:"sha256"`
	CreatedAt  int64  `json:"created_at"`
}

// HostsBackup keeps a one-time copy of the hosts file as it was before the
// daemon first managed it.
type HostsBackup struct {
	dir    string
	logger *zap.Logger
}

// NewHostsBackup creates a backup manager storing copies in dir.
func NewHostsBackup(dir string, logger *zap.Logger) *HostsBackup {
	return &HostsBackup{dir: dir, logger: logger}
}

// EnsureBackup copies hostsPath into the backup directory unless a backup
// already exists. It reports whether a new backup was taken.
func (b *HostsBackup) EnsureBackup(hostsPath string) (bool, error) {
	if _, err := b.Info(); err == nil {
		return false, nil
	}
	if _, err := os.Stat(hostsPath); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	if err := os.MkdirAll(b.dir, 0700); err != nil {
		return false, fmt.Errorf("failed to create backup directory: %w", err)
	}
	backupPath := filepath.Join(b.dir, hostsBackupName)
	if err := copyFile(hostsPath, backupPath); err != nil {
		return false, fmt.Errorf("failed to copy %s: %w", hostsPath, err)
	}
	sum, err := computeSHA256(backupPath)
	if err != nil {
		return false, fmt.Errorf("failed to hash backup: %w", err)
	}

	info := HostsBackupInfo{
		SourcePath: hostsPath,
		BackupPath: backupPath,
		SHA256:     sum,
		CreatedAt:  time.Now().Unix(),
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(filepath.Join(b.dir, hostsBackupMetaName), data, 0600); err != nil {
		return false, fmt.Errorf("failed to write backup metadata: %w", err)
	}

	b.logger.Info("hosts file backed up",
		zap.String("source", hostsPath),
		zap.String("backup", backupPath))
	return true, nil
}

// Info returns the backup metadata after checking the copy is intact.
func (b *HostsBackup) Info() (*HostsBackupInfo, error) {
	data, err := os.ReadFile(filepath.Join(b.dir, hostsBackupMetaName))
	if err != nil {
		return nil, err
	}
	var info HostsBackupInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("corrupt backup metadata: %w", err)
	}
	sum, err := computeSHA256(info.BackupPath)
	if err != nil {
		return nil, err
	}
	if sum != info.SHA256 {
		return nil, fmt.Errorf("backup %s checksum mismatch", info.BackupPath)
	}
	return &info, nil
}

// computeSHA256 calculates SHA256 hash of a file
func computeSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// copyFile copies src to dst via a synced temp file and rename.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	tmpFile, err := os.CreateTemp(filepath.Dir(dst), ".focus-copy-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err = io.Copy(tmpFile, sourceFile); err != nil {
		tmpFile.Close()
		return err
	}
	if err = tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return err
	}
	tmpFile.Close()

	if err = os.Rename(tmpPath, dst); err != nil {
		return err
	}
	success = true
	return nil
}
