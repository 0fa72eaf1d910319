package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// BlockAddress is the address blocked domains resolve to.
const BlockAddress = "127.0.0.1"

// MergeHosts rewrites the managed block of a hosts file.
//
// Lines outside the markers are kept verbatim and in order. Every marker pair
// and everything between them is dropped; an unterminated block runs to EOF,
// and a stray end marker is dropped on its own. A fresh block listing each
// domain and its www form is appended when blocked is non-empty.
// changed reports whether the result differs from current, ignoring
// surrounding whitespace.
func MergeHosts(current string, blocked []string) (content string, changed bool) {
	lines := make([]string, 0, strings.Count(current, "\n")+2*len(blocked)+3)
	inBlock := false

	for _, line := range splitLines(current) {
		switch strings.TrimSpace(line) {
		case domain.MarkerStart:
			inBlock = true
			continue
		case domain.MarkerEnd:
			inBlock = false
			continue
		}
		if !inBlock {
			lines = append(lines, line)
		}
	}

	if len(blocked) > 0 {
		lines = append(lines, domain.MarkerStart)
		for _, d := range blocked {
			lines = append(lines,
				BlockAddress+" "+d,
				BlockAddress+" www."+d)
		}
		lines = append(lines, domain.MarkerEnd)
	}

	content = strings.Join(lines, "\n")
	if content != "" {
		content += "\n"
	}
	return content, strings.TrimSpace(content) != strings.TrimSpace(current)
}

// splitLines splits on LF, tolerating CRLF, without a phantom last line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// HostsReconciler applies a block set to the hosts file.
type HostsReconciler struct {
	hosts  domain.HostsFile
	logger *zap.Logger
}

// NewHostsReconciler creates a hosts reconciler.
func NewHostsReconciler(hosts domain.HostsFile, logger *zap.Logger) *HostsReconciler {
	return &HostsReconciler{hosts: hosts, logger: logger}
}

// Reconcile writes the hosts file only when the managed block must change.
func (h *HostsReconciler) Reconcile(ctx context.Context, blocked []string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	current, err := h.hosts.Read()
	if err != nil {
		return false, fmt.Errorf("%w: read %s: %v", domain.ErrFileAccess, h.hosts.Path(), err)
	}

	content, changed := MergeHosts(current, blocked)
	if !changed {
		return false, nil
	}

	if err := h.hosts.Write(content); err != nil {
		return false, fmt.Errorf("%w: write %s (run as root?): %v", domain.ErrFileAccess, h.hosts.Path(), err)
	}

	h.logger.Info("hosts file updated",
		zap.String("path", h.hosts.Path()),
		zap.Strings("blocked", blocked))
	return true, nil
}
