package policy

import (
	"fmt"
	"strings"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// DefaultTLD is appended to bare names such as "youtube".
const DefaultTLD = ".com"

// NormalizeDomain canonicalizes user input into the form stored in rules.
//
//	"YouTube"                      -> "youtube.com"
//	"https://www.reddit.com/r/go"  -> "reddit.com"
//	"news.ycombinator.com."        -> "news.ycombinator.com"
//
// A leading "www." is dropped because the hosts block always emits both the
// bare and the www form. It is kept when nothing but a TLD would remain, so
// "www.com" stays "www.com".
func NormalizeDomain(raw string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(raw))

	if _, rest, ok := strings.Cut(d, "://"); ok {
		d = rest
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if host, port, ok := strings.Cut(d, ":"); ok && isDigits(port) {
		d = host
	}
	d = strings.TrimSuffix(d, ".")
	for {
		rest, ok := strings.CutPrefix(d, "www.")
		if !ok || !strings.Contains(rest, ".") {
			break
		}
		d = rest
	}

	if d == "" {
		return "", fmt.Errorf("%w: empty domain %q", domain.ErrValidation, raw)
	}
	if !strings.Contains(d, ".") {
		d += DefaultTLD
	}

	for _, label := range strings.Split(d, ".") {
		if err := validateLabel(label); err != nil {
			return "", fmt.Errorf("%w: invalid domain %q: %v", domain.ErrValidation, raw, err)
		}
	}
	if len(d) > 253 {
		return "", fmt.Errorf("%w: domain %q too long", domain.ErrValidation, raw)
	}
	return d, nil
}

func validateLabel(label string) error {
	if label == "" {
		return fmt.Errorf("empty label")
	}
	if len(label) > 63 {
		return fmt.Errorf("label %q longer than 63 characters", label)
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return fmt.Errorf("label %q starts or ends with '-'", label)
	}
	for _, r := range label {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
			return fmt.Errorf("character %q not allowed", r)
		}
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
