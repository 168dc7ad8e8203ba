// CLAUDE:SUMMARY Safety guards for the collection toolkit: outbound URL checks (SSRF), storage key containment, snapshot identifiers.
// Package horosafe provides the safety primitives the collection toolkit
// applies at its boundaries: outbound URL checks before a fetch or redirect
// hop, containment of storage keys under a root directory, and validation of
// caller-supplied identifiers that become file names.
package horosafe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strings"
)

// ErrPathTraversal is returned when a storage key escapes its root.
var ErrPathTraversal = errors.New("horosafe: path traversal detected")

// ErrSSRF is returned when a URL targets a private/loopback address.
var ErrSSRF = errors.New("horosafe: URL targets a private or loopback address")

// ErrUnsafeScheme is returned when a URL uses a non-HTTP(S) scheme.
var ErrUnsafeScheme = errors.New("horosafe: only http and https schemes are allowed")

// ErrInvalidIdentifier is returned by ValidateIdentifier.
var ErrInvalidIdentifier = errors.New("horosafe: invalid identifier")

// MaxIdentifierLen bounds identifiers used as file names.
const MaxIdentifierLen = 200

var privateNets = mustCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"100.64.0.0/10",
	"169.254.0.0/16",
	"fc00::/7",
	"::1/128",
)

// Resolver is the subset of *net.Resolver used by URLGuard.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// URLGuard validates outbound URLs. The zero value resolves hostnames with
// net.DefaultResolver and rejects private destinations.
type URLGuard struct {
	Resolver     Resolver
	AllowPrivate bool
}

// Check verifies that rawURL uses http/https, has a host, and (unless
// AllowPrivate) does not point at a private or loopback address. Hostnames
// are resolved so that internal names are caught too. A resolution failure is
// not a guard failure: the fetch itself reports it as a dns outcome.
func (g URLGuard) Check(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("horosafe: invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrUnsafeScheme
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("horosafe: URL has no host")
	}
	if g.AllowPrivate {
		return nil
	}

	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return ErrSSRF
		}
		return nil
	}
	if strings.EqualFold(host, "localhost") {
		return ErrSSRF
	}

	r := g.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	addrs, err := r.LookupHost(ctx, host)
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && isPrivateIP(ip) {
			return ErrSSRF
		}
	}
	return nil
}

// SafePath joins key under base and verifies the result stays under base.
// Keys containing ".." segments are rejected outright.
func SafePath(base, key string) (string, error) {
	for _, seg := range strings.FieldsFunc(key, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return "", ErrPathTraversal
		}
	}
	root := filepath.Clean(base)
	cleaned := filepath.Join(root, filepath.Clean("/"+key))
	if cleaned != root && !strings.HasPrefix(cleaned, root+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return cleaned, nil
}

// ValidateIdentifier rejects identifiers that are unsuitable as a single
// file-name component: empty, too long, dot-only, or containing anything
// outside [A-Za-z0-9._-].
func ValidateIdentifier(s string) error {
	if s == "" {
		return fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	}
	if len(s) > MaxIdentifierLen {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidIdentifier, MaxIdentifierLen)
	}
	if strings.Trim(s, ".") == "" {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	for _, r := range s {
		if !isIdentChar(r) {
			return fmt.Errorf("%w: character %q", ErrInvalidIdentifier, r)
		}
	}
	return nil
}

func isIdentChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsUnspecified() {
		return true
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	for _, n := range privateNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func mustCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic("horosafe: bad CIDR " + c)
		}
		out = append(out, n)
	}
	return out
}
