package horosafe

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
)

type fakeResolver map[string][]string

func (f fakeResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	addrs, ok := f[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return addrs, nil
}

func TestSafePath(t *testing.T) {
	tests := []struct {
		base, key string
		want      string
		wantErr   bool
	}{
		{"/data", "snapshots/s1.json", "/data/snapshots/s1.json", false},
		{"/data", "../etc/passwd", "", true},
		{"/data", "snapshots/../../outside", "", true},
		{"/data", "artifacts/a..b.txt", "/data/artifacts/a..b.txt", false},
		{"/data", "/abs/key", "/data/abs/key", false},
	}
	for _, tt := range tests {
		got, err := SafePath(tt.base, tt.key)
		if (err != nil) != tt.wantErr {
			t.Errorf("SafePath(%q, %q) error=%v, wantErr=%v", tt.base, tt.key, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("SafePath(%q, %q) = %q, want %q", tt.base, tt.key, got, tt.want)
		}
	}
}

func TestURLGuard_Check(t *testing.T) {
	g := URLGuard{Resolver: fakeResolver{
		"example.com":  {"93.184.216.34"},
		"internal.lan": {"10.1.2.3"},
	}}
	tests := []struct {
		url     string
		wantErr error
	}{
		{"https://example.com/pricing", nil},
		{"ftp://example.com/data", ErrUnsafeScheme},
		{"javascript:alert(1)", ErrUnsafeScheme},
		{"http://127.0.0.1/admin", ErrSSRF},
		{"http://10.0.0.1/internal", ErrSSRF},
		{"http://[::1]/api", ErrSSRF},
		{"http://169.254.169.254/latest/", ErrSSRF},
		{"http://localhost:8080/", ErrSSRF},
		{"http://internal.lan/", ErrSSRF},
		{"http://unresolvable.invalid/", nil},
	}
	for _, tt := range tests {
		err := g.Check(context.Background(), tt.url)
		if tt.wantErr == nil && err != nil {
			t.Errorf("Check(%q) unexpected error: %v", tt.url, err)
		}
		if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
			t.Errorf("Check(%q) error=%v, want %v", tt.url, err, tt.wantErr)
		}
	}
}

func TestURLGuard_AllowPrivate(t *testing.T) {
	g := URLGuard{AllowPrivate: true}
	if err := g.Check(context.Background(), "http://127.0.0.1:9000/"); err != nil {
		t.Fatalf("AllowPrivate should accept loopback: %v", err)
	}
	if err := g.Check(context.Background(), "file:///etc/passwd"); !errors.Is(err, ErrUnsafeScheme) {
		t.Fatalf("AllowPrivate must still reject schemes, got %v", err)
	}
}

func TestValidateIdentifier(t *testing.T) {
	for _, ok := range []string{"s1", "snap-2026.10.19_a", "20261019T120000Z_abc"} {
		if err := ValidateIdentifier(ok); err != nil {
			t.Errorf("ValidateIdentifier(%q): %v", ok, err)
		}
	}
	for _, bad := range []string{"", ".", "..", "../etc", "a/b", "has space", strings.Repeat("a", MaxIdentifierLen+1)} {
		if err := ValidateIdentifier(bad); !errors.Is(err, ErrInvalidIdentifier) {
			t.Errorf("ValidateIdentifier(%q) = %v, want ErrInvalidIdentifier", bad, err)
		}
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip      string
		private bool
	}{
		{"127.0.0.1", true},
		{"10.0.0.1", true},
		{"172.16.0.1", true},
		{"192.168.0.1", true},
		{"100.64.0.1", true},
		{"0.0.0.0", true},
		{"8.8.8.8", false},
		{"1.1.1.1", false},
		{"::1", true},
	}
	for _, tt := range tests {
		ip := net.ParseIP(tt.ip)
		if ip == nil {
			t.Fatalf("failed to parse IP %q", tt.ip)
		}
		if got := isPrivateIP(ip); got != tt.private {
			t.Errorf("isPrivateIP(%s) = %v, want %v", tt.ip, got, tt.private)
		}
	}
}
