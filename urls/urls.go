// CLAUDE:SUMMARY Curated starter URL list: YAML catalog of base URLs and paths, normalized, filtered, sorted, written as JSON.
// CLAUDE:DEPENDS canon, blob, golang.org/x/net/idna, gopkg.in/yaml.v3
// CLAUDE:EXPORTS Catalog, DefaultCatalog, LoadCatalog, ParseCatalog, Generate, Normalize, IsSuspicious, WriteStarterList
// Package urls builds the curated starter list of public endpoints to
// baseline.
package urls

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/net/idna"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/baseline/blob"
	"github.com/hazyhaar/baseline/canon"
)

// StarterFile is the name of the generated list inside the output directory.
const StarterFile = "starter-1000.json"

//go:embed catalog.yaml
var defaultCatalog []byte

// ErrEmptyCatalog is returned when a catalog declares no endpoints.
var ErrEmptyCatalog = errors.New("urls: catalog has no endpoints")

// Catalog maps a base URL to the paths to capture under it.
type Catalog struct {
	Endpoints map[string][]string `yaml:"endpoints"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() Catalog {
	cat, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic("urls: embedded catalog: " + err.Error())
	}
	return cat
}

// LoadCatalog reads a YAML catalog file.
func LoadCatalog(p string) (Catalog, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return Catalog{}, fmt.Errorf("urls: read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog.
func ParseCatalog(data []byte) (Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return Catalog{}, fmt.Errorf("urls: parse catalog: %w", err)
	}
	if len(cat.Endpoints) == 0 {
		return Catalog{}, ErrEmptyCatalog
	}
	return cat, nil
}

// Generate expands cat into a deduplicated, filtered list in byte order.
// The result depends only on the catalog contents.
func Generate(cat Catalog) ([]string, error) {
	seen := make(map[string]struct{})
	out := []string{}
	for base, paths := range cat.Endpoints {
		for _, p := range paths {
			u, err := Normalize(base, p)
			if err != nil {
				return nil, err
			}
			if _, dup := seen[u]; dup || IsSuspicious(u) {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	slices.Sort(out)
	return out, nil
}

// Normalize joins p onto base and returns the absolute URL with a
// lower-case ASCII host and no trailing slash.
func Normalize(base, p string) (string, error) {
	b, err := url.Parse(strings.TrimSuffix(base, "/") + "/")
	if err != nil {
		return "", fmt.Errorf("urls: base %q: %w", base, err)
	}
	if b.Scheme != "http" && b.Scheme != "https" || b.Host == "" {
		return "", fmt.Errorf("urls: base %q: not an absolute http(s) URL", base)
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	ref, err := url.Parse(p)
	if err != nil {
		return "", fmt.Errorf("urls: path %q: %w", p, err)
	}

	u := b.ResolveReference(ref)
	u.Scheme = strings.ToLower(u.Scheme)
	host, err := asciiHost(u.Host)
	if err != nil {
		return "", fmt.Errorf("urls: host %q: %w", u.Host, err)
	}
	u.Host = host
	return strings.TrimSuffix(u.String(), "/"), nil
}

func asciiHost(hostport string) (string, error) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = hostport, ""
	}
	ascii, err := idna.Lookup.ToASCII(strings.ToLower(host))
	if err != nil {
		return "", err
	}
	if port != "" {
		return net.JoinHostPort(ascii, port), nil
	}
	return ascii, nil
}

var (
	baselineSegment = regexp.MustCompile(`(?i)/baseline-`)
	numericTail     = regexp.MustCompile(`\d{3,}$`)
)

// IsSuspicious flags generated-looking URLs: a /baseline- segment, or a
// last path segment ending in three or more digits.
func IsSuspicious(u string) bool {
	if baselineSegment.MatchString(u) {
		return true
	}
	last := u[strings.LastIndex(u, "/")+1:]
	return numericTail.MatchString(last)
}

// WriteStarterList writes list as indented JSON to dir/StarterFile and
// returns the written path.
func WriteStarterList(ctx context.Context, backend blob.Store, dir string, list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	text, err := canon.Serialize(list)
	if err != nil {
		return "", fmt.Errorf("urls: serialize list: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(text), "", "  "); err != nil {
		return "", fmt.Errorf("urls: indent list: %w", err)
	}

	dir = filepath.ToSlash(dir)
	if err := backend.EnsureDir(ctx, dir); err != nil {
		return "", fmt.Errorf("urls: write starter list: %w", err)
	}
	out := path.Join(dir, StarterFile)
	if err := backend.WriteFile(ctx, out, buf.Bytes()); err != nil {
		return "", fmt.Errorf("urls: write starter list: %w", err)
	}
	return out, nil
}
