package fetch

import (
	"fmt"
	"regexp"
	"time"
)

const (
	DefaultMaxRedirects = 5
	DefaultMaxBytes     = 5 << 20
	DefaultTimeout      = 15 * time.Second
)

// DefaultContentTypes are the allowed content-type patterns when a policy
// sets none.
var DefaultContentTypes = []string{
	`^text/`,
	`^application/(json|xml|javascript)`,
}

var defaultMatchers = MustContentTypes(DefaultContentTypes...)

// Policy bounds one fetch. Build it from DefaultPolicy and override fields:
// MaxRedirects and MaxBytes are honoured as given, so zero means no
// redirects and no body. A zero Timeout or nil AllowedContentTypes fall back
// to the defaults. A Policy is read, never modified, by Fetch.
type Policy struct {
	MaxRedirects        int
	MaxBytes            int64
	Timeout             time.Duration
	AllowedContentTypes []*regexp.Regexp
}

// DefaultPolicy returns the default policy with every field populated.
func DefaultPolicy() Policy {
	return Policy{
		MaxRedirects:        DefaultMaxRedirects,
		MaxBytes:            DefaultMaxBytes,
		Timeout:             DefaultTimeout,
		AllowedContentTypes: defaultMatchers,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxRedirects < 0 {
		p.MaxRedirects = 0
	}
	if p.MaxBytes < 0 {
		p.MaxBytes = 0
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if p.AllowedContentTypes == nil {
		p.AllowedContentTypes = defaultMatchers
	}
	return p
}

// Allows reports whether contentType matches one of the allowed patterns,
// tried in order. A missing content type is never allowed.
func (p Policy) Allows(contentType string) bool {
	if contentType == "" {
		return false
	}
	for _, re := range p.withDefaults().AllowedContentTypes {
		if re.MatchString(contentType) {
			return true
		}
	}
	return false
}

// ContentTypes compiles case-insensitive content-type patterns.
func ContentTypes(patterns ...string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("fetch: content type pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// MustContentTypes is ContentTypes that panics on a bad pattern.
func MustContentTypes(patterns ...string) []*regexp.Regexp {
	out, err := ContentTypes(patterns...)
	if err != nil {
		panic(err)
	}
	return out
}
