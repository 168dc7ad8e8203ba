// CLAUDE:SUMMARY Policy-bounded HTTP GET: manual redirects, chain-wide deadline, content-type gate, byte cap, outcome classification.
// CLAUDE:DEPENDS golang.org/x/text/encoding/unicode
// CLAUDE:EXPORTS Fetcher, New, Option, Doer, Result, Policy, Outcome, Classify
// Package fetch retrieves one URL under a Policy and reports what happened
// as a Result. Every failure mode is an Outcome on the Result; Fetch never
// panics on network conditions and never returns a Go error.
//
// Redirects are followed manually so that each hop is recorded and can be
// checked by the URL validator. One deadline covers the whole redirect chain
// and the body read.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
)

// DefaultUserAgent is sent when no WithUserAgent option is given.
const DefaultUserAgent = "baseline-collector/1.0"

// HeaderWhitelist lists the response headers kept on a Result, lower-cased.
var HeaderWhitelist = []string{"etag", "last-modified", "cache-control", "content-type", "content-length"}

// Doer is the network capability a Fetcher needs. Implementations must not
// follow redirects themselves; *http.Client from NewClient satisfies this.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Result is the record of one fetch.
type Result struct {
	Outcome       Outcome           `json:"outcome"`
	StatusCode    int               `json:"statusCode,omitempty"`
	FinalURL      string            `json:"finalUrl,omitempty"`
	RedirectChain []string          `json:"redirectChain"`
	Headers       map[string]string `json:"headers"`
	BodyText      *string           `json:"bodyText,omitempty"`
	Bytes         int64             `json:"bytes"`
	ContentType   string            `json:"contentType,omitempty"`
	DurationMs    int64             `json:"durationMs"`
	ErrorMessage  string            `json:"errorMessage,omitempty"`
}

// OK reports a successful fetch.
func (r *Result) OK() bool { return r.Outcome == OutcomeSuccess }

// Body returns the decoded body, or "" when none was read.
func (r *Result) Body() string {
	if r.BodyText == nil {
		return ""
	}
	return *r.BodyText
}

// Retryable reports whether a later attempt could plausibly succeed:
// transport failures, 5xx responses and 429.
func (r *Result) Retryable() bool {
	if r.Outcome == OutcomeHTTPError {
		return r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests
	}
	return r.Outcome.Retryable()
}

// Fetcher performs policy-bounded GET requests. It holds no per-request
// state and is safe for concurrent use.
type Fetcher struct {
	client    Doer
	userAgent string
	validate  func(context.Context, string) error
	logger    *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets the network capability. Default: NewClient().
func WithClient(d Doer) Option {
	return func(f *Fetcher) { f.client = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithURLValidator installs a check run on the initial URL and on every
// redirect target. A rejection ends the fetch as blocked.
func WithURLValidator(fn func(context.Context, string) error) Option {
	return func(f *Fetcher) { f.validate = fn }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// NewClient returns an *http.Client that hands redirect responses back to
// the caller instead of following them.
func NewClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{userAgent: DefaultUserAgent}
	for _, o := range opts {
		o(f)
	}
	if f.client == nil {
		f.client = NewClient()
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

var errTooLarge = errors.New("fetch: body exceeds max bytes")

// Fetch retrieves rawURL under p.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, p Policy) *Result {
	p = p.withDefaults()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	res := &Result{RedirectChain: []string{}, Headers: map[string]string{}}
	res.Outcome = f.run(ctx, rawURL, p, res)
	res.DurationMs = time.Since(start).Milliseconds()

	f.logger.Debug("fetch: done",
		"url", rawURL,
		"outcome", res.Outcome,
		"status", res.StatusCode,
		"redirects", len(res.RedirectChain),
		"bytes", res.Bytes,
		"duration_ms", res.DurationMs,
	)
	return res
}

func (f *Fetcher) run(ctx context.Context, rawURL string, p Policy, res *Result) Outcome {
	current := rawURL
	for hop := 0; ; hop++ {
		if f.validate != nil {
			if err := f.validate(ctx, current); err != nil {
				res.ErrorMessage = err.Error()
				return OutcomeBlocked
			}
		}

		resp, err := f.do(ctx, current)
		if err != nil {
			res.ErrorMessage = err.Error()
			return f.transportOutcome(ctx, err)
		}

		loc := resp.Header.Get("Location")
		if isRedirect(resp.StatusCode) && loc != "" {
			discard(resp.Body)
			if hop >= p.MaxRedirects {
				res.ErrorMessage = fmt.Sprintf("too many redirects (max %d)", p.MaxRedirects)
				return OutcomeBlocked
			}
			next, err := resolve(current, loc)
			if err != nil {
				res.ErrorMessage = err.Error()
				return OutcomeNetworkError
			}
			res.RedirectChain = append(res.RedirectChain, next)
			current = next
			continue
		}

		return f.finish(ctx, resp, current, p, res)
	}
}

func (f *Fetcher) do(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	return f.client.Do(req)
}

// finish handles a terminal (non-redirect) response.
func (f *Fetcher) finish(ctx context.Context, resp *http.Response, finalURL string, p Policy, res *Result) Outcome {
	defer resp.Body.Close()
	res.StatusCode = resp.StatusCode
	res.FinalURL = finalURL
	res.Headers = normalizeHeaders(resp.Header)

	ct := res.Headers["content-type"]
	if !p.Allows(ct) {
		res.ErrorMessage = fmt.Sprintf("content type %q not allowed", ct)
		return OutcomeSkippedContentType
	}

	body, n, err := readLimited(resp.Body, p.MaxBytes)
	res.Bytes = n
	switch {
	case errors.Is(err, errTooLarge):
		res.ErrorMessage = err.Error()
		return OutcomeMaxBytesExceeded
	case err != nil:
		res.ErrorMessage = err.Error()
		return f.transportOutcome(ctx, err)
	}

	text := decodeText(body)
	res.BodyText = &text
	res.ContentType = ct
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return OutcomeHTTPError
	}
	return OutcomeSuccess
}

// transportOutcome prefers the deadline over whatever error the transport
// surfaced when it was cut off.
func (f *Fetcher) transportOutcome(ctx context.Context, err error) Outcome {
	if ctx.Err() != nil {
		return OutcomeTimeout
	}
	return Classify(err)
}

// isRedirect covers the whole 3xx range; a response without Location is
// terminal regardless.
func isRedirect(code int) bool {
	return code >= 300 && code < 400
}

func resolve(base, loc string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("fetch: parse %q: %w", base, err)
	}
	l, err := url.Parse(loc)
	if err != nil {
		return "", fmt.Errorf("fetch: invalid redirect location %q: %w", loc, err)
	}
	return b.ResolveReference(l).String(), nil
}

func normalizeHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(HeaderWhitelist))
	for _, k := range HeaderWhitelist {
		if v := h.Values(k); len(v) > 0 {
			out[k] = strings.Join(v, ", ")
		}
	}
	return out
}

// readLimited reads r to EOF in chunks. Once more than max bytes have been
// consumed it stops and returns errTooLarge with the count so far.
func readLimited(r io.Reader, limit int64) ([]byte, int64, error) {
	var (
		body []byte
		n    int64
		buf  = make([]byte, 32<<10)
	)
	for {
		k, err := r.Read(buf)
		if k > 0 {
			n += int64(k)
			if n > limit {
				return nil, n, fmt.Errorf("%w (%d > %d)", errTooLarge, n, limit)
			}
			body = append(body, buf[:k]...)
		}
		if err == io.EOF {
			return body, n, nil
		}
		if err != nil {
			return nil, n, err
		}
	}
}

// decodeText decodes UTF-8 without failing: a leading BOM is stripped and
// invalid sequences become U+FFFD.
func decodeText(b []byte) string {
	out, err := unicode.UTF8BOM.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "\uFFFD")
	}
	return string(out)
}

func discard(body io.ReadCloser) {
	_, _ = io.CopyN(io.Discard, body, 4<<10)
	body.Close()
}
