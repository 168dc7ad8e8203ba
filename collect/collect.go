// CLAUDE:SUMMARY Batch collector: fetch each URL under a policy, snapshot successes, score against the previous capture, record everything in the ledger and telemetry.
// CLAUDE:DEPENDS fetch, snapshot, ledger, fetchlog, similarity, extract, idgen
// CLAUDE:EXPORTS Collector, New, Option, Report, Action
// Package collect runs a collection pass over a URL list. URLs are
// processed one at a time: the ledger has a single writer and the order of
// its entries is the order of the list.
package collect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/baseline/extract"
	"github.com/hazyhaar/baseline/fetch"
	"github.com/hazyhaar/baseline/fetchlog"
	"github.com/hazyhaar/baseline/idgen"
	"github.com/hazyhaar/baseline/ledger"
	"github.com/hazyhaar/baseline/similarity"
	"github.com/hazyhaar/baseline/snapshot"
)

// DefaultSimilarityThreshold is the score at or above which a capture is a
// near-duplicate of the previous one.
const DefaultSimilarityThreshold = 0.9

// Action is the ledger "action" of an entry written by the collector.
type Action string

const (
	ActionCapture     Action = "capture"
	ActionFetchFailed Action = "fetch_failed"
)

// Report summarizes what happened to one URL.
type Report struct {
	URL                string             `json:"url"`
	Outcome            fetch.Outcome      `json:"outcome"`
	StatusCode         int                `json:"status_code,omitempty"`
	SnapshotID         string             `json:"snapshot_id,omitempty"`
	PreviousSnapshotID string             `json:"previous_snapshot_id,omitempty"`
	Similarity         *similarity.Result `json:"similarity,omitempty"`
	NearDuplicate      bool               `json:"near_duplicate,omitempty"`
	EntryHash          string             `json:"entry_hash"`
	ErrorMessage       string             `json:"error,omitempty"`
}

// event is the ledger record of one fetch.
type event struct {
	Action        Action   `json:"action"`
	URL           string   `json:"url"`
	At            string   `json:"at"`
	Outcome       string   `json:"outcome"`
	StatusCode    int      `json:"status_code,omitempty"`
	FinalURL      string   `json:"final_url,omitempty"`
	RedirectChain []string `json:"redirect_chain,omitempty"`
	Bytes         int64    `json:"bytes"`
	DurationMs    int64    `json:"duration_ms"`
	ContentType   string   `json:"content_type,omitempty"`
	SnapshotID    string   `json:"snapshot_id,omitempty"`
	BodySHA256    string   `json:"body_sha256,omitempty"`
	PreviousID    string   `json:"previous_snapshot_id,omitempty"`
	Similarity    *float64 `json:"similarity,omitempty"`
	NearDuplicate bool     `json:"near_duplicate,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// Collector wires the fetcher to the stores. Not safe for concurrent Run
// calls against the same ledger.
type Collector struct {
	fetcher   *fetch.Fetcher
	snapshots *snapshot.Store
	ledger    *ledger.Store
	telemetry *fetchlog.Store
	extractor *extract.Extractor
	policy    fetch.Policy
	threshold float64
	newID     idgen.Generator
	now       func() time.Time
	logger    *slog.Logger

	// last snapshot id per URL captured by this collector
	last map[string]string
}

// Option configures a Collector.
type Option func(*Collector)

// WithPolicy sets the fetch policy. Default: fetch.DefaultPolicy().
func WithPolicy(p fetch.Policy) Option { return func(c *Collector) { c.policy = p } }

// WithThreshold sets the near-duplicate threshold.
func WithThreshold(t float64) Option {
	return func(c *Collector) {
		if t > 0 {
			c.threshold = t
		}
	}
}

// WithTelemetry records every attempt in fetch_log and uses it to find the
// previous capture of a URL across runs.
func WithTelemetry(s *fetchlog.Store) Option { return func(c *Collector) { c.telemetry = s } }

// WithExtractor sets how bodies are reduced before similarity scoring.
func WithExtractor(e *extract.Extractor) Option { return func(c *Collector) { c.extractor = e } }

// WithIDGenerator sets the snapshot id generator. Default: idgen.Snapshot.
func WithIDGenerator(g idgen.Generator) Option { return func(c *Collector) { c.newID = g } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(c *Collector) { c.now = now } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(c *Collector) { c.logger = l } }

// New creates a Collector.
func New(f *fetch.Fetcher, snaps *snapshot.Store, led *ledger.Store, opts ...Option) *Collector {
	c := &Collector{
		fetcher:   f,
		snapshots: snaps,
		ledger:    led,
		policy:    fetch.DefaultPolicy(),
		threshold: DefaultSimilarityThreshold,
		newID:     idgen.Snapshot,
		now:       time.Now,
		last:      make(map[string]string),
	}
	for _, o := range opts {
		o(c)
	}
	if c.extractor == nil {
		c.extractor = extract.New(extract.Options{})
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Run collects every URL in order. It stops at the first persistence error
// or when ctx is done, returning the reports completed so far.
func (c *Collector) Run(ctx context.Context, urls []string) ([]Report, error) {
	reports := make([]Report, 0, len(urls))
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		r, err := c.Collect(ctx, u)
		if err != nil {
			return reports, err
		}
		reports = append(reports, *r)
	}
	c.logger.Info("collect: run complete", "urls", len(urls), "reports", len(reports))
	return reports, nil
}

// Collect fetches one URL and records the result.
func (c *Collector) Collect(ctx context.Context, u string) (*Report, error) {
	res := c.fetcher.Fetch(ctx, u, c.policy)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	at := c.now().UTC()

	rep := &Report{URL: u, Outcome: res.Outcome, StatusCode: res.StatusCode, ErrorMessage: res.ErrorMessage}
	ev := event{
		Action:        ActionFetchFailed,
		URL:           u,
		At:            at.Format(time.RFC3339Nano),
		Outcome:       string(res.Outcome),
		StatusCode:    res.StatusCode,
		FinalURL:      res.FinalURL,
		RedirectChain: res.RedirectChain,
		Bytes:         res.Bytes,
		DurationMs:    res.DurationMs,
		ContentType:   res.ContentType,
		Error:         res.ErrorMessage,
	}

	if res.OK() {
		if err := c.capture(ctx, u, at, res, rep, &ev); err != nil {
			return nil, err
		}
	}

	// The snapshot is already on disk here. If the append fails it stays
	// unreferenced and is never used as a baseline.
	entry, err := c.ledger.Append(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("collect: %s: %w", u, err)
	}
	rep.EntryHash = entry.Hash()
	if rep.SnapshotID != "" {
		c.last[u] = rep.SnapshotID
	}

	if c.telemetry != nil {
		le := fetchlog.FromResult(u, res)
		le.SnapshotID = rep.SnapshotID
		le.FetchedAt = at.UnixMilli()
		if err := c.telemetry.Insert(ctx, le); err != nil {
			return nil, fmt.Errorf("collect: %s: %w", u, err)
		}
	}

	log := c.logger.With("url", u, "outcome", res.Outcome)
	if rep.SnapshotID != "" {
		log = log.With("snapshot_id", rep.SnapshotID, "near_duplicate", rep.NearDuplicate)
	}
	switch {
	case res.OK():
		log.Info("collect: captured")
	case res.Outcome.IsTransport():
		log.Warn("collect: no response", "error", res.ErrorMessage, "retryable", res.Retryable())
	default:
		log.Warn("collect: fetch failed", "status", res.StatusCode, "error", res.ErrorMessage, "retryable", res.Retryable())
	}
	return rep, nil
}

// capture writes the snapshot for a successful fetch, after scoring it
// against the previous capture of the same URL.
func (c *Collector) capture(ctx context.Context, u string, at time.Time, res *fetch.Result, rep *Report, ev *event) error {
	body := res.Body()
	sum := sha256.Sum256([]byte(body))
	ev.Action = ActionCapture
	ev.BodySHA256 = hex.EncodeToString(sum[:])

	meta := map[string]any{
		"statusCode":    res.StatusCode,
		"finalUrl":      res.FinalURL,
		"redirectChain": res.RedirectChain,
		"headers":       res.Headers,
		"contentType":   res.ContentType,
		"bytes":         res.Bytes,
		"durationMs":    res.DurationMs,
		"bodySha256":    ev.BodySHA256,
	}

	prev, err := c.previous(ctx, u)
	if err != nil {
		return err
	}
	if prev != nil {
		prevText := c.extractor.Text(metaString(prev.Metadata, "contentType"), prev.BodyText, prev.URL)
		curText := c.extractor.Text(res.ContentType, body, res.FinalURL)
		score := similarity.Compare(prevText, curText)
		near := score.Method == similarity.MethodJaccardLines && score.Score >= c.threshold

		rep.PreviousSnapshotID = prev.ID
		rep.Similarity = &score
		rep.NearDuplicate = near
		ev.PreviousID = prev.ID
		ev.Similarity = &score.Score
		ev.NearDuplicate = near
		meta["previousSnapshotId"] = prev.ID
		meta["similarity"] = map[string]any{"score": score.Score, "method": string(score.Method)}
		meta["nearDuplicate"] = near
	}

	snap, err := c.snapshots.Write(ctx, snapshot.Input{
		ID:         c.newID(),
		CapturedAt: at,
		URL:        u,
		BodyText:   body,
		Metadata:   meta,
	})
	if err != nil {
		return fmt.Errorf("collect: %s: %w", u, err)
	}
	rep.SnapshotID = snap.ID
	ev.SnapshotID = snap.ID
	return nil
}

// previous loads the last snapshot of u, from this run or from telemetry.
// A snapshot that has since disappeared is treated as no baseline.
func (c *Collector) previous(ctx context.Context, u string) (*snapshot.Snapshot, error) {
	id := c.last[u]
	if id == "" && c.telemetry != nil {
		e, err := c.telemetry.LastCapture(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("collect: %s: %w", u, err)
		}
		if e != nil {
			id = e.SnapshotID
		}
	}
	if id == "" {
		return nil, nil
	}

	snap, err := c.snapshots.Get(ctx, id)
	if errors.Is(err, snapshot.ErrNotFound) || errors.Is(err, snapshot.ErrInvalidID) {
		c.logger.Warn("collect: previous snapshot unavailable", "url", u, "snapshot_id", id, "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("collect: %s: %w", u, err)
	}
	if snap.BodyText == "" && snap.ArtifactPath != "" {
		if body, err := c.snapshots.ReadArtifact(ctx, snap); err == nil {
			snap.BodyText = body
		}
	}
	return snap, nil
}

func metaString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
