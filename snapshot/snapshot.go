// CLAUDE:SUMMARY Snapshot store: per-id JSON record, raw body artifact, and a latest pointer, over a blob backend.
// CLAUDE:DEPENDS blob, horosafe
// CLAUDE:EXPORTS Store, New, Snapshot, Input, ErrNotFound, ErrInvalidID
// Package snapshot persists point-in-time captures. Layout under the root:
//
//	artifacts/<id>.txt     raw body text, only when a body was captured
//	snapshots/<id>.json    the snapshot record, pretty-printed
//	snapshots/latest.json  copy of the most recently written record
//
// Writing an existing id overwrites it (last writer wins).
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"time"

	"github.com/hazyhaar/baseline/blob"
	"github.com/hazyhaar/baseline/horosafe"
)

// LatestName is the pointer record's base name; it is not a valid id.
const LatestName = "latest"

var (
	// ErrNotFound is returned when a snapshot or artifact does not exist.
	ErrNotFound = errors.New("snapshot: not found")
	// ErrInvalidID is returned for ids that cannot be used as file names.
	ErrInvalidID = errors.New("snapshot: invalid id")
)

// Snapshot is one persisted capture.
type Snapshot struct {
	ID           string         `json:"id"`
	CapturedAt   time.Time      `json:"capturedAt"`
	URL          string         `json:"url"`
	BodyText     string         `json:"bodyText,omitempty"`
	Metadata     map[string]any `json:"metadata"`
	ArtifactPath string         `json:"artifactPath,omitempty"`
}

// Input is what the caller supplies; the store derives ArtifactPath.
type Input struct {
	ID         string
	CapturedAt time.Time // zero: the store's clock
	URL        string
	BodyText   string
	Metadata   map[string]any
}

// Store reads and writes snapshots on a blob backend.
type Store struct {
	backend blob.Store
	root    string
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now for CapturedAt defaults.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New returns a Store rooted at root on backend.
func New(backend blob.Store, root string, opts ...Option) *Store {
	s := &Store{backend: backend, root: filepath.ToSlash(root), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func (s *Store) snapshotsDir() string { return path.Join(s.root, "snapshots") }
func (s *Store) artifactsDir() string { return path.Join(s.root, "artifacts") }

func (s *Store) snapshotKey(name string) string {
	return path.Join(s.snapshotsDir(), name+".json")
}

// ValidateID reports whether id can name a snapshot.
func ValidateID(id string) error {
	if id == LatestName {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidID, id)
	}
	if err := horosafe.ValidateIdentifier(id); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidID, err)
	}
	return nil
}

// Write persists in: the artifact first (when a body is present), then the
// record, then the latest pointer.
func (s *Store) Write(ctx context.Context, in Input) (*Snapshot, error) {
	if err := ValidateID(in.ID); err != nil {
		return nil, err
	}
	snap := &Snapshot{
		ID:         in.ID,
		CapturedAt: in.CapturedAt,
		URL:        in.URL,
		BodyText:   in.BodyText,
		Metadata:   in.Metadata,
	}
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = s.now().UTC()
	}
	if snap.Metadata == nil {
		snap.Metadata = map[string]any{}
	}

	if err := s.backend.EnsureDir(ctx, s.snapshotsDir()); err != nil {
		return nil, fmt.Errorf("snapshot: write %s: %w", in.ID, err)
	}
	if in.BodyText != "" {
		if err := s.backend.EnsureDir(ctx, s.artifactsDir()); err != nil {
			return nil, fmt.Errorf("snapshot: write %s: %w", in.ID, err)
		}
		key := path.Join(s.artifactsDir(), in.ID+".txt")
		if err := s.backend.WriteFile(ctx, key, []byte(in.BodyText)); err != nil {
			return nil, fmt.Errorf("snapshot: write artifact %s: %w", in.ID, err)
		}
		snap.ArtifactPath = key
	}

	data, err := encode(snap)
	if err != nil {
		return nil, err
	}
	if err := s.backend.WriteFile(ctx, s.snapshotKey(in.ID), data); err != nil {
		return nil, fmt.Errorf("snapshot: write %s: %w", in.ID, err)
	}
	if err := s.backend.WriteFile(ctx, s.snapshotKey(LatestName), data); err != nil {
		return nil, fmt.Errorf("snapshot: write latest: %w", err)
	}

	s.logger.Debug("snapshot: written", "id", snap.ID, "url", snap.URL, "artifact", snap.ArtifactPath)
	return snap, nil
}

// Get reads the snapshot with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Snapshot, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	return s.read(ctx, s.snapshotKey(id))
}

// Latest reads the most recently written snapshot.
func (s *Store) Latest(ctx context.Context) (*Snapshot, error) {
	return s.read(ctx, s.snapshotKey(LatestName))
}

// ReadArtifact returns the raw body stored for snap.
func (s *Store) ReadArtifact(ctx context.Context, snap *Snapshot) (string, error) {
	if snap.ArtifactPath == "" {
		return "", fmt.Errorf("%w: snapshot %s has no artifact", ErrNotFound, snap.ID)
	}
	data, err := s.backend.ReadFile(ctx, snap.ArtifactPath)
	if errors.Is(err, blob.ErrNotFound) {
		return "", fmt.Errorf("%w: artifact %s", ErrNotFound, snap.ArtifactPath)
	}
	if err != nil {
		return "", fmt.Errorf("snapshot: read artifact: %w", err)
	}
	return string(data), nil
}

func (s *Store) read(ctx context.Context, key string) (*Snapshot, error) {
	data, err := s.backend.ReadFile(ctx, key)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", key, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("snapshot: decode %s: %w", key, err)
	}
	return &snap, nil
}

// encode renders snap as two-space indented JSON without HTML escaping and
// without a trailing newline.
func encode(snap *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return nil, fmt.Errorf("snapshot: encode %s: %w", snap.ID, err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
