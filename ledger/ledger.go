// CLAUDE:SUMMARY Append-only JSONL ledger where each entry carries the hash of its predecessor and its own canonical hash.
// CLAUDE:DEPENDS canon, blob, golang.org/x/crypto/blake2b
// CLAUDE:EXPORTS Store, New, Entry, Verify, VerifyFile, VerifyResult, VerifyError, Digest
// Package ledger keeps an append-only record of collection events. Every
// entry links to the previous one through prev_entry_hash and is sealed by
// entry_hash, the digest of the canonical serialization of the entry
// without that field. Editing, reordering or deleting any line breaks the
// chain at or after the change.
//
// A Store has no internal locking: one writer per ledger path.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"

	"github.com/hazyhaar/baseline/blob"
	"github.com/hazyhaar/baseline/canon"
)

// Reserved entry fields. Caller values under these keys are overwritten.
const (
	PrevHashField = "prev_entry_hash"
	HashField     = "entry_hash"
)

// ErrNotObject is returned by Append when fields do not encode to a JSON object.
var ErrNotObject = errors.New("ledger: fields must encode to a JSON object")

// Entry is one ledger record as read back from storage. Numbers are
// json.Number so that rehashing reproduces the stored digest.
type Entry map[string]any

// PrevHash returns the predecessor link, nil for the first entry.
func (e Entry) PrevHash() *string {
	if s, ok := e[PrevHashField].(string); ok {
		return &s
	}
	return nil
}

// Hash returns the entry's own digest.
func (e Entry) Hash() string {
	s, _ := e[HashField].(string)
	return s
}

// String returns v as a string field, "" when absent or not a string.
func (e Entry) String(key string) string {
	s, _ := e[key].(string)
	return s
}

// Store appends to and reads one ledger.
type Store struct {
	backend blob.Store
	path    string
	digest  Digest
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithDigest selects the chaining digest. Default: SHA256.
func WithDigest(d Digest) Option {
	return func(s *Store) { s.digest = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New binds a Store to a path on backend.
func New(backend blob.Store, p string, opts ...Option) *Store {
	s := &Store{backend: backend, path: p, digest: SHA256}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Path returns the ledger location on its backend.
func (s *Store) Path() string { return s.path }

// Append seals fields into a new entry chained to the current tail and
// appends it as one line. fields may be a map or a struct; it is normalized
// through JSON first, so what is hashed is exactly what will be read back.
func (s *Store) Append(ctx context.Context, fields any) (Entry, error) {
	entry, err := normalize(fields)
	if err != nil {
		return nil, err
	}

	if err := s.backend.EnsureDir(ctx, path.Dir(filepath.ToSlash(s.path))); err != nil {
		return nil, fmt.Errorf("ledger: append: %w", err)
	}
	tail, err := s.tail(ctx)
	if err != nil {
		return nil, err
	}

	delete(entry, HashField)
	if tail != nil {
		entry[PrevHashField] = tail.Hash()
	} else {
		entry[PrevHashField] = nil
	}
	sum, err := s.hash(entry)
	if err != nil {
		return nil, err
	}
	entry[HashField] = sum

	line, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("ledger: encode entry: %w", err)
	}
	if err := s.backend.AppendLine(ctx, s.path, line); err != nil {
		return nil, fmt.Errorf("ledger: append: %w", err)
	}
	s.logger.Debug("ledger: appended", "path", s.path, "entry_hash", sum)
	return entry, nil
}

// ReadEntries returns every entry in order. A ledger that was never
// written is empty, not an error.
func (s *Store) ReadEntries(ctx context.Context) ([]Entry, error) {
	lines, err := s.lines(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(lines))
	for i, line := range lines {
		e, err := parseEntry(line)
		if err != nil {
			return nil, fmt.Errorf("ledger: entry %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// tail parses only the last entry.
func (s *Store) tail(ctx context.Context) (Entry, error) {
	lines, err := s.lines(ctx)
	if err != nil || len(lines) == 0 {
		return nil, err
	}
	e, err := parseEntry(lines[len(lines)-1])
	if err != nil {
		return nil, fmt.Errorf("ledger: tail entry %d: %w", len(lines)-1, err)
	}
	return e, nil
}

func (s *Store) lines(ctx context.Context) ([][]byte, error) {
	data, err := s.backend.ReadFile(ctx, s.path)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: read: %w", err)
	}
	var out [][]byte
	for line := range bytes.SplitSeq(data, []byte("\n")) {
		if len(line) > 0 {
			out = append(out, line)
		}
	}
	return out, nil
}

func (s *Store) hash(entry Entry) (string, error) {
	text, err := canon.Serialize(map[string]any(entry))
	if err != nil {
		return "", fmt.Errorf("ledger: canonicalize: %w", err)
	}
	return s.digest.Sum([]byte(text)), nil
}

func normalize(fields any) (Entry, error) {
	if fields == nil {
		return Entry{}, nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("ledger: encode fields: %w", err)
	}
	e, err := parseEntry(raw)
	if err != nil {
		return nil, ErrNotObject
	}
	return e, nil
}

func parseEntry(line []byte) (Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var e Entry
	if err := dec.Decode(&e); err != nil {
		return nil, err
	}
	if e == nil {
		return nil, errors.New("entry is null")
	}
	if dec.More() {
		return nil, errors.New("trailing data after entry")
	}
	return e, nil
}
