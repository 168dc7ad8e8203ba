// CLAUDE:SUMMARY Byte-oriented persistence capability (ensure-dir, read, append-line, write) with filesystem and SQLite backends.
// Package blob is the persistence capability consumed by the ledger and the
// snapshot store. Keys are slash-separated paths; a backend decides whether
// they map to files on disk or rows in a key/value table.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by ReadFile when nothing was ever written at path.
var ErrNotFound = errors.New("blob: not found")

// ErrInvalidLine is returned by AppendLine when the line would break the
// one-record-per-line layout.
var ErrInvalidLine = errors.New("blob: line must not contain a newline")

// Store is the persistence capability.
type Store interface {
	// EnsureDir makes dir available for subsequent writes.
	EnsureDir(ctx context.Context, dir string) error
	// ReadFile returns the whole content at path, or ErrNotFound.
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// AppendLine appends line plus a trailing '\n' in a single write.
	AppendLine(ctx context.Context, path string, line []byte) error
	// WriteFile replaces the content at path.
	WriteFile(ctx context.Context, path string, data []byte) error
}

func checkLine(line []byte) error {
	if bytes.ContainsAny(line, "\r\n") {
		return ErrInvalidLine
	}
	return nil
}

func notFound(path string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, path)
}
