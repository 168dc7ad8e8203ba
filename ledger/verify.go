package ledger

import (
	"context"
	"fmt"

	"github.com/hazyhaar/baseline/blob"
)

// Verification failure messages.
const (
	MsgPrevHashMismatch = "prev_entry_hash mismatch"
	MsgHashMismatch     = "entry_hash mismatch"
)

// VerifyResult is the outcome of walking a ledger.
type VerifyResult struct {
	OK      bool         `json:"ok"`
	Entries int          `json:"entries"`
	Error   *VerifyError `json:"error,omitempty"`
}

// VerifyError locates the first broken link. Index is zero-based.
type VerifyError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("ledger: entry %d: %s", e.Index, e.Message)
}

// Verify walks the ledger in order and stops at the first entry whose
// predecessor link or own hash does not match. The returned error is only
// for storage failures; integrity failures are reported in the result.
func (s *Store) Verify(ctx context.Context) (VerifyResult, error) {
	lines, err := s.lines(ctx)
	if err != nil {
		return VerifyResult{}, err
	}

	var prev *string
	for i, line := range lines {
		e, err := parseEntry(line)
		if err != nil {
			return fail(i, "parse error: "+err.Error()), nil
		}

		link, present := e[PrevHashField]
		switch {
		case !present:
			return fail(i, MsgPrevHashMismatch), nil
		case prev == nil && link != nil:
			return fail(i, MsgPrevHashMismatch), nil
		case prev != nil && link != *prev:
			return fail(i, MsgPrevHashMismatch), nil
		}

		stored, ok := e[HashField].(string)
		rest := make(Entry, len(e))
		for k, v := range e {
			if k != HashField {
				rest[k] = v
			}
		}
		computed, err := s.hash(rest)
		if err != nil || !ok || computed != stored {
			return fail(i, MsgHashMismatch), nil
		}
		prev = &stored
	}
	return VerifyResult{OK: true, Entries: len(lines)}, nil
}

// Verify checks the ledger at p on backend.
func Verify(ctx context.Context, backend blob.Store, p string, opts ...Option) (VerifyResult, error) {
	return New(backend, p, opts...).Verify(ctx)
}

// VerifyFile checks a ledger file on the local filesystem.
func VerifyFile(ctx context.Context, p string, opts ...Option) (VerifyResult, error) {
	return Verify(ctx, blob.NewFS(""), p, opts...)
}

func fail(i int, msg string) VerifyResult {
	return VerifyResult{Entries: i, Error: &VerifyError{Index: i, Message: msg}}
}
