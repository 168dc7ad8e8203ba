// Package idgen provides pluggable ID generation for snapshots, telemetry
// rows and ledger records.
//
// Constructors across the toolkit (snapshot ids in collect, row ids in
// fetchlog) accept a Generator so tests can pin ids.
package idgen

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// NanoID returns a Generator that produces base-36 IDs of the given length.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range buf {
			buf[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(buf)
	}
}

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends a fixed prefix to every ID (e.g. "fl_" for fetch log rows).
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Timestamped returns a Generator that produces IDs in the format
// "20060102T150405Z_<suffix>". Lexical order follows capture time, which
// keeps snapshots/ listings chronological.
func Timestamped(gen Generator) Generator {
	return TimestampedAt(time.Now, gen)
}

// TimestampedAt is Timestamped with an explicit clock.
func TimestampedAt(now func() time.Time, gen Generator) Generator {
	return func() string {
		return now().UTC().Format("20060102T150405Z") + "_" + gen()
	}
}

// Sequence returns a deterministic Generator yielding prefix1, prefix2, ...
// Not safe for concurrent use; meant for tests and replay.
func Sequence(prefix string) Generator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

// Default is UUIDv7: time-sortable, globally unique.
var Default Generator = UUIDv7()

// Snapshot is the default snapshot id strategy: timestamp plus a short
// random suffix, always a valid single file-name component.
var Snapshot Generator = Timestamped(NanoID(8))
