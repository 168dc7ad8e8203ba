package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/baseline/blob"
	"github.com/hazyhaar/baseline/dbopen"

	_ "modernc.org/sqlite"
)

var fixed = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func TestWrite_RoundTrip(t *testing.T) {
	// WHAT: The artifact holds the body and latest.json equals the s1 record.
	// WHY: These two files are what downstream diffing reads.
	root := t.TempDir()
	s := New(blob.NewFS(""), root, WithClock(func() time.Time { return fixed }))

	snap, err := s.Write(context.Background(), Input{ID: "s1", URL: "https://example.com", BodyText: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if snap.ArtifactPath != filepath.ToSlash(filepath.Join(root, "artifacts", "s1.txt")) {
		t.Fatalf("artifact path = %q", snap.ArtifactPath)
	}
	body, err := os.ReadFile(snap.ArtifactPath)
	if err != nil || string(body) != "hello" {
		t.Fatalf("artifact = %q, %v", body, err)
	}
	if !snap.CapturedAt.Equal(fixed) {
		t.Fatalf("captured at = %v", snap.CapturedAt)
	}

	record, err := os.ReadFile(filepath.Join(root, "snapshots", "s1.json"))
	if err != nil {
		t.Fatal(err)
	}
	latest, err := os.ReadFile(filepath.Join(root, "snapshots", "latest.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(record) != string(latest) {
		t.Fatalf("latest differs from s1:\n%s\n%s", latest, record)
	}
	if !strings.HasPrefix(string(record), "{\n  \"id\": \"s1\",") || strings.HasSuffix(string(record), "\n") {
		t.Fatalf("record not pretty-printed as expected:\n%s", record)
	}
}

func TestWrite_NoArtifactWithoutBody(t *testing.T) {
	root := t.TempDir()
	s := New(blob.NewFS(""), root)
	snap, err := s.Write(context.Background(), Input{ID: "empty", URL: "https://example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if snap.ArtifactPath != "" {
		t.Fatalf("artifact path = %q", snap.ArtifactPath)
	}
	if _, err := os.Stat(filepath.Join(root, "artifacts")); !os.IsNotExist(err) {
		t.Fatal("artifacts dir created for a bodiless snapshot")
	}
	if _, err := s.ReadArtifact(context.Background(), snap); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ReadArtifact: got %v", err)
	}
}

func TestWrite_LastWriterWins(t *testing.T) {
	s := New(blob.NewFS(""), t.TempDir())
	ctx := context.Background()
	if _, err := s.Write(ctx, Input{ID: "dup", BodyText: "one"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Write(ctx, Input{ID: "other", BodyText: "two"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Write(ctx, Input{ID: "dup", BodyText: "three", Metadata: map[string]any{"n": 3}}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "dup")
	if err != nil {
		t.Fatal(err)
	}
	if got.BodyText != "three" || got.Metadata["n"] != float64(3) {
		t.Fatalf("dup = %+v", got)
	}
	latest, err := s.Latest(ctx)
	if err != nil || latest.ID != "dup" {
		t.Fatalf("latest = %+v, %v", latest, err)
	}
	body, err := s.ReadArtifact(ctx, latest)
	if err != nil || body != "three" {
		t.Fatalf("artifact = %q, %v", body, err)
	}
}

func TestWrite_RejectsInvalidIDs(t *testing.T) {
	// WHAT: Ids that would escape the layout or shadow the pointer are rejected.
	// WHY: The id becomes a file name.
	s := New(blob.NewFS(""), t.TempDir())
	for _, id := range []string{"", "latest", "../x", "a/b", "..", "with space"} {
		if _, err := s.Write(context.Background(), Input{ID: id, BodyText: "x"}); !errors.Is(err, ErrInvalidID) {
			t.Errorf("Write(%q): got %v, want ErrInvalidID", id, err)
		}
	}
}

func TestGet_NotFound(t *testing.T) {
	s := New(blob.NewFS(""), t.TempDir())
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get: got %v", err)
	}
	if _, err := s.Latest(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Latest: got %v", err)
	}
}

func TestStore_SQLiteBackend(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(blob.SQLiteSchema))
	s := New(blob.NewSQLite(db), "data")
	ctx := context.Background()

	snap, err := s.Write(ctx, Input{ID: "s1", URL: "https://example.com", BodyText: "<b>hello & bye</b>"})
	if err != nil {
		t.Fatal(err)
	}
	if snap.ArtifactPath != "data/artifacts/s1.txt" {
		t.Fatalf("artifact path = %q", snap.ArtifactPath)
	}
	got, err := s.Get(ctx, "s1")
	if err != nil || got.BodyText != "<b>hello & bye</b>" || got.URL != "https://example.com" {
		t.Fatalf("get = %+v, %v", got, err)
	}
	body, err := s.ReadArtifact(ctx, got)
	if err != nil || body != "<b>hello & bye</b>" {
		t.Fatalf("artifact = %q, %v", body, err)
	}
}
