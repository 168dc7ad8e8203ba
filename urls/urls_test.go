package urls

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/hazyhaar/baseline/blob"
)

func TestGenerate_DefaultCatalog(t *testing.T) {
	// WHAT: The built-in catalog yields a sorted, duplicate-free list.
	// WHY: The starter list is committed; regeneration must not churn it.
	list, err := Generate(DefaultCatalog())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 86 {
		t.Fatalf("len = %d, want 86", len(list))
	}
	if !slices.IsSorted(list) {
		t.Fatal("list not sorted")
	}
	if list[0] != "https://digitalocean.com" || list[len(list)-1] != "https://vercel.com/terms" {
		t.Fatalf("bounds = %q .. %q", list[0], list[len(list)-1])
	}
	seen := map[string]bool{}
	for _, u := range list {
		if seen[u] {
			t.Fatalf("duplicate %q", u)
		}
		seen[u] = true
		if strings.HasSuffix(u, "/") {
			t.Fatalf("trailing slash in %q", u)
		}
		if strings.Contains(strings.ToLower(u), "/baseline-") {
			t.Fatalf("suspicious url %q", u)
		}
	}

	again, _ := Generate(DefaultCatalog())
	if !slices.Equal(list, again) {
		t.Fatal("Generate is not deterministic")
	}
}

func TestGenerate_FiltersAndDedupes(t *testing.T) {
	cat := Catalog{Endpoints: map[string][]string{
		"https://Example.COM/": {"/", "docs", "/docs/", "/baseline-check", "/page/12345", "/v2"},
		"https://bücher.example": {"/"},
	}}
	list, err := Generate(cat)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"https://example.com", "https://example.com/docs", "https://example.com/v2", "https://xn--bcher-kva.example"}
	if !slices.Equal(list, want) {
		t.Fatalf("list = %v\nwant %v", list, want)
	}
}

func TestGenerate_BadBase(t *testing.T) {
	if _, err := Generate(Catalog{Endpoints: map[string][]string{"not a url": {"/"}}}); err == nil {
		t.Fatal("expected error for relative base")
	}
}

func TestIsSuspicious(t *testing.T) {
	for u, want := range map[string]bool{
		"https://a.com/Baseline-1":  true,
		"https://a.com/post/2024":   true,
		"https://a.com/v12":         false,
		"https://a.com/docs":        false,
		"https://a.com/123/pricing": false,
	} {
		if got := IsSuspicious(u); got != want {
			t.Errorf("IsSuspicious(%q) = %v, want %v", u, got, want)
		}
	}
}

func TestParseCatalog(t *testing.T) {
	cat, err := ParseCatalog([]byte("endpoints:\n  https://a.com: [/x, /y]\n"))
	if err != nil || len(cat.Endpoints["https://a.com"]) != 2 {
		t.Fatalf("catalog = %+v, %v", cat, err)
	}
	if _, err := ParseCatalog([]byte("endpoints: {}\n")); !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("empty: got %v", err)
	}
	if _, err := ParseCatalog([]byte("endpoints: [")); err == nil {
		t.Fatal("expected yaml error")
	}
}

func TestLoadCatalog(t *testing.T) {
	p := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(p, []byte("endpoints:\n  https://a.com: [/]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cat, err := LoadCatalog(p)
	if err != nil {
		t.Fatal(err)
	}
	list, _ := Generate(cat)
	if !slices.Equal(list, []string{"https://a.com"}) {
		t.Fatalf("list = %v", list)
	}
}

func TestWriteStarterList(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "urls")
	out, err := WriteStarterList(context.Background(), blob.NewFS(""), dir, []string{"https://a.com", "https://a.com/x?a=1&b=2"})
	if err != nil {
		t.Fatal(err)
	}
	if out != filepath.ToSlash(filepath.Join(dir, StarterFile)) {
		t.Fatalf("path = %q", out)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := "[\n  \"https://a.com\",\n  \"https://a.com/x?a=1&b=2\"\n]"
	if string(data) != want {
		t.Fatalf("content = %q, want %q", data, want)
	}
	var back []string
	if err := json.Unmarshal(data, &back); err != nil || len(back) != 2 {
		t.Fatalf("decode = %v, %v", back, err)
	}
}

func TestWriteStarterList_Empty(t *testing.T) {
	dir := t.TempDir()
	out, err := WriteStarterList(context.Background(), blob.NewFS(""), dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(out)
	if string(data) != "[]" {
		t.Fatalf("content = %q", data)
	}
}
