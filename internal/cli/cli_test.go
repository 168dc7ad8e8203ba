package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, extra string) string {
	t.Helper()
	p := filepath.Join(dir, "baseline.yaml")
	yml := fmt.Sprintf("data_dir: %s\nallow_private: true\nlog_level: error\n%s", dir, extra)
	if err := os.WriteFile(p, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCollectThenVerify(t *testing.T) {
	// WHAT: collect writes reports and a ledger that verify accepts; a tampered ledger fails.
	// WHY: End-to-end path of the CLI over real stores.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<p>hello</p>")
	}))
	defer srv.Close()

	for _, backend := range []string{"fs", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			cfg := writeConfig(t, dir, "backend: "+backend+"\n")

			out, err := run(t, "--config", cfg, "collect", srv.URL+"/a", srv.URL+"/b")
			if err != nil {
				t.Fatalf("collect: %v", err)
			}
			lines := strings.Split(strings.TrimSpace(out), "\n")
			if len(lines) != 2 {
				t.Fatalf("reports:\n%s", out)
			}
			var rep map[string]any
			if err := json.Unmarshal([]byte(lines[0]), &rep); err != nil {
				t.Fatal(err)
			}
			if rep["outcome"] != "success" || rep["snapshot_id"] == "" {
				t.Fatalf("report = %v", rep)
			}

			out, err = run(t, "--config", cfg, "verify")
			if err != nil || !strings.Contains(out, "OK: 2 entries verified") {
				t.Fatalf("verify: %q, %v", out, err)
			}

			out, err = run(t, "--config", cfg, "stats")
			if err != nil || !strings.Contains(out, `"success": 2`) || !strings.Contains(out, `"blocked": 0`) {
				t.Fatalf("stats: %q, %v", out, err)
			}

			out, err = run(t, "--config", cfg, "history", srv.URL+"/a")
			if err != nil || strings.Count(out, "\n") != 1 {
				t.Fatalf("history: %q, %v", out, err)
			}
		})
	}
}

func TestVerify_Tampered(t *testing.T) {
	dir := t.TempDir()
	ledgerPath := filepath.Join(dir, "ledger.jsonl")
	lines := `{"a":1,"entry_hash":"deadbeef","prev_entry_hash":null}` + "\n"
	if err := os.WriteFile(ledgerPath, []byte(lines), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "--data-dir", dir, "verify", ledgerPath)
	if err == nil || !strings.Contains(out, "FAILED at entry 0: entry_hash mismatch") {
		t.Fatalf("verify: %q, %v", out, err)
	}
}

func TestCollect_GuardBlocksLoopbackByDefault(t *testing.T) {
	// WHAT: Without allow_private, a loopback URL is recorded as blocked.
	// WHY: The CLI installs the SSRF guard on every fetch.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	dir := t.TempDir()
	out, err := run(t, "--data-dir", dir, "--log-level", "error", "collect", srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"outcome":"blocked"`) {
		t.Fatalf("report: %s", out)
	}
}

func TestURLs(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "--data-dir", dir, "urls", "--out", filepath.Join(dir, "urls"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "Wrote 86 curated URLs to ") {
		t.Fatalf("out = %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "urls", "starter-1000.json")); err != nil {
		t.Fatal(err)
	}
}

func TestSimilarity(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.txt")
	if err := os.WriteFile(a, []byte("one\ntwo"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("one\nthree"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "--data-dir", dir, "similarity", a, b)
	if err != nil {
		t.Fatal(err)
	}
	var res struct {
		Score  float64 `json:"score"`
		Method string  `json:"method"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatal(err)
	}
	if res.Method != "jaccard-lines" || res.Score < 0.33 || res.Score > 0.34 {
		t.Fatalf("result = %+v", res)
	}
}

func TestUnknownLogLevel(t *testing.T) {
	if _, err := run(t, "--data-dir", t.TempDir(), "--log-level", "loud", "stats"); err == nil {
		t.Fatal("expected error")
	}
}

func TestEnvironmentDefaults(t *testing.T) {
	// WHAT: BASELINE_* variables supply flag defaults; explicit flags still win.
	dir := t.TempDir()
	t.Setenv("BASELINE_CONFIG", writeConfig(t, dir, ""))

	if _, err := run(t, "stats"); err != nil {
		t.Fatalf("stats: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "telemetry.db")); err != nil {
		t.Fatalf("config from environment not used: %v", err)
	}

	t.Setenv("BASELINE_LOG_LEVEL", "loud")
	if _, err := run(t, "stats"); err == nil {
		t.Fatal("expected error for log level from environment")
	}
	if _, err := run(t, "--log-level", "error", "stats"); err != nil {
		t.Fatalf("flag did not override environment: %v", err)
	}
}
