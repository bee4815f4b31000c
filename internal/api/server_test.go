package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/carlrannaberg/claudekit-sub009/internal/audit"
	"github.com/carlrannaberg/claudekit-sub009/internal/guard"
)

func newTestServer(t *testing.T, store *audit.Store) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	content := ".env\nsecrets/**\n"
	if err := os.WriteFile(filepath.Join(root, ".agentignore"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return NewServer(guard.New(guard.Options{}), store, root, "test"), root
}

func newTestStore(t *testing.T) *audit.Store {
	t.Helper()
	store, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"), "")
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := doJSON(t, srv, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	body := decode[map[string]any](t, w)
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if body["audit_enabled"] != false {
		t.Errorf("audit_enabled = %v, want false without a store", body["audit_enabled"])
	}
	if body["version"] != "test" {
		t.Errorf("version = %v, want test", body["version"])
	}
}

func TestCheck_DeniesProtectedFile(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := doJSON(t, srv, http.MethodPost, "/v1/check", CheckRequest{
		ToolName: "Read",
		FilePath: ".env",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	res := decode[CheckResponse](t, w)
	if res.Decision != "deny" {
		t.Errorf("decision = %q, want deny", res.Decision)
	}
	if res.Pattern != ".env" {
		t.Errorf("pattern = %q, want .env", res.Pattern)
	}
	if res.Source != ".agentignore" {
		t.Errorf("source = %q, want .agentignore", res.Source)
	}
}

func TestCheck_AllowsUnprotectedFile(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := doJSON(t, srv, http.MethodPost, "/v1/check", CheckRequest{
		ToolName: "Write",
		FilePath: "main.go",
	})
	res := decode[CheckResponse](t, w)
	if res.Decision != "allow" {
		t.Errorf("decision = %q, want allow: %s", res.Decision, res.Reason)
	}
}

func TestCheck_BashCommand(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := doJSON(t, srv, http.MethodPost, "/v1/check", CheckRequest{
		ToolName: "Bash",
		Command:  "cat secrets/api.pem",
	})
	res := decode[CheckResponse](t, w)
	if res.Decision != "deny" {
		t.Errorf("decision = %q, want deny: %s", res.Decision, res.Reason)
	}
}

func TestCheck_MissingToolName(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := doJSON(t, srv, http.MethodPost, "/v1/check", map[string]string{
		"file_path": ".env",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCheck_ExplicitCWD(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	// A different root with no ignore files falls back to the defaults,
	// which still protect .env.
	other := t.TempDir()
	w := doJSON(t, srv, http.MethodPost, "/v1/check", CheckRequest{
		ToolName: "Read",
		FilePath: ".env",
		CWD:      other,
	})
	res := decode[CheckResponse](t, w)
	if res.Decision != "deny" {
		t.Errorf("decision = %q, want deny from default patterns", res.Decision)
	}
}

func TestPatterns(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := doJSON(t, srv, http.MethodGet, "/v1/patterns", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	body := decode[struct {
		Root     string        `json:"root"`
		Sources  []string      `json:"sources"`
		Fallback bool          `json:"fallback"`
		Patterns []PatternJSON `json:"patterns"`
	}](t, w)

	if body.Fallback {
		t.Error("fallback = true, want false with .agentignore present")
	}
	if len(body.Sources) != 1 || body.Sources[0] != ".agentignore" {
		t.Errorf("sources = %v, want [.agentignore]", body.Sources)
	}
	var found bool
	for _, p := range body.Patterns {
		if p.Raw == ".env" && p.Source == ".agentignore" {
			found = true
		}
	}
	if !found {
		t.Errorf("patterns %v missing .env from .agentignore", body.Patterns)
	}
}

func TestPatterns_FallbackRoot(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	other := t.TempDir()
	w := doJSON(t, srv, http.MethodGet, "/v1/patterns?root="+other, nil)
	body := decode[struct {
		Fallback bool `json:"fallback"`
	}](t, w)
	if !body.Fallback {
		t.Error("fallback = false, want true for a root with no ignore files")
	}
}

func TestReload_PicksUpEditedIgnoreFile(t *testing.T) {
	srv, root := newTestServer(t, nil)

	// Prime the cache, then extend the ignore file.
	w := doJSON(t, srv, http.MethodPost, "/v1/check", CheckRequest{ToolName: "Read", FilePath: "notes.txt"})
	if res := decode[CheckResponse](t, w); res.Decision != "allow" {
		t.Fatalf("pre-edit decision = %q, want allow", res.Decision)
	}

	content := ".env\nsecrets/**\nnotes.txt\n"
	if err := os.WriteFile(filepath.Join(root, ".agentignore"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	// Cache still serves the old rule set until reload.
	w = doJSON(t, srv, http.MethodPost, "/v1/check", CheckRequest{ToolName: "Read", FilePath: "notes.txt"})
	if res := decode[CheckResponse](t, w); res.Decision != "allow" {
		t.Fatalf("pre-reload decision = %q, want allow from cache", res.Decision)
	}

	if w := doJSON(t, srv, http.MethodPost, "/v1/reload", nil); w.Code != http.StatusOK {
		t.Fatalf("reload status = %d, want 200", w.Code)
	}

	w = doJSON(t, srv, http.MethodPost, "/v1/check", CheckRequest{ToolName: "Read", FilePath: "notes.txt"})
	if res := decode[CheckResponse](t, w); res.Decision != "deny" {
		t.Errorf("post-reload decision = %q, want deny", res.Decision)
	}
}

func TestReload_ClearsStale(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	srv.MarkStale()
	w := doJSON(t, srv, http.MethodGet, "/health", nil)
	if body := decode[map[string]any](t, w); body["stale"] != true {
		t.Fatalf("stale = %v after MarkStale, want true", body["stale"])
	}

	doJSON(t, srv, http.MethodPost, "/v1/reload", nil)

	w = doJSON(t, srv, http.MethodGet, "/health", nil)
	if body := decode[map[string]any](t, w); body["stale"] != false {
		t.Errorf("stale = %v after reload, want false", body["stale"])
	}
}

func TestHistory_DisabledWithoutStore(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, path := range []string{"/v1/history", "/v1/stats", "/v1/sessions"} {
		w := doJSON(t, srv, http.MethodGet, path, nil)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s status = %d, want 503", path, w.Code)
		}
	}
}

func TestHistory_ReturnsEntries(t *testing.T) {
	store := newTestStore(t)
	srv, _ := newTestServer(t, store)

	if err := store.Insert(audit.Entry{
		SessionID: "s1", ToolName: "Read", Decision: "deny",
		Reason: "matched .env", Path: ".env",
	}); err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, srv, http.MethodGet, "/v1/history?minutes=60&limit=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	entries := decode[[]audit.Entry](t, w)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].ToolName != "Read" || entries[0].Decision != "deny" {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestHistory_RejectsBadQuery(t *testing.T) {
	store := newTestStore(t)
	srv, _ := newTestServer(t, store)

	for _, q := range []string{"minutes=-5", "minutes=999999", "limit=99999"} {
		w := doJSON(t, srv, http.MethodGet, "/v1/history?"+q, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("query %q status = %d, want 400", q, w.Code)
		}
	}
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	srv, _ := newTestServer(t, store)

	for _, e := range []audit.Entry{
		{ToolName: "Read", Decision: "allow", ScanMode: "fast"},
		{ToolName: "Bash", Decision: "deny", ScanMode: "comprehensive"},
		{ToolName: "Bash", Decision: "allow", ScanMode: "lightweight"},
	} {
		if err := store.Insert(e); err != nil {
			t.Fatal(err)
		}
	}

	w := doJSON(t, srv, http.MethodGet, "/v1/stats", nil)
	stats := decode[audit.Stats](t, w)
	if stats.Total != 3 || stats.Denied != 1 || stats.Allowed != 2 {
		t.Errorf("stats = %+v, want 3 total / 1 denied / 2 allowed", stats)
	}
	if stats.ByTool["Bash"] != 2 {
		t.Errorf("ByTool[Bash] = %d, want 2", stats.ByTool["Bash"])
	}
}

func TestSessions(t *testing.T) {
	store := newTestStore(t)
	srv, _ := newTestServer(t, store)

	for _, e := range []audit.Entry{
		{SessionID: "s1", ToolName: "Read", Decision: "allow"},
		{SessionID: "s1", ToolName: "Bash", Decision: "deny"},
		{SessionID: "s2", ToolName: "Read", Decision: "allow"},
	} {
		if err := store.Insert(e); err != nil {
			t.Fatal(err)
		}
	}

	w := doJSON(t, srv, http.MethodGet, "/v1/sessions", nil)
	sessions := decode[[]audit.SessionSummary](t, w)
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	for _, ss := range sessions {
		if ss.SessionID == "s1" && (ss.Total != 2 || ss.Denied != 1) {
			t.Errorf("s1 summary = %+v, want 2 total / 1 denied", ss)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := doJSON(t, srv, http.MethodGet, "/health", nil)
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := w.Header().Get("Cache-Control"); !strings.Contains(got, "no-store") {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
}

func TestBodySizeLimit(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	big := bytes.Repeat([]byte("x"), MaxBodySize+1)
	req := httptest.NewRequest(http.MethodPost, "/v1/check", bytes.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}
