package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/kirillkom/notepeel/internal/core/domain"
)

type fakeService struct {
	mu      sync.Mutex
	revoked bool
	deleted []string
	saved   map[string]string
}

func newFakeService(t *testing.T) (*fakeService, *httptest.Server) {
	t.Helper()
	svc := &fakeService{saved: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(svc.serve))
	t.Cleanup(srv.Close)
	return svc, srv
}

func (s *fakeService) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.URL.Path == "/api/auth/login" {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Incorrect email or password"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"jwt-token","token_type":"bearer"}`))
		return
	}
	if r.URL.Path == "/ocr" {
		_, _ = w.Write([]byte(`{"raw_text":"r","key_values":{"Name":"Al"},"table_rows":[["1","2"]]}`))
		return
	}
	if s.revoked || r.Header.Get("Authorization") != "Bearer jwt-token" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Could not validate credentials"}`))
		return
	}

	switch {
	case r.URL.Path == "/api/notes/" && r.Method == http.MethodGet:
		_, _ = w.Write([]byte(`[
			{"id":2,"title":"Lecture","image_filename":"l.png","status":"completed","created_at":"2026-03-02T09:00:00"},
			{"id":1,"title":null,"image_filename":"board.jpg","status":"pending","created_at":"2026-03-01T09:00:00"}
		]`))
	case r.URL.Path == "/api/notes/2/full":
		_, _ = w.Write([]byte(`{"id":2,"title":"Lecture","image_filename":"l.png","image_mimetype":"image/png",
			"image_base64":"aGVsbG8=","raw_text":"raw","structured_text":"old text","status":"completed",
			"created_at":"2026-03-02T09:00:00"}`))
	case r.URL.Path == "/api/notes/2" && r.Method == http.MethodPut:
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.saved["2"] = body["structured_text"]
		_, _ = w.Write([]byte(`{"message":"Note updated"}`))
	case r.URL.Path == "/api/notes/2" && r.Method == http.MethodDelete:
		s.deleted = append(s.deleted, "2")
		_, _ = w.Write([]byte(`{"message":"Note deleted"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Note not found"}`))
	}
}

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("NOTEPEEL_CONFIG", "")
	t.Setenv("NOTEPEEL_SESSION_DB", filepath.Join(dir, "session.db"))
	t.Setenv("NOTEPEEL_IMAGE_DIR", filepath.Join(dir, "images"))
	t.Setenv("NOTEPEEL_NATS_URL", "")
	t.Setenv("NOTEPEEL_CONTRACT_VALIDATION", "false")
	t.Setenv("NOTEPEEL_LOG_LEVEL", "error")
	return dir
}

func run(t *testing.T, apiURL string, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), append([]string{"--api-url", apiURL}, args...), &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func TestLoginPersistsSessionAcrossInvocations(t *testing.T) {
	isolate(t)
	_, srv := newFakeService(t)

	out, errOut, code := run(t, srv.URL, "login", "ann@example.com", "--password", "secret")
	if code != 0 || !strings.Contains(out, "Signed in as ann@example.com") {
		t.Fatalf("login failed: code=%d out=%q err=%q", code, out, errOut)
	}

	out, errOut, code = run(t, srv.URL, "whoami", "--offline")
	if code != 0 || !strings.Contains(out, "Session: ann@example.com") {
		t.Fatalf("whoami failed: code=%d out=%q err=%q", code, out, errOut)
	}

	if _, _, code = run(t, srv.URL, "logout"); code != 0 {
		t.Fatalf("logout failed: code=%d", code)
	}
	_, errOut, code = run(t, srv.URL, "whoami", "--offline")
	if code == 0 || !strings.Contains(errOut, "please log in again") {
		t.Fatalf("expected missing session, code=%d err=%q", code, errOut)
	}
}

func TestLoginRejectedShowsServerDetail(t *testing.T) {
	isolate(t)
	_, srv := newFakeService(t)

	_, errOut, code := run(t, srv.URL, "login", "ann@example.com", "--password", "wrong")
	if code != 1 {
		t.Fatalf("expected failure, got %d", code)
	}
	if !strings.Contains(errOut, "Error: credentials problem: Incorrect email or password") {
		t.Fatalf("unexpected error output %q", errOut)
	}
}

func TestLoginReadsPasswordFromStdin(t *testing.T) {
	isolate(t)
	_, srv := newFakeService(t)

	root := NewRootCommand()
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader("secret\n"))
	root.SetArgs([]string{"--api-url", srv.URL, "login", "ann@example.com"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(stdout.String(), "Signed in as ann@example.com") {
		t.Fatalf("unexpected output %q", stdout.String())
	}
}

func TestListAndEdit(t *testing.T) {
	isolate(t)
	svc, srv := newFakeService(t)
	if _, _, code := run(t, srv.URL, "login", "ann@example.com", "--password", "secret"); code != 0 {
		t.Fatalf("login failed")
	}

	out, errOut, code := run(t, srv.URL, "list")
	if code != 0 {
		t.Fatalf("list failed: %q", errOut)
	}
	if !strings.Contains(out, "Lecture") || !strings.Contains(out, "board.jpg") || strings.Index(out, "Lecture") > strings.Index(out, "board.jpg") {
		t.Fatalf("unexpected list output:\n%s", out)
	}

	out, errOut, code = run(t, srv.URL, "edit", "2", "--text", "old text")
	if code != 0 || !strings.Contains(out, "Note 2 unchanged") {
		t.Fatalf("expected unchanged edit: code=%d out=%q err=%q", code, out, errOut)
	}

	out, errOut, code = run(t, srv.URL, "edit", "2", "--text", "new text")
	if code != 0 || !strings.Contains(out, "Saved note 2") {
		t.Fatalf("edit failed: code=%d out=%q err=%q", code, out, errOut)
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.saved["2"] != "new text" {
		t.Fatalf("server did not receive the draft: %v", svc.saved)
	}
}

func TestShowSavesImage(t *testing.T) {
	dir := isolate(t)
	_, srv := newFakeService(t)
	if _, _, code := run(t, srv.URL, "login", "ann@example.com", "--password", "secret"); code != 0 {
		t.Fatalf("login failed")
	}

	out, errOut, code := run(t, srv.URL, "show", "2", "--save-image")
	if code != 0 {
		t.Fatalf("show failed: %q", errOut)
	}
	if !strings.Contains(out, "# Lecture") || !strings.Contains(out, "old text") {
		t.Fatalf("unexpected show output:\n%s", out)
	}
	data, err := os.ReadFile(filepath.Join(dir, "images", "note-2.png"))
	if err != nil || string(data) != "hello" {
		t.Fatalf("image not written: %q %v", data, err)
	}
}

func TestDelete(t *testing.T) {
	isolate(t)
	svc, srv := newFakeService(t)
	if _, _, code := run(t, srv.URL, "login", "ann@example.com", "--password", "secret"); code != 0 {
		t.Fatalf("login failed")
	}

	if out, errOut, code := run(t, srv.URL, "delete", "2"); code != 0 || !strings.Contains(out, "Deleted note 2") {
		t.Fatalf("delete failed: code=%d out=%q err=%q", code, out, errOut)
	}
	_, errOut, code := run(t, srv.URL, "delete", "7")
	if code == 0 || !strings.Contains(errOut, "not found") {
		t.Fatalf("expected not found, code=%d err=%q", code, errOut)
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.deleted) != 1 {
		t.Fatalf("expected one remote delete, got %v", svc.deleted)
	}
}

func TestRejectedTokenClearsStoredSession(t *testing.T) {
	isolate(t)
	svc, srv := newFakeService(t)
	if _, _, code := run(t, srv.URL, "login", "ann@example.com", "--password", "secret"); code != 0 {
		t.Fatalf("login failed")
	}

	svc.mu.Lock()
	svc.revoked = true
	svc.mu.Unlock()

	_, errOut, code := run(t, srv.URL, "list")
	if code == 0 || !strings.Contains(errOut, "credentials problem: please log in again") {
		t.Fatalf("expected unauthorized, code=%d err=%q", code, errOut)
	}
	_, errOut, code = run(t, srv.URL, "whoami", "--offline")
	if code == 0 || !strings.Contains(errOut, "please log in again") {
		t.Fatalf("expected the stored session to be gone, code=%d err=%q", code, errOut)
	}
}

func TestOCRWritesWorkbook(t *testing.T) {
	dir := isolate(t)
	_, srv := newFakeService(t)

	image := filepath.Join(dir, "scan.png")
	if err := os.WriteFile(image, []byte("\x89PNG"), 0o600); err != nil {
		t.Fatalf("write image: %v", err)
	}
	workbook := filepath.Join(dir, "scan.xlsx")

	out, errOut, code := run(t, srv.URL, "ocr", image, "--xlsx", workbook)
	if code != 0 {
		t.Fatalf("ocr failed: %q", errOut)
	}
	if !strings.HasPrefix(out, "Key-Values:\nName: Al\n\nTable Rows:\n1 | 2\n") {
		t.Fatalf("unexpected ocr output %q", out)
	}
	if info, err := os.Stat(workbook); err != nil || info.Size() == 0 {
		t.Fatalf("workbook missing: %v", err)
	}
}

func TestWatchNeedsEventBus(t *testing.T) {
	isolate(t)
	_, srv := newFakeService(t)

	_, errOut, code := run(t, srv.URL, "watch")
	if code == 0 || !strings.Contains(errOut, "network problem") {
		t.Fatalf("expected watch to fail without NATS, code=%d err=%q", code, errOut)
	}
}

func TestParseNoteID(t *testing.T) {
	if id, err := parseNoteID(" 42 "); err != nil || id != 42 {
		t.Fatalf("unexpected parse: %d %v", id, err)
	}
	for _, raw := range []string{"", "0", "-3", "abc"} {
		if _, err := parseNoteID(raw); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("expected invalid input for %q, got %v", raw, err)
		}
	}
}
