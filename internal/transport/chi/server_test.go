package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hfzizz/nao-llm/internal/domain"
	chatuc "github.com/hfzizz/nao-llm/internal/usecase/chat"
	healthuc "github.com/hfzizz/nao-llm/internal/usecase/health"
)

// --- Fakes ---

type fakeResponder struct {
	ans     chatuc.Answer
	err     error
	session string
	text    string
}

func (f *fakeResponder) Respond(_ context.Context, sessionHandle, text string) (chatuc.Answer, error) {
	f.session, f.text = sessionHandle, text
	if strings.TrimSpace(text) == "" {
		return chatuc.Answer{}, domain.ErrEmptyQuery
	}
	return f.ans, f.err
}

type fakeReloader struct {
	n   int
	err error
}

func (f *fakeReloader) Reload(_ context.Context) (int, error) { return f.n, f.err }

type fakeHealth struct {
	report healthuc.Report
}

func (f *fakeHealth) Check(_ context.Context) healthuc.Report { return f.report }

func newTestServer(chat *fakeResponder, reload *fakeReloader, health *fakeHealth, keys ...string) http.Handler {
	return NewServer(chat, reload, health, zap.NewNop()).Router(keys)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// --- Tests ---

func TestChat_OK(t *testing.T) {
	chat := &fakeResponder{ans: chatuc.Answer{
		Session: "kiosk-1",
		Reply:   "<|start_header_id|>assistant<|end_header_id|> We open at 8.",
	}}
	h := newTestServer(chat, &fakeReloader{}, &fakeHealth{})

	rr := do(t, h, http.MethodPost, "/chat", `{"message":"When do you open?","session":"kiosk-1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rr.Code, rr.Body)
	}

	var resp ChatResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Response != "assistant We open at 8." {
		t.Errorf("unexpected response %q", resp.Response)
	}
	if resp.Session != "kiosk-1" {
		t.Errorf("unexpected session %q", resp.Session)
	}
	if chat.text != "When do you open?" || chat.session != "kiosk-1" {
		t.Errorf("responder got session=%q text=%q", chat.session, chat.text)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestChat_MissingMessage(t *testing.T) {
	h := newTestServer(&fakeResponder{}, &fakeReloader{}, &fakeHealth{})

	for _, body := range []string{`{}`, `{"message":""}`, `{"message":"   "}`, ``} {
		rr := do(t, h, http.MethodPost, "/chat", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %q: got %d, want 400", body, rr.Code)
			continue
		}
		var resp ErrorResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Error != "No message provided" {
			t.Errorf("body %q: unexpected error %q", body, resp.Error)
		}
	}
}

func TestChat_InvalidJSON(t *testing.T) {
	h := newTestServer(&fakeResponder{}, &fakeReloader{}, &fakeHealth{})

	rr := do(t, h, http.MethodPost, "/chat", `{"message":`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("got %d, want 400", rr.Code)
	}
}

func TestChat_UnexpectedErrorHidesDetails(t *testing.T) {
	chat := &fakeResponder{err: errors.New("dial tcp 10.0.0.1: refused")}
	h := newTestServer(chat, &fakeReloader{}, &fakeHealth{})

	rr := do(t, h, http.MethodPost, "/chat", `{"message":"hi"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("got %d, want 500", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "10.0.0.1") {
		t.Errorf("internal error leaked: %s", rr.Body)
	}
}

func TestReload(t *testing.T) {
	h := newTestServer(&fakeResponder{}, &fakeReloader{n: 12}, &fakeHealth{})

	rr := do(t, h, http.MethodPost, "/admin/reload", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	var resp ReloadResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Documents != 12 {
		t.Errorf("expected 12 documents, got %d", resp.Documents)
	}
}

func TestReload_DatasetError(t *testing.T) {
	reload := &fakeReloader{err: domain.NewDatasetLoadError("/secret/path.json", errors.New("eof"))}
	h := newTestServer(&fakeResponder{}, reload, &fakeHealth{})

	rr := do(t, h, http.MethodPost, "/admin/reload", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("got %d, want 422", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "/secret/path.json") {
		t.Errorf("dataset path leaked: %s", rr.Body)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name   string
		report healthuc.Report
		want   int
	}{
		{"ok", healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{"context_store": healthuc.CheckOK}}, http.StatusOK},
		{"degraded", healthuc.Report{Status: healthuc.Degraded, Checks: map[string]healthuc.CheckResult{"generation": healthuc.CheckError}}, http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestServer(&fakeResponder{}, &fakeReloader{}, &fakeHealth{report: tc.report})
			rr := do(t, h, http.MethodGet, "/health", "")
			if rr.Code != tc.want {
				t.Fatalf("got %d, want %d", rr.Code, tc.want)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != string(tc.report.Status) {
				t.Errorf("status %q, want %q", resp.Status, tc.report.Status)
			}
		})
	}
}

func TestRouter_AuthApplied(t *testing.T) {
	chat := &fakeResponder{ans: chatuc.Answer{Reply: "hi"}}
	h := newTestServer(chat, &fakeReloader{}, &fakeHealth{report: healthuc.Report{Status: healthuc.Healthy}}, "secret")

	if rr := do(t, h, http.MethodPost, "/chat", `{"message":"hi"}`); rr.Code != http.StatusUnauthorized {
		t.Errorf("chat without token: got %d, want 401", rr.Code)
	}
	if rr := do(t, h, http.MethodPost, "/admin/reload", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("reload without token: got %d, want 401", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/health", ""); rr.Code != http.StatusOK {
		t.Errorf("health should be exempt: got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Authorization", "Bearer secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("chat with token: got %d, want 200", rr.Code)
	}
}

func TestRouter_NotFoundAndMethod(t *testing.T) {
	h := newTestServer(&fakeResponder{}, &fakeReloader{}, &fakeHealth{})

	if rr := do(t, h, http.MethodGet, "/nope", ""); rr.Code != http.StatusNotFound {
		t.Errorf("got %d, want 404", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/chat", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("got %d, want 405", rr.Code)
	}
}

func TestJSONRecoverer(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	h := JSONRecoverer(zap.NewNop())(panicking)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("got %d, want 500", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}
}
