package chat

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	modelChat "github.com/zhouzirui/ai-collective/backend/internal/model/chat"
	chatService "github.com/zhouzirui/ai-collective/backend/internal/service/chat"
	"github.com/zhouzirui/ai-collective/backend/internal/testutil"
)

func setupRouter(t *testing.T, apiKey string) (*chi.Mux, *testutil.Session) {
	t.Helper()
	session := testutil.NewSession(t, apiKey)
	handler := New(session.Chat, nil)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, session
}

func TestSendMessageQueuesReply(t *testing.T) {
	r, session := setupRouter(t, "test-key")
	session.WaitForPhase(t, chatService.PhaseReady)
	before := len(session.Chat.Transcript())

	payload, _ := json.Marshal(map[string]string{"text": "hello there"})
	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.Code)
	}
	var msg modelChat.Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if msg.Author != modelChat.UserName || msg.Text != "hello there" {
		t.Fatalf("unexpected message %+v", msg)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(session.Chat.Transcript()) < before+2 {
		if time.Now().After(deadline) {
			t.Fatal("expected a bot reply after the user message")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSendMessageRejectsEmptyText(t *testing.T) {
	r, _ := setupRouter(t, "test-key")

	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewReader([]byte(`{"text":"   "}`)))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSendMessageRejectsMalformedBody(t *testing.T) {
	r, _ := setupRouter(t, "test-key")

	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewReader([]byte(`{"content":1}`)))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestStateReportsAwaitingCredential(t *testing.T) {
	r, _ := setupRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var snap chatService.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if snap.Phase != chatService.PhaseAwaitingCredential {
		t.Fatalf("expected awaiting_credential, got %s", snap.Phase)
	}
	if !snap.SettingsOpen || snap.HasCredential {
		t.Fatalf("expected settings open without credential, got %+v", snap)
	}
	if len(snap.Bots) != 5 {
		t.Fatalf("expected 5 bots, got %d", len(snap.Bots))
	}
}

func TestBotsHidePersonality(t *testing.T) {
	r, _ := setupRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/bots", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if bytes.Contains(resp.Body.Bytes(), []byte("personality")) {
		t.Fatalf("personality text must not be exposed: %s", resp.Body.String())
	}
}

func TestToggleFlipsPause(t *testing.T) {
	r, _ := setupRouter(t, "test-key")

	for _, want := range []bool{true, false} {
		req := httptest.NewRequest(http.MethodPost, "/chat/toggle", nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)

		var body map[string]bool
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["paused"] != want {
			t.Fatalf("expected paused=%v, got %v", want, body["paused"])
		}
	}
}

func TestSendMessageRateLimited(t *testing.T) {
	session := testutil.NewSession(t, "test-key")
	r := chi.NewRouter()
	New(session.Chat, rate.NewLimiter(rate.Limit(0.001), 1)).RegisterRoutes(r)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewReader([]byte(`{"text":"hi"}`)))
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
	}

	if codes[0] != http.StatusAccepted || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status codes %v", codes)
	}
}
