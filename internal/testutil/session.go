// Package testutil builds fully wired services for handler tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/zhouzirui/ai-collective/backend/internal/config"
	"github.com/zhouzirui/ai-collective/backend/internal/model/chat"
	"github.com/zhouzirui/ai-collective/backend/internal/model/persona"
	chatService "github.com/zhouzirui/ai-collective/backend/internal/service/chat"
	"github.com/zhouzirui/ai-collective/backend/internal/service/credential"
	"github.com/zhouzirui/ai-collective/backend/internal/service/logs"
	"github.com/zhouzirui/ai-collective/backend/internal/service/personality"
)

// MockResponder implements the orchestrator's Responder.
type MockResponder struct {
	GenerateFunc func(ctx context.Context, personality string, history []chat.Message) string
}

// NewMockResponder answers every call with a fixed line.
func NewMockResponder() *MockResponder {
	return &MockResponder{
		GenerateFunc: func(context.Context, string, []chat.Message) string { return "Mock response" },
	}
}

func (m *MockResponder) Generate(ctx context.Context, personality string, history []chat.Message) string {
	return m.GenerateFunc(ctx, personality, history)
}

// Session bundles the services a handler needs.
type Session struct {
	Chat        *chatService.Service
	Credentials *credential.Service
	Recorder    *logs.Recorder
	Personas    persona.Store
	Responder   *MockResponder
}

// FastChatConfig removes pacing delays and keeps the autonomous timer out of the way.
func FastChatConfig() config.ChatConfig {
	return config.ChatConfig{
		AutonomousMin:    time.Hour,
		AutonomousMax:    time.Hour,
		AutonomousChance: 0.5,
	}
}

// NewSession wires the embedded roster to a mock responder. An empty apiKey
// leaves the session awaiting a credential. The session is started and closed
// with the test.
func NewSession(t *testing.T, apiKey string) *Session {
	t.Helper()
	ctx := context.Background()

	recorder := logs.NewRecorder(logs.DefaultCapacity, nil)
	creds := credential.NewService(credential.NewMemoryStore())
	if apiKey != "" {
		if err := creds.Save(ctx, apiKey); err != nil {
			t.Fatalf("save credential: %v", err)
		}
	}

	seeds := persona.Seed()
	responder := NewMockResponder()
	svc := chatService.NewService(
		seeds,
		personality.NewLoader(persona.Personalities(), nil),
		responder,
		creds,
		recorder,
		FastChatConfig(),
		chatService.Options{},
	)
	t.Cleanup(svc.Close)

	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start chat service: %v", err)
	}

	return &Session{
		Chat:        svc,
		Credentials: creds,
		Recorder:    recorder,
		Personas:    persona.NewMemoryStore(seeds),
		Responder:   responder,
	}
}

// WaitForPhase polls until the session reaches phase or the deadline passes.
func (s *Session) WaitForPhase(t *testing.T, phase chatService.Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Chat.Snapshot().Phase == phase {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session did not reach phase %s, at %s", phase, s.Chat.Snapshot().Phase)
}
