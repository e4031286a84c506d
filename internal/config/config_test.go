package config

import (
	"context"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "APP_ENV", "ARK_TEMPERATURE", "ARK_TOP_P", "LLM_TEMPERATURE", "LLM_TOP_P", "CHAT_REPLY_DELAY", "CHAT_AUTONOMOUS_CHANCE", "SETTINGS_DB_PATH", "LLM_PROVIDER"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.AI.Temperature != 0.8 || cfg.AI.TopP != 0.95 {
		t.Fatalf("unexpected sampling defaults: %v %v", cfg.AI.Temperature, cfg.AI.TopP)
	}
	if cfg.Chat != DefaultChatConfig() {
		t.Fatalf("unexpected chat config: %+v", cfg.Chat)
	}
	if cfg.Storage.SettingsDBPath != "collective.db" {
		t.Fatalf("unexpected db path %q", cfg.Storage.SettingsDBPath)
	}
	if !cfg.Development() {
		t.Fatal("expected development mode by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("APP_ENV", "production")
	t.Setenv("ARK_TOP_P", "0.5")
	t.Setenv("CHAT_REPLY_DELAY", "1s")
	t.Setenv("CHAT_AUTONOMOUS_CHANCE", "1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Development() {
		t.Fatal("expected production mode")
	}
	if cfg.AI.TopP != 0.5 {
		t.Fatalf("unexpected top-p %v", cfg.AI.TopP)
	}
	if cfg.Chat.ReplyDelay != time.Second || cfg.Chat.AutonomousChance != 1 {
		t.Fatalf("unexpected chat config: %+v", cfg.Chat)
	}
}

func TestLoadSamplingNames(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("ARK_TEMPERATURE", "0.3")
	t.Setenv("LLM_TEMPERATURE", "0")
	t.Setenv("LLM_TOP_P", "")
	t.Setenv("ARK_TOP_P", "0.7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.AI.Temperature != 0 {
		t.Fatalf("expected explicit zero temperature, got %v", cfg.AI.Temperature)
	}
	if cfg.AI.TopP != 0.7 {
		t.Fatalf("expected ARK_TOP_P fallback, got %v", cfg.AI.TopP)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":                   "80 80",
		"ARK_TEMPERATURE":        "hot",
		"LLM_TOP_P":              "wide",
		"CHAT_REPLY_DELAY":       "soon",
		"CHAT_AUTONOMOUS_CHANCE": "1.5",
		"CHAT_AUTONOMOUS_MAX":    "1s",
		"LLM_PROVIDER":           "gemini-native",
		"CHAT_MESSAGE_RATE":      "0",
		"CHAT_MESSAGE_BURST":     "0",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", key, value)
			}
		})
	}
}

func TestNewChatModelRequiresKey(t *testing.T) {
	cfg := AIConfig{Model: "m"}
	if _, err := cfg.NewChatModel(context.Background(), " "); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestLoadOpenAIProvider(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_MODEL", "")
	t.Setenv("OPENAI_BASE_URL", "")
	t.Setenv("OPENAI_API_KEY", " sk-seed ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.AI.Provider != ProviderOpenAI {
		t.Fatalf("unexpected provider %q", cfg.AI.Provider)
	}
	if cfg.AI.Model != "gemini-2.5-flash" || cfg.AI.BaseURL != geminiOpenAIBaseURL {
		t.Fatalf("unexpected openai defaults: %+v", cfg.AI)
	}
	if cfg.AI.SeedAPIKey != "sk-seed" {
		t.Fatalf("unexpected seed key %q", cfg.AI.SeedAPIKey)
	}

	m, err := cfg.AI.NewChatModel(context.Background(), "sk-live")
	if err != nil || m == nil {
		t.Fatalf("NewChatModel err: %v", err)
	}
}

func TestServerRateDefaults(t *testing.T) {
	t.Setenv("CHAT_MESSAGE_RATE", "")
	t.Setenv("CHAT_MESSAGE_BURST", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.MessageRate != 2 || cfg.Server.MessageBurst != 5 {
		t.Fatalf("unexpected rate limits: %+v", cfg.Server)
	}
}
