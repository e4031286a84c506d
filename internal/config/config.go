package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/ai-collective/backend/internal/provider/openai"
)

const (
	ProviderArk    = "ark"
	ProviderOpenAI = "openai"

	// geminiOpenAIBaseURL 是 Gemini 的 OpenAI 兼容端点
	geminiOpenAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Env     string
	Server  ServerConfig
	AI      AIConfig
	Chat    ChatConfig
	Storage StorageConfig
}

// Development 表示是否以开发模式运行（影响日志格式）。
func (c *Config) Development() bool {
	return c.Env != "production"
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Env:     strings.ToLower(getEnvOrDefault("APP_ENV", "development")),
		Server:  server,
		AI:      ai,
		Chat:    chat,
		Storage: loadStorageConfig(),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
	// MessageRate 为用户消息每秒允许条数，MessageBurst 为突发上限。
	MessageRate  float64
	MessageBurst int
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	cfg := ServerConfig{MessageRate: 2, MessageBurst: 5}

	rate, err := parseOptionalFloatEnv("CHAT_MESSAGE_RATE")
	if err != nil {
		return ServerConfig{}, err
	}
	if rate != nil {
		if *rate <= 0 {
			return ServerConfig{}, fmt.Errorf("invalid CHAT_MESSAGE_RATE value %v: must be positive", *rate)
		}
		cfg.MessageRate = *rate
	}
	burst, err := parseOptionalIntEnv("CHAT_MESSAGE_BURST")
	if err != nil {
		return ServerConfig{}, err
	}
	if burst != nil {
		if *burst < 1 {
			return ServerConfig{}, fmt.Errorf("invalid CHAT_MESSAGE_BURST value %d: must be at least 1", *burst)
		}
		cfg.MessageBurst = *burst
	}

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		cfg.Addr = port
		return cfg, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	cfg.Addr = ":" + port
	return cfg, nil
}

// AIConfig 描述大模型相关配置。凭证不在这里：它由用户在设置中提供。
type AIConfig struct {
	Provider    string
	Model       string
	BaseURL     string
	Region      string
	Temperature float32
	TopP        float32
	MaxTokens   *int
	SeedAPIKey  string
}

// NewChatModel 使用配置与给定凭证创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context, apiKey string) (model.ChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if c.Model == "" {
		return nil, fmt.Errorf("model is not configured for provider %q", c.Provider)
	}

	temperature := c.Temperature
	topP := c.TopP

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	if c.Provider == ProviderOpenAI {
		m, err := openai.NewChatModel(ctx, openai.Config{
			BaseURL:     c.BaseURL,
			APIKey:      apiKey,
			Model:       c.Model,
			Temperature: &temperature,
			TopP:        &topP,
			MaxTokens:   maxTokens,
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      apiKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
		TopP:        &topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	// 采样参数对所有 provider 生效，ARK_* 为旧名称
	temperature, err := parseOptionalFloatEnv(envKey("LLM_TEMPERATURE", "ARK_TEMPERATURE"))
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv(envKey("LLM_TOP_P", "ARK_TOP_P"))
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv(envKey("LLM_MAX_TOKENS", "ARK_MAX_TOKENS"))
	if err != nil {
		return AIConfig{}, err
	}

	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ProviderArk))

	var cfg AIConfig
	switch provider {
	case ProviderArk:
		cfg = AIConfig{
			Model:      getEnvOrDefault("ARK_MODEL", "doubao-seed-1-6-flash-250828"),
			BaseURL:    getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
			Region:     getEnvOrDefault("ARK_REGION", "cn-beijing"),
			SeedAPIKey: strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		}
	case ProviderOpenAI:
		// 默认走 Gemini 的 OpenAI 兼容端点
		cfg = AIConfig{
			Model:      getEnvOrDefault("OPENAI_MODEL", "gemini-2.5-flash"),
			BaseURL:    getEnvOrDefault("OPENAI_BASE_URL", geminiOpenAIBaseURL),
			SeedAPIKey: strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		}
	default:
		return AIConfig{}, fmt.Errorf("invalid LLM_PROVIDER value %q: want %q or %q", provider, ProviderArk, ProviderOpenAI)
	}
	cfg.Provider = provider
	cfg.Temperature = 0.8
	cfg.TopP = 0.95
	cfg.MaxTokens = maxTokens
	if temperature != nil {
		cfg.Temperature = float32(*temperature)
	}
	if topP != nil {
		cfg.TopP = float32(*topP)
	}
	return cfg, nil
}

// ChatConfig 描述对话编排的节奏参数。
type ChatConfig struct {
	ReplyDelay       time.Duration
	AutonomousMin    time.Duration
	AutonomousMax    time.Duration
	IntroMin         time.Duration
	IntroMax         time.Duration
	AutonomousChance float64
}

// DefaultChatConfig 返回默认的对话节奏。
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		ReplyDelay:       500 * time.Millisecond,
		AutonomousMin:    15 * time.Second,
		AutonomousMax:    25 * time.Second,
		IntroMin:         1000 * time.Millisecond,
		IntroMax:         2500 * time.Millisecond,
		AutonomousChance: 0.5,
	}
}

func loadChatConfig() (ChatConfig, error) {
	cfg := DefaultChatConfig()

	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"CHAT_REPLY_DELAY", &cfg.ReplyDelay},
		{"CHAT_AUTONOMOUS_MIN", &cfg.AutonomousMin},
		{"CHAT_AUTONOMOUS_MAX", &cfg.AutonomousMax},
		{"CHAT_INTRO_MIN", &cfg.IntroMin},
		{"CHAT_INTRO_MAX", &cfg.IntroMax},
	}
	for _, d := range durations {
		val, err := parseOptionalDurationEnv(d.key)
		if err != nil {
			return ChatConfig{}, err
		}
		if val != nil {
			*d.target = *val
		}
	}

	chance, err := parseOptionalFloatEnv("CHAT_AUTONOMOUS_CHANCE")
	if err != nil {
		return ChatConfig{}, err
	}
	if chance != nil {
		if *chance < 0 || *chance > 1 {
			return ChatConfig{}, fmt.Errorf("invalid CHAT_AUTONOMOUS_CHANCE value %v: must be within [0,1]", *chance)
		}
		cfg.AutonomousChance = *chance
	}

	if cfg.AutonomousMax < cfg.AutonomousMin {
		return ChatConfig{}, fmt.Errorf("CHAT_AUTONOMOUS_MAX (%s) is below CHAT_AUTONOMOUS_MIN (%s)", cfg.AutonomousMax, cfg.AutonomousMin)
	}
	if cfg.IntroMax < cfg.IntroMin {
		return ChatConfig{}, fmt.Errorf("CHAT_INTRO_MAX (%s) is below CHAT_INTRO_MIN (%s)", cfg.IntroMax, cfg.IntroMin)
	}
	return cfg, nil
}

// StorageConfig 描述本地持久化与角色资源的位置。
type StorageConfig struct {
	SettingsDBPath string
	RosterFile     string
	PersonalityDir string
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		SettingsDBPath: getEnvOrDefault("SETTINGS_DB_PATH", "collective.db"),
		RosterFile:     strings.TrimSpace(os.Getenv("ROSTER_FILE")),
		PersonalityDir: strings.TrimSpace(os.Getenv("PERSONALITY_DIR")),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// envKey 返回已设置的环境变量名：优先 key，未设置时回退到 alias。
func envKey(key, alias string) string {
	if strings.TrimSpace(os.Getenv(key)) != "" {
		return key
	}
	return alias
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalDurationEnv(key string) (*time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := time.ParseDuration(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("invalid %s value %q: must not be negative", key, value)
	}
	return &val, nil
}
