package ai

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/ai-collective/backend/internal/model/chat"
	"github.com/zhouzirui/ai-collective/backend/internal/service/logs"
)

const (
	DefaultMaxAttempts = 5
	DefaultBaseBackoff = 1000 * time.Millisecond
	DefaultMaxJitter   = 1000 * time.Millisecond

	DefaultTemperature float32 = 0.8
	DefaultTopP        float32 = 0.95
)

// ModelFactory builds a chat model bound to one API key.
type ModelFactory func(ctx context.Context, apiKey string) (model.ChatModel, error)

// CredentialSource supplies the API key at call time.
type CredentialSource interface {
	APIKey() string
}

// Options tunes the retry loop and sampling. Zero values and nil sampling
// parameters take the defaults; an explicit zero temperature is kept.
type Options struct {
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxJitter    time.Duration
	HistoryLimit int
	Temperature  *float32
	TopP         *float32

	// Sleep waits between attempts; it returns early with ctx's error.
	Sleep func(ctx context.Context, d time.Duration) error
	// Jitter returns a value in [0, max).
	Jitter func(max time.Duration) time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = DefaultBaseBackoff
	}
	if o.MaxJitter <= 0 {
		o.MaxJitter = DefaultMaxJitter
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = DefaultHistoryLimit
	}
	if o.Temperature == nil {
		temperature := DefaultTemperature
		o.Temperature = &temperature
	}
	if o.TopP == nil {
		topP := DefaultTopP
		o.TopP = &topP
	}
	if o.Sleep == nil {
		o.Sleep = sleepContext
	}
	if o.Jitter == nil {
		o.Jitter = func(max time.Duration) time.Duration { return rand.N(max) }
	}
	return o
}

type boundChain struct {
	apiKey   string
	runnable compose.Runnable[map[string]any, *schema.Message]
}

// Service wraps one generation call with retries and turns every failure into a
// reply string.
type Service struct {
	factory     ModelFactory
	credentials CredentialSource
	recorder    *logs.Recorder
	opts        Options

	mu    sync.Mutex
	chain *boundChain
}

// NewService creates the response client.
func NewService(factory ModelFactory, credentials CredentialSource, recorder *logs.Recorder, opts Options) *Service {
	if recorder == nil {
		recorder = logs.NewRecorder(0, nil)
	}
	return &Service{
		factory:     factory,
		credentials: credentials,
		recorder:    recorder,
		opts:        opts.withDefaults(),
	}
}

// Generate asks the model to continue the conversation as the persona described
// by personality. It never fails: on error the matching fixed reply is returned.
func (s *Service) Generate(ctx context.Context, personality string, history []chat.Message) string {
	apiKey := s.credentials.APIKey()
	if apiKey == "" {
		s.recorder.Error("Generation skipped: API key not configured", nil)
		return KindMissingCredential.Reply()
	}

	runnable, err := s.chainFor(ctx, apiKey)
	if err != nil {
		s.recorder.Error("Failed to initialise chat model", map[string]any{"error": err.Error()})
		return KindConnectivity.Reply()
	}

	transcript := FormatHistory(history, s.opts.HistoryLimit)
	input := map[string]any{
		"personality": personality,
		"transcript":  transcript,
	}
	callOpt := compose.WithChatModelOption(
		model.WithTemperature(*s.opts.Temperature),
		model.WithTopP(*s.opts.TopP),
	)

	var lastErr error
	for attempt := 0; attempt < s.opts.MaxAttempts; attempt++ {
		s.recorder.API("Generation request", map[string]any{
			"attempt":           attempt + 1,
			"maxAttempts":       s.opts.MaxAttempts,
			"systemInstruction": personality,
			"contents":          transcript,
		})

		resp, err := runnable.Invoke(ctx, input, callOpt)
		if err == nil {
			text := ""
			if resp != nil {
				text = resp.Content
			}
			s.recorder.API("Generation response", map[string]any{
				"attempt": attempt + 1,
				"text":    text,
			})
			return text
		}

		lastErr = err
		kind := Classify(err)
		s.recorder.API("Generation failed", map[string]any{
			"attempt": attempt + 1,
			"kind":    kind.String(),
			"error":   err.Error(),
		})

		if kind != KindRateLimited {
			s.recorder.Error("Non-retriable error generating content", map[string]any{
				"kind":  kind.String(),
				"error": err.Error(),
			})
			break
		}
		if attempt == s.opts.MaxAttempts-1 {
			break
		}

		delay := s.Backoff(attempt)
		s.recorder.Warn("Rate limit hit, backing off", map[string]any{
			"attempt":     attempt + 1,
			"maxAttempts": s.opts.MaxAttempts,
			"delayMs":     delay.Milliseconds(),
		})
		if err := s.opts.Sleep(ctx, delay); err != nil {
			lastErr = fmt.Errorf("backoff interrupted: %w", err)
			break
		}
	}

	kind := Classify(lastErr)
	s.recorder.Error("Failed to get bot response", map[string]any{
		"kind":  kind.String(),
		"error": lastErr.Error(),
	})
	return kind.Reply()
}

// Backoff returns the wait before retry number attempt (zero-based):
// base*2^attempt plus up to MaxJitter of random jitter.
func (s *Service) Backoff(attempt int) time.Duration {
	return s.opts.BaseBackoff*time.Duration(1<<uint(attempt)) + s.opts.Jitter(s.opts.MaxJitter)
}

// chainFor returns the compiled prompt→model chain for apiKey, rebuilding it when
// the credential changes.
func (s *Service) chainFor(ctx context.Context, apiKey string) (compose.Runnable[map[string]any, *schema.Message], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chain != nil && s.chain.apiKey == apiKey {
		return s.chain.runnable, nil
	}

	chatModel, err := s.factory(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{personality}"),
		schema.UserMessage("{transcript}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	s.chain = &boundChain{apiKey: apiKey, runnable: runnable}
	return runnable, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
