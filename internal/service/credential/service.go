// Package credential holds the single API key used to call the LLM service.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/zhouzirui/ai-collective/backend/pkg/observer"
)

// StorageKey is the well-known key the API credential is stored under.
const StorageKey = "llm_api_key"

var ErrEmptyCredential = errors.New("api key must not be empty")

// Service caches the persisted credential in memory and announces changes.
type Service struct {
	store KVStore

	mu  sync.RWMutex
	key string
	hub observer.Hub[string]
}

// NewService wraps a KVStore. Call Load before first use.
func NewService(store KVStore) *Service {
	return &Service{store: store}
}

// Load reads the persisted credential. A missing key is not an error.
func (s *Service) Load(ctx context.Context) error {
	value, err := s.store.Get(ctx, StorageKey)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}

	s.mu.Lock()
	s.key = value
	s.mu.Unlock()
	return nil
}

// APIKey returns the current credential, or "" when none is configured.
func (s *Service) APIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

// HasKey reports whether a credential is configured.
func (s *Service) HasKey() bool {
	return s.APIKey() != ""
}

// Save persists key, then makes it current and notifies subscribers.
func (s *Service) Save(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyCredential
	}
	if err := s.store.Set(ctx, StorageKey, key); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}

	s.mu.Lock()
	s.key = key
	s.mu.Unlock()

	s.hub.Publish(key)
	return nil
}

// Subscribe registers fn for credential changes.
func (s *Service) Subscribe(fn func(key string)) func() {
	return s.hub.Subscribe(fn)
}

// Masked returns a display-safe rendition of the current credential.
func (s *Service) Masked() string {
	return Mask(s.APIKey())
}

// Mask keeps the first and last four characters of long keys.
func Mask(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + "…" + key[len(key)-4:]
}
