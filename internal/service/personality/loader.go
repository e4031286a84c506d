// Package personality fetches the instruction text behind every configured bot.
package personality

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/ai-collective/backend/internal/model/chat"
	"github.com/zhouzirui/ai-collective/backend/internal/model/persona"
)

const maxPersonalitySize = 256 * 1024

// ErrTooLarge is returned for a remote personality over maxPersonalitySize.
var ErrTooLarge = errors.New("personality exceeds size limit")

// Loader resolves personality paths against a file system, or over HTTP for
// absolute http(s) URLs.
type Loader struct {
	files  fs.FS
	client *http.Client
}

// NewLoader returns a loader reading relative paths from files. A nil client uses
// a default client with a short timeout.
func NewLoader(files fs.FS, client *http.Client) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Loader{files: files, client: client}
}

// Load fetches all personalities concurrently and returns the bots in roster
// order. The first failure cancels outstanding fetches and fails the whole load.
func (l *Loader) Load(ctx context.Context, personas []persona.Persona) ([]chat.Bot, error) {
	bots := make([]chat.Bot, len(personas))
	g, gctx := errgroup.WithContext(ctx)

	for i, p := range personas {
		g.Go(func() error {
			text, err := l.fetch(gctx, p.PersonalityFile)
			if err != nil {
				return fmt.Errorf("failed to fetch personality: %s: %w", p.PersonalityFile, err)
			}
			bots[i] = chat.Bot{
				Name:        p.Name,
				Personality: text,
				Avatar:      p.Avatar,
				AvatarColor: p.AvatarColor,
				Color:       p.Color,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bots, nil
}

func (l *Loader) fetch(ctx context.Context, path string) (string, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return l.fetchHTTP(ctx, path)
	}
	if l.files == nil {
		return "", fmt.Errorf("no personality file system configured")
	}
	data, err := fs.ReadFile(l.files, strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (l *Loader) fetchHTTP(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPersonalitySize+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxPersonalitySize {
		return "", ErrTooLarge
	}
	return string(data), nil
}
