package logs

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecorderKeepsInsertionOrder(t *testing.T) {
	rec := NewRecorder(10, nil)
	rec.Info("first", nil)
	rec.Warn("second", map[string]any{"k": 1})

	entries := rec.List()
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Title)
	assert.Equal(t, LevelWarn, entries[1].Level)
	assert.NotNil(t, entries[0].Details)
}

func TestRecorderEvictsOldestWhenFull(t *testing.T) {
	rec := NewRecorder(DefaultCapacity, nil)
	for i := 0; i < DefaultCapacity; i++ {
		rec.Info(fmt.Sprintf("entry-%d", i), nil)
	}
	require.Equal(t, DefaultCapacity, rec.Len())

	rec.Info("entry-500", nil)

	entries := rec.List()
	require.Len(t, entries, DefaultCapacity)
	assert.Equal(t, "entry-1", entries[0].Title)
	assert.Equal(t, "entry-500", entries[len(entries)-1].Title)
	for i, entry := range entries {
		assert.Equal(t, fmt.Sprintf("entry-%d", i+1), entry.Title)
	}
}

func TestRecorderFilterByLevel(t *testing.T) {
	rec := NewRecorder(10, nil)
	rec.Debug("d", nil)
	rec.API("a", nil)
	rec.Error("e", nil)

	entries := rec.Filter(LevelAPI, LevelError)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Title)
	assert.Equal(t, "e", entries[1].Title)
	assert.Len(t, rec.Filter(), 3)
}

func TestRecorderNotifiesSubscribersSynchronously(t *testing.T) {
	rec := NewRecorder(10, nil)
	var seen []string
	unsub := rec.Subscribe(func(e Entry) { seen = append(seen, e.Title) })

	rec.Info("one", nil)
	assert.Equal(t, []string{"one"}, seen)

	unsub()
	rec.Info("two", nil)
	assert.Equal(t, []string{"one"}, seen)
}

func TestRecorderPublishesInBufferOrder(t *testing.T) {
	rec := NewRecorder(1000, nil)
	var seen []string
	rec.Subscribe(func(e Entry) { seen = append(seen, e.ID) })

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				rec.Info(fmt.Sprintf("worker-%d-%d", w, i), nil)
			}
		}()
	}
	wg.Wait()

	entries := rec.List()
	require.Len(t, entries, 400)
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	assert.Equal(t, ids, seen)
}

func TestRecorderMirrorsAllButAPI(t *testing.T) {
	core, observed := observer.New(zap.DebugLevel)
	rec := NewRecorder(10, zap.New(core))

	rec.Info("visible", map[string]any{"botCount": 5})
	rec.API("hidden", nil)

	logged := observed.All()
	require.Len(t, logged, 1)
	assert.Equal(t, "visible", logged[0].Message)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel(" api ")
	require.NoError(t, err)
	assert.Equal(t, LevelAPI, level)

	_, err = ParseLevel("trace")
	assert.Error(t, err)
}
