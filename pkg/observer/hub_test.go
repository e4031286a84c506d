package observer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversToAllSubscribers(t *testing.T) {
	var hub Hub[int]
	var a, b []int

	unsubA := hub.Subscribe(func(v int) { a = append(a, v) })
	hub.Subscribe(func(v int) { b = append(b, v) })

	hub.Publish(1)
	unsubA()
	hub.Publish(2)

	assert.Equal(t, []int{1}, a)
	assert.Equal(t, []int{1, 2}, b)
	assert.Equal(t, 1, hub.Len())
}

func TestHubUnsubscribeIsIdempotent(t *testing.T) {
	var hub Hub[string]
	unsub := hub.Subscribe(func(string) {})
	other := hub.Subscribe(func(string) {})

	unsub()
	unsub()

	require.Equal(t, 1, hub.Len())
	other()
	require.Zero(t, hub.Len())
}

func TestHubCallbackMayUnsubscribeItself(t *testing.T) {
	var hub Hub[int]
	calls := 0
	var unsub func()
	unsub = hub.Subscribe(func(int) {
		calls++
		unsub()
	})

	hub.Publish(1)
	hub.Publish(2)

	assert.Equal(t, 1, calls)
}
