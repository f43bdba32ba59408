package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToListener(t *testing.T) {
	sink := NewSink(DefaultConfig())
	defer sink.Close()

	var mu sync.Mutex
	var got []Event
	done := make(chan struct{}, 1)

	ok := sink.Register(ListenerFunc{
		FuncName: "collector",
		Func: func(e Event) error {
			mu.Lock()
			got = append(got, e)
			mu.Unlock()
			select {
			case done <- struct{}{}:
			default:
			}
			return nil
		},
	})
	require.True(t, ok)

	require.True(t, sink.Publish(Event{Kind: KindPluginAdded, Subject: "reverb"}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener was not invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, KindPluginAdded, got[0].Kind)
	assert.Equal(t, "reverb", got[0].Subject)
}

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	sink := NewSink(DefaultConfig())
	defer sink.Close()

	l := ListenerFunc{FuncName: "dup", Func: func(Event) error { return nil }}
	require.True(t, sink.Register(l))
	require.False(t, sink.Register(l))
}

func TestPublishDropsWhenClosed(t *testing.T) {
	sink := NewSink(DefaultConfig())
	sink.Close()
	assert.False(t, sink.Publish(Event{Kind: KindStreamStateChanged}))
}

func TestListenerPanicDoesNotStallDispatch(t *testing.T) {
	sink := NewSink(DefaultConfig())
	defer sink.Close()

	done := make(chan struct{}, 1)
	sink.Register(ListenerFunc{FuncName: "bad", Func: func(Event) error { panic("boom") }})
	sink.Register(ListenerFunc{FuncName: "good", Func: func(Event) error {
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	}})

	sink.Publish(Event{Kind: KindPluginRemoved})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("good listener never ran after bad listener panicked")
	}
}
