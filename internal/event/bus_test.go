package event

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestBusEmitOrder(t *testing.T) {
	b := NewBus()
	var got []string
	b.On("doc.saved", func(any) { got = append(got, "a") })
	b.Once("doc.saved", func(any) { got = append(got, "once") })
	b.On("doc.saved", func(any) { got = append(got, "b") })

	b.Emit("doc.saved", nil)
	assert.Equal(t, []string{"a", "b", "once"}, got)

	b.Emit("doc.saved", nil)
	assert.Equal(t, []string{"a", "b", "once", "a", "b"}, got)
}

func TestBusPayload(t *testing.T) {
	b := NewBus()
	var got any
	b.On("x", func(data any) { got = data })
	b.Emit("x", 42)
	assert.Equal(t, 42, got)
}

func TestBusDisposeRemovesOnlyThatListener(t *testing.T) {
	b := NewBus()
	var a, c int
	subA := b.On("e", func(any) { a++ })
	b.On("e", func(any) { c++ })

	require.NoError(t, subA.Dispose())
	require.NoError(t, subA.Dispose())
	b.Emit("e", nil)

	assert.Equal(t, 0, a)
	assert.Equal(t, 1, c)
	assert.Equal(t, 1, b.ListenerCount("e"))
	assert.False(t, subA.IsActive())
}

func TestBusOnceFiresAtMostOnce(t *testing.T) {
	b := NewBus()
	calls := 0
	sub := b.Once("e", func(any) { calls++ })

	b.Emit("e", nil)
	b.Emit("e", nil)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, b.ListenerCount("e"))
	assert.False(t, sub.IsActive())
	assert.NoError(t, sub.Dispose())
}

func TestBusOnceDisposedBeforeEmit(t *testing.T) {
	b := NewBus()
	calls := 0
	sub := b.Once("e", func(any) { calls++ })
	require.NoError(t, sub.Dispose())

	b.Emit("e", nil)
	assert.Equal(t, 0, calls)
	assert.Empty(t, b.EventNames())
}

func TestBusListenerAddedDuringEmitNotInvoked(t *testing.T) {
	b := NewBus()
	var late, lateOnce int
	b.On("e", func(any) {
		b.On("e", func(any) { late++ })
		b.Once("e", func(any) { lateOnce++ })
	})

	b.Emit("e", nil)
	assert.Equal(t, 0, late)
	assert.Equal(t, 0, lateOnce)

	b.Emit("e", nil)
	assert.Equal(t, 1, late)
	assert.Equal(t, 1, lateOnce)
}

func TestBusOnceReEmitInsideListener(t *testing.T) {
	b := NewBus()
	calls := 0
	b.Once("e", func(any) {
		calls++
		b.Emit("e", nil)
	})
	b.Emit("e", nil)
	assert.Equal(t, 1, calls)
}

func TestBusListenerRemovedDuringEmitNotInvoked(t *testing.T) {
	b := NewBus()
	second := 0
	var sub *Subscription
	b.On("e", func(any) { _ = sub.Dispose() })
	sub = b.On("e", func(any) { second++ })

	b.Emit("e", nil)
	assert.Equal(t, 0, second)
}

func TestBusPanicIsolation(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	b := NewBus(WithLogger(zap.New(core)))

	ran := 0
	b.On("e", func(any) { panic("bad plugin") })
	b.On("e", func(any) { ran++ })
	b.Once("e", func(any) { panic("bad once") })
	b.Once("e", func(any) { ran++ })

	assert.NotPanics(t, func() { b.Emit("e", nil) })
	assert.Equal(t, 2, ran)

	entries := logs.FilterMessage("event listener failed").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "e", entries[0].ContextMap()["event"])
}

func TestBusOff(t *testing.T) {
	b := NewBus()
	calls := 0
	sub := b.On("e", func(any) { calls++ })

	assert.False(t, b.Off("other", sub))
	assert.False(t, b.Off("e", nil))
	assert.True(t, b.Off("e", sub))
	assert.False(t, b.Off("e", sub))

	b.Emit("e", nil)
	assert.Equal(t, 0, calls)

	other := NewBus()
	foreign := other.On("e", func(any) {})
	assert.False(t, b.Off("e", foreign))
	assert.Equal(t, 1, other.ListenerCount("e"))
}

func TestBusBucketRemovedWithLastListener(t *testing.T) {
	b := NewBus()
	s1 := b.On("a", func(any) {})
	s2 := b.Once("a", func(any) {})
	b.On("b", func(any) {})

	assert.Equal(t, []string{"a", "b"}, b.EventNames())
	assert.Equal(t, 2, b.ListenerCount("a"))

	require.NoError(t, s1.Dispose())
	assert.Equal(t, []string{"a", "b"}, b.EventNames())
	require.NoError(t, s2.Dispose())
	assert.Equal(t, []string{"b"}, b.EventNames())
	assert.Equal(t, 0, b.ListenerCount("a"))
}

func TestBusRemoveAllListeners(t *testing.T) {
	b := NewBus()
	calls := 0
	b.On("a", func(any) { calls++ })
	b.Once("a", func(any) { calls++ })
	b.On("b", func(any) { calls++ })

	b.RemoveAllListeners("a")
	assert.Equal(t, []string{"b"}, b.EventNames())

	b.RemoveAllListeners()
	assert.Empty(t, b.EventNames())

	b.Emit("a", nil)
	b.Emit("b", nil)
	assert.Equal(t, 0, calls)
}

func TestBusNilListener(t *testing.T) {
	b := NewBus()
	sub := b.On("e", nil)
	assert.False(t, sub.IsActive())
	assert.Equal(t, 0, b.ListenerCount("e"))
	assert.NotPanics(t, func() { b.Emit("e", nil) })
}

func TestBusDispose(t *testing.T) {
	b := NewBus()
	b.On("a", func(any) {})
	require.NoError(t, b.Dispose())
	assert.Empty(t, b.EventNames())
}

func TestBusConcurrentEmit(t *testing.T) {
	b := NewBus()
	var mu sync.Mutex
	normal, once := 0, 0
	b.On("e", func(any) {
		mu.Lock()
		normal++
		mu.Unlock()
	})
	b.Once("e", func(any) {
		mu.Lock()
		once++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Emit("e", nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 32, normal)
	assert.Equal(t, 1, once)
}

func TestSubscribeTyped(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	b := NewBus(WithLogger(zap.New(core)))

	var got []string
	Subscribe(b, "e", func(s string) { got = append(got, s) })
	SubscribeOnce(b, "e", func(s string) { got = append(got, "once:"+s) })

	b.Emit("e", 7)
	b.Emit("e", "hi")

	assert.Equal(t, []string{"hi"}, got)
	assert.Equal(t, 2, logs.FilterMessage("event payload type mismatch").Len())
}
