package event

import (
	"testing"

	"pgregory.net/rapid"
)

// Every live listener of an event runs exactly once per Emit, in
// registration order; disposed listeners never run.
func TestBusDeliveryProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		b := NewBus()
		n := rapid.IntRange(1, 20).Draw(rt, "listeners")
		emits := rapid.IntRange(1, 5).Draw(rt, "emits")

		var calls []int
		subs := make([]*Subscription, n)
		for i := 0; i < n; i++ {
			i := i
			subs[i] = b.On("e", func(any) { calls = append(calls, i) })
		}

		removed := make(map[int]bool)
		for i := 0; i < n; i++ {
			if rapid.Bool().Draw(rt, "remove") {
				removed[i] = true
				_ = subs[i].Dispose()
			}
		}

		for e := 0; e < emits; e++ {
			b.Emit("e", e)
		}

		var want []int
		for e := 0; e < emits; e++ {
			for i := 0; i < n; i++ {
				if !removed[i] {
					want = append(want, i)
				}
			}
		}
		if len(calls) != len(want) {
			rt.Fatalf("got %d invocations, want %d", len(calls), len(want))
		}
		for i := range want {
			if calls[i] != want[i] {
				rt.Fatalf("invocation %d: got listener %d, want %d", i, calls[i], want[i])
			}
		}
		if got, wantCount := b.ListenerCount("e"), n-len(removed); got != wantCount {
			rt.Fatalf("ListenerCount() = %d, want %d", got, wantCount)
		}
	})
}

// A once listener runs at most one time regardless of how many emits follow.
func TestBusOnceProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		b := NewBus()
		n := rapid.IntRange(1, 10).Draw(rt, "once")
		emits := rapid.IntRange(0, 6).Draw(rt, "emits")

		counts := make([]int, n)
		for i := 0; i < n; i++ {
			i := i
			b.Once("e", func(any) { counts[i]++ })
		}
		for e := 0; e < emits; e++ {
			b.Emit("e", nil)
		}

		want := 0
		if emits > 0 {
			want = 1
		}
		for i, c := range counts {
			if c != want {
				rt.Fatalf("once listener %d ran %d times, want %d", i, c, want)
			}
		}
	})
}
