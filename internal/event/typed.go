package event

import (
	"fmt"

	"go.uber.org/zap"
)

// Subscribe registers a listener that only receives payloads of type T.
// Payloads of any other type are logged and skipped.
func Subscribe[T any](b *Bus, event string, fn func(T)) *Subscription {
	return b.On(event, typed(b, event, fn))
}

// SubscribeOnce is the Once variant of Subscribe.
func SubscribeOnce[T any](b *Bus, event string, fn func(T)) *Subscription {
	return b.Once(event, typed(b, event, fn))
}

func typed[T any](b *Bus, event string, fn func(T)) Listener {
	if fn == nil {
		return nil
	}
	return func(data any) {
		v, ok := data.(T)
		if !ok {
			b.logger.Warn("event payload type mismatch",
				zap.String("event", event),
				zap.String("want", fmt.Sprintf("%T", *new(T))),
				zap.String("got", fmt.Sprintf("%T", data)),
			)
			return
		}
		fn(v)
	}
}
