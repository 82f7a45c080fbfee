package event

import "go.uber.org/zap"

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used for dispatch tracing and listener failures.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger.With(zap.String("component", "eventbus"))
		}
	}
}
