package reminder

import (
	"time"

	"github.com/phrazzld/scry-notes/internal/platform/metrics"
)

// Option customizes a Service, Scheduler, Poller or Consumer.
type Option func(*options)

type options struct {
	metrics *metrics.Metrics
	now     func() time.Time
}

// WithMetrics records pipeline metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
