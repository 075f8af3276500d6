package sink

import (
	"context"

	"github.com/httpdwatch/httpdwatch/internal/metric"
)

// Sink accepts metrics one at a time. Push may block to apply backpressure;
// callers pass a context so shutdown can interrupt a blocked push.
// Implementations must be safe for concurrent pushes — scrapes for several
// targets run in parallel.
type Sink interface {
	Push(ctx context.Context, m metric.Metric) error
}

// Func adapts a plain function into a Sink.
type Func func(ctx context.Context, m metric.Metric) error

func (f Func) Push(ctx context.Context, m metric.Metric) error { return f(ctx, m) }

// Pipeline is a buffered in-process Sink. When the buffer is full, Push
// blocks until the consumer catches up or ctx is cancelled — backpressure
// delays the producing tick rather than dropping samples.
type Pipeline struct {
	ch chan metric.Metric
}

// NewPipeline creates a Pipeline with the given buffer depth.
func NewPipeline(depth int) *Pipeline {
	return &Pipeline{ch: make(chan metric.Metric, depth)}
}

// Push enqueues m, blocking while the buffer is full.
func (p *Pipeline) Push(ctx context.Context, m metric.Metric) error {
	select {
	case p.ch <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Out returns the consumer side of the pipeline.
func (p *Pipeline) Out() <-chan metric.Metric { return p.ch }

// Tee forwards every metric to each of its sinks in order.
// The first failing sink aborts the push and its error is returned.
type Tee []Sink

func (t Tee) Push(ctx context.Context, m metric.Metric) error {
	for _, s := range t {
		if err := s.Push(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
