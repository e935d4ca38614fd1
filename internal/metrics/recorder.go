package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/wanpengxie/dictate/coordinator"

// Recorder is the Coordinator's observability side channel: one counter
// increment per executed effect, one per fault kind, and a session-duration
// histogram recorded on commit. It never feeds state back into the FSM.
type Recorder struct {
	effectsTotal metric.Int64Counter
	faultsTotal  metric.Int64Counter
	queueDropped metric.Int64Counter
	sessionDur   metric.Float64Histogram
}

// NewRecorder builds instruments against the given meter provider. A nil
// provider yields a no-op Recorder so the Coordinator can run unconditionally
// even when metrics.enable is false.
func NewRecorder(mp metric.MeterProvider) (*Recorder, error) {
	if mp == nil {
		mp = noopmetric.NewMeterProvider()
	}
	m := mp.Meter(meterName)

	effectsTotal, err := m.Int64Counter("dictate.coordinator.effects_total",
		metric.WithDescription("Effects executed by the Recording Coordinator, by kind."))
	if err != nil {
		return nil, err
	}
	faultsTotal, err := m.Int64Counter("dictate.coordinator.faults_total",
		metric.WithDescription("Faults translated into Coordinator events, by kind."))
	if err != nil {
		return nil, err
	}
	queueDropped, err := m.Int64Counter("dictate.coordinator.queue_dropped_total",
		metric.WithDescription("Audio frames evicted from the bounded send queue."))
	if err != nil {
		return nil, err
	}
	sessionDur, err := m.Float64Histogram("dictate.coordinator.session_duration",
		metric.WithDescription("Session duration from UserStart to commit."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Recorder{
		effectsTotal: effectsTotal,
		faultsTotal:  faultsTotal,
		queueDropped: queueDropped,
		sessionDur:   sessionDur,
	}, nil
}

// RecordEffect increments the per-kind effect counter.
func (r *Recorder) RecordEffect(kind string) {
	r.effectsTotal.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordFault increments the per-kind fault counter.
func (r *Recorder) RecordFault(kind string) {
	r.faultsTotal.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordQueueDrop increments the queue-eviction counter by n.
func (r *Recorder) RecordQueueDrop(n int64) {
	if n <= 0 {
		return
	}
	r.queueDropped.Add(context.Background(), n)
}

// RecordSessionDuration observes the elapsed time between UserStart and a
// successful commit.
func (r *Recorder) RecordSessionDuration(d time.Duration) {
	r.sessionDur.Record(context.Background(), d.Seconds())
}
