package email

import (
	"context"
	"log/slog"
	"time"

	"categorywatch/internal/adapters/http/perf"
)

// DefaultSlowSendMs is the threshold above which a send is logged at WARN.
const DefaultSlowSendMs = 2000

// TimedSender wraps a Sender to log slow sends and record them to a collector.
type TimedSender struct {
	next      Sender
	collector *perf.Collector
	threshold float64
}

// Compile-time check that *TimedSender satisfies Sender.
var _ Sender = (*TimedSender)(nil)

// NewTimedSender wraps next with timing instrumentation. collector may be nil.
// PRE: next is non-nil
// POST: Returns a Sender that behaves like next
func NewTimedSender(next Sender, collector *perf.Collector) *TimedSender {
	return &TimedSender{next: next, collector: collector, threshold: DefaultSlowSendMs}
}

// Send delegates to the wrapped sender and records its duration.
// PRE: ctx is valid
// POST: Result and error are those of the wrapped sender
func (t *TimedSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	start := time.Now()
	res, err := t.next.Send(ctx, req)
	durationMs := float64(time.Since(start).Microseconds()) / 1000.0

	if durationMs >= t.threshold {
		slog.Warn("slow_send", "duration_ms", durationMs, "subject", req.Subject, "failed", err != nil)
	}
	if t.collector != nil {
		t.collector.Record(perf.Entry{
			Kind:       perf.KindSend,
			Path:       "email.Send",
			DurationMs: durationMs,
			Failed:     err != nil,
			Timestamp:  start,
		})
	}
	return res, err
}
