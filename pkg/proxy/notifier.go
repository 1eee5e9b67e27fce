package proxy

import (
	"log/slog"

	"vibehub/gateway/pkg/stats"
)

// Status is the lifecycle state of one provider attempt.
type Status string

// Attempt statuses. Every attempted candidate produces exactly one
// pending event followed by exactly one terminal (success or error)
// event.
const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// StatusEvent is the payload published to the notifier during the
// fallback loop, for consumption by a presentation layer.
type StatusEvent struct {
	ProviderID string `json:"provider_id"`
	Status     Status `json:"status"`
}

// Notifier is the injected live-status channel. Delivery is best-effort:
// implementations must not block the request path and must never let a
// delivery failure alter the request outcome. A headless deployment uses
// NopNotifier.
type Notifier interface {
	Publish(event StatusEvent)
}

// NopNotifier discards all events.
type NopNotifier struct{}

// Publish implements Notifier.
func (NopNotifier) Publish(StatusEvent) {}

// LogNotifier writes events to the structured log at debug level. Useful
// for headless deployments that still want attempt visibility.
type LogNotifier struct{}

// Publish implements Notifier.
func (LogNotifier) Publish(event StatusEvent) {
	slog.Debug("provider status", "provider_id", event.ProviderID, "status", string(event.Status))
}

// Recorder receives one RequestLog per attempted candidate. The stats
// manager is the primary recorder; the history archive is a secondary
// one.
type Recorder interface {
	Record(log stats.RequestLog)
}

// multiRecorder fans a log out to several recorders in order.
type multiRecorder []Recorder

// MultiRecorder combines recorders into one. Nil entries are skipped.
func MultiRecorder(recorders ...Recorder) Recorder {
	var rs multiRecorder
	for _, r := range recorders {
		if r != nil {
			rs = append(rs, r)
		}
	}
	return rs
}

// Record implements Recorder.
func (rs multiRecorder) Record(log stats.RequestLog) {
	for _, r := range rs {
		r.Record(log)
	}
}
