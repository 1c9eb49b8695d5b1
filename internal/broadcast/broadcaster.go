package broadcast

import (
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pollpulse/pollpulse/internal/domain"
	"github.com/pollpulse/pollpulse/internal/metrics"
)

// Frame types pushed to observers.
const (
	TypeInitialData = "initial_data"
	TypePollUpdate  = "poll_update"
)

// Envelope is the wire format for every frame sent to an observer.
type Envelope struct {
	Type string               `json:"type"`
	Poll *domain.PollSnapshot `json:"poll"`
}

// DeliveryReport summarizes one broadcast: how many observers got the frame
// and how many were evicted after a failed delivery attempt.
type DeliveryReport struct {
	Delivered int
	Failed    int
}

// Broadcaster fans a poll snapshot out to every observer subscribed to that
// poll. A delivery failure for one observer never aborts delivery to the
// rest and never surfaces to the vote-casting caller: the failed observer is
// lazily removed from the poll's subscriber set.
type Broadcaster struct {
	registry *Registry
}

func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// Broadcast delivers the snapshot to every observer currently subscribed to
// pollID. An empty observer set is a no-op, not an error. The observer set
// is snapshotted at broadcast start; observers subscribing mid-broadcast
// catch the next one.
func (b *Broadcaster) Broadcast(pollID uuid.UUID, snapshot *domain.PollSnapshot) DeliveryReport {
	observers := b.registry.ObserversFor(pollID)
	if len(observers) == 0 {
		return DeliveryReport{}
	}

	frame, err := json.Marshal(Envelope{Type: TypePollUpdate, Poll: snapshot})
	if err != nil {
		slog.Error("Failed to marshal poll update", "poll_id", pollID.String(), "error", err)
		return DeliveryReport{Failed: len(observers)}
	}

	var report DeliveryReport
	for _, o := range observers {
		if err := o.Deliver(frame); err != nil {
			report.Failed++
			metrics.DeliveriesTotal.WithLabelValues("failed").Inc()
			metrics.EvictedObservers.Inc()
			b.registry.Unsubscribe(pollID, o)
			slog.Warn("Evicting unreachable observer", "poll_id", pollID.String(), "error", err)
			continue
		}
		report.Delivered++
		metrics.DeliveriesTotal.WithLabelValues("delivered").Inc()
	}

	metrics.BroadcastsTotal.Inc()
	slog.Debug("Broadcast complete",
		"poll_id", pollID.String(),
		"delivered", report.Delivered,
		"failed", report.Failed,
	)
	return report
}

// SendInitial pushes the one-time initial_data frame to a freshly subscribed
// observer.
func (b *Broadcaster) SendInitial(o *Observer, snapshot *domain.PollSnapshot) error {
	frame, err := json.Marshal(Envelope{Type: TypeInitialData, Poll: snapshot})
	if err != nil {
		return err
	}
	return o.Deliver(frame)
}

// Stop closes every connected observer gracefully and empties the registry.
func (b *Broadcaster) Stop() {
	observers := b.registry.DrainConnected()
	for _, o := range observers {
		o.StopGraceful("server shutting down")
	}
	slog.Info("Broadcaster shutdown complete", "disconnected_observers", len(observers))
}
