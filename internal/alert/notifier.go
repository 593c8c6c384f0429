package alert

import (
	"context"

	"go.uber.org/zap"

	"rumen-monitor/internal/db"
	"rumen-monitor/internal/model"
)

// Sink receives alerts for live fan-out.
type Sink interface {
	BroadcastAlert(model.Alert)
}

// Publisher republishes alerts on the outbound broker topic.
type Publisher interface {
	PublishAlert(model.Alert) error
}

// Notifier is the single path every alert takes: persist, fan out to live
// subscribers, republish to the broker. Manual (administrative) alerts go
// through the same Raise call as evaluator-fired ones.
type Notifier struct {
	store     *db.Store
	sink      Sink
	publisher Publisher
	logger    *zap.Logger
}

func NewNotifier(store *db.Store, sink Sink, publisher Publisher, logger *zap.Logger) *Notifier {
	return &Notifier{store: store, sink: sink, publisher: publisher, logger: logger}
}

// Raise persists the alert (assigning its id), then delivers it. Fan-out and
// broker publish failures are logged, not returned: once the alert is durable
// the caller's message processing must not fail on a delivery problem.
func (n *Notifier) Raise(ctx context.Context, a *model.Alert) error {
	if err := n.store.SaveAlert(ctx, a); err != nil {
		return err
	}

	n.logger.Info("alert raised",
		zap.Uint("id", a.ID),
		zap.Int("station_id", a.StationID),
		zap.String("kind", a.Kind),
		zap.String("severity", a.Severity),
	)

	if n.sink != nil {
		n.sink.BroadcastAlert(*a)
	}
	if n.publisher != nil {
		if err := n.publisher.PublishAlert(*a); err != nil {
			n.logger.Warn("outbound alert publish failed",
				zap.Uint("id", a.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}
