package events

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/georgemunganga/printa-garments/internal/domain"
)

// LogDispatcher writes events to the log. It is used when no broker is
// configured.
type LogDispatcher struct{ log logrus.FieldLogger }

func NewLogDispatcher(log logrus.FieldLogger) *LogDispatcher { return &LogDispatcher{log: log} }

func (d *LogDispatcher) Dispatch(_ context.Context, event domain.Event) error {
	d.log.WithFields(logrus.Fields{"event": event.Type(), "payload": event}).Debug("event dispatched")
	return nil
}

// Dispatch sends every event in order and logs failures. Events are only
// dispatched after the change they describe has been committed, so a failed
// delivery is never turned into an operation error.
func Dispatch(ctx context.Context, d domain.EventDispatcher, log logrus.FieldLogger, evs ...domain.Event) {
	if d == nil {
		return
	}
	for _, e := range evs {
		if err := d.Dispatch(ctx, e); err != nil {
			log.WithError(err).WithField("event", e.Type()).Error("dispatch event")
		}
	}
}
