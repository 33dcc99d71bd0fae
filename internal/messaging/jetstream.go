package messaging

import (
	"errors"

	"github.com/nats-io/nats.go"
)

const eventsStream = "STOCK_EVENTS"

// EventsSubjectFilter matches every order event subject.
const EventsSubjectFilter = "stock.event.>"

// EnsureStreams creates (or validates) the order-events stream.
func EnsureStreams(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(eventsStream); err != nil {
		if errors.Is(err, nats.ErrStreamNotFound) {
			if _, addErr := js.AddStream(&nats.StreamConfig{
				Name:      eventsStream,
				Subjects:  []string{EventsSubjectFilter},
				Retention: nats.LimitsPolicy,
				Storage:   nats.FileStorage,
				Replicas:  1,
			}); addErr != nil {
				return addErr
			}
		} else {
			return err
		}
	}
	return nil
}
