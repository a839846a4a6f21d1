package mqtt

import (
	"context"
	"encoding/json"
	"log"

	"github.com/AaronLay10/RepairWorkshop/internal/events"
)

// Publisher sends a payload to a topic. Implemented by Client.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Forwarder publishes every emitted event as JSON to the events topic.
type Forwarder struct {
	pub   Publisher
	topic string
}

// NewForwarder creates a forwarder publishing to EventsTopic(prefix).
func NewForwarder(pub Publisher, prefix string) *Forwarder {
	return &Forwarder{pub: pub, topic: EventsTopic(prefix)}
}

// Run forwards events until ctx is cancelled or the subscription is closed.
// Publish failures are logged, not emitted, since emitting would feed the loop.
func (f *Forwarder) Run(ctx context.Context) {
	sub := events.Subscribe()
	defer events.Unsubscribe(sub)

	failing := false
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub:
			if !ok {
				return
			}
			b, err := json.Marshal(e)
			if err != nil {
				log.Printf("mqtt: failed to marshal event %s: %v", e.Name, err)
				continue
			}
			if err := f.pub.Publish(f.topic, b); err != nil {
				if !failing {
					log.Printf("mqtt: failed to publish to %s: %v", f.topic, err)
					failing = true
				}
				continue
			}
			failing = false
		}
	}
}
