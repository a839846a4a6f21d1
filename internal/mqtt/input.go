package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/RepairWorkshop/internal/events"
	"github.com/AaronLay10/RepairWorkshop/internal/game"
	"github.com/AaronLay10/RepairWorkshop/internal/repair"
)

// InputTopic returns the topic player input is read from.
func InputTopic(prefix string) string {
	return prefix + "/input"
}

// EventsTopic returns the topic engine events are published to.
func EventsTopic(prefix string) string {
	return prefix + "/events"
}

// InputSink receives decoded player input. Implemented by game.Host.
type InputSink interface {
	Input(ctx context.Context, elementID string, in repair.Input) (game.LevelView, error)
}

// InputSubscriber turns messages on the input topic into engine input.
type InputSubscriber struct {
	sink    InputSink
	timeout time.Duration
}

// NewInputSubscriber creates a subscriber delivering to sink.
func NewInputSubscriber(sink InputSink) *InputSubscriber {
	return &InputSubscriber{sink: sink, timeout: 5 * time.Second}
}

// Handler returns the paho handler for the input topic.
func (s *InputSubscriber) Handler() paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		// Rejections are already reported by the host or below.
		_ = s.HandleMessage(msg.Topic(), msg.Payload())
	}
}

// HandleMessage decodes one JSON input message and routes it.
func (s *InputSubscriber) HandleMessage(topic string, payload []byte) error {
	var req game.InputRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		events.Emit("warning", "input.rejected", "invalid input payload", map[string]interface{}{
			"topic": topic,
			"error": err.Error(),
		})
		return fmt.Errorf("failed to decode input: %w", err)
	}
	if req.ElementID == "" {
		events.Emit("warning", "input.rejected", "missing element_id", map[string]interface{}{
			"topic": topic,
		})
		return fmt.Errorf("input has no element_id")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, err := s.sink.Input(ctx, req.ElementID, req.Input())
	return err
}
