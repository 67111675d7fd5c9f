package orchestrator

import (
	"encoding/json"
	"time"

	"github.com/aivon/aivon/internal/model"
)

// EventType enumerates the stream protocol. A turn opens with a thinking
// event, then interleaves action and content events (further thinking events
// carry the model's reasoning trace when the runtime exposes one), and ends
// with exactly one of done or error.
type EventType string

const (
	EventThinking       EventType = "thinking"
	EventActionStart    EventType = "action_start"
	EventActionComplete EventType = "action_complete"
	EventContent        EventType = "content"
	EventMemoriesUsed   EventType = "memories_used"
	EventTitleUpdated   EventType = "title_updated"
	EventDone           EventType = "done"
	EventError          EventType = "error"
)

type MemoryRef struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Event is the in-process form of one stream event. The wire form nests the
// per-type payload under a "data" object; see MarshalJSON.
type Event struct {
	Type     EventType
	Text     string
	Action   *model.Action
	Memories []MemoryRef
	Title    string
	Message  *model.Message
	Duration time.Duration
}

// MarshalJSON renders the wire protocol: {"type": ..., "data": {...}} with
// payload keys fixed per event type. content carries data.delta (append-only
// fragments), thinking data.content, error data.message, done the model name,
// token usage and turn duration.
func (e Event) MarshalJSON() ([]byte, error) {
	data := map[string]interface{}{}
	switch e.Type {
	case EventThinking:
		data["content"] = e.Text
	case EventContent:
		data["delta"] = e.Text
	case EventError:
		data["message"] = e.Text
	case EventActionStart, EventActionComplete:
		if e.Action != nil {
			data["id"] = e.Action.ID
			data["type"] = e.Action.Kind
			data["name"] = e.Action.Name
			data["status"] = e.Action.Status
			if len(e.Action.Parameters) > 0 {
				data["parameters"] = e.Action.Parameters
			}
			if e.Action.Result != "" {
				data["result"] = e.Action.Result
			}
			if e.Action.Error != "" {
				data["error"] = e.Action.Error
			}
		}
	case EventMemoriesUsed:
		data["memories"] = e.Memories
	case EventTitleUpdated:
		data["title"] = e.Title
	case EventDone:
		if e.Message != nil {
			data["model"] = e.Message.Model
			data["token_usage"] = e.Message.TokenUsage
		}
		data["duration_ms"] = e.Duration.Milliseconds()
	}
	return json.Marshal(struct {
		Type EventType              `json:"type"`
		Data map[string]interface{} `json:"data"`
	}{e.Type, data})
}

// EventSink delivers one event to the client. An error from the sink means
// the client is gone; the turn stops streaming and applies the disconnect
// rule.
type EventSink func(Event) error
