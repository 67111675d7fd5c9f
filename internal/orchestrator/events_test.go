package orchestrator

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aivon/aivon/internal/model"
)

func marshalEvent(t *testing.T, ev Event) map[string]interface{} {
	t.Helper()
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func eventData(t *testing.T, ev Event) map[string]interface{} {
	t.Helper()
	out := marshalEvent(t, ev)
	data, ok := out["data"].(map[string]interface{})
	require.True(t, ok, "event must nest its payload under data")
	return data
}

func TestContentEventCarriesDelta(t *testing.T) {
	out := marshalEvent(t, Event{Type: EventContent, Text: "hello"})
	require.Equal(t, "content", out["type"])
	data := out["data"].(map[string]interface{})
	require.Equal(t, "hello", data["delta"])
	require.NotContains(t, out, "text")
}

func TestThinkingEventCarriesContent(t *testing.T) {
	data := eventData(t, Event{Type: EventThinking, Text: "weighing sources"})
	require.Equal(t, "weighing sources", data["content"])
}

func TestErrorEventCarriesMessage(t *testing.T) {
	data := eventData(t, Event{Type: EventError, Text: "generation failed"})
	require.Equal(t, "generation failed", data["message"])
}

func TestActionEventShape(t *testing.T) {
	action := &model.Action{
		ID:         "a1",
		Kind:       model.ActionWebSearch,
		Name:       "web_search",
		Parameters: map[string]interface{}{"query": "gold price"},
		Status:     model.ActionComplete,
		Result:     "3 results",
	}
	data := eventData(t, Event{Type: EventActionComplete, Action: action})
	require.Equal(t, "a1", data["id"])
	require.Equal(t, "web_search", data["type"])
	require.Equal(t, "web_search", data["name"])
	require.Equal(t, "complete", data["status"])
	require.Equal(t, "3 results", data["result"])
	params := data["parameters"].(map[string]interface{})
	require.Equal(t, "gold price", params["query"])
	require.NotContains(t, data, "error")
}

func TestMemoriesUsedEventShape(t *testing.T) {
	data := eventData(t, Event{Type: EventMemoriesUsed, Memories: []MemoryRef{
		{ID: "m1", Content: "likes tea", Score: 0.8},
	}})
	memories := data["memories"].([]interface{})
	require.Len(t, memories, 1)
	first := memories[0].(map[string]interface{})
	require.Equal(t, "m1", first["id"])
	require.Equal(t, "likes tea", first["content"])
	require.InDelta(t, 0.8, first["score"], 1e-9)
}

func TestDoneEventShape(t *testing.T) {
	msg := &model.Message{
		Model:      "llama3.1:8b",
		TokenUsage: model.TokenUsage{Prompt: 10, Completion: 5, Total: 15},
	}
	data := eventData(t, Event{Type: EventDone, Message: msg, Duration: 1500 * time.Millisecond})
	require.Equal(t, "llama3.1:8b", data["model"])
	require.EqualValues(t, 1500, data["duration_ms"])
	usage := data["token_usage"].(map[string]interface{})
	require.EqualValues(t, 10, usage["prompt"])
	require.EqualValues(t, 5, usage["completion"])
	require.EqualValues(t, 15, usage["total"])
}
