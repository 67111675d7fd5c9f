package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aivon/aivon/internal/memory"
	"github.com/aivon/aivon/internal/model"
	"github.com/aivon/aivon/internal/rag"
)

func TestBuildMessagesDefaultPrompt(t *testing.T) {
	msgs := buildMessages(promptInputs{userText: "hi there"})
	require.Len(t, msgs, 2)
	require.Equal(t, "system", msgs[0].Role)
	require.Equal(t, defaultSystemPrompt, msgs[0].Content)
	require.Equal(t, "user", msgs[1].Role)
	require.Equal(t, "hi there", msgs[1].Content)
}

func TestBuildMessagesPersonaAndVoice(t *testing.T) {
	msgs := buildMessages(promptInputs{
		persona:   &model.Persona{SystemPrompt: "You are a pirate."},
		voiceMode: true,
		userText:  "ahoy",
	})
	system := msgs[0].Content
	require.True(t, strings.HasPrefix(system, "You are a pirate."))
	require.Contains(t, system, "text-to-speech")
}

func TestBuildMessagesEmptyPersonaFallsBack(t *testing.T) {
	msgs := buildMessages(promptInputs{
		persona:  &model.Persona{SystemPrompt: "   "},
		userText: "hi",
	})
	require.Equal(t, defaultSystemPrompt, msgs[0].Content)
}

func TestBuildMessagesIncludesAugmentations(t *testing.T) {
	msgs := buildMessages(promptInputs{
		memories: []memory.Scored{{Memory: model.Memory{Content: "Lives in Berlin"}}},
		docs:     []rag.SearchResult{{Title: "Handbook", Content: "Vacation policy is 30 days."}},
		userText: "how much vacation do I get?",
	})
	system := msgs[0].Content
	require.Contains(t, system, "Lives in Berlin")
	require.Contains(t, system, "Handbook")
	require.Contains(t, system, "Vacation policy")
}

func TestBuildMessagesHistoryChronological(t *testing.T) {
	msgs := buildMessages(promptInputs{
		history: []model.Message{
			{Role: model.RoleUser, Content: "first"},
			{Role: model.RoleAssistant, Content: "second"},
			{Role: model.RoleTool, Content: "ignored"},
		},
		userText: "third",
	})
	require.Len(t, msgs, 4)
	require.Equal(t, "first", msgs[1].Content)
	require.Equal(t, "second", msgs[2].Content)
	require.Equal(t, "third", msgs[3].Content)
}

func TestBuildMessagesDropsOldestWhenOverBudget(t *testing.T) {
	old := strings.Repeat("a", 400)
	recent := strings.Repeat("b", 400)
	msgs := buildMessages(promptInputs{
		history: []model.Message{
			{Role: model.RoleUser, Content: old},
			{Role: model.RoleAssistant, Content: recent},
		},
		userText: "question",
		maxChars: len(defaultSystemPrompt) + len("question") + 450,
	})
	// only the newest history message fits the budget
	require.Len(t, msgs, 3)
	require.Equal(t, recent, msgs[1].Content)
}
