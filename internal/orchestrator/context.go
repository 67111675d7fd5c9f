package orchestrator

import (
	"fmt"
	"strings"

	"github.com/aivon/aivon/internal/ai"
	"github.com/aivon/aivon/internal/memory"
	"github.com/aivon/aivon/internal/model"
	"github.com/aivon/aivon/internal/rag"
	"github.com/aivon/aivon/internal/websearch"
)

const defaultSystemPrompt = "You are a helpful personal assistant."

const voiceAddendum = "The user is listening to your reply through text-to-speech. Answer in short, plain sentences. No markdown, no lists, no code blocks."

type promptInputs struct {
	persona   *model.Persona
	voiceMode bool
	memories  []memory.Scored
	docs      []rag.SearchResult
	web       *websearch.Response
	webQuery  string
	history   []model.Message
	userText  string
	maxChars  int
}

// buildMessages assembles the request the model sees: one system message
// carrying persona and augmentation context, the bounded history, and the
// new user message. When everything together exceeds maxChars, history is
// dropped oldest-first; the system message and the new message always fit.
func buildMessages(in promptInputs) []ai.ChatMessage {
	system := buildSystemPrompt(in)
	budget := in.maxChars
	if budget > 0 {
		budget -= len(system) + len(in.userText)
	}

	var history []ai.ChatMessage
	if budget > 0 || in.maxChars <= 0 {
		used := 0
		// walk newest-first so the most recent exchanges survive the cut
		for i := len(in.history) - 1; i >= 0; i-- {
			msg := &in.history[i]
			if msg.Role != model.RoleUser && msg.Role != model.RoleAssistant {
				continue
			}
			if msg.Content == "" {
				continue
			}
			if in.maxChars > 0 && used+len(msg.Content) > budget {
				break
			}
			used += len(msg.Content)
			history = append(history, ai.ChatMessage{Role: string(msg.Role), Content: msg.Content})
		}
	}
	// reverse back to chronological order
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}

	out := make([]ai.ChatMessage, 0, len(history)+2)
	out = append(out, ai.ChatMessage{Role: "system", Content: system})
	out = append(out, history...)
	out = append(out, ai.ChatMessage{Role: "user", Content: in.userText})
	return out
}

func buildSystemPrompt(in promptInputs) string {
	var sb strings.Builder
	if in.persona != nil && strings.TrimSpace(in.persona.SystemPrompt) != "" {
		sb.WriteString(strings.TrimSpace(in.persona.SystemPrompt))
	} else {
		sb.WriteString(defaultSystemPrompt)
	}
	if in.voiceMode {
		sb.WriteString("\n\n")
		sb.WriteString(voiceAddendum)
	}
	if len(in.memories) > 0 {
		sb.WriteString("\n\nWhat you remember about the user:\n")
		for _, m := range in.memories {
			sb.WriteString("- ")
			sb.WriteString(m.Content)
			sb.WriteByte('\n')
		}
	}
	if len(in.docs) > 0 {
		sb.WriteString("\nRelevant excerpts from the user's documents:\n")
		for _, d := range in.docs {
			fmt.Fprintf(&sb, "[%s]\n%s\n\n", d.Title, d.Content)
		}
	}
	if in.web != nil && (len(in.web.Results) > 0 || in.web.Answer != "") {
		fmt.Fprintf(&sb, "\nWeb search results for %q:\n", in.webQuery)
		if in.web.Answer != "" {
			sb.WriteString("Answer: " + in.web.Answer + "\n")
		}
		for _, r := range in.web.Results {
			fmt.Fprintf(&sb, "- %s (%s): %s\n", r.Title, r.URL, r.Snippet)
		}
		sb.WriteString("Cite sources by URL when you use them.\n")
	}
	return strings.TrimSpace(sb.String())
}

// transcript renders the closing exchange of a turn for memory extraction
// and title naming.
func transcript(userText, assistantText string) string {
	var sb strings.Builder
	sb.WriteString("User: ")
	sb.WriteString(userText)
	sb.WriteString("\nAssistant: ")
	sb.WriteString(assistantText)
	return sb.String()
}
