package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type ManagerConfig struct {
	ChatModel     string
	TitleModel    string
	Temperature   float64
	Timeout       int
	MaxInputChars int
}

// Manager bundles the model calls the pipeline needs: chat (streaming and
// buffered), title naming, memory extraction, and embeddings. The embedder
// is injected separately so cache layers can wrap it.
type Manager struct {
	provider IProvider
	embedder IEmbedder
	cfg      ManagerConfig
}

func NewManager(provider IProvider, embedder IEmbedder, cfg ManagerConfig) *Manager {
	return &Manager{provider: provider, embedder: embedder, cfg: cfg}
}

func (m *Manager) ChatModel() string {
	return m.cfg.ChatModel
}

func (m *Manager) Temperature() float64 {
	return m.cfg.Temperature
}

func (m *Manager) MaxInputChars() int {
	return m.cfg.MaxInputChars
}

func (m *Manager) EmbeddingModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}

func (m *Manager) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	return m.embedder.Embed(ctx, text, taskType)
}

// Chat runs a buffered completion with the configured timeout.
func (m *Manager) Chat(ctx context.Context, model string, messages []ChatMessage, tools []ToolSpec) (*ChatResult, error) {
	if m.provider == nil {
		return nil, fmt.Errorf("provider not configured")
	}
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
		defer cancel()
	}
	return m.provider.Chat(ctx, m.resolveModel(model), messages, tools, ChatOptions{Temperature: m.cfg.Temperature})
}

// ChatStream runs a streaming completion. No manager-level timeout is
// applied: long generations are expected and the transport's own deadline
// still bounds a stalled upstream.
func (m *Manager) ChatStream(ctx context.Context, model string, messages []ChatMessage, tools []ToolSpec, onDelta StreamHandler) (*ChatResult, error) {
	if m.provider == nil {
		return nil, fmt.Errorf("provider not configured")
	}
	return m.provider.ChatStream(ctx, m.resolveModel(model), messages, tools, ChatOptions{Temperature: m.cfg.Temperature}, onDelta)
}

// Title asks the model to name a conversation in a few words.
func (m *Manager) Title(ctx context.Context, conversation string) (string, error) {
	prompt := fmt.Sprintf(`Generate a short title (3-6 words) for the conversation below.
- Output ONLY the title, no quotes, no punctuation at the end.

CONVERSATION:
%s`, conversation)
	result, err := m.generate(ctx, m.cfg.TitleModel, prompt)
	if err != nil {
		return "", err
	}
	return CleanTitle(result), nil
}

// memoryNoneSentinel is what the extraction prompt asks the model to emit
// when a transcript holds nothing worth remembering.
const memoryNoneSentinel = "none"

// ExtractMemories asks the model for durable single-sentence facts about the
// user found in a transcript. Returns nil when the model reports none.
func (m *Manager) ExtractMemories(ctx context.Context, transcript string, max int) ([]string, error) {
	if max <= 0 {
		max = 3
	}
	prompt := fmt.Sprintf(`You extract durable facts about the user from a conversation.
Rules:
- Output up to %d facts, one per line, each a single short sentence about the user (preferences, personal details, ongoing projects, important dates).
- Only include facts worth remembering long-term. Ignore small talk and one-off questions.
- If there is nothing worth remembering, output exactly: %s

CONVERSATION:
%s`, max, memoryNoneSentinel, transcript)
	result, err := m.generate(ctx, m.cfg.ChatModel, prompt)
	if err != nil {
		return nil, err
	}
	return ParseMemoryLines(result, max), nil
}

func (m *Manager) generate(ctx context.Context, model, prompt string) (string, error) {
	result, err := m.Chat(ctx, model, []ChatMessage{{Role: "user", Content: prompt}}, nil)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(result.Content)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}

func (m *Manager) resolveModel(model string) string {
	if strings.TrimSpace(model) != "" {
		return model
	}
	return m.cfg.ChatModel
}

// CleanTitle strips quoting and trailing punctuation the model tends to add.
func CleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	if idx := strings.IndexByte(title, '\n'); idx >= 0 {
		title = title[:idx]
	}
	title = strings.Trim(title, `"'`)
	title = strings.TrimRight(title, ".!?")
	return strings.TrimSpace(title)
}

// ParseMemoryLines normalizes the extraction output: bullets and numbering
// stripped, trivial lines and the "none" sentinel dropped.
func ParseMemoryLines(output string, max int) []string {
	var facts []string
	for _, line := range strings.Split(output, "\n") {
		fact := strings.TrimSpace(line)
		fact = strings.TrimLeft(fact, "-*•0123456789.) ")
		fact = strings.TrimSpace(fact)
		if fact == "" || len(fact) < 8 {
			continue
		}
		if strings.EqualFold(fact, memoryNoneSentinel) {
			return nil
		}
		facts = append(facts, fact)
		if len(facts) >= max {
			break
		}
	}
	return facts
}
