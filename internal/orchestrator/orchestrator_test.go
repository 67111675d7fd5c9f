package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aivon/aivon/internal/ai"
	"github.com/aivon/aivon/internal/memory"
	"github.com/aivon/aivon/internal/model"
	appErr "github.com/aivon/aivon/internal/pkg/errors"
	"github.com/aivon/aivon/internal/rag"
	"github.com/aivon/aivon/internal/tools"
	"github.com/aivon/aivon/internal/websearch"
)

type fakeChats struct {
	mu    sync.Mutex
	chat  model.Chat
	total int
	title string
}

func (f *fakeChats) GetByID(ctx context.Context, userID, chatID string) (*model.Chat, error) {
	c := f.chat
	return &c, nil
}

func (f *fakeChats) Touch(ctx context.Context, userID, chatID string, now int64, n int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.total += n
	return f.total, nil
}

func (f *fakeChats) UpdateTitle(ctx context.Context, userID, chatID, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.title = title
	return nil
}

type fakeMsgs struct {
	mu      sync.Mutex
	history []model.Message
	created []model.Message
}

func (f *fakeMsgs) Create(ctx context.Context, msg *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, *msg)
	return nil
}

func (f *fakeMsgs) ListRecent(ctx context.Context, chatID string, limit int) ([]model.Message, error) {
	return f.history, nil
}

func (f *fakeMsgs) byRole(role model.MessageRole) []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Message
	for _, m := range f.created {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

type fakePersonas struct {
	persona *model.Persona
}

func (f *fakePersonas) GetByID(ctx context.Context, userID, personaID string) (*model.Persona, error) {
	if f.persona == nil {
		return nil, appErr.ErrNotFound
	}
	return f.persona, nil
}

type fakeMemories struct {
	mu           sync.Mutex
	searchRes    []memory.Scored
	extracts     int
	consolidates int
}

func (f *fakeMemories) Search(ctx context.Context, userID, query string) ([]memory.Scored, error) {
	return f.searchRes, nil
}

func (f *fakeMemories) ExtractFromTurn(ctx context.Context, userID, chatID, transcript string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extracts++
	return 0, nil
}

func (f *fakeMemories) Consolidate(ctx context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consolidates++
	return 0, nil
}

func (f *fakeMemories) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.extracts, f.consolidates
}

type fakeDocs struct {
	res      []rag.SearchResult
	gotQuery string
}

func (f *fakeDocs) Search(ctx context.Context, userID, query string, docIDs []string) ([]rag.SearchResult, error) {
	f.gotQuery = query
	return f.res, nil
}

type fakeWeb struct {
	resp     *websearch.Response
	gotQuery string
	gotSite  string
}

func (f *fakeWeb) Search(ctx context.Context, query, site string, limit int) (*websearch.Response, error) {
	f.gotQuery = query
	f.gotSite = site
	if f.resp == nil {
		return &websearch.Response{}, nil
	}
	return f.resp, nil
}

type fakeToolset struct {
	list []tools.Tool
}

func (f *fakeToolset) EnabledForUser(ctx context.Context, userID string, isAdmin bool, chatTools []string) ([]tools.Tool, error) {
	return f.list, nil
}

type fakeTool struct {
	name    string
	out     string
	err     error
	gotArgs map[string]interface{}
}

func (f *fakeTool) Name() string                        { return f.name }
func (f *fakeTool) Description() string                 { return "fake" }
func (f *fakeTool) Parameters() map[string]interface{}  { return map[string]interface{}{"type": "object"} }
func (f *fakeTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	f.gotArgs = args
	return f.out, f.err
}

type llmCall struct {
	deltas []string
	result ai.ChatResult
	err    error
}

type scriptedLLM struct {
	mu        sync.Mutex
	calls     []llmCall
	got       [][]ai.ChatMessage
	gotModels []string
	title     string
}

func (s *scriptedLLM) ChatStream(ctx context.Context, mdl string, messages []ai.ChatMessage, specs []ai.ToolSpec, onDelta ai.StreamHandler) (*ai.ChatResult, error) {
	s.mu.Lock()
	if len(s.calls) == 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("unexpected llm call")
	}
	call := s.calls[0]
	s.calls = s.calls[1:]
	s.got = append(s.got, messages)
	s.gotModels = append(s.gotModels, mdl)
	s.mu.Unlock()

	if call.err != nil && len(call.deltas) == 0 {
		return nil, call.err
	}
	result := call.result
	var content strings.Builder
	for _, d := range call.deltas {
		if err := onDelta(d); err != nil {
			result.Content = content.String()
			return &result, err
		}
		content.WriteString(d)
	}
	if result.Content == "" {
		result.Content = content.String()
	}
	return &result, call.err
}

func (s *scriptedLLM) Title(ctx context.Context, conversation string) (string, error) {
	return s.title, nil
}

func (s *scriptedLLM) ChatModel() string  { return "test-model" }
func (s *scriptedLLM) MaxInputChars() int { return 100000 }

type harness struct {
	chats    *fakeChats
	msgs     *fakeMsgs
	memories *fakeMemories
	docs     *fakeDocs
	web      *fakeWeb
	toolset  *fakeToolset
	llm      *scriptedLLM
	orch     *Orchestrator
}

func newHarness(llm *scriptedLLM) *harness {
	h := &harness{
		chats:    &fakeChats{chat: model.Chat{ID: "chat-1", UserID: "user-1", Title: model.DefaultChatTitle}},
		msgs:     &fakeMsgs{},
		memories: &fakeMemories{},
		docs:     &fakeDocs{},
		web:      &fakeWeb{},
		toolset:  &fakeToolset{},
		llm:      llm,
	}
	seq := 0
	h.orch = New(Deps{
		Chats:    h.chats,
		Messages: h.msgs,
		Personas: &fakePersonas{},
		Memories: h.memories,
		Docs:     h.docs,
		Web:      h.web,
		Tools:    h.toolset,
		LLM:      h.llm,
		Limiter:  NewLimiter(4),
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		},
	}, Config{ConsolidateEvery: 10})
	return h
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) sink(ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func (l *eventLog) ofType(t EventType) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, ev := range l.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func TestGenerateStreamHappyPath(t *testing.T) {
	llm := &scriptedLLM{
		calls: []llmCall{{deltas: []string{"Hello", " there"}, result: ai.ChatResult{Usage: ai.Usage{PromptTokens: 10, CompletionTokens: 2}}}},
		title: "Friendly Greeting",
	}
	h := newHarness(llm)
	var log eventLog

	msg, err := h.orch.GenerateStream(context.Background(), Request{
		UserID: "user-1", ChatID: "chat-1", Text: "hello there friend",
	}, log.sink)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, "Hello there", msg.Content)
	require.Equal(t, "test-model", msg.Model)
	require.Equal(t, 10, msg.TokenUsage.Prompt)
	require.Equal(t, 2, msg.TokenUsage.Completion)

	require.Len(t, log.ofType(EventThinking), 1)
	require.Len(t, log.ofType(EventContent), 2)
	require.Len(t, log.ofType(EventDone), 1)
	require.Empty(t, log.ofType(EventError))

	titleEvents := log.ofType(EventTitleUpdated)
	require.Len(t, titleEvents, 1)
	require.Equal(t, "Friendly Greeting", titleEvents[0].Title)
	require.Equal(t, "Friendly Greeting", h.chats.title)

	require.Len(t, h.msgs.byRole(model.RoleUser), 1)
	require.Len(t, h.msgs.byRole(model.RoleAssistant), 1)

	require.Eventually(t, func() bool {
		extracts, _ := h.memories.counts()
		return extracts == 1
	}, time.Second, 10*time.Millisecond, "background extraction should run")
}

func TestGenerateRejectsWhenSaturated(t *testing.T) {
	llm := &scriptedLLM{calls: []llmCall{{deltas: []string{"x"}}}}
	h := newHarness(llm)
	h.orch.limiter = NewLimiter(1)
	require.NoError(t, h.orch.limiter.Acquire())

	_, err := h.orch.Generate(context.Background(), Request{UserID: "user-1", ChatID: "chat-1", Text: "hello there friend"})
	require.ErrorIs(t, err, appErr.ErrTooMany)
}

func TestProviderErrorEmitsSingleErrorEventAndPersistsNoAssistant(t *testing.T) {
	llm := &scriptedLLM{calls: []llmCall{{err: ai.ErrUnavailable}}}
	h := newHarness(llm)
	var log eventLog

	_, err := h.orch.GenerateStream(context.Background(), Request{
		UserID: "user-1", ChatID: "chat-1", Text: "hello there friend",
	}, log.sink)
	require.ErrorIs(t, err, ai.ErrUnavailable)

	require.Len(t, log.ofType(EventError), 1)
	require.Empty(t, log.ofType(EventDone))
	require.Len(t, h.msgs.byRole(model.RoleUser), 1, "user message stays persisted")
	require.Empty(t, h.msgs.byRole(model.RoleAssistant))
}

func TestDisconnectBeforeContentDropsAssistantTurn(t *testing.T) {
	llm := &scriptedLLM{calls: []llmCall{{deltas: []string{"never delivered"}}}}
	h := newHarness(llm)

	failing := func(ev Event) error {
		if ev.Type == EventContent {
			return fmt.Errorf("broken pipe")
		}
		return nil
	}
	msg, err := h.orch.GenerateStream(context.Background(), Request{
		UserID: "user-1", ChatID: "chat-1", Text: "hello there friend",
	}, failing)
	require.NoError(t, err)
	require.Nil(t, msg)
	require.Empty(t, h.msgs.byRole(model.RoleAssistant))
	require.Len(t, h.msgs.byRole(model.RoleUser), 1)
}

func TestDisconnectMidStreamPersistsPartial(t *testing.T) {
	llm := &scriptedLLM{calls: []llmCall{{deltas: []string{"first chunk ", "second chunk"}}}}
	h := newHarness(llm)

	delivered := 0
	failing := func(ev Event) error {
		if ev.Type == EventContent {
			delivered++
			if delivered > 1 {
				return fmt.Errorf("broken pipe")
			}
		}
		return nil
	}
	msg, err := h.orch.GenerateStream(context.Background(), Request{
		UserID: "user-1", ChatID: "chat-1", Text: "hello there friend",
	}, failing)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, "first chunk ", msg.Content)

	assistants := h.msgs.byRole(model.RoleAssistant)
	require.Len(t, assistants, 1)
	require.Equal(t, "first chunk ", assistants[0].Content)
}

func TestToolRoundExecutesAndFeedsBack(t *testing.T) {
	llm := &scriptedLLM{
		calls: []llmCall{
			{result: ai.ChatResult{ToolCalls: []ai.ToolCall{{
				ID: "call-1", Name: "echo", Arguments: map[string]interface{}{"text": "ping"},
			}}}},
			{deltas: []string{"pong"}},
		},
		title: "Echo Test",
	}
	h := newHarness(llm)
	tool := &fakeTool{name: "echo", out: "echo: ping"}
	h.toolset.list = []tools.Tool{tool}
	var log eventLog

	msg, err := h.orch.GenerateStream(context.Background(), Request{
		UserID: "user-1", ChatID: "chat-1", Text: "hello there friend",
	}, log.sink)
	require.NoError(t, err)
	require.Equal(t, "pong", msg.Content)
	require.Equal(t, "ping", tool.gotArgs["text"])

	starts := log.ofType(EventActionStart)
	require.Len(t, starts, 1)
	require.Equal(t, model.ActionToolCall, starts[0].Action.Kind)
	completes := log.ofType(EventActionComplete)
	require.Len(t, completes, 1)
	require.Equal(t, model.ActionComplete, completes[0].Action.Status)

	// the second request must carry the tool result back to the model
	require.Len(t, llm.got, 2)
	second := llm.got[1]
	var sawToolMsg bool
	for _, m := range second {
		if m.Role == "tool" && m.Content == "echo: ping" && m.ToolCallID == "call-1" {
			sawToolMsg = true
		}
	}
	require.True(t, sawToolMsg)

	require.Len(t, msg.Actions, 1)
	require.Equal(t, "echo", msg.Actions[0].Name)
}

func TestUnknownToolReportsErrorToModel(t *testing.T) {
	llm := &scriptedLLM{
		calls: []llmCall{
			{result: ai.ChatResult{ToolCalls: []ai.ToolCall{{ID: "call-1", Name: "missing"}}}},
			{deltas: []string{"ok"}},
		},
		title: "t",
	}
	h := newHarness(llm)
	var log eventLog

	msg, err := h.orch.GenerateStream(context.Background(), Request{
		UserID: "user-1", ChatID: "chat-1", Text: "hello there friend",
	}, log.sink)
	require.NoError(t, err)
	require.Equal(t, "ok", msg.Content)
	require.Len(t, msg.Actions, 1)
	require.Equal(t, model.ActionFailed, msg.Actions[0].Status)

	second := llm.got[1]
	var toolContent string
	for _, m := range second {
		if m.Role == "tool" {
			toolContent = m.Content
		}
	}
	require.Contains(t, toolContent, "unknown tool")
}

func TestWebSearchAugmentationFlowsIntoPrompt(t *testing.T) {
	llm := &scriptedLLM{calls: []llmCall{{deltas: []string{"Gold is up."}}}, title: "Gold"}
	h := newHarness(llm)
	h.web.resp = &websearch.Response{Results: []websearch.Result{
		{Title: "Gold price today", URL: "https://example.com/gold", Snippet: "Gold rose 2%"},
	}}
	var log eventLog

	_, err := h.orch.GenerateStream(context.Background(), Request{
		UserID: "user-1", ChatID: "chat-1", Text: "What's the latest price of gold?",
	}, log.sink)
	require.NoError(t, err)
	require.Contains(t, h.web.gotQuery, "gold")

	starts := log.ofType(EventActionStart)
	var sawWeb bool
	for _, ev := range starts {
		if ev.Action.Kind == model.ActionWebSearch {
			sawWeb = true
		}
	}
	require.True(t, sawWeb)

	system := llm.got[0][0]
	require.Equal(t, "system", system.Role)
	require.Contains(t, system.Content, "Web search results")
	require.Contains(t, system.Content, "example.com/gold")
}

func TestMemoryRecallEmitsMemoriesUsed(t *testing.T) {
	llm := &scriptedLLM{calls: []llmCall{{deltas: []string{"Noted."}}}, title: "t"}
	h := newHarness(llm)
	h.memories.searchRes = []memory.Scored{
		{Memory: model.Memory{ID: "m1", Content: "User's name is Sam"}, Score: 0.9},
	}
	var log eventLog

	_, err := h.orch.GenerateStream(context.Background(), Request{
		UserID: "user-1", ChatID: "chat-1", Text: "My name is Sam, remember that",
	}, log.sink)
	require.NoError(t, err)

	used := log.ofType(EventMemoriesUsed)
	require.Len(t, used, 1)
	require.Equal(t, "m1", used[0].Memories[0].ID)

	system := llm.got[0][0].Content
	require.Contains(t, system, "User's name is Sam")
}

func TestConsolidationRunsEveryNthMessage(t *testing.T) {
	llm := &scriptedLLM{calls: []llmCall{{deltas: []string{"ok"}}}, title: "t"}
	h := newHarness(llm)
	h.chats.total = 8 // user msg makes 9, assistant makes 10

	_, err := h.orch.Generate(context.Background(), Request{
		UserID: "user-1", ChatID: "chat-1", Text: "hello there friend",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, consolidates := h.memories.counts()
		return consolidates == 1
	}, time.Second, 10*time.Millisecond)
}

func TestModelOverrideThreadsToProviderAndMessage(t *testing.T) {
	llm := &scriptedLLM{calls: []llmCall{{deltas: []string{"ok"}}}, title: "t"}
	h := newHarness(llm)

	msg, err := h.orch.Generate(context.Background(), Request{
		UserID: "user-1", ChatID: "chat-1", Text: "hello there friend",
		ModelOverride: "qwen2.5:14b",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"qwen2.5:14b"}, llm.gotModels)
	require.Equal(t, "qwen2.5:14b", msg.Model)

	assistants := h.msgs.byRole(model.RoleAssistant)
	require.Len(t, assistants, 1)
	require.Equal(t, "qwen2.5:14b", assistants[0].Model)
}

func TestNoOverrideUsesConfiguredModel(t *testing.T) {
	llm := &scriptedLLM{calls: []llmCall{{deltas: []string{"ok"}}}, title: "t"}
	h := newHarness(llm)

	msg, err := h.orch.Generate(context.Background(), Request{
		UserID: "user-1", ChatID: "chat-1", Text: "hello there friend",
	})
	require.NoError(t, err)
	require.Equal(t, []string{""}, llm.gotModels)
	require.Equal(t, "test-model", msg.Model)
}

func TestThinkingTracePersistedAndEmitted(t *testing.T) {
	llm := &scriptedLLM{
		calls: []llmCall{{deltas: []string{"answer"}, result: ai.ChatResult{Thinking: "considered the options"}}},
		title: "t",
	}
	h := newHarness(llm)
	var log eventLog

	msg, err := h.orch.GenerateStream(context.Background(), Request{
		UserID: "user-1", ChatID: "chat-1", Text: "hello there friend",
	}, log.sink)
	require.NoError(t, err)
	require.Equal(t, "considered the options", msg.Thinking)

	thinkings := log.ofType(EventThinking)
	var sawTrace bool
	for _, ev := range thinkings {
		if ev.Text == "considered the options" {
			sawTrace = true
		}
	}
	require.True(t, sawTrace)

	assistants := h.msgs.byRole(model.RoleAssistant)
	require.Len(t, assistants, 1)
	require.Equal(t, "considered the options", assistants[0].Thinking)
}

func TestWarmupReportsReadiness(t *testing.T) {
	ready := newHarness(&scriptedLLM{calls: []llmCall{{deltas: []string{"OK"}}}})
	require.True(t, ready.orch.Warmup(context.Background()))

	down := newHarness(&scriptedLLM{calls: []llmCall{{err: ai.ErrUnavailable}}})
	require.False(t, down.orch.Warmup(context.Background()))
}

func TestEmptyMessageRejected(t *testing.T) {
	h := newHarness(&scriptedLLM{})
	_, err := h.orch.Generate(context.Background(), Request{UserID: "user-1", ChatID: "chat-1", Text: "   "})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}
