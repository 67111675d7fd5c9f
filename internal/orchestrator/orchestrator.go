// Package orchestrator runs one conversational turn end to end: intent
// classification, gated augmentation, context assembly, streamed generation
// with tool rounds, persistence, and the background memory pass.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/aivon/aivon/internal/ai"
	"github.com/aivon/aivon/internal/classify"
	"github.com/aivon/aivon/internal/memory"
	"github.com/aivon/aivon/internal/model"
	appErr "github.com/aivon/aivon/internal/pkg/errors"
	"github.com/aivon/aivon/internal/rag"
	"github.com/aivon/aivon/internal/tools"
	"github.com/aivon/aivon/internal/websearch"
)

type ChatStore interface {
	GetByID(ctx context.Context, userID, chatID string) (*model.Chat, error)
	Touch(ctx context.Context, userID, chatID string, now int64, newMessages int) (int, error)
	UpdateTitle(ctx context.Context, userID, chatID, title string) error
}

type MessageStore interface {
	Create(ctx context.Context, msg *model.Message) error
	ListRecent(ctx context.Context, chatID string, limit int) ([]model.Message, error)
}

type PersonaStore interface {
	GetByID(ctx context.Context, userID, personaID string) (*model.Persona, error)
}

type MemoryRecaller interface {
	Search(ctx context.Context, userID, query string) ([]memory.Scored, error)
	ExtractFromTurn(ctx context.Context, userID, chatID, transcript string) (int, error)
	Consolidate(ctx context.Context, userID string) (int, error)
}

type DocSearcher interface {
	Search(ctx context.Context, userID, query string, docIDs []string) ([]rag.SearchResult, error)
}

type WebSearcher interface {
	Search(ctx context.Context, query, site string, limit int) (*websearch.Response, error)
}

type ToolResolver interface {
	EnabledForUser(ctx context.Context, userID string, isAdmin bool, chatTools []string) ([]tools.Tool, error)
}

// ChatModel is the slice of the ai manager a turn needs.
type ChatModel interface {
	ChatStream(ctx context.Context, model string, messages []ai.ChatMessage, specs []ai.ToolSpec, onDelta ai.StreamHandler) (*ai.ChatResult, error)
	Title(ctx context.Context, conversation string) (string, error)
	ChatModel() string
	MaxInputChars() int
}

type Config struct {
	HistoryLimit     int
	ToolRounds       int
	WebResultLimit   int
	ConsolidateEvery int
}

type Orchestrator struct {
	chats    ChatStore
	msgs     MessageStore
	personas PersonaStore
	memories MemoryRecaller
	docs     DocSearcher
	web      WebSearcher
	toolset  ToolResolver
	llm      ChatModel
	limiter  *Limiter
	newID    func() string
	cfg      Config
}

type Deps struct {
	Chats    ChatStore
	Messages MessageStore
	Personas PersonaStore
	Memories MemoryRecaller
	Docs     DocSearcher
	Web      WebSearcher
	Tools    ToolResolver
	LLM      ChatModel
	Limiter  *Limiter
	NewID    func() string
}

func New(deps Deps, cfg Config) *Orchestrator {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	if cfg.ToolRounds <= 0 {
		cfg.ToolRounds = 4
	}
	if cfg.WebResultLimit <= 0 {
		cfg.WebResultLimit = 5
	}
	if cfg.ConsolidateEvery <= 0 {
		cfg.ConsolidateEvery = 10
	}
	return &Orchestrator{
		chats:    deps.Chats,
		msgs:     deps.Messages,
		personas: deps.Personas,
		memories: deps.Memories,
		docs:     deps.Docs,
		web:      deps.Web,
		toolset:  deps.Tools,
		llm:      deps.LLM,
		limiter:  deps.Limiter,
		newID:    deps.NewID,
		cfg:      cfg,
	}
}

type Request struct {
	UserID      string
	IsAdmin     bool
	ChatID      string
	Text        string
	DocumentIDs []string
	// ModelOverride selects a model for this turn only; empty means the
	// configured chat model.
	ModelOverride string
}

// errClientGone marks a sink failure so it can be told apart from provider
// errors when the stream stops.
var errClientGone = errors.New("client disconnected")

// Generate runs a turn buffered: events are consumed internally and only the
// persisted assistant message is returned.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*model.Message, error) {
	return o.GenerateStream(ctx, req, func(Event) error { return nil })
}

// GenerateStream runs one turn, delivering events through sink. On provider
// failure the turn emits a single error event and persists no assistant
// message. On client disconnect the partial content is persisted if any was
// delivered, otherwise the assistant turn is dropped entirely.
func (o *Orchestrator) GenerateStream(ctx context.Context, req Request, sink EventSink) (*model.Message, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty message", appErr.ErrInvalid)
	}
	if err := o.limiter.Acquire(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { o.limiter.Release(time.Since(start)) }()

	chat, err := o.chats.GetByID(ctx, req.UserID, req.ChatID)
	if err != nil {
		return nil, err
	}
	if err := emit(sink, Event{Type: EventThinking}); err != nil {
		return nil, nil
	}

	history, err := o.msgs.ListRecent(ctx, req.ChatID, o.cfg.HistoryLimit)
	if err != nil {
		return nil, o.failTurn(ctx, sink, err)
	}

	now := time.Now().Unix()
	userMsg := &model.Message{
		ID:          o.newID(),
		ChatID:      req.ChatID,
		Role:        model.RoleUser,
		Content:     text,
		DocumentIDs: req.DocumentIDs,
		Ctime:       now,
	}
	if err := o.msgs.Create(ctx, userMsg); err != nil {
		return nil, o.failTurn(ctx, sink, err)
	}
	if _, err := o.chats.Touch(ctx, req.UserID, req.ChatID, now, 1); err != nil {
		logutil.GetLogger(ctx).Warn("touch chat failed", zap.Error(err))
	}

	intent := classify.Classify(text)
	aug, actions, clientGone := o.augment(ctx, req, chat, intent, text, sink)
	if clientGone {
		return nil, nil
	}

	persona := o.resolvePersona(ctx, req.UserID, chat.PersonaID)
	enabled, err := o.toolset.EnabledForUser(ctx, req.UserID, req.IsAdmin, chat.ToolNames)
	if err != nil {
		logutil.GetLogger(ctx).Warn("resolve tools failed, proceeding without tools", zap.Error(err))
		enabled = nil
	}

	convo := buildMessages(promptInputs{
		persona:   persona,
		voiceMode: chat.VoiceMode,
		memories:  aug.memories,
		docs:      aug.docs,
		web:       aug.web,
		webQuery:  intent.WebQuery,
		history:   history,
		userText:  text,
		maxChars:  o.llm.MaxInputChars(),
	})

	content, thinking, usage, toolActions, streamErr := o.streamRounds(ctx, req.ModelOverride, convo, enabled, sink)
	actions = append(actions, toolActions...)

	turn := turnResult{
		userText: text,
		content:  content,
		thinking: thinking,
		usage:    usage,
		actions:  actions,
		start:    start,
	}
	switch {
	case errors.Is(streamErr, errClientGone):
		if content == "" {
			logutil.GetLogger(ctx).Info("client gone before content, dropping assistant turn",
				zap.String("chat_id", req.ChatID))
			return nil, nil
		}
		// deliver what was produced; no further events can reach the client
		return o.finishTurn(ctx, req, chat, turn, nil)
	case streamErr != nil:
		return nil, o.failTurn(ctx, sink, streamErr)
	}

	return o.finishTurn(ctx, req, chat, turn, sink)
}

// Warmup issues a tiny request so the local model is resident before the
// first real turn. Reports whether the model answered.
func (o *Orchestrator) Warmup(ctx context.Context) bool {
	_, err := o.llm.ChatStream(ctx, "", []ai.ChatMessage{{Role: "user", Content: "Reply with OK."}}, nil,
		func(string) error { return nil })
	if err != nil {
		logutil.GetLogger(ctx).Warn("model warmup failed", zap.Error(err))
		return false
	}
	logutil.GetLogger(ctx).Info("model warmed up", zap.String("model", o.llm.ChatModel()))
	return true
}

// Stats exposes limiter load for the stats endpoint.
func (o *Orchestrator) Stats() (active int, avgLatency time.Duration) {
	return o.limiter.Stats()
}

// LatencyPercentiles exposes the recent turn latency distribution.
func (o *Orchestrator) LatencyPercentiles() (p50, p90, p99 time.Duration) {
	return o.limiter.Percentiles()
}

type augmentation struct {
	memories []memory.Scored
	docs     []rag.SearchResult
	web      *websearch.Response
}

// augment runs the gated pre-generation lookups. Failures mark the action
// failed and the turn continues; only a dead client stops it.
func (o *Orchestrator) augment(ctx context.Context, req Request, chat *model.Chat, intent classify.Intent, text string, sink EventSink) (augmentation, []model.Action, bool) {
	var aug augmentation
	var actions []model.Action

	if intent.MemoryRecall {
		action := o.startAction(model.ActionMemoryRecall, "memory_recall", map[string]interface{}{"query": text})
		if err := emit(sink, Event{Type: EventActionStart, Action: &action}); err != nil {
			return aug, actions, true
		}
		recalled, err := o.memories.Search(ctx, req.UserID, text)
		if err != nil {
			failAction(&action, err)
		} else {
			aug.memories = recalled
			completeAction(&action, fmt.Sprintf("%d memories recalled", len(recalled)))
		}
		actions = append(actions, action)
		if err := emit(sink, Event{Type: EventActionComplete, Action: &action}); err != nil {
			return aug, actions, true
		}
		if len(recalled) > 0 {
			refs := make([]MemoryRef, 0, len(recalled))
			for _, m := range recalled {
				refs = append(refs, MemoryRef{ID: m.ID, Content: m.Content, Score: m.Score})
			}
			if err := emit(sink, Event{Type: EventMemoriesUsed, Memories: refs}); err != nil {
				return aug, actions, true
			}
		}
	}

	if intent.DocSearch || len(req.DocumentIDs) > 0 {
		action := o.startAction(model.ActionRetrieval, "document_search", map[string]interface{}{"query": text})
		if err := emit(sink, Event{Type: EventActionStart, Action: &action}); err != nil {
			return aug, actions, true
		}
		found, err := o.docs.Search(ctx, req.UserID, text, req.DocumentIDs)
		if err != nil {
			failAction(&action, err)
		} else {
			aug.docs = found
			completeAction(&action, fmt.Sprintf("%d passages retrieved", len(found)))
		}
		actions = append(actions, action)
		if err := emit(sink, Event{Type: EventActionComplete, Action: &action}); err != nil {
			return aug, actions, true
		}
	}

	if intent.WebSearch {
		params := map[string]interface{}{"query": intent.WebQuery}
		if intent.WebSite != "" {
			params["site"] = intent.WebSite
		}
		action := o.startAction(model.ActionWebSearch, "web_search", params)
		if err := emit(sink, Event{Type: EventActionStart, Action: &action}); err != nil {
			return aug, actions, true
		}
		resp, err := o.web.Search(ctx, intent.WebQuery, intent.WebSite, o.cfg.WebResultLimit)
		if err != nil {
			failAction(&action, err)
		} else {
			aug.web = resp
			completeAction(&action, fmt.Sprintf("%d results", len(resp.Results)))
		}
		actions = append(actions, action)
		if err := emit(sink, Event{Type: EventActionComplete, Action: &action}); err != nil {
			return aug, actions, true
		}
	}

	return aug, actions, false
}

// streamRounds drives the generation loop: stream, execute any tool calls,
// feed results back, repeat. After the round cap the tool specs are dropped
// so the model must answer with what it has.
func (o *Orchestrator) streamRounds(ctx context.Context, modelName string, convo []ai.ChatMessage, enabled []tools.Tool, sink EventSink) (string, string, model.TokenUsage, []model.Action, error) {
	byName := make(map[string]tools.Tool, len(enabled))
	for _, t := range enabled {
		byName[t.Name()] = t
	}
	specs := tools.Specs(enabled)

	var content strings.Builder
	var thinking strings.Builder
	var usage model.TokenUsage
	var actions []model.Action

	onDelta := func(delta string) error {
		if err := emit(sink, Event{Type: EventContent, Text: delta}); err != nil {
			return errClientGone
		}
		content.WriteString(delta)
		return nil
	}

	for round := 0; ; round++ {
		if round >= o.cfg.ToolRounds {
			specs = nil
		}
		result, err := o.llm.ChatStream(ctx, modelName, convo, specs, onDelta)
		if result != nil {
			usage.Prompt += result.Usage.PromptTokens
			usage.Completion += result.Usage.CompletionTokens
			if result.Thinking != "" {
				thinking.WriteString(result.Thinking)
				if err == nil {
					if sinkErr := emit(sink, Event{Type: EventThinking, Text: result.Thinking}); sinkErr != nil {
						err = errClientGone
					}
				}
			}
		}
		if err != nil {
			if errors.Is(err, errClientGone) {
				return content.String(), thinking.String(), usage, actions, errClientGone
			}
			return content.String(), thinking.String(), usage, actions, err
		}
		if len(result.ToolCalls) == 0 {
			break
		}

		convo = append(convo, ai.ChatMessage{
			Role:      "assistant",
			Content:   result.Content,
			ToolCalls: result.ToolCalls,
		})
		for _, call := range result.ToolCalls {
			action := o.startAction(model.ActionToolCall, call.Name, call.Arguments)
			if err := emit(sink, Event{Type: EventActionStart, Action: &action}); err != nil {
				actions = append(actions, action)
				return content.String(), thinking.String(), usage, actions, errClientGone
			}
			var output string
			tool, ok := byName[call.Name]
			if !ok {
				output = fmt.Sprintf("error: unknown tool %q", call.Name)
				failAction(&action, fmt.Errorf("unknown tool %q", call.Name))
			} else if out, execErr := tool.Execute(ctx, call.Arguments); execErr != nil {
				output = "error: " + execErr.Error()
				failAction(&action, execErr)
			} else {
				output = out
				completeAction(&action, out)
			}
			actions = append(actions, action)
			if err := emit(sink, Event{Type: EventActionComplete, Action: &action}); err != nil {
				return content.String(), thinking.String(), usage, actions, errClientGone
			}
			convo = append(convo, ai.ChatMessage{
				Role:       "tool",
				Content:    output,
				ToolCallID: call.ID,
			})
		}
	}
	usage.Total = usage.Prompt + usage.Completion
	return content.String(), thinking.String(), usage, actions, nil
}

// turnResult carries everything the generation loop produced for one turn.
type turnResult struct {
	userText string
	content  string
	thinking string
	usage    model.TokenUsage
	actions  []model.Action
	start    time.Time
}

// finishTurn persists the assistant message, names the chat on its first
// exchange, emits done, and kicks off the background memory pass.
func (o *Orchestrator) finishTurn(ctx context.Context, req Request, chat *model.Chat, turn turnResult, sink EventSink) (*model.Message, error) {
	modelUsed := strings.TrimSpace(req.ModelOverride)
	if modelUsed == "" {
		modelUsed = o.llm.ChatModel()
	}
	now := time.Now().Unix()
	assistant := &model.Message{
		ID:         o.newID(),
		ChatID:     req.ChatID,
		Role:       model.RoleAssistant,
		Content:    turn.content,
		Thinking:   turn.thinking,
		Actions:    turn.actions,
		Model:      modelUsed,
		TokenUsage: turn.usage,
		Ctime:      now,
	}
	if err := o.msgs.Create(ctx, assistant); err != nil {
		return nil, o.failTurn(ctx, sink, err)
	}
	total, err := o.chats.Touch(ctx, req.UserID, req.ChatID, now, 1)
	if err != nil {
		logutil.GetLogger(ctx).Warn("touch chat failed", zap.Error(err))
	}

	if chat.Title == model.DefaultChatTitle {
		if title, err := o.llm.Title(ctx, transcript(turn.userText, turn.content)); err != nil {
			logutil.GetLogger(ctx).Warn("title generation failed", zap.Error(err))
		} else if title != "" {
			if err := o.chats.UpdateTitle(ctx, req.UserID, req.ChatID, title); err != nil {
				logutil.GetLogger(ctx).Warn("update title failed", zap.Error(err))
			} else if err := emit(sink, Event{Type: EventTitleUpdated, Title: title}); err != nil {
				sink = nil
			}
		}
	}

	if err := emit(sink, Event{Type: EventDone, Message: assistant, Duration: time.Since(turn.start)}); err != nil {
		logutil.GetLogger(ctx).Debug("client gone before done event")
	}

	go o.afterTurn(req.UserID, req.ChatID, turn.userText, turn.content, total)
	return assistant, nil
}

// failTurn emits the single terminal error event. No assistant message is
// persisted on this path.
func (o *Orchestrator) failTurn(ctx context.Context, sink EventSink, cause error) error {
	logutil.GetLogger(ctx).Error("turn failed", zap.Error(cause))
	msg := "generation failed"
	if errors.Is(cause, ai.ErrUnavailable) {
		msg = "the model is unavailable, try again shortly"
	}
	if err := emit(sink, Event{Type: EventError, Text: msg}); err != nil {
		logutil.GetLogger(ctx).Debug("client gone before error event")
	}
	return cause
}

// afterTurn is the fire-and-forget memory pass: extraction on every turn,
// consolidation every Nth message of the chat.
func (o *Orchestrator) afterTurn(userID, chatID, userText, assistantText string, totalMessages int) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	stored, err := o.memories.ExtractFromTurn(ctx, userID, chatID, transcript(userText, assistantText))
	if err != nil {
		logutil.GetLogger(ctx).Warn("memory extraction failed", zap.Error(err))
	} else if stored > 0 {
		logutil.GetLogger(ctx).Info("memories extracted", zap.Int("count", stored), zap.String("chat_id", chatID))
	}
	if totalMessages > 0 && totalMessages%o.cfg.ConsolidateEvery == 0 {
		if merged, err := o.memories.Consolidate(ctx, userID); err != nil {
			logutil.GetLogger(ctx).Warn("memory consolidation failed", zap.Error(err))
		} else if merged > 0 {
			logutil.GetLogger(ctx).Info("memories consolidated", zap.Int("merged", merged), zap.String("user_id", userID))
		}
	}
}

func (o *Orchestrator) resolvePersona(ctx context.Context, userID, personaID string) *model.Persona {
	if personaID == "" {
		personaID = "persona-default"
	}
	persona, err := o.personas.GetByID(ctx, userID, personaID)
	if err != nil {
		logutil.GetLogger(ctx).Warn("resolve persona failed, using default prompt",
			zap.String("persona_id", personaID), zap.Error(err))
		return nil
	}
	return persona
}

func (o *Orchestrator) startAction(kind model.ActionKind, name string, params map[string]interface{}) model.Action {
	return model.Action{
		ID:         o.newID(),
		Kind:       kind,
		Name:       name,
		Parameters: params,
		Status:     model.ActionRunning,
		StartedAt:  time.Now().Unix(),
	}
}

func completeAction(a *model.Action, result string) {
	a.Status = model.ActionComplete
	a.Result = result
	a.EndedAt = time.Now().Unix()
}

func failAction(a *model.Action, err error) {
	a.Status = model.ActionFailed
	a.Error = err.Error()
	a.EndedAt = time.Now().Unix()
}

func emit(sink EventSink, ev Event) error {
	if sink == nil {
		return nil
	}
	return sink(ev)
}
