package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// The openai provider speaks the OpenAI-compatible chat-completion protocol
// served by local model runtimes (Ollama, llama.cpp, vLLM) as well as the
// hosted API.
const defaultOpenAIBaseURL = "http://127.0.0.1:11434/v1"

type openAIConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

type openAIProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type openAIChatRequest struct {
	Model         string              `json:"model"`
	Messages      []openAIChatMsg     `json:"messages"`
	Stream        bool                `json:"stream"`
	StreamOptions *openAIStreamOpts   `json:"stream_options,omitempty"`
	Temperature   *float64            `json:"temperature,omitempty"`
	MaxTokens     int                 `json:"max_tokens,omitempty"`
	Tools         []openAIToolWrapper `json:"tools,omitempty"`
}

type openAIStreamOpts struct {
	IncludeUsage bool `json:"include_usage"`
}

type openAIChatMsg struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
}

type openAIToolWrapper struct {
	Type     string   `json:"type"`
	Function ToolSpec `json:"function"`
}

type openAIToolCall struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message      openAIChatMsg `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage openAIUsage `json:"usage"`
}

type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string           `json:"content"`
			// reasoning models expose the trace under either key depending
			// on the runtime
			Reasoning        string           `json:"reasoning"`
			ReasoningContent string           `json:"reasoning_content"`
			ToolCalls        []openAIToolCall `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *openAIUsage `json:"usage"`
}

func (p *openAIProvider) Name() string {
	return "openai"
}

func (p *openAIProvider) Chat(ctx context.Context, model string, messages []ChatMessage, tools []ToolSpec, opts ChatOptions) (*ChatResult, error) {
	body := p.buildRequest(model, messages, tools, opts, false)
	respBody, err := p.post(ctx, "/chat/completions", body)
	if err != nil {
		return nil, err
	}
	var out openAIChatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("chat response has no choices")
	}
	choice := out.Choices[0]
	result := &ChatResult{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage: Usage{
			PromptTokens:     out.Usage.PromptTokens,
			CompletionTokens: out.Usage.CompletionTokens,
			TotalTokens:      out.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, parseToolCall(tc))
	}
	return result, nil
}

func (p *openAIProvider) ChatStream(ctx context.Context, model string, messages []ChatMessage, tools []ToolSpec, opts ChatOptions, onDelta StreamHandler) (*ChatResult, error) {
	if p.apiKey == "" && strings.Contains(p.baseURL, "api.openai.com") {
		return nil, ErrUnavailable
	}
	body := p.buildRequest(model, messages, tools, opts, true)
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(p.baseURL, "/")+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	p.setHeaders(req)
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("chat stream failed: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	result := &ChatResult{}
	var content strings.Builder
	var thinking strings.Builder
	pending := map[int]*openAIToolCall{}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}
		var chunk openAIStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if chunk.Usage != nil {
			result.Usage = Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.FinishReason != "" {
			result.FinishReason = choice.FinishReason
		}
		for _, tc := range choice.Delta.ToolCalls {
			mergeToolCallDelta(pending, tc)
		}
		if choice.Delta.Reasoning != "" {
			thinking.WriteString(choice.Delta.Reasoning)
		}
		if choice.Delta.ReasoningContent != "" {
			thinking.WriteString(choice.Delta.ReasoningContent)
		}
		if choice.Delta.Content != "" {
			content.WriteString(choice.Delta.Content)
			if err := onDelta(choice.Delta.Content); err != nil {
				result.Content = content.String()
				result.Thinking = thinking.String()
				result.ToolCalls = collectToolCalls(pending)
				return result, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		result.Content = content.String()
		result.Thinking = thinking.String()
		return result, fmt.Errorf("read chat stream: %w", err)
	}
	result.Content = content.String()
	result.Thinking = thinking.String()
	result.ToolCalls = collectToolCalls(pending)
	return result, nil
}

func (p *openAIProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	body := map[string]interface{}{
		"model": model,
		"input": text,
	}
	respBody, err := p.post(ctx, "/embeddings", body)
	if err != nil {
		return nil, err
	}
	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("embed response has no data")
	}
	return out.Data[0].Embedding, nil
}

func (p *openAIProvider) buildRequest(model string, messages []ChatMessage, tools []ToolSpec, opts ChatOptions, stream bool) *openAIChatRequest {
	req := &openAIChatRequest{
		Model:     model,
		Messages:  make([]openAIChatMsg, 0, len(messages)),
		Stream:    stream,
		MaxTokens: opts.MaxTokens,
	}
	if stream {
		req.StreamOptions = &openAIStreamOpts{IncludeUsage: true}
	}
	if opts.Temperature > 0 {
		temp := opts.Temperature
		req.Temperature = &temp
	}
	for _, msg := range messages {
		converted := openAIChatMsg{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			args, _ := json.Marshal(tc.Arguments)
			call := openAIToolCall{ID: tc.ID, Type: "function"}
			call.Function.Name = tc.Name
			call.Function.Arguments = string(args)
			converted.ToolCalls = append(converted.ToolCalls, call)
		}
		req.Messages = append(req.Messages, converted)
	}
	for _, tool := range tools {
		req.Tools = append(req.Tools, openAIToolWrapper{Type: "function", Function: tool})
	}
	return req
}

func (p *openAIProvider) post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(p.baseURL, "/")+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	p.setHeaders(req)
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("request failed: %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}

func (p *openAIProvider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
}

func mergeToolCallDelta(pending map[int]*openAIToolCall, delta openAIToolCall) {
	existing, ok := pending[delta.Index]
	if !ok {
		copied := delta
		pending[delta.Index] = &copied
		return
	}
	if delta.ID != "" {
		existing.ID = delta.ID
	}
	if delta.Function.Name != "" {
		existing.Function.Name = delta.Function.Name
	}
	existing.Function.Arguments += delta.Function.Arguments
}

func collectToolCalls(pending map[int]*openAIToolCall) []ToolCall {
	if len(pending) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(pending))
	for idx := range pending {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	calls := make([]ToolCall, 0, len(indexes))
	for _, idx := range indexes {
		calls = append(calls, parseToolCall(*pending[idx]))
	}
	return calls
}

func parseToolCall(tc openAIToolCall) ToolCall {
	var args map[string]interface{}
	if tc.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			args = map[string]interface{}{"raw": tc.Function.Arguments}
		}
	}
	return ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args}
}

func createOpenAIFactory(args interface{}) (IProvider, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &openAIProvider{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: baseURL,
		client:  &http.Client{Timeout: 300 * time.Second},
	}, nil
}

func init() {
	Register("openai", createOpenAIFactory)
}
