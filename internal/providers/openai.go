package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultOpenAIModel = "gpt-5"

// OpenAIProvider speaks the OpenAI-compatible chat-completions streaming
// API implemented by OpenAI itself, local Ollama servers, and most other
// self-hosted inference gateways. Unlike the Anthropic adapter it has no
// official SDK to lean on since it must work against arbitrary
// OPENAI_BASE_URL values, so it parses the SSE wire format directly.
type OpenAIProvider struct {
	apiKey       string
	baseURL      string
	defaultModel string
	httpClient   *http.Client
	retryConfig  RetryConfig
}

type OpenAIOption func(*OpenAIProvider)

func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(p *OpenAIProvider) { p.baseURL = strings.TrimRight(url, "/") }
}

func WithOpenAIModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) { p.defaultModel = model }
}

func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		apiKey:       apiKey,
		baseURL:      "https://api.openai.com/v1",
		defaultModel: defaultOpenAIModel,
		httpClient:   &http.Client{Timeout: streamTimeout},
		retryConfig:  DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OpenAIProvider) Name() string         { return "openai" }
func (p *OpenAIProvider) DefaultModel() string { return p.defaultModel }

func (p *OpenAIProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	body, err := p.buildRequestBody(req)
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}

	var resp *http.Response
	err = RetryDo(ctx, p.retryConfig, func() error {
		httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
		if reqErr != nil {
			return reqErr
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if p.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
		}

		r, doErr := p.httpClient.Do(httpReq)
		if doErr != nil {
			return doErr
		}
		if r.StatusCode != http.StatusOK {
			defer r.Body.Close()
			var buf bytes.Buffer
			buf.ReadFrom(r.Body)
			return &HTTPError{Status: r.StatusCode, Body: buf.String(), RetryAfter: ParseRetryAfter(r.Header.Get("Retry-After"))}
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &openAIStream{
		scanner: bufio.NewScanner(resp.Body),
		body:    resp.Body,
		calls:   make(map[int]*openAIToolCallState),
	}, nil
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
}

type openAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIToolCallFunc `json:"function"`
}

type openAIToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAITool struct {
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

func (p *OpenAIProvider) buildRequestBody(req Request) ([]byte, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	var messages []openAIMessage
	if req.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, toOpenAIMessages(m)...)
	}

	body := map[string]any{
		"model":    model,
		"messages": messages,
		"stream":   true,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if len(req.Tools) > 0 {
		tools := make([]openAITool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, openAITool{
				Type: "function",
				Function: openAIToolFunction{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  CleanSchemaForProvider(t.Schema),
				},
			})
		}
		body["tools"] = tools
	}
	return json.Marshal(body)
}

func toOpenAIMessages(m Message) []openAIMessage {
	var out []openAIMessage
	switch m.Role {
	case RoleUser, RoleSystem:
		var text strings.Builder
		for _, b := range m.Blocks {
			text.WriteString(b.Text)
		}
		out = append(out, openAIMessage{Role: string(m.Role), Content: text.String()})
	case RoleAssistant:
		msg := openAIMessage{Role: "assistant"}
		for _, b := range m.Blocks {
			if b.IsToolUse {
				msg.ToolCalls = append(msg.ToolCalls, openAIToolCall{
					ID: b.ToolUseID, Type: "function",
					Function: openAIToolCallFunc{Name: b.ToolName, Arguments: string(b.ToolInput)},
				})
			} else {
				msg.Content += b.Text
			}
		}
		out = append(out, msg)
	case RoleTool:
		for _, b := range m.Blocks {
			if b.IsToolResp {
				out = append(out, openAIMessage{Role: "tool", ToolCallID: b.ToolUseID, Content: b.ToolOutput})
			}
		}
	}
	return out
}

// chatCompletionChunk is one SSE "data:" payload of the chat-completions
// streaming wire format.
type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type openAIToolCallState struct {
	id      string
	name    string
	started bool
}

type openAIStream struct {
	scanner *bufio.Scanner
	body    closer
	calls   map[int]*openAIToolCallState
	pending []Event
	done    bool
}

type closer interface{ Close() error }

func (s *openAIStream) Next(ctx context.Context) (Event, bool, error) {
	for len(s.pending) == 0 {
		if s.done {
			return Event{}, false, nil
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return Event{}, false, err
			}
			s.done = true
			s.pending = append(s.pending, Event{Kind: EventDone})
			continue
		}
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}
		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		s.translate(chunk)
	}
	ev := s.pending[0]
	s.pending = s.pending[1:]
	return ev, true, nil
}

func (s *openAIStream) translate(chunk chatCompletionChunk) {
	if chunk.Usage != nil {
		s.pending = append(s.pending, Event{Kind: EventUsageUpdate, Usage: &Usage{
			InputTokens:  chunk.Usage.PromptTokens,
			OutputTokens: chunk.Usage.CompletionTokens,
		}})
	}
	if len(chunk.Choices) == 0 {
		return
	}
	choice := chunk.Choices[0]
	if choice.Delta.Content != "" {
		s.pending = append(s.pending, Event{Kind: EventTextDelta, TextDelta: choice.Delta.Content})
	}
	for _, tc := range choice.Delta.ToolCalls {
		state, ok := s.calls[tc.Index]
		if !ok {
			state = &openAIToolCallState{id: tc.ID, name: tc.Function.Name}
			s.calls[tc.Index] = state
		}
		if !state.started && state.id != "" {
			state.started = true
			s.pending = append(s.pending, Event{Kind: EventToolUseStart, ToolUseID: state.id, ToolUseName: state.name})
		}
		if tc.Function.Arguments != "" {
			s.pending = append(s.pending, Event{Kind: EventToolUseDelta, ToolUseID: state.id, ToolUseDelta: tc.Function.Arguments})
		}
	}
	switch choice.FinishReason {
	case "tool_calls":
		for _, state := range s.calls {
			s.pending = append(s.pending, Event{Kind: EventToolUseEnd, ToolUseID: state.id, ToolUseName: state.name})
		}
	case "length":
		s.pending = append(s.pending, Event{Kind: EventUsageUpdate, Usage: &Usage{}, StopReason: StopMaxTokens})
	}
}

func (s *openAIStream) Close() error { return s.body.Close() }

// DetectOpenAIAPIKey returns the OPENAI_API_KEY environment variable, the
// second step of provider auto-detection.
func DetectOpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// DetectLocalOllama probes the default local Ollama endpoint, the final
// fallback in provider auto-detection.
func DetectLocalOllama(ctx context.Context) (baseURL string, ok bool) {
	endpoint := os.Getenv("OLLAMA_HOST")
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	client := &http.Client{Timeout: 500 * time.Millisecond}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/api/tags", nil)
	if err != nil {
		return "", false
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()
	return endpoint + "/v1", resp.StatusCode == http.StatusOK
}
