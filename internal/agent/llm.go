package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultModel        = "claude-sonnet-4-5"
	defaultOpenAIModel  = "gpt-4o-mini"
	defaultAnthropicURL = "https://api.anthropic.com/v1/messages"
	defaultOpenAIURL    = "https://api.openai.com/v1/chat/completions"
)

// Message is one turn of LLM conversation history. The content-block shape
// follows the Anthropic messages wire format; the OpenAI path converts on
// the way out.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

type ContentBlock struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
}

func textMessage(role, text string) Message {
	return Message{Role: role, Content: []ContentBlock{{Type: "text", Text: text}}}
}

func toolResultMessage(toolUseID string, result any) Message {
	return Message{Role: "user", Content: []ContentBlock{{
		Type:      "tool_result",
		ToolUseID: toolUseID,
		Content:   toJSON(result),
	}}}
}

func toJSON(v any) string {
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(buf)
}

// Strategy decides the next action given the system prompt, tool schemas and
// conversation history. The orchestrator owns all state and validation; a
// strategy only proposes. Tests swap in a scripted implementation.
type Strategy interface {
	ProposeNextAction(ctx context.Context, system string, tools []map[string]any, history []Message) (*Message, error)
}

// LLMOptions configure the hosted-model strategy.
type LLMOptions struct {
	Provider   string // "anthropic" (default) or "openai"
	Model      string
	APIKey     string
	BaseURL    string
	MaxTokens  int
	HTTPClient *http.Client
}

// LLMStrategy proposes actions by calling a hosted chat-completions API.
type LLMStrategy struct {
	provider   string
	model      string
	apiKey     string
	baseURL    string
	maxTokens  int
	httpClient *http.Client
}

func NewLLMStrategy(opts LLMOptions) (*LLMStrategy, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = "anthropic"
	}
	if provider != "anthropic" && provider != "openai" {
		return nil, fmt.Errorf("unsupported llm provider %q", opts.Provider)
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("llm credentials are not configured for provider %s", provider)
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		if provider == "openai" {
			model = defaultOpenAIModel
		} else {
			model = defaultModel
		}
	}
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		if provider == "openai" {
			baseURL = defaultOpenAIURL
		} else {
			baseURL = defaultAnthropicURL
		}
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &LLMStrategy{
		provider:   provider,
		model:      model,
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		maxTokens:  maxTokens,
		httpClient: httpClient,
	}, nil
}

type anthropicRequest struct {
	Model     string           `json:"model"`
	System    string           `json:"system,omitempty"`
	MaxTokens int              `json:"max_tokens"`
	Tools     []map[string]any `json:"tools,omitempty"`
	Messages  []Message        `json:"messages"`
}

type anthropicResponse struct {
	Content []ContentBlock `json:"content"`
}

func (s *LLMStrategy) ProposeNextAction(ctx context.Context, system string, tools []map[string]any, history []Message) (*Message, error) {
	req := anthropicRequest{
		Model:     s.model,
		System:    system,
		MaxTokens: s.maxTokens,
		Tools:     tools,
		Messages:  history,
	}
	var (
		resp *anthropicResponse
		err  error
	)
	if s.provider == "openai" {
		resp, err = s.createOpenAIMessage(ctx, req)
	} else {
		resp, err = s.createAnthropicMessage(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	return &Message{Role: "assistant", Content: resp.Content}, nil
}

func (s *LLMStrategy) createAnthropicMessage(ctx context.Context, req anthropicRequest) (*anthropicResponse, error) {
	buf, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", s.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, fmt.Errorf("anthropic api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out anthropicResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

type openAIRequest struct {
	Model      string          `json:"model"`
	Messages   []openAIMessage `json:"messages"`
	Tools      []openAITool    `json:"tools,omitempty"`
	ToolChoice string          `json:"tool_choice,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type openAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIFunctionCall `json:"function"`
}

type openAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

func (s *LLMStrategy) createOpenAIMessage(ctx context.Context, req anthropicRequest) (*anthropicResponse, error) {
	openReq := openAIRequest{
		Model:      s.model,
		Messages:   toOpenAIMessages(req),
		Tools:      toOpenAITools(req.Tools),
		ToolChoice: "auto",
	}
	buf, err := json.Marshal(openReq)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, fmt.Errorf("openai api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out openAIResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return &anthropicResponse{}, nil
	}

	msg := out.Choices[0].Message
	blocks := make([]ContentBlock, 0, 1+len(msg.ToolCalls))
	if strings.TrimSpace(msg.Content) != "" {
		blocks = append(blocks, ContentBlock{Type: "text", Text: msg.Content})
	}
	for _, call := range msg.ToolCalls {
		input := map[string]any{}
		if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
			_ = json.Unmarshal([]byte(raw), &input)
		}
		blocks = append(blocks, ContentBlock{
			Type:  "tool_use",
			ID:    call.ID,
			Name:  call.Function.Name,
			Input: input,
		})
	}
	return &anthropicResponse{Content: blocks}, nil
}

func toOpenAITools(input []map[string]any) []openAITool {
	tools := make([]openAITool, 0, len(input))
	for _, raw := range input {
		name, _ := raw["name"].(string)
		description, _ := raw["description"].(string)
		schema, _ := raw["input_schema"].(map[string]any)
		if strings.TrimSpace(name) == "" {
			continue
		}
		tools = append(tools, openAITool{
			Type: "function",
			Function: openAIFunction{
				Name:        name,
				Description: description,
				Parameters:  schema,
			},
		})
	}
	return tools
}

func toOpenAIMessages(req anthropicRequest) []openAIMessage {
	out := make([]openAIMessage, 0, len(req.Messages)+2)
	if strings.TrimSpace(req.System) != "" {
		out = append(out, openAIMessage{Role: "system", Content: req.System})
	}
	for _, msg := range req.Messages {
		textParts := make([]string, 0, 2)
		toolUses := make([]openAIToolCall, 0, 1)
		toolResults := make([]openAIMessage, 0, 1)

		for _, block := range msg.Content {
			switch block.Type {
			case "text":
				if strings.TrimSpace(block.Text) != "" {
					textParts = append(textParts, block.Text)
				}
			case "tool_use":
				args, _ := json.Marshal(block.Input)
				toolUses = append(toolUses, openAIToolCall{
					ID:   block.ID,
					Type: "function",
					Function: openAIFunctionCall{
						Name:      block.Name,
						Arguments: string(args),
					},
				})
			case "tool_result":
				toolResults = append(toolResults, openAIMessage{
					Role:       "tool",
					ToolCallID: block.ToolUseID,
					Content:    block.Content,
				})
			}
		}

		content := strings.Join(textParts, "\n")
		if msg.Role == "assistant" {
			out = append(out, openAIMessage{
				Role:      "assistant",
				Content:   content,
				ToolCalls: toolUses,
			})
			continue
		}
		if strings.TrimSpace(content) != "" {
			out = append(out, openAIMessage{Role: "user", Content: content})
		}
		out = append(out, toolResults...)
	}
	return out
}
