package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openclaw/nexus/pkg/types"
)

// Input caps keep extraction prompts inside a predictable token budget.
const (
	maxEntityInputChars  = 4000
	maxLogInputChars     = 6000
	maxProfileEvents     = 20
	maxEventContentChars = 300
)

// AnthropicConfig holds configuration for the Anthropic extractor.
type AnthropicConfig struct {
	APIKey  string
	Model   string        // default: claude-haiku-4-5-20251001
	BaseURL string        // default: https://api.anthropic.com
	Timeout time.Duration // default: 25s
}

// AnthropicExtractor implements Extractor using the Anthropic Messages API.
type AnthropicExtractor struct {
	cfg            AnthropicConfig
	client         *http.Client
	circuitBreaker *CircuitBreaker
}

var _ Extractor = (*AnthropicExtractor)(nil)

// NewAnthropicExtractor creates an extractor with the given configuration.
func NewAnthropicExtractor(cfg AnthropicConfig) *AnthropicExtractor {
	if cfg.Model == "" {
		cfg.Model = "claude-haiku-4-5-20251001"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 25 * time.Second
	}
	return &AnthropicExtractor{
		cfg:            cfg,
		client:         &http.Client{Timeout: cfg.Timeout},
		circuitBreaker: NewCircuitBreaker(),
	}
}

// GetModel returns the configured model name.
func (c *AnthropicExtractor) GetModel() string {
	return c.cfg.Model
}

// ExtractEntities identifies notable entities in conversation text.
func (c *AnthropicExtractor) ExtractEntities(ctx context.Context, text string) ([]types.ExtractedEntity, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	prompt := fmt.Sprintf(`Extract notable entities from this conversation. Only include clearly relevant people, organizations, products, or important topics.

Conversation:
%s

Return JSON array only (no explanation):
[{"name":"...","type":"PERSON|ORGANIZATION|TOPIC|PRODUCT|LOCATION|OTHER","aliases":[],"context":"brief description","relationships":[{"entity":"...","type":"..."}]}]

Return [] if no notable entities found.`, truncate(text, maxEntityInputChars))

	raw, err := c.complete(ctx, prompt, 1024)
	if err != nil {
		return nil, err
	}

	var entities []types.ExtractedEntity
	if err := unmarshalJSONArray(raw, &entities); err != nil {
		return nil, fmt.Errorf("anthropic: unparseable entity response: %w", err)
	}
	for i := range entities {
		entities[i].Type = types.NormalizeEntityType(string(entities[i].Type))
	}
	return entities, nil
}

// ExtractEvents identifies meaningful conversation events in raw agent logs.
func (c *AnthropicExtractor) ExtractEvents(ctx context.Context, logs string) ([]types.ExtractedEvent, error) {
	if strings.TrimSpace(logs) == "" {
		return nil, nil
	}

	prompt := fmt.Sprintf(`Analyze these AI agent logs. Extract meaningful conversation events only (ignore infrastructure/system logs).

Logs:
%s

Return JSON array only:
[{
  "eventType": "CONVERSATION|DECISION|TASK_COMPLETED|FEEDBACK|ERROR",
  "sessionId": "session ID if visible or null",
  "channel": "whatsapp|telegram|discord|slack|other or null",
  "senderId": "sender ID/number if visible or null",
  "content": "full conversation content",
  "summary": "2-sentence summary",
  "importance": 0.1-1.0,
  "decision": "decision description if a notable recommendation was made, else null",
  "reasoning": ["reasoning step 1", "..."] or null
}]

Return [] if no meaningful conversation events found.`, truncate(logs, maxLogInputChars))

	raw, err := c.complete(ctx, prompt, 2048)
	if err != nil {
		return nil, err
	}

	var events []types.ExtractedEvent
	if err := unmarshalJSONArray(raw, &events); err != nil {
		return nil, fmt.Errorf("anthropic: unparseable event response: %w", err)
	}
	return events, nil
}

// ConsolidateProfile synthesizes a sender profile from event history.
// Events are expected oldest first; only the first maxProfileEvents feed the
// prompt, each contributing its summary or a content prefix.
func (c *AnthropicExtractor) ConsolidateProfile(ctx context.Context, senderID string, events []types.MemoryEvent) (*types.SenderProfile, error) {
	if len(events) == 0 {
		return nil, nil
	}

	sample := events
	if len(sample) > maxProfileEvents {
		sample = sample[:maxProfileEvents]
	}

	lines := make([]string, 0, len(sample))
	for _, e := range sample {
		if e.Summary != "" {
			lines = append(lines, e.Summary)
		} else {
			lines = append(lines, truncate(e.Content, maxEventContentChars))
		}
	}

	startDate := events[0].CreatedAt.Format("2006-01-02")
	endDate := events[len(events)-1].CreatedAt.Format("2006-01-02")

	prompt := fmt.Sprintf(`Create a consolidated profile for this user/contact based on conversation history.

Sender ID: %s
Date range: %s to %s
Events:
%s

Return JSON only:
{
  "name": "full name if known, else null",
  "type": "PERSON|ORGANIZATION",
  "aliases": ["alternate names/IDs"],
  "summary": "3-4 sentence profile: who are they, what do they want, communication style",
  "importance": 0.1-1.0,
  "metadata": {
    "language": "preferred language if detected or null",
    "role": "their job/role if mentioned or null",
    "topics": ["main topics they discuss"]
  }
}`, senderID, startDate, endDate, strings.Join(lines, "\n---\n"))

	raw, err := c.complete(ctx, prompt, 1024)
	if err != nil {
		return nil, err
	}

	var profile types.SenderProfile
	if err := unmarshalJSONObject(raw, &profile); err != nil {
		return nil, fmt.Errorf("anthropic: unparseable profile response: %w", err)
	}
	profile.Type = types.NormalizeEntityType(string(profile.Type))
	return &profile, nil
}

type anthropicMessagesRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicMessagesResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// complete sends a single-turn prompt through the circuit breaker and
// returns the raw response text.
func (c *AnthropicExtractor) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	result, err := c.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return c.doComplete(ctx, prompt, maxTokens)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *AnthropicExtractor) doComplete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	reqBody := anthropicMessagesRequest{
		Model:     c.cfg.Model,
		MaxTokens: maxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/v1/messages", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("anthropic returned status %d: %s", resp.StatusCode, string(body))
	}

	var respData anthropicMessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(respData.Content) == 0 {
		return "", fmt.Errorf("anthropic returned empty content")
	}
	return respData.Content[0].Text, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
