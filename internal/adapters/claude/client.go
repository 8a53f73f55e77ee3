package claude

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const maxTokens = 1024

// Client talks to the Anthropic messages API.
type Client struct {
	httpClient *resty.Client
}

// NewClient creates an API client. baseURL, apiKey and version are mandatory.
func NewClient(baseURL, apiKey, version string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("claude baseURL cannot be empty")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("claude apiKey cannot be empty")
	}
	if version == "" {
		return nil, fmt.Errorf("claude API version cannot be empty")
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("x-api-key", apiKey).
		SetHeader("anthropic-version", version).
		SetHeader("Content-Type", "application/json").
		SetTimeout(60 * time.Second)

	log.Info().Str("baseURL", baseURL).Msg("Claude client configured")

	return &Client{httpClient: httpClient}, nil
}

// Generate runs one completion over the assembled history and returns the
// concatenated text content with token usage.
func (c *Client) Generate(model, system string, messages []Message) (*Reply, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("claude generate: empty message history")
	}

	var result generateResponse
	resp, err := c.httpClient.R().
		SetBody(generateRequest{
			Model:     model,
			MaxTokens: maxTokens,
			System:    system,
			Messages:  messages,
		}).
		SetResult(&result).
		SetError(&result).
		Post("/messages")
	if err != nil {
		return nil, fmt.Errorf("claude generate request failed: %w", err)
	}
	if resp.IsError() {
		msg := resp.String()
		if result.Error != nil {
			msg = result.Error.Message
		}
		log.Error().Str("model", model).Int("statusCode", resp.StatusCode()).Str("responseBody", msg).Msg("Claude API returned an error")
		return nil, fmt.Errorf("claude generate error: status %s: %s", resp.Status(), msg)
	}

	var sb strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	log.Debug().Str("model", model).Int("inputTokens", result.Usage.InputTokens).Int("outputTokens", result.Usage.OutputTokens).Msg("Claude completion done")

	return &Reply{
		Content:      sb.String(),
		InputTokens:  result.Usage.InputTokens,
		OutputTokens: result.Usage.OutputTokens,
	}, nil
}
