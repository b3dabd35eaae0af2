// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the chat-completions body spoken by Zhipu, Doubao, and OpenAI.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// dashscopeRequest is the DashScope native generation body used by Qwen.
type dashscopeRequest struct {
	Model string `json:"model"`
	Input struct {
		Messages []chatMessage `json:"messages"`
	} `json:"input"`
	Parameters struct {
		ResultFormat string  `json:"result_format"`
		Temperature  float64 `json:"temperature"`
		MaxTokens    int     `json:"max_tokens,omitempty"`
	} `json:"parameters"`
}

type dashscopeResponse struct {
	Output struct {
		Text    string `json:"text"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

func (c *Client) messages(prompt string) []chatMessage {
	var msgs []chatMessage
	if c.system != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: c.system})
	}
	return append(msgs, chatMessage{Role: "user", Content: prompt})
}

// buildRequest encodes prompt in the provider's wire format.
func (c *Client) buildRequest(ctx context.Context, prompt string) (*http.Request, error) {
	var body any
	switch c.provider {
	case Zhipu, Doubao, OpenAI:
		body = chatRequest{
			Model:       c.model,
			Messages:    c.messages(prompt),
			Temperature: defaultTemperature,
			MaxTokens:   defaultMaxTokens,
		}
	case Qwen:
		var r dashscopeRequest
		r.Model = c.model
		r.Input.Messages = c.messages(prompt)
		r.Parameters.ResultFormat = "message"
		r.Parameters.Temperature = defaultTemperature
		r.Parameters.MaxTokens = defaultMaxTokens
		body = r
	default:
		return nil, fmt.Errorf("no HTTP wire format for provider %q", c.provider)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.provider.endpoint(), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return req, nil
}

// parseResponse extracts the reply text from a 200 response body. A body
// that does not decode is treated as transient; the next attempt usually
// succeeds.
func (c *Client) parseResponse(body []byte) (string, error) {
	switch c.provider {
	case Zhipu, Doubao, OpenAI:
		var r chatResponse
		if err := json.Unmarshal(body, &r); err != nil {
			return "", &TransientAPIError{Provider: c.provider, StatusCode: http.StatusOK, Message: "undecodable response body", Err: err}
		}
		if len(r.Choices) == 0 {
			return "", &APIError{Provider: c.provider, StatusCode: http.StatusOK, Message: "response has no choices"}
		}
		return strings.TrimSpace(r.Choices[0].Message.Content), nil

	case Qwen:
		var r dashscopeResponse
		if err := json.Unmarshal(body, &r); err != nil {
			return "", &TransientAPIError{Provider: c.provider, StatusCode: http.StatusOK, Message: "undecodable response body", Err: err}
		}
		if r.Code != "" {
			return "", classifyStatus(c.provider, http.StatusOK, nil, body)
		}
		if len(r.Output.Choices) > 0 {
			return strings.TrimSpace(r.Output.Choices[0].Message.Content), nil
		}
		return strings.TrimSpace(r.Output.Text), nil
	}
	return "", fmt.Errorf("no HTTP wire format for provider %q", c.provider)
}
