// Package services provides external service integrations and technical concerns like channel senders and tokens
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/aikyo-io/campaign-engine/config"
	"github.com/aikyo-io/campaign-engine/dispatch"
	"github.com/aikyo-io/campaign-engine/models"
)

// LineSender pushes messages through the LINE Messaging API
type LineSender struct {
	config *config.ChannelConfig
	client *http.Client
}

// linePushRequest represents the request payload for the LINE push endpoint
type linePushRequest struct {
	To       string `json:"to"`
	Messages []any  `json:"messages"`
}

// NewLineSender creates a new LINE sender instance
func NewLineSender(cfg *config.ChannelConfig) *LineSender {
	return &LineSender{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (s *LineSender) Channel() models.Channel {
	return models.ChannelLine
}

// Send pushes one message to a LINE user ID
func (s *LineSender) Send(ctx context.Context, destination string, payload dispatch.Payload) (*dispatch.SendResult, error) {
	body := linePushRequest{
		To:       destination,
		Messages: lineMessages(payload.Body),
	}
	requestBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal LINE push request: %w", err)
	}

	url := fmt.Sprintf("%s/v2/bot/message/push", s.config.APIBaseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.AccessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send LINE push request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &dispatch.SenderError{
			Code:    fmt.Sprintf("LINE_%d", resp.StatusCode),
			Message: string(raw),
		}
	}

	return &dispatch.SendResult{ProviderMessageID: resp.Header.Get("X-Line-Request-Id")}, nil
}

// lineMessages shapes the payload body into the LINE messages array. A body
// carrying a "messages" key is forwarded as-is; anything else becomes a
// single text message.
func lineMessages(body models.JSONMap) []any {
	if msgs, ok := body["messages"].([]any); ok {
		return msgs
	}
	if text, ok := body["text"].(string); ok {
		return []any{map[string]any{"type": "text", "text": text}}
	}
	return []any{map[string]any{"type": "text", "text": ""}}
}
