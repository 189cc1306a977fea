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

// MessengerSender delivers messages through the Facebook Send API
type MessengerSender struct {
	config *config.ChannelConfig
	client *http.Client
}

type messengerSendRequest struct {
	Recipient messengerRecipient `json:"recipient"`
	Message   any                `json:"message"`
}

type messengerRecipient struct {
	ID string `json:"id"`
}

type messengerSendResponse struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
	Error       *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// NewMessengerSender creates a new Messenger sender instance
func NewMessengerSender(cfg *config.ChannelConfig) *MessengerSender {
	return &MessengerSender{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (s *MessengerSender) Channel() models.Channel {
	return models.ChannelMessenger
}

// Send delivers one message to a Messenger PSID
func (s *MessengerSender) Send(ctx context.Context, destination string, payload dispatch.Payload) (*dispatch.SendResult, error) {
	body := messengerSendRequest{
		Recipient: messengerRecipient{ID: destination},
		Message:   messengerMessage(payload.Body),
	}
	requestBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Messenger send request: %w", err)
	}

	url := fmt.Sprintf("%s/v21.0/me/messages?access_token=%s", s.config.APIBaseURL, s.config.AccessToken)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send Messenger request: %w", err)
	}
	defer resp.Body.Close()

	var result messengerSendResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode Messenger response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || result.Error != nil {
		senderErr := &dispatch.SenderError{
			Code:    fmt.Sprintf("MESSENGER_%d", resp.StatusCode),
			Message: "messenger send rejected",
		}
		if result.Error != nil {
			senderErr.Code = fmt.Sprintf("MESSENGER_%d", result.Error.Code)
			senderErr.Message = result.Error.Message
		}
		return nil, senderErr
	}

	return &dispatch.SendResult{ProviderMessageID: result.MessageID}, nil
}

func messengerMessage(body models.JSONMap) any {
	if msg, ok := body["message"]; ok {
		return msg
	}
	if text, ok := body["text"].(string); ok {
		return map[string]any{"text": text}
	}
	return map[string]any{"text": ""}
}
