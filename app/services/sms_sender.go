package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/aikyo-io/campaign-engine/config"
	"github.com/aikyo-io/campaign-engine/dispatch"
	"github.com/aikyo-io/campaign-engine/models"
)

// SMSSender delivers messages through the SMS gateway's send API
type SMSSender struct {
	config *config.SMSConfig
	client *http.Client
}

// smsRequest represents the request payload for the SMS API
type smsRequest struct {
	SrcNum    string `json:"srcNum"`    // Format: 98**********
	Recipient string `json:"recipient"` // Format: 98**********
	Body      string `json:"body"`      // Message content
	Type      int    `json:"type"`      // Always 1
}

// smsResponse represents individual message result from the SMS API
type smsResponse struct {
	MessageID  int64  `json:"messageId"`
	Recipient  string `json:"recipient"`
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
}

// NewSMSSender creates a new SMS sender instance
func NewSMSSender(cfg *config.SMSConfig) *SMSSender {
	return &SMSSender{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (s *SMSSender) Channel() models.Channel {
	return models.ChannelSMS
}

// Send delivers one SMS message
func (s *SMSSender) Send(ctx context.Context, destination string, payload dispatch.Payload) (*dispatch.SendResult, error) {
	text, _ := payload.Body["text"].(string)
	requests := []smsRequest{{
		SrcNum:    s.config.SourceNumber,
		Recipient: destination,
		Body:      text,
		Type:      1,
	}}

	requestBody, err := json.Marshal(requests)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal SMS request: %w", err)
	}

	url := fmt.Sprintf("https://%s/api/v3.0.1/send", s.config.ProviderDomain)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send SMS request: %w", err)
	}
	defer resp.Body.Close()

	var results []smsResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode SMS response: %w", err)
	}
	for _, r := range results {
		if r.StatusCode != 200 || r.Status != "ACCEPTED" {
			return nil, &dispatch.SenderError{
				Code:    fmt.Sprintf("SMS_%d", r.StatusCode),
				Message: fmt.Sprintf("SMS delivery failed for %s: %s", r.Recipient, r.Status),
				Meta:    models.JSONMap{"provider_status": r.Status},
			}
		}
	}

	var providerID string
	if len(results) > 0 {
		providerID = strconv.FormatInt(results[0].MessageID, 10)
	}
	return &dispatch.SendResult{ProviderMessageID: providerID}, nil
}
