// Package dispatch fans resolved audiences out to per-channel senders and
// tracks per-destination delivery outcomes.
package dispatch

import (
	"context"
	"fmt"

	"github.com/aikyo-io/campaign-engine/models"
)

// Payload is the rendered content handed to a channel sender
type Payload struct {
	TemplateKind models.TemplateKind
	TemplateID   *string
	Body         models.JSONMap
}

// SendResult carries the provider-side identifier of a successful send
type SendResult struct {
	ProviderMessageID string
}

// SenderError is a per-destination send failure. Code and Meta are captured
// verbatim onto the delivery row.
type SenderError struct {
	Code    string
	Message string
	Meta    models.JSONMap
}

func (e *SenderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("sender error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("sender error: %s", e.Message)
}

// Sender is the uniform per-channel transmission contract. Implementations
// wrap the channel's wire protocol (LINE Messaging API, Facebook Send API,
// SMTP, SMS gateway) and must honor ctx cancellation.
type Sender interface {
	Channel() models.Channel
	Send(ctx context.Context, destination string, payload Payload) (*SendResult, error)
}

// TemplateStore materializes template content when TemplateKind != RAW.
// Implemented by the external content template service client.
type TemplateStore interface {
	GetTemplate(ctx context.Context, tenantID uint, kind models.TemplateKind, templateID string) (models.JSONMap, error)
}
