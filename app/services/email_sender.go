package services

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/aikyo-io/campaign-engine/config"
	"github.com/aikyo-io/campaign-engine/dispatch"
	"github.com/aikyo-io/campaign-engine/models"
)

// EmailSender delivers messages over SMTP
type EmailSender struct {
	config *config.EmailConfig
}

// NewEmailSender creates a new email sender instance
func NewEmailSender(cfg *config.EmailConfig) *EmailSender {
	return &EmailSender{config: cfg}
}

func (s *EmailSender) Channel() models.Channel {
	return models.ChannelEmail
}

// Send delivers one email. The payload body carries "subject" and either
// "html" or "text".
func (s *EmailSender) Send(ctx context.Context, destination string, payload dispatch.Payload) (*dispatch.SendResult, error) {
	subject, _ := payload.Body["subject"].(string)
	contentType := "text/plain; charset=UTF-8"
	content, ok := payload.Body["html"].(string)
	if ok {
		contentType = "text/html; charset=UTF-8"
	} else {
		content, _ = payload.Body["text"].(string)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", s.config.FromName, s.config.FromEmail)
	fmt.Fprintf(&msg, "To: %s\r\n", destination)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: %s\r\n", contentType)
	fmt.Fprintf(&msg, "\r\n%s\r\n", content)

	// net/smtp has no context support; the dispatch pool's send timeout
	// bounds the call from outside.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}
	if err := smtp.SendMail(addr, auth, s.config.FromEmail, []string{destination}, []byte(msg.String())); err != nil {
		return nil, &dispatch.SenderError{
			Code:    "SMTP_SEND_FAILED",
			Message: err.Error(),
		}
	}

	return &dispatch.SendResult{}, nil
}
