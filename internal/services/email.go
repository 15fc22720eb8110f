package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"

	"github.com/HammerMeetNail/plantcare/internal/config"
	"github.com/HammerMeetNail/plantcare/internal/logging"
)

var ErrEmailNotConfigured = errors.New("email delivery not configured")

type EmailServiceInterface interface {
	SendNotificationEmail(ctx context.Context, to, subject, html, text string) error
}

// resendEmails is the slice of resend.EmailsSvc we call.
type resendEmails interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type EmailService struct {
	provider string
	from     string
	resend   resendEmails
}

func NewEmailService(cfg *config.EmailConfig) *EmailService {
	svc := &EmailService{
		provider: cfg.Provider,
		from:     formatFrom(cfg.FromName, cfg.FromAddress),
	}
	if cfg.Provider == "resend" && cfg.ResendAPIKey != "" {
		svc.resend = resend.NewClient(cfg.ResendAPIKey).Emails
	}
	return svc
}

func (s *EmailService) SendNotificationEmail(ctx context.Context, to, subject, html, text string) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("send email: missing recipient")
	}

	switch s.provider {
	case "resend":
		if s.resend == nil {
			return ErrEmailNotConfigured
		}
		sent, err := s.resend.SendWithContext(ctx, &resend.SendEmailRequest{
			From:    s.from,
			To:      []string{to},
			Subject: subject,
			Html:    html,
			Text:    text,
		})
		if err != nil {
			return fmt.Errorf("send email via resend: %w", err)
		}
		logging.Debug("Email sent", map[string]interface{}{"provider": "resend", "id": sent.Id})
		return nil
	case "console":
		logging.Info("Email (console)", map[string]interface{}{
			"to":      to,
			"from":    s.from,
			"subject": subject,
			"text":    text,
		})
		return nil
	default:
		return ErrEmailNotConfigured
	}
}

func formatFrom(name, address string) string {
	if strings.TrimSpace(name) == "" {
		return address
	}
	return fmt.Sprintf("%s <%s>", name, address)
}
