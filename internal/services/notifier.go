package services

import (
	"context"
	"errors"
	"strings"

	"github.com/HammerMeetNail/plantcare/internal/models"
)

// ReminderNotifier delivers a care reminder. A nil error means delivered.
type ReminderNotifier interface {
	NotifyReminder(ctx context.Context, n models.ReminderNotification) error
}

// EmailReminderNotifier renders the care reminder email and hands it to the
// configured email provider.
type EmailReminderNotifier struct {
	email   EmailServiceInterface
	baseURL string
}

func NewEmailReminderNotifier(email EmailServiceInterface, baseURL string) *EmailReminderNotifier {
	return &EmailReminderNotifier{
		email:   email,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (n *EmailReminderNotifier) NotifyReminder(ctx context.Context, notification models.ReminderNotification) error {
	if n.email == nil {
		return ErrEmailNotConfigured
	}
	if strings.TrimSpace(notification.RecipientEmail) == "" {
		return errors.New("reminder owner has no email address")
	}

	subject, html, text := buildCareReminderEmail(careReminderEmailParams{
		RecipientName: notification.RecipientName,
		PlantName:     notification.PlantName,
		PlantID:       notification.PlantID,
		ReminderType:  notification.ReminderType,
		Notes:         notification.Notes,
		BaseURL:       n.baseURL,
	})
	return n.email.SendNotificationEmail(ctx, notification.RecipientEmail, subject, html, text)
}
