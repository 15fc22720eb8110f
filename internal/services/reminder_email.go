package services

import (
	"fmt"
	"html"
	"strings"

	"github.com/google/uuid"
)

type careReminderEmailParams struct {
	RecipientName string
	PlantName     string
	PlantID       uuid.UUID
	ReminderType  string
	Notes         *string
	BaseURL       string
}

func buildCareReminderEmail(params careReminderEmailParams) (string, string, string) {
	greeting := "Hi there,"
	if name := strings.TrimSpace(params.RecipientName); name != "" {
		greeting = fmt.Sprintf("Hi %s,", name)
	}
	action := careActionPhrase(params.ReminderType)
	headline := fmt.Sprintf("Time to %s %s", action, params.PlantName)
	plantURL := fmt.Sprintf("%s/plants/%s", params.BaseURL, params.PlantID)
	remindersURL := fmt.Sprintf("%s/reminders", params.BaseURL)
	safePlantURL := templateEscape(plantURL)
	safeRemindersURL := templateEscape(remindersURL)

	subject := sanitizeSubject(fmt.Sprintf("Reminder: %s", headline))

	notesHTML := ""
	notesText := ""
	if params.Notes != nil && strings.TrimSpace(*params.Notes) != "" {
		notes := strings.TrimSpace(*params.Notes)
		notesHTML = fmt.Sprintf("<p style=\"color: #555; background: #f4f8f4; padding: 12px; border-radius: 6px;\"><strong>Your notes:</strong> %s</p>", templateEscape(notes))
		notesText = fmt.Sprintf("Your notes: %s\n\n", notes)
	}

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 640px; margin: 0 auto; padding: 24px;">
  <h1 style="color: #2f5d34; font-size: 24px;">Plant Care</h1>
  <p>%s</p>
  <p style="font-size: 18px;"><strong>%s</strong></p>
  %s
  <p>
    <a href="%s" style="display: inline-block; background: #3f7d45; color: white; padding: 10px 18px; text-decoration: none; border-radius: 6px; margin: 12px 0;">Open plant</a>
  </p>
  <hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">
  <p style="color: #666; font-size: 14px;">Mark it done or change the schedule: <a href="%s">%s</a></p>
</body>
</html>`,
		templateEscape(greeting),
		templateEscape(headline),
		notesHTML,
		safePlantURL,
		safeRemindersURL,
		safeRemindersURL,
	)

	text := fmt.Sprintf(`%s

%s

%sOpen plant: %s

Mark it done or change the schedule: %s

--
Plant Care`,
		greeting,
		headline,
		notesText,
		plantURL,
		remindersURL,
	)

	return subject, htmlBody, text
}

// careActionPhrase turns a reminder type such as "water" or "fertilizing"
// into a verb phrase.
func careActionPhrase(reminderType string) string {
	t := strings.ToLower(strings.TrimSpace(reminderType))
	switch t {
	case "", "care":
		return "care for"
	case "water", "watering":
		return "water"
	case "fertilize", "fertilizing", "feed", "feeding":
		return "fertilize"
	case "mist", "misting":
		return "mist"
	case "repot", "repotting":
		return "repot"
	case "prune", "pruning":
		return "prune"
	case "rotate", "rotating":
		return "rotate"
	default:
		return fmt.Sprintf("%s for", t)
	}
}

func templateEscape(value string) string {
	return html.EscapeString(value)
}

func sanitizeSubject(subject string) string {
	cleaned := strings.ReplaceAll(subject, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.TrimSpace(cleaned)
	if len(cleaned) > 120 {
		cleaned = cleaned[:117] + "..."
	}
	return cleaned
}
