package models

import (
	"time"

	"github.com/google/uuid"
)

type FrequencyUnit string

const (
	FrequencyHours  FrequencyUnit = "hours"
	FrequencyDays   FrequencyUnit = "days"
	FrequencyWeeks  FrequencyUnit = "weeks"
	FrequencyMonths FrequencyUnit = "months"
)

// DefaultFrequencyUnit applies to missing or unrecognised units.
const DefaultFrequencyUnit = FrequencyDays

// Unit lengths in milliseconds. A month is a fixed 30 days, not a calendar month.
const (
	hourMillis  int64 = 3_600_000
	dayMillis   int64 = 86_400_000
	weekMillis  int64 = 604_800_000
	monthMillis int64 = 2_592_000_000
)

// Valid reports whether u is one of the known units.
func (u FrequencyUnit) Valid() bool {
	switch u {
	case FrequencyHours, FrequencyDays, FrequencyWeeks, FrequencyMonths:
		return true
	}
	return false
}

// Millis returns the length of one unit. Unknown units count as days.
func (u FrequencyUnit) Millis() int64 {
	switch u {
	case FrequencyHours:
		return hourMillis
	case FrequencyWeeks:
		return weekMillis
	case FrequencyMonths:
		return monthMillis
	default:
		return dayMillis
	}
}

// Interval is frequency x unit.
func Interval(frequency int, unit FrequencyUnit) time.Duration {
	return time.Duration(int64(frequency)*unit.Millis()) * time.Millisecond
}

// NextDueAfter is the due instant of the next cycle when a reminder is
// completed at now.
func NextDueAfter(frequency int, unit FrequencyUnit, now time.Time) time.Time {
	return now.Add(Interval(frequency, unit))
}

type Reminder struct {
	ID               uuid.UUID     `json:"id"`
	UserID           uuid.UUID     `json:"user_id"`
	PlantID          uuid.UUID     `json:"plant_id"`
	Type             string        `json:"type"`
	Frequency        int           `json:"frequency"`
	FrequencyUnit    FrequencyUnit `json:"frequency_unit"`
	NextDue          time.Time     `json:"next_due"`
	LastCompleted    *time.Time    `json:"last_completed,omitempty"`
	Enabled          bool          `json:"enabled"`
	NotificationSent bool          `json:"notification_sent"`
	Notes            *string       `json:"notes,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`

	// Derived at response time; never persisted.
	IsOverdue bool `json:"is_overdue"`
	// Joined from plants for list views.
	PlantName string `json:"plant_name,omitempty"`
}

// Overdue reports whether the reminder is enabled and strictly past due at now.
func (r Reminder) Overdue(now time.Time) bool {
	return r.Enabled && r.NextDue.Before(now)
}

// WithOverdue returns a copy annotated for now.
func (r Reminder) WithOverdue(now time.Time) Reminder {
	r.IsOverdue = r.Overdue(now)
	return r
}

// ReminderInput is the payload for creating a reminder.
type ReminderInput struct {
	PlantID       uuid.UUID     `json:"plant_id"`
	Type          string        `json:"type"`
	Frequency     int           `json:"frequency"`
	FrequencyUnit FrequencyUnit `json:"frequency_unit"`
	NextDue       *time.Time    `json:"next_due,omitempty"`
	Enabled       *bool         `json:"enabled,omitempty"`
	Notes         *string       `json:"notes,omitempty"`
}

// ReminderPatch allows partial updates of the user-editable fields.
type ReminderPatch struct {
	Type          *string        `json:"type,omitempty"`
	Frequency     *int           `json:"frequency,omitempty"`
	FrequencyUnit *FrequencyUnit `json:"frequency_unit,omitempty"`
	NextDue       *time.Time     `json:"next_due,omitempty"`
	Enabled       *bool          `json:"enabled,omitempty"`
	Notes         *string        `json:"notes,omitempty"`
}

// DueReminder is a due-selection row with the owner and plant fields the
// notification needs.
type DueReminder struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	PlantID        uuid.UUID
	Type           string
	NextDue        time.Time
	Notes          *string
	RecipientName  string
	RecipientEmail string
	PlantName      string
}

// ReminderNotification is the payload handed to the notification sender.
type ReminderNotification struct {
	RecipientName  string
	RecipientEmail string
	PlantName      string
	PlantID        uuid.UUID
	ReminderType   string
	Notes          *string
}

// TickResult summarises one pass of the due-reminder processor.
type TickResult struct {
	Total  int `json:"total"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
	// Skipped counts candidates another worker claimed first.
	Skipped int `json:"skipped,omitempty"`
}
