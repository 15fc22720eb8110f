package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/plantcare/internal/models"
)

var (
	ErrReminderNotFound = errors.New("reminder not found")
	ErrNotReminderOwner = errors.New("reminder belongs to another user")
	ErrPlantNotFound    = errors.New("plant not found")
	ErrNotPlantOwner    = errors.New("plant belongs to another user")
	ErrInvalidReminder  = errors.New("invalid reminder")
)

const (
	maxReminderTypeLength = 50
	maxReminderNotes      = 1000
	maxReminderFrequency  = 1000
)

const reminderColumns = `r.id, r.user_id, r.plant_id, r.type, r.frequency, r.frequency_unit,
	       r.next_due, r.last_completed, r.enabled, r.notification_sent, r.notes,
	       r.created_at, r.updated_at, p.name, p.nickname`

type ReminderListFilter struct {
	PlantID     *uuid.UUID
	OverdueOnly bool
}

type ReminderService struct {
	db            DB
	notifier      ReminderNotifier
	notifyTimeout time.Duration
	now           func() time.Time
}

func NewReminderService(db DB, notifier ReminderNotifier) *ReminderService {
	return &ReminderService{
		db:            db,
		notifier:      notifier,
		notifyTimeout: defaultNotifyTimeout,
		now:           time.Now,
	}
}

// SetNotifyTimeout bounds each notification call made by ProcessDue.
func (s *ReminderService) SetNotifyTimeout(timeout time.Duration) {
	if timeout > 0 {
		s.notifyTimeout = timeout
	}
}

func (s *ReminderService) List(ctx context.Context, userID uuid.UUID, filter ReminderListFilter) ([]models.Reminder, error) {
	var plantFilter any
	if filter.PlantID != nil {
		plantFilter = *filter.PlantID
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+reminderColumns+`
		  FROM reminders r
		  JOIN plants p ON p.id = r.plant_id
		 WHERE r.user_id = $1
		   AND ($2::uuid IS NULL OR r.plant_id = $2)
		 ORDER BY r.next_due ASC, r.id ASC`,
		userID,
		plantFilter,
	)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	now := s.now()
	reminders := []models.Reminder{}
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		annotated := reminder.WithOverdue(now)
		if filter.OverdueOnly && !annotated.IsOverdue {
			continue
		}
		reminders = append(reminders, annotated)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminders: %w", err)
	}
	return reminders, nil
}

// ListForPlant lists the reminders attached to one of the user's plants.
func (s *ReminderService) ListForPlant(ctx context.Context, userID, plantID uuid.UUID) ([]models.Reminder, error) {
	if err := s.ensurePlantOwner(ctx, userID, plantID); err != nil {
		return nil, err
	}
	return s.List(ctx, userID, ReminderListFilter{PlantID: &plantID})
}

func (s *ReminderService) Get(ctx context.Context, userID, reminderID uuid.UUID) (*models.Reminder, error) {
	reminder, err := s.load(ctx, reminderID)
	if err != nil {
		return nil, err
	}
	if reminder.UserID != userID {
		return nil, ErrNotReminderOwner
	}
	annotated := reminder.WithOverdue(s.now())
	return &annotated, nil
}

func (s *ReminderService) Create(ctx context.Context, userID uuid.UUID, input models.ReminderInput) (*models.Reminder, error) {
	if input.PlantID == uuid.Nil {
		return nil, fmt.Errorf("%w: plant_id is required", ErrInvalidReminder)
	}
	reminderType, err := normalizeReminderType(input.Type)
	if err != nil {
		return nil, err
	}
	if err := validateFrequency(input.Frequency); err != nil {
		return nil, err
	}
	unit, err := normalizeFrequencyUnit(input.FrequencyUnit)
	if err != nil {
		return nil, err
	}
	notes, err := normalizeNotes(input.Notes)
	if err != nil {
		return nil, err
	}

	if err := s.ensurePlantOwner(ctx, userID, input.PlantID); err != nil {
		return nil, err
	}

	now := s.now()
	nextDue := models.NextDueAfter(input.Frequency, unit, now)
	if input.NextDue != nil {
		nextDue = input.NextDue.UTC()
	}
	enabled := true
	if input.Enabled != nil {
		enabled = *input.Enabled
	}

	reminder, err := scanReminder(s.db.QueryRow(ctx, `
		WITH r AS (
			INSERT INTO reminders (user_id, plant_id, type, frequency, frequency_unit, next_due, enabled, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING *
		)
		SELECT `+reminderColumns+`
		  FROM r
		  JOIN plants p ON p.id = r.plant_id`,
		userID, input.PlantID, reminderType, input.Frequency, string(unit), nextDue, enabled, notes,
	))
	if err != nil {
		return nil, fmt.Errorf("create reminder: %w", err)
	}

	annotated := reminder.WithOverdue(s.now())
	return &annotated, nil
}

// Update applies a partial patch. Moving next_due starts a new due cycle, so
// the notification guard is re-armed.
func (s *ReminderService) Update(ctx context.Context, userID, reminderID uuid.UUID, patch models.ReminderPatch) (*models.Reminder, error) {
	sets := []string{}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Type != nil {
		reminderType, err := normalizeReminderType(*patch.Type)
		if err != nil {
			return nil, err
		}
		add("type", reminderType)
	}
	if patch.Frequency != nil {
		if err := validateFrequency(*patch.Frequency); err != nil {
			return nil, err
		}
		add("frequency", *patch.Frequency)
	}
	if patch.FrequencyUnit != nil {
		unit, err := normalizeFrequencyUnit(*patch.FrequencyUnit)
		if err != nil {
			return nil, err
		}
		add("frequency_unit", string(unit))
	}
	if patch.NextDue != nil {
		add("next_due", patch.NextDue.UTC())
		sets = append(sets, "notification_sent = false")
	}
	if patch.Enabled != nil {
		add("enabled", *patch.Enabled)
	}
	if patch.Notes != nil {
		notes, err := normalizeNotes(patch.Notes)
		if err != nil {
			return nil, err
		}
		add("notes", notes)
	}

	if _, err := s.Get(ctx, userID, reminderID); err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		return s.Get(ctx, userID, reminderID)
	}

	args = append(args, reminderID, userID)
	query := fmt.Sprintf(`
		UPDATE reminders r
		   SET %s, updated_at = NOW()
		  FROM plants p
		 WHERE r.id = $%d
		   AND r.user_id = $%d
		   AND p.id = r.plant_id
		RETURNING `+reminderColumns,
		strings.Join(sets, ", "), len(args)-1, len(args),
	)

	reminder, err := scanReminder(s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReminderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update reminder: %w", err)
	}

	annotated := reminder.WithOverdue(s.now())
	return &annotated, nil
}

func (s *ReminderService) Delete(ctx context.Context, userID, reminderID uuid.UUID) error {
	if _, err := s.Get(ctx, userID, reminderID); err != nil {
		return err
	}
	result, err := s.db.Exec(ctx,
		"DELETE FROM reminders WHERE id = $1 AND user_id = $2",
		reminderID,
		userID,
	)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrReminderNotFound
	}
	return nil
}

// Complete records that the care action was done now and schedules the next
// cycle one interval later.
func (s *ReminderService) Complete(ctx context.Context, userID, reminderID uuid.UUID) (*models.Reminder, error) {
	existing, err := s.Get(ctx, userID, reminderID)
	if err != nil {
		return nil, err
	}

	completedAt := s.now()
	nextDue := models.NextDueAfter(existing.Frequency, existing.FrequencyUnit, completedAt)

	reminder, err := scanReminder(s.db.QueryRow(ctx, `
		UPDATE reminders r
		   SET last_completed = $1,
		       next_due = $2,
		       notification_sent = false,
		       updated_at = NOW()
		  FROM plants p
		 WHERE r.id = $3
		   AND r.user_id = $4
		   AND p.id = r.plant_id
		RETURNING `+reminderColumns,
		completedAt, nextDue, reminderID, userID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReminderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("complete reminder: %w", err)
	}

	annotated := reminder.WithOverdue(s.now())
	return &annotated, nil
}

func (s *ReminderService) load(ctx context.Context, reminderID uuid.UUID) (*models.Reminder, error) {
	reminder, err := scanReminder(s.db.QueryRow(ctx, `
		SELECT `+reminderColumns+`
		  FROM reminders r
		  JOIN plants p ON p.id = r.plant_id
		 WHERE r.id = $1`,
		reminderID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReminderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load reminder: %w", err)
	}
	return reminder, nil
}

func (s *ReminderService) ensurePlantOwner(ctx context.Context, userID, plantID uuid.UUID) error {
	var ownerID uuid.UUID
	err := s.db.QueryRow(ctx, "SELECT user_id FROM plants WHERE id = $1", plantID).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrPlantNotFound
	}
	if err != nil {
		return fmt.Errorf("load plant owner: %w", err)
	}
	if ownerID != userID {
		return ErrNotPlantOwner
	}
	return nil
}

func scanReminder(row Row) (*models.Reminder, error) {
	var reminder models.Reminder
	var unit string
	var plantName string
	var plantNickname *string
	if err := row.Scan(
		&reminder.ID,
		&reminder.UserID,
		&reminder.PlantID,
		&reminder.Type,
		&reminder.Frequency,
		&unit,
		&reminder.NextDue,
		&reminder.LastCompleted,
		&reminder.Enabled,
		&reminder.NotificationSent,
		&reminder.Notes,
		&reminder.CreatedAt,
		&reminder.UpdatedAt,
		&plantName,
		&plantNickname,
	); err != nil {
		return nil, err
	}
	reminder.FrequencyUnit = models.FrequencyUnit(unit)
	reminder.PlantName = models.PlantDisplayName(plantName, plantNickname)
	return &reminder, nil
}

func normalizeReminderType(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: type is required", ErrInvalidReminder)
	}
	if utf8.RuneCountInString(trimmed) > maxReminderTypeLength {
		return "", fmt.Errorf("%w: type must be at most %d characters", ErrInvalidReminder, maxReminderTypeLength)
	}
	return trimmed, nil
}

func validateFrequency(frequency int) error {
	if frequency < 1 || frequency > maxReminderFrequency {
		return fmt.Errorf("%w: frequency must be between 1 and %d", ErrInvalidReminder, maxReminderFrequency)
	}
	return nil
}

// normalizeFrequencyUnit maps an empty unit to the default and rejects
// anything outside the known set.
func normalizeFrequencyUnit(unit models.FrequencyUnit) (models.FrequencyUnit, error) {
	normalized := models.FrequencyUnit(strings.ToLower(strings.TrimSpace(string(unit))))
	if normalized == "" {
		return models.DefaultFrequencyUnit, nil
	}
	if !normalized.Valid() {
		return "", fmt.Errorf("%w: frequency_unit must be hours, days, weeks or months", ErrInvalidReminder)
	}
	return normalized, nil
}

func normalizeNotes(notes *string) (*string, error) {
	if notes == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*notes)
	if trimmed == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(trimmed) > maxReminderNotes {
		return nil, fmt.Errorf("%w: notes must be at most %d characters", ErrInvalidReminder, maxReminderNotes)
	}
	return &trimmed, nil
}
