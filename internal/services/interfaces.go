package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/plantcare/internal/models"
)

type ReminderServiceInterface interface {
	List(ctx context.Context, userID uuid.UUID, filter ReminderListFilter) ([]models.Reminder, error)
	ListForPlant(ctx context.Context, userID, plantID uuid.UUID) ([]models.Reminder, error)
	Get(ctx context.Context, userID, reminderID uuid.UUID) (*models.Reminder, error)
	Create(ctx context.Context, userID uuid.UUID, input models.ReminderInput) (*models.Reminder, error)
	Update(ctx context.Context, userID, reminderID uuid.UUID, patch models.ReminderPatch) (*models.Reminder, error)
	Delete(ctx context.Context, userID, reminderID uuid.UUID) error
	Complete(ctx context.Context, userID, reminderID uuid.UUID) (*models.Reminder, error)
	RenderCareCard(ctx context.Context, userID, reminderID uuid.UUID) ([]byte, error)
}

type UserServiceInterface interface {
	UpsertFromIdentity(ctx context.Context, identity models.Identity) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// DueProcessor runs one pass over due reminders.
type DueProcessor interface {
	ProcessDue(ctx context.Context) (models.TickResult, error)
}

// TickLock excludes concurrent due-reminder passes across replicas.
type TickLock interface {
	Acquire(ctx context.Context) (func(context.Context) error, error)
}

var (
	_ ReminderServiceInterface = (*ReminderService)(nil)
	_ DueProcessor             = (*ReminderService)(nil)
	_ UserServiceInterface     = (*UserService)(nil)
	_ TokenVerifier            = (*OIDCVerifier)(nil)
	_ ReminderNotifier         = (*EmailReminderNotifier)(nil)
	_ TickLock                 = (*RedisTickLock)(nil)
)
