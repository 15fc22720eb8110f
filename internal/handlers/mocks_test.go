package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/plantcare/internal/models"
	"github.com/HammerMeetNail/plantcare/internal/services"
)

type mockReminderService struct {
	services.ReminderServiceInterface
	ListFunc           func(ctx context.Context, userID uuid.UUID, filter services.ReminderListFilter) ([]models.Reminder, error)
	ListForPlantFunc   func(ctx context.Context, userID, plantID uuid.UUID) ([]models.Reminder, error)
	GetFunc            func(ctx context.Context, userID, reminderID uuid.UUID) (*models.Reminder, error)
	CreateFunc         func(ctx context.Context, userID uuid.UUID, input models.ReminderInput) (*models.Reminder, error)
	UpdateFunc         func(ctx context.Context, userID, reminderID uuid.UUID, patch models.ReminderPatch) (*models.Reminder, error)
	DeleteFunc         func(ctx context.Context, userID, reminderID uuid.UUID) error
	CompleteFunc       func(ctx context.Context, userID, reminderID uuid.UUID) (*models.Reminder, error)
	RenderCareCardFunc func(ctx context.Context, userID, reminderID uuid.UUID) ([]byte, error)
}

func (m *mockReminderService) List(ctx context.Context, userID uuid.UUID, filter services.ReminderListFilter) ([]models.Reminder, error) {
	return m.ListFunc(ctx, userID, filter)
}

func (m *mockReminderService) ListForPlant(ctx context.Context, userID, plantID uuid.UUID) ([]models.Reminder, error) {
	return m.ListForPlantFunc(ctx, userID, plantID)
}

func (m *mockReminderService) Get(ctx context.Context, userID, reminderID uuid.UUID) (*models.Reminder, error) {
	return m.GetFunc(ctx, userID, reminderID)
}

func (m *mockReminderService) Create(ctx context.Context, userID uuid.UUID, input models.ReminderInput) (*models.Reminder, error) {
	return m.CreateFunc(ctx, userID, input)
}

func (m *mockReminderService) Update(ctx context.Context, userID, reminderID uuid.UUID, patch models.ReminderPatch) (*models.Reminder, error) {
	return m.UpdateFunc(ctx, userID, reminderID, patch)
}

func (m *mockReminderService) Delete(ctx context.Context, userID, reminderID uuid.UUID) error {
	return m.DeleteFunc(ctx, userID, reminderID)
}

func (m *mockReminderService) Complete(ctx context.Context, userID, reminderID uuid.UUID) (*models.Reminder, error) {
	return m.CompleteFunc(ctx, userID, reminderID)
}

func (m *mockReminderService) RenderCareCard(ctx context.Context, userID, reminderID uuid.UUID) ([]byte, error) {
	return m.RenderCareCardFunc(ctx, userID, reminderID)
}

func assertErrorResponse(t *testing.T, rr *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d (body: %s)", status, rr.Code, rr.Body.String())
	}
	var body ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error != message {
		t.Fatalf("expected error %q, got %q", message, body.Error)
	}
}
