package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/HammerMeetNail/plantcare/internal/logging"
	"github.com/HammerMeetNail/plantcare/internal/models"
	"github.com/HammerMeetNail/plantcare/internal/services"
)

// DueReminderTrigger is the shared entrypoint behind the hourly timer and
// the HTTP cron trigger.
type DueReminderTrigger interface {
	ProcessDueReminders(ctx context.Context) (models.TickResult, error)
}

type CronHandler struct {
	trigger DueReminderTrigger
}

func NewCronHandler(trigger DueReminderTrigger) *CronHandler {
	return &CronHandler{trigger: trigger}
}

// Reminders runs one due-reminder pass. Callers are authenticated by the
// cron secret middleware before reaching here. The pass is detached from the
// request so a caller hanging up cannot abandon it half way, and the write
// deadline is lifted because a batch of slow deliveries can outlast the
// server's WriteTimeout.
func (h *CronHandler) Reminders(w http.ResponseWriter, r *http.Request) {
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logging.Warn("Could not lift cron write deadline", map[string]interface{}{"error": err.Error()})
	}

	result, err := h.trigger.ProcessDueReminders(context.WithoutCancel(r.Context()))
	// 409 extends the 401/200/500 trigger contract for overlapping passes.
	if errors.Is(err, services.ErrTickInProgress) {
		writeError(w, http.StatusConflict, "Reminder processing already in progress")
		return
	}
	if err != nil {
		logging.Error("Cron reminder trigger failed", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Failed to process reminders")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
