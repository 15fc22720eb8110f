package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/plantcare/internal/logging"
	"github.com/HammerMeetNail/plantcare/internal/models"
)

// DueLookahead widens the due window so reminders due within the next hour
// go out on the current tick.
const DueLookahead = time.Hour

const defaultNotifyTimeout = 30 * time.Second

// markSentTimeout bounds recording a delivery after the caller's context is
// gone.
const markSentTimeout = 5 * time.Second

// ErrTickInProgress is returned when another due-reminder pass holds the
// tick, in this process or on another replica.
var ErrTickInProgress = errors.New("reminder tick already in progress")

var errReminderClaimed = errors.New("reminder already claimed")

type dueOutcome int

const (
	dueSent dueOutcome = iota
	dueSkipped
	dueFailed
)

// DueReminders returns the enabled, not-yet-notified reminders whose next_due
// falls at or before now+DueLookahead, oldest first.
func (s *ReminderService) DueReminders(ctx context.Context, now time.Time) ([]models.DueReminder, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.id, r.user_id, r.plant_id, r.type, r.next_due, r.notes,
		       COALESCE(u.name, ''), u.email, p.name, p.nickname
		  FROM reminders r
		  JOIN users u ON u.id = r.user_id
		  JOIN plants p ON p.id = r.plant_id
		 WHERE r.enabled = true
		   AND r.notification_sent = false
		   AND r.next_due <= $1
		 ORDER BY r.next_due ASC, r.id ASC`,
		now.Add(DueLookahead),
	)
	if err != nil {
		return nil, fmt.Errorf("query due reminders: %w", err)
	}
	defer rows.Close()

	due := []models.DueReminder{}
	for rows.Next() {
		var d models.DueReminder
		var plantName string
		var plantNickname *string
		if err := rows.Scan(
			&d.ID,
			&d.UserID,
			&d.PlantID,
			&d.Type,
			&d.NextDue,
			&d.Notes,
			&d.RecipientName,
			&d.RecipientEmail,
			&plantName,
			&plantNickname,
		); err != nil {
			return nil, fmt.Errorf("scan due reminder: %w", err)
		}
		d.PlantName = models.PlantDisplayName(plantName, plantNickname)
		due = append(due, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due reminders: %w", err)
	}
	return due, nil
}

// ProcessDue notifies every due reminder once and marks it sent. Each
// reminder is claimed in its own transaction so one failure never blocks
// the rest, and a failed delivery leaves the row untouched for the next tick.
func (s *ReminderService) ProcessDue(ctx context.Context) (models.TickResult, error) {
	now := s.now()
	candidates, err := s.DueReminders(ctx, now)
	if err != nil {
		return models.TickResult{}, err
	}

	result := models.TickResult{Total: len(candidates)}
	threshold := now.Add(DueLookahead)

	for i, candidate := range candidates {
		if ctx.Err() != nil {
			result.Failed += len(candidates) - i
			logging.Warn("Due reminder processing interrupted", map[string]interface{}{
				"remaining": len(candidates) - i,
				"error":     ctx.Err().Error(),
			})
			break
		}

		switch s.notifyAndMark(ctx, candidate, threshold) {
		case dueSent:
			result.Sent++
		case dueSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
	}

	if result.Total > 0 {
		logging.Info("Processed due reminders", map[string]interface{}{
			"total":   result.Total,
			"sent":    result.Sent,
			"failed":  result.Failed,
			"skipped": result.Skipped,
		})
	}
	return result, nil
}

func (s *ReminderService) notifyAndMark(ctx context.Context, candidate models.DueReminder, threshold time.Time) dueOutcome {
	var deliveryErr error
	err := s.claimNotifyMark(ctx, candidate, threshold, &deliveryErr)

	switch {
	case err == nil:
		logging.Debug("Reminder notification sent", map[string]interface{}{
			"reminder_id": candidate.ID.String(),
			"plant_name":  candidate.PlantName,
		})
		return dueSent
	case errors.Is(err, errReminderClaimed):
		return dueSkipped
	case deliveryErr != nil:
		logging.Warn("Reminder notification failed", map[string]interface{}{
			"reminder_id": candidate.ID.String(),
			"plant_name":  candidate.PlantName,
			"error":       deliveryErr.Error(),
		})
		return dueFailed
	default:
		logging.Error("Failed to record reminder notification", map[string]interface{}{
			"reminder_id": candidate.ID.String(),
			"plant_name":  candidate.PlantName,
			"error":       err.Error(),
		})
		return dueFailed
	}
}

// claimNotifyMark holds the row lock from claim to commit, so a concurrent
// Complete on the same reminder waits at most notifyTimeout. Once delivery
// succeeds the mark and commit run detached from ctx: a caller hanging up
// must not roll back a notification that already went out.
func (s *ReminderService) claimNotifyMark(ctx context.Context, candidate models.DueReminder, threshold time.Time, deliveryErr *error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markSentTimeout)
	defer cancel()
	defer func() { _ = tx.Rollback(finishCtx) }()

	var claimed string
	err = tx.QueryRow(ctx, `
		SELECT id::text
		  FROM reminders
		 WHERE id = $1
		   AND enabled = true
		   AND notification_sent = false
		   AND next_due <= $2
		 FOR UPDATE SKIP LOCKED`,
		candidate.ID,
		threshold,
	).Scan(&claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return errReminderClaimed
	}
	if err != nil {
		return fmt.Errorf("claim reminder: %w", err)
	}

	if err := s.notify(ctx, candidate); err != nil {
		*deliveryErr = err
		return err
	}

	if _, err := tx.Exec(finishCtx, `
		UPDATE reminders
		   SET notification_sent = true, updated_at = NOW()
		 WHERE id = $1
		   AND notification_sent = false`,
		candidate.ID,
	); err != nil {
		return fmt.Errorf("mark reminder notified: %w", err)
	}
	if err := tx.Commit(finishCtx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *ReminderService) notify(ctx context.Context, candidate models.DueReminder) error {
	if s.notifier == nil {
		return errors.New("reminder notifier not configured")
	}
	notifyCtx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()

	return s.notifier.NotifyReminder(notifyCtx, models.ReminderNotification{
		RecipientName:  candidate.RecipientName,
		RecipientEmail: candidate.RecipientEmail,
		PlantName:      candidate.PlantName,
		PlantID:        candidate.PlantID,
		ReminderType:   candidate.Type,
		Notes:          candidate.Notes,
	})
}
