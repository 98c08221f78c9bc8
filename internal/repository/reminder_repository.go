package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"glucodiary/internal/model"
)

// ReminderRepository handles CRUD for reminders and their fire log.
type ReminderRepository struct {
	db *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

func (r *ReminderRepository) Create(ctx context.Context, rem *model.Reminder) error {
	if err := r.db.WithContext(ctx).Create(rem).Error; err != nil {
		return fmt.Errorf("create reminder: %w", err)
	}
	return nil
}

// Save writes every column, so switching kind clears the old scheduling field.
func (r *ReminderRepository) Save(ctx context.Context, rem *model.Reminder) error {
	if err := r.db.WithContext(ctx).Save(rem).Error; err != nil {
		return fmt.Errorf("save reminder: %w", err)
	}
	return nil
}

// FindByID returns the reminder only when it belongs to telegramID.
func (r *ReminderRepository) FindByID(ctx context.Context, id uint, telegramID int64) (*model.Reminder, error) {
	var rem model.Reminder
	err := r.db.WithContext(ctx).Where("id = ? AND telegram_id = ?", id, telegramID).First(&rem).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find reminder: %w", err)
	}
	return &rem, nil
}

// Get loads a reminder regardless of owner; used by the dispatcher.
func (r *ReminderRepository) Get(ctx context.Context, id uint) (*model.Reminder, error) {
	var rem model.Reminder
	err := r.db.WithContext(ctx).First(&rem, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return &rem, nil
}

func (r *ReminderRepository) ListByTelegramID(ctx context.Context, telegramID int64) ([]model.Reminder, error) {
	var reminders []model.Reminder
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).
		Order("next_at IS NULL, next_at ASC, id ASC").
		Find(&reminders).Error; err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return reminders, nil
}

// ListDue returns enabled reminders whose next fire time has come. after_event
// reminders are left out: they are fired by the delayer that a meal scheduled.
func (r *ReminderRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]model.Reminder, error) {
	var reminders []model.Reminder
	if err := r.db.WithContext(ctx).
		Where("is_enabled = ? AND kind <> ? AND next_at IS NOT NULL AND next_at <= ?", true, "after_event", now).
		Order("next_at ASC").
		Limit(limit).
		Find(&reminders).Error; err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	return reminders, nil
}

// ListAfterEvent returns the user's enabled reminders triggered by a logged meal.
func (r *ReminderRepository) ListAfterEvent(ctx context.Context, telegramID int64) ([]model.Reminder, error) {
	var reminders []model.Reminder
	if err := r.db.WithContext(ctx).
		Where("telegram_id = ? AND kind = ? AND is_enabled = ?", telegramID, "after_event", true).
		Find(&reminders).Error; err != nil {
		return nil, fmt.Errorf("list after-event reminders: %w", err)
	}
	return reminders, nil
}

// SetNextAt updates only the next fire time.
func (r *ReminderRepository) SetNextAt(ctx context.Context, id uint, nextAt *time.Time) error {
	if err := r.db.WithContext(ctx).Model(&model.Reminder{}).Where("id = ?", id).
		Update("next_at", nextAt).Error; err != nil {
		return fmt.Errorf("set next_at: %w", err)
	}
	return nil
}

// RecordFire logs a delivery and moves the reminder to its next fire time.
func (r *ReminderRepository) RecordFire(ctx context.Context, rem *model.Reminder, firedAt time.Time, nextAt *time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fire := model.ReminderFire{ReminderID: rem.ID, TelegramID: rem.TelegramID, FiredAt: firedAt}
		if err := tx.Create(&fire).Error; err != nil {
			return fmt.Errorf("record fire: %w", err)
		}
		rem.LastFiredAt = &firedAt
		rem.NextAt = nextAt
		if err := tx.Model(rem).Updates(map[string]interface{}{
			"last_fired_at": firedAt,
			"next_at":       nextAt,
		}).Error; err != nil {
			return fmt.Errorf("advance reminder: %w", err)
		}
		return nil
	})
}

// CountFiresSince counts deliveries per reminder of a user since the given time.
func (r *ReminderRepository) CountFiresSince(ctx context.Context, telegramID int64, since time.Time) (map[uint]int, error) {
	var rows []struct {
		ReminderID uint
		Fires      int
	}
	if err := r.db.WithContext(ctx).Model(&model.ReminderFire{}).
		Select("reminder_id, COUNT(*) AS fires").
		Where("telegram_id = ? AND fired_at >= ?", telegramID, since).
		Group("reminder_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count fires: %w", err)
	}
	counts := make(map[uint]int, len(rows))
	for _, row := range rows {
		counts[row.ReminderID] = row.Fires
	}
	return counts, nil
}

// Delete removes a reminder of the given user together with its fire log.
func (r *ReminderRepository) Delete(ctx context.Context, id uint, telegramID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND telegram_id = ?", id, telegramID).Delete(&model.Reminder{})
		if res.Error != nil {
			return fmt.Errorf("delete reminder: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("reminder_id = ?", id).Delete(&model.ReminderFire{}).Error; err != nil {
			return fmt.Errorf("delete fires: %w", err)
		}
		return nil
	})
}

// PruneFires drops fire records older than before.
func (r *ReminderRepository) PruneFires(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("fired_at < ?", before).Delete(&model.ReminderFire{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune fires: %w", res.Error)
	}
	return res.RowsAffected, nil
}
