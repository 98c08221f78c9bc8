package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jmhodges/clock"

	"glucodiary/internal/metrics"
	"glucodiary/internal/model"
	"glucodiary/internal/reminder"
	"glucodiary/internal/repository"
)

const firesWindow = 7 * 24 * time.Hour

// ReminderService creates, edits and lists reminders. Every write goes through
// Normalize, Validate and BuildPayload so stored records keep the one
// scheduling field invariant.
type ReminderService struct {
	reminders *repository.ReminderRepository
	zones     zones
	clk       clock.Clock
	metrics   *metrics.Metrics
}

func NewReminderService(reminders *repository.ReminderRepository, users *repository.UserRepository, clk clock.Clock, loc *time.Location, m *metrics.Metrics) *ReminderService {
	return &ReminderService{
		reminders: reminders,
		zones:     zones{users: users, fallback: loc},
		clk:       clk,
		metrics:   m,
	}
}

func prepare(f reminder.Form) (reminder.Payload, error) {
	f = reminder.Normalize(f)
	if err := reminder.Validate(f).Err(); err != nil {
		return reminder.Payload{}, err
	}
	return reminder.BuildPayload(f), nil
}

// Create validates the form and stores a new reminder.
// Validation failures come back as *reminder.ValidationError.
func (s *ReminderService) Create(ctx context.Context, f reminder.Form) (*reminder.Record, error) {
	p, err := prepare(f)
	if err != nil {
		return nil, err
	}

	var rem model.Reminder
	applyPayload(&rem, p)
	_, loc := s.zones.lookup(ctx, p.TelegramID)
	rem.NextAt = NextFire(p.Form(), s.clk.Now(), loc)

	if err := s.reminders.Create(ctx, &rem); err != nil {
		return nil, err
	}
	s.metrics.ReminderSaved("create", rem.Kind)
	log.Printf("[info] reminder created id=%d user=%d kind=%s", rem.ID, rem.TelegramID, rem.Kind)

	rec := recordFromModel(rem, 0)
	return &rec, nil
}

// Update replaces the reminder with the form contents. The owner is taken
// from the form and must match the stored one.
func (s *ReminderService) Update(ctx context.Context, id uint, f reminder.Form) (*reminder.Record, error) {
	p, err := prepare(f)
	if err != nil {
		return nil, err
	}

	rem, err := s.reminders.FindByID(ctx, id, p.TelegramID)
	if err != nil {
		return nil, err
	}
	applyPayload(rem, p)
	_, loc := s.zones.lookup(ctx, p.TelegramID)
	rem.NextAt = NextFire(p.Form(), s.clk.Now(), loc)

	if err := s.reminders.Save(ctx, rem); err != nil {
		return nil, err
	}
	s.metrics.ReminderSaved("update", rem.Kind)
	log.Printf("[info] reminder updated id=%d user=%d kind=%s", rem.ID, rem.TelegramID, rem.Kind)

	fires, err := s.reminders.CountFiresSince(ctx, rem.TelegramID, s.clk.Now().Add(-firesWindow).UTC())
	if err != nil {
		return nil, err
	}
	rec := recordFromModel(*rem, fires[rem.ID])
	return &rec, nil
}

// SetEnabled switches a reminder on or off, keeping everything else.
func (s *ReminderService) SetEnabled(ctx context.Context, id uint, telegramID int64, enabled bool) (*reminder.Record, error) {
	rem, err := s.reminders.FindByID(ctx, id, telegramID)
	if err != nil {
		return nil, err
	}
	f := formFromModel(*rem)
	f.IsEnabled = &enabled
	return s.Update(ctx, id, f)
}

func (s *ReminderService) Delete(ctx context.Context, id uint, telegramID int64) error {
	if err := s.reminders.Delete(ctx, id, telegramID); err != nil {
		return err
	}
	s.metrics.ReminderSaved("delete", "")
	log.Printf("[info] reminder deleted id=%d user=%d", id, telegramID)
	return nil
}

func (s *ReminderService) Get(ctx context.Context, id uint, telegramID int64) (*reminder.Record, error) {
	rem, err := s.reminders.FindByID(ctx, id, telegramID)
	if err != nil {
		return nil, err
	}
	fires, err := s.reminders.CountFiresSince(ctx, telegramID, s.clk.Now().Add(-firesWindow).UTC())
	if err != nil {
		return nil, err
	}
	rec := recordFromModel(*rem, fires[rem.ID])
	return &rec, nil
}

// List returns the user's reminders, soonest first, with their fires over the last week.
func (s *ReminderService) List(ctx context.Context, telegramID int64) ([]reminder.Record, error) {
	reminders, err := s.reminders.ListByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	fires, err := s.reminders.CountFiresSince(ctx, telegramID, s.clk.Now().Add(-firesWindow).UTC())
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	records := make([]reminder.Record, 0, len(reminders))
	for _, rem := range reminders {
		records = append(records, recordFromModel(rem, fires[rem.ID]))
	}
	return records, nil
}
