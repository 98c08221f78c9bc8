package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jmhodges/clock"

	"glucodiary/internal/metrics"
	"glucodiary/internal/queue"
	"glucodiary/internal/repository"
)

// EventService reacts to diary events that trigger after_event reminders.
type EventService struct {
	reminders *repository.ReminderRepository
	delayer   queue.Delayer
	clk       clock.Clock
	metrics   *metrics.Metrics
}

func NewEventService(reminders *repository.ReminderRepository, delayer queue.Delayer, clk clock.Clock, m *metrics.Metrics) *EventService {
	return &EventService{reminders: reminders, delayer: delayer, clk: clk, metrics: m}
}

// MealLogged schedules every enabled after-meal reminder of the user and
// returns how many were scheduled.
func (s *EventService) MealLogged(ctx context.Context, telegramID int64) (int, error) {
	reminders, err := s.reminders.ListAfterEvent(ctx, telegramID)
	if err != nil {
		return 0, err
	}
	s.metrics.MealLogged()

	now := s.clk.Now().UTC()
	scheduled := 0
	for _, rem := range reminders {
		if rem.MinutesAfter == nil {
			continue
		}
		delay := time.Duration(*rem.MinutesAfter) * time.Minute
		at := now.Add(delay)
		// NextAt goes first: it is what the delivery is checked against.
		if err := s.reminders.SetNextAt(ctx, rem.ID, &at); err != nil {
			return scheduled, err
		}
		if err := s.delayer.Schedule(ctx, rem.ID, delay); err != nil {
			return scheduled, fmt.Errorf("schedule reminder %d: %w", rem.ID, err)
		}
		scheduled++
	}
	log.Printf("[info] meal logged user=%d scheduled=%d", telegramID, scheduled)
	return scheduled, nil
}
