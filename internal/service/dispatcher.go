package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmhodges/clock"

	"glucodiary/internal/metrics"
	"glucodiary/internal/model"
	"glucodiary/internal/reminder"
	"glucodiary/internal/repository"
)

const dispatchBatch = 100

// Notifier delivers a reminder to a chat.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, rem model.Reminder) error
}

// Dispatcher fires reminders: at_time and every ones on every tick, after_event
// ones when the delayer hands them back.
type Dispatcher struct {
	reminders *repository.ReminderRepository
	zones     zones
	notifier  Notifier
	clk       clock.Clock
	metrics   *metrics.Metrics
}

func NewDispatcher(reminders *repository.ReminderRepository, users *repository.UserRepository, notifier Notifier, clk clock.Clock, loc *time.Location, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		reminders: reminders,
		zones:     zones{users: users, fallback: loc},
		notifier:  notifier,
		clk:       clk,
		metrics:   m,
	}
}

// DispatchDue fires every enabled reminder whose NextAt has passed and
// returns how many were delivered.
func (d *Dispatcher) DispatchDue(ctx context.Context) (int, error) {
	now := d.clk.Now().UTC()
	due, err := d.reminders.ListDue(ctx, now, dispatchBatch)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, rem := range due {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		ok, err := d.fire(ctx, rem, now)
		if err != nil {
			return sent, err
		}
		if ok {
			sent++
		}
	}
	if len(due) > 0 {
		log.Printf("[info] dispatched %d of %d due reminders", sent, len(due))
	}
	return sent, nil
}

// afterEventSlack absorbs delayers that round the delay down.
const afterEventSlack = time.Second

// FireAfterEvent fires an after_event reminder whose delay is over. Reminders
// deleted, disabled or switched to another kind in the meantime are skipped.
//
// NextAt holds the moment set by the latest meal. A delivery that comes before
// it belongs to an earlier meal and is dropped, and a reminder without NextAt
// has already fired, so repeated meals fire a reminder once, after the last one.
func (d *Dispatcher) FireAfterEvent(ctx context.Context, id uint) error {
	rem, err := d.reminders.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		log.Printf("[info] skip delayed reminder %d: deleted", id)
		return nil
	}
	if err != nil {
		return err
	}
	if !rem.IsEnabled || reminder.Kind(rem.Kind) != reminder.KindAfterEvent {
		log.Printf("[info] skip delayed reminder %d: enabled=%t kind=%s", id, rem.IsEnabled, rem.Kind)
		return nil
	}
	now := d.clk.Now().UTC()
	switch {
	case rem.NextAt == nil:
		log.Printf("[info] skip delayed reminder %d: already fired", id)
		return nil
	case rem.NextAt.After(now.Add(afterEventSlack)):
		log.Printf("[info] skip delayed reminder %d: superseded by a later meal", id)
		return nil
	}
	_, err = d.fire(ctx, *rem, now)
	return err
}

// fire notifies the user and moves the reminder forward. A failed delivery is
// not retried: the reminder still advances so one blocked chat cannot stall the queue.
func (d *Dispatcher) fire(ctx context.Context, rem model.Reminder, now time.Time) (bool, error) {
	chatID, loc := d.zones.lookup(ctx, rem.TelegramID)
	next := NextFire(formFromModel(rem), now, loc)

	if err := d.notifier.Notify(ctx, chatID, rem); err != nil {
		log.Printf("notify reminder %d user %d: %v", rem.ID, rem.TelegramID, err)
		d.metrics.ReminderFired(rem.Kind, "failed")
		if err := d.reminders.SetNextAt(ctx, rem.ID, next); err != nil {
			return false, fmt.Errorf("advance reminder %d: %w", rem.ID, err)
		}
		return false, nil
	}

	d.metrics.ReminderFired(rem.Kind, "sent")
	if err := d.reminders.RecordFire(ctx, &rem, now, next); err != nil {
		return false, err
	}
	return true, nil
}

// PruneFires removes fire records that no longer count towards any statistic.
func (d *Dispatcher) PruneFires(ctx context.Context) error {
	n, err := d.reminders.PruneFires(ctx, d.clk.Now().Add(-4*firesWindow).UTC())
	if err != nil {
		return err
	}
	log.Printf("[info] pruned %d old fire records", n)
	return nil
}
