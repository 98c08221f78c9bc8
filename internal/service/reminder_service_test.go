package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glucodiary/internal/metrics"
	"glucodiary/internal/model"
	"glucodiary/internal/reminder"
	"glucodiary/internal/repository"
)

type fixture struct {
	reminders  *repository.ReminderRepository
	users      *repository.UserRepository
	clk        clock.FakeClock
	svc        *ReminderService
	dispatcher *Dispatcher
	notifier   *fakeNotifier
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []int64
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, chatID int64, _ model.Reminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, chatID)
	return nil
}

type fakeDelayer struct {
	scheduled map[uint]time.Duration
}

func (f *fakeDelayer) Schedule(_ context.Context, id uint, delay time.Duration) error {
	f.scheduled[id] = delay
	return nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := repository.NewDB("file::memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	clk := clock.NewFake()
	clk.Set(time.Date(2026, 10, 14, 7, 0, 0, 0, time.UTC)) // 10:00 MSK
	loc := time.FixedZone("MSK", 3*3600)
	m := metrics.MustNewMetrics(prometheus.NewRegistry())

	f := &fixture{
		reminders: repository.NewReminderRepository(db),
		users:     repository.NewUserRepository(db),
		clk:       clk,
		notifier:  &fakeNotifier{},
	}
	f.svc = NewReminderService(f.reminders, f.users, clk, loc, m)
	f.dispatcher = NewDispatcher(f.reminders, f.users, f.notifier, clk, loc, m)
	return f
}

func TestReminderService_CreateAndList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	rec, err := f.svc.Create(ctx, reminder.Form{
		TelegramID: 1,
		Type:       reminder.TypeSugar,
		Schedule:   reminder.AtTime{Time: "12:00"},
		DaysOfWeek: []int{3, 3},
	})
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)
	assert.Equal(t, "Сахар · 12:00", rec.Title)
	assert.Equal(t, []int{3}, rec.DaysOfWeek)
	require.NotNil(t, rec.NextAt)
	assert.True(t, time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC).Equal(*rec.NextAt))

	_, err = f.svc.Create(ctx, reminder.Form{TelegramID: 2, Type: reminder.TypeMeal, Schedule: reminder.Every{IntervalMinutes: 30}})
	require.NoError(t, err)

	list, err := f.svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, rec.ID, list[0].ID)
}

func TestReminderService_CreateValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), reminder.Form{
		TelegramID: 1,
		Type:       reminder.TypeSugar,
		Schedule:   reminder.AfterEvent{MinutesAfter: 7},
	})
	var verr *reminder.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, reminder.FieldMinutesAfter)
	// normalization ran first, so the type is not reported
	assert.NotContains(t, verr.Fields, reminder.FieldType)
}

func TestReminderService_UpdateSwitchesKind(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	rec, err := f.svc.Create(ctx, reminder.Form{TelegramID: 1, Type: reminder.TypeSugar, Schedule: reminder.AtTime{Time: "12:00"}, DaysOfWeek: []int{1}})
	require.NoError(t, err)

	form := reminder.SwitchKind(rec.Payload.Form(), reminder.KindAfterEvent)
	form.Title = ""
	updated, err := f.svc.Update(ctx, rec.ID, form)
	require.NoError(t, err)

	assert.Equal(t, reminder.TypeAfterMeal, updated.Type)
	assert.Equal(t, reminder.KindAfterEvent, updated.Kind)
	assert.Nil(t, updated.Time)
	assert.Nil(t, updated.DaysOfWeek)
	assert.Nil(t, updated.NextAt)
	require.NotNil(t, updated.MinutesAfter)
	assert.Equal(t, 120, *updated.MinutesAfter)
	assert.Equal(t, "После еды · через 120 мин", updated.Title)

	stored, err := f.reminders.FindByID(ctx, rec.ID, 1)
	require.NoError(t, err)
	assert.Nil(t, stored.Time)
	assert.Empty(t, stored.DaysOfWeek)
}

func TestReminderService_OwnerChecks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	rec, err := f.svc.Create(ctx, reminder.Form{TelegramID: 1, Type: reminder.TypeSugar, Schedule: reminder.AtTime{Time: "12:00"}})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, rec.ID, reminder.Form{TelegramID: 2, Type: reminder.TypeSugar, Schedule: reminder.AtTime{Time: "13:00"}})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.ErrorIs(t, f.svc.Delete(ctx, rec.ID, 2), repository.ErrNotFound)
	require.NoError(t, f.svc.Delete(ctx, rec.ID, 1))

	_, err = f.svc.Get(ctx, rec.ID, 1)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestReminderService_SetEnabled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	rec, err := f.svc.Create(ctx, reminder.Form{TelegramID: 1, Type: reminder.TypeInsulinLong, Schedule: reminder.AtTime{Time: "22:00"}, Title: "Туджео"})
	require.NoError(t, err)

	off, err := f.svc.SetEnabled(ctx, rec.ID, 1, false)
	require.NoError(t, err)
	assert.False(t, off.IsEnabled)
	assert.Nil(t, off.NextAt)
	assert.Equal(t, "Туджео", off.Title)

	on, err := f.svc.SetEnabled(ctx, rec.ID, 1, true)
	require.NoError(t, err)
	assert.True(t, on.IsEnabled)
	assert.NotNil(t, on.NextAt)
}

func TestReminderService_UsesUserTimezone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.users.UpsertFromTelegram(ctx, repository.TelegramProfile{TelegramID: 1, ChatID: 1, FirstName: "Анна"})
	require.NoError(t, err)
	require.NoError(t, f.users.SetTimezone(ctx, 1, "Asia/Yekaterinburg"))

	rec, err := f.svc.Create(ctx, reminder.Form{TelegramID: 1, Type: reminder.TypeSugar, Schedule: reminder.AtTime{Time: "13:00"}})
	require.NoError(t, err)
	require.NotNil(t, rec.NextAt)
	// 13:00 in UTC+5 is 08:00 UTC
	assert.True(t, time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC).Equal(*rec.NextAt), "got %s", rec.NextAt)
}

func TestDispatcher_DispatchDue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.users.UpsertFromTelegram(ctx, repository.TelegramProfile{TelegramID: 1, ChatID: 100})
	require.NoError(t, err)

	rec, err := f.svc.Create(ctx, reminder.Form{TelegramID: 1, Type: reminder.TypeSugar, Schedule: reminder.Every{IntervalMinutes: 30}})
	require.NoError(t, err)

	n, err := f.dispatcher.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clk.Add(31 * time.Minute)
	n, err = f.dispatcher.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{100}, f.notifier.sent)

	got, err := f.svc.Get(ctx, rec.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Fires7d)
	require.NotNil(t, got.LastFiredAt)
	require.NotNil(t, got.NextAt)
	assert.True(t, f.clk.Now().Add(30*time.Minute).Equal(*got.NextAt))

	n, err = f.dispatcher.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDispatcher_FailedDeliveryAdvances(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.notifier.err = errors.New("Forbidden: bot was blocked by the user")

	rec, err := f.svc.Create(ctx, reminder.Form{TelegramID: 1, Type: reminder.TypeSugar, Schedule: reminder.Every{IntervalMinutes: 10}})
	require.NoError(t, err)

	f.clk.Add(15 * time.Minute)
	n, err := f.dispatcher.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := f.svc.Get(ctx, rec.ID, 1)
	require.NoError(t, err)
	assert.Zero(t, got.Fires7d)
	require.NotNil(t, got.NextAt)
	assert.True(t, got.NextAt.After(f.clk.Now()))
}

func TestEventService_MealLoggedAndFire(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	delayer := &fakeDelayer{scheduled: map[uint]time.Duration{}}
	events := NewEventService(f.reminders, delayer, f.clk, nil)

	after, err := f.svc.Create(ctx, reminder.Form{TelegramID: 1, Type: reminder.TypeAfterMeal, Schedule: reminder.AfterEvent{MinutesAfter: 90}})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, reminder.Form{TelegramID: 1, Type: reminder.TypeSugar, Schedule: reminder.AtTime{Time: "20:00"}})
	require.NoError(t, err)

	n, err := events.MealLogged(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, map[uint]time.Duration{after.ID: 90 * time.Minute}, delayer.scheduled)

	got, err := f.svc.Get(ctx, after.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, got.NextAt)
	assert.True(t, f.clk.Now().Add(90*time.Minute).Equal(*got.NextAt))

	f.clk.Add(90 * time.Minute)
	require.NoError(t, f.dispatcher.FireAfterEvent(ctx, after.ID))
	assert.Len(t, f.notifier.sent, 1)

	got, err = f.svc.Get(ctx, after.ID, 1)
	require.NoError(t, err)
	assert.Nil(t, got.NextAt)
	assert.Equal(t, 1, got.Fires7d)

	// deleted reminders are skipped quietly
	require.NoError(t, f.svc.Delete(ctx, after.ID, 1))
	require.NoError(t, f.dispatcher.FireAfterEvent(ctx, after.ID))
	assert.Len(t, f.notifier.sent, 1)
}

func TestEventService_MealFiresOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	delayer := &fakeDelayer{scheduled: map[uint]time.Duration{}}
	events := NewEventService(f.reminders, delayer, f.clk, nil)

	after, err := f.svc.Create(ctx, reminder.Form{TelegramID: 1, Type: reminder.TypeAfterMeal, Schedule: reminder.AfterEvent{MinutesAfter: 90}})
	require.NoError(t, err)

	_, err = events.MealLogged(ctx, 1)
	require.NoError(t, err)

	f.clk.Add(90*time.Minute + time.Second)
	n, err := f.dispatcher.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "after_event reminders are left to the delayer")

	require.NoError(t, f.dispatcher.FireAfterEvent(ctx, after.ID))
	// a redelivered message finds the reminder already fired
	require.NoError(t, f.dispatcher.FireAfterEvent(ctx, after.ID))
	n, err = f.dispatcher.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Len(t, f.notifier.sent, 1)
}

func TestEventService_LaterMealSupersedes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	delayer := &fakeDelayer{scheduled: map[uint]time.Duration{}}
	events := NewEventService(f.reminders, delayer, f.clk, nil)

	after, err := f.svc.Create(ctx, reminder.Form{TelegramID: 1, Type: reminder.TypeAfterMeal, Schedule: reminder.AfterEvent{MinutesAfter: 90}})
	require.NoError(t, err)

	_, err = events.MealLogged(ctx, 1)
	require.NoError(t, err)
	f.clk.Add(30 * time.Minute)
	_, err = events.MealLogged(ctx, 1)
	require.NoError(t, err)

	// delivery for the first meal
	f.clk.Add(60 * time.Minute)
	require.NoError(t, f.dispatcher.FireAfterEvent(ctx, after.ID))
	assert.Empty(t, f.notifier.sent)

	// delivery for the second meal
	f.clk.Add(30 * time.Minute)
	require.NoError(t, f.dispatcher.FireAfterEvent(ctx, after.ID))
	assert.Len(t, f.notifier.sent, 1)

	got, err := f.svc.Get(ctx, after.ID, 1)
	require.NoError(t, err)
	assert.Nil(t, got.NextAt)
	assert.Equal(t, 1, got.Fires7d)
}
