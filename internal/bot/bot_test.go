package bot

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glucodiary/internal/model"
	"glucodiary/internal/reminder"
	"glucodiary/internal/repository"
	"glucodiary/internal/service"
)

func TestBot_DigestUsesUserWeekday(t *testing.T) {
	ctx := context.Background()
	db, err := repository.NewDB("file::memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	// Tuesday 20:00 UTC is already Wednesday 05:00 in Tokyo
	clk := clock.NewFake()
	clk.Set(time.Date(2026, 10, 13, 20, 0, 0, 0, time.UTC))

	users := repository.NewUserRepository(db)
	reminders := service.NewReminderService(repository.NewReminderRepository(db), users, clk, time.UTC, nil)
	b := &Bot{userRepo: users, reminders: reminders, clk: clk, loc: time.UTC}

	_, err = reminders.Create(ctx, reminder.Form{TelegramID: 1, Type: reminder.TypeSugar, Schedule: reminder.AtTime{Time: "07:30"}, DaysOfWeek: []int{3}})
	require.NoError(t, err)
	_, err = reminders.Create(ctx, reminder.Form{TelegramID: 1, Type: reminder.TypeSugar, Schedule: reminder.AtTime{Time: "08:00"}, DaysOfWeek: []int{2}})
	require.NoError(t, err)

	text, ok, err := b.digestFor(ctx, &model.User{TelegramID: 1, Timezone: "Asia/Tokyo"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, text, "07:30")
	assert.NotContains(t, text, "08:00")

	// without a zone of their own the user gets the service default
	text, ok, err = b.digestFor(ctx, &model.User{TelegramID: 1})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, text, "08:00")
	assert.NotContains(t, text, "07:30")
}
