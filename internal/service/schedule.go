package service

import (
	"context"
	"log"
	"math"
	"time"

	"glucodiary/internal/reminder"
	"glucodiary/internal/repository"
)

// maxIntervalMinutes is the longest interval that still fits in a time.Duration.
const maxIntervalMinutes = math.MaxInt64 / int64(time.Minute)

// NextFire returns the first moment after from at which the reminder should
// fire, in UTC. It returns nil for disabled reminders, for after_event
// reminders (they are fired by meal events) and for unusable schedules.
func NextFire(f reminder.Form, from time.Time, loc *time.Location) *time.Time {
	if !f.Enabled() {
		return nil
	}
	allowed := dayFilter(f.DaysOfWeek)
	local := from.In(loc)

	switch s := f.Schedule.(type) {
	case reminder.AtTime:
		m, ok := reminder.ParseTimeToMinutes(s.Time)
		if !ok {
			return nil
		}
		for i := 0; i <= 7; i++ {
			day := local.AddDate(0, 0, i)
			at := time.Date(day.Year(), day.Month(), day.Day(), m/60, m%60, 0, 0, loc)
			if at.After(from) && allowed(at.Weekday()) {
				return utc(at)
			}
		}
	case reminder.Every:
		if !reminder.ValidInterval(s.IntervalMinutes) || int64(s.IntervalMinutes) > maxIntervalMinutes {
			return nil
		}
		at := local.Add(time.Duration(s.IntervalMinutes) * time.Minute)
		if allowed(at.Weekday()) {
			return utc(at)
		}
		// outside the allowed days the cycle restarts at midnight of the next allowed day
		for i := 1; i <= 7; i++ {
			day := at.AddDate(0, 0, i)
			start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
			if allowed(start.Weekday()) {
				return utc(start)
			}
		}
	}
	return nil
}

func dayFilter(days []int) func(time.Weekday) bool {
	if len(days) == 0 {
		return func(time.Weekday) bool { return true }
	}
	set := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		set[time.Weekday(d)] = true
	}
	return func(w time.Weekday) bool { return set[w] }
}

func utc(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}

// zones resolves a user's chat and time zone, falling back to the service default.
type zones struct {
	users    *repository.UserRepository
	fallback *time.Location
}

func (z zones) lookup(ctx context.Context, telegramID int64) (chatID int64, loc *time.Location) {
	chatID, loc = telegramID, z.fallback
	if z.users == nil {
		return chatID, loc
	}
	user, err := z.users.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return chatID, loc
	}
	if user.ChatID != 0 {
		chatID = user.ChatID
	}
	if user.Timezone != "" {
		l, err := time.LoadLocation(user.Timezone)
		if err != nil {
			log.Printf("user %d: bad timezone %q, using %s", telegramID, user.Timezone, z.fallback)
		} else {
			loc = l
		}
	}
	return chatID, loc
}
