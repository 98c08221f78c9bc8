package main

import (
	"errors"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glucodiary/internal/apiclient"
	"glucodiary/internal/reminder"
)

func init() {
	color.NoColor = true
}

func TestReminderFlags_Form(t *testing.T) {
	tests := []struct {
		name  string
		flags reminderFlags
		want  reminder.Form
	}{
		{
			name:  "defaults",
			flags: reminderFlags{},
			want:  reminder.Form{TelegramID: 1, Type: reminder.TypeSugar, Schedule: reminder.AtTime{Time: "07:30"}},
		},
		{
			name:  "time with days",
			flags: reminderFlags{at: "08:15", days: "1, 3"},
			want:  reminder.Form{TelegramID: 1, Type: reminder.TypeSugar, Schedule: reminder.AtTime{Time: "08:15"}, DaysOfWeek: []int{1, 3}},
		},
		{
			name:  "kind guessed from every",
			flags: reminderFlags{typ: "meal", every: 180},
			want:  reminder.Form{TelegramID: 1, Type: reminder.TypeMeal, Schedule: reminder.Every{IntervalMinutes: 180}},
		},
		{
			name:  "after event forces after meal",
			flags: reminderFlags{typ: "insulin_short", after: 90},
			want:  reminder.Form{TelegramID: 1, Type: reminder.TypeAfterMeal, Schedule: reminder.AfterEvent{MinutesAfter: 90}},
		},
		{
			name:  "explicit kind keeps its default",
			flags: reminderFlags{kind: "after_event", title: "После обеда"},
			want:  reminder.Form{TelegramID: 1, Type: reminder.TypeAfterMeal, Schedule: reminder.AfterEvent{MinutesAfter: 120}, Title: "После обеда"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.flags.form(1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReminderFlags_FormDisabled(t *testing.T) {
	got, err := reminderFlags{disabled: true}.form(1)
	require.NoError(t, err)
	assert.False(t, got.Enabled())
}

func TestReminderFlags_FormErrors(t *testing.T) {
	_, err := reminderFlags{typ: "coffee"}.form(1)
	assert.ErrorContains(t, err, "unknown type")

	_, err = reminderFlags{kind: "weekly"}.form(1)
	assert.ErrorContains(t, err, "unknown kind")

	_, err = reminderFlags{days: "1,mon"}.form(1)
	assert.ErrorContains(t, err, "invalid day")
}

func TestDescribe(t *testing.T) {
	err := describe(reminder.Errors{
		reminder.FieldTime:  "Укажите время",
		reminder.FieldTitle: "Название не длиннее 100 символов",
	}.Err())
	assert.EqualError(t, err, "time: Укажите время\ntitle: Название не длиннее 100 символов")

	err = describe(&apiclient.APIError{Status: 422, Fields: map[string]string{"minutesAfter": "Значение должно быть кратно 5"}})
	assert.EqualError(t, err, "minutesAfter: Значение должно быть кратно 5")

	plain := errors.New("connection refused")
	assert.Equal(t, plain, describe(plain))
}

func TestParseID(t *testing.T) {
	id, err := parseID("12")
	require.NoError(t, err)
	assert.Equal(t, uint(12), id)

	_, err = parseID("0")
	assert.Error(t, err)
	_, err = parseID("x")
	assert.Error(t, err)
}

func TestLoginNeedsRedis(t *testing.T) {
	cmd := newLoginCommand(&cli{})
	err := cmd.RunE(cmd, []string{"auth_date=1&hash=x"})
	assert.ErrorIs(t, err, errNoSessionStore)
	assert.ErrorContains(t, err, "REDIS_ADDR")
}
