package reminder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSwitchKind_FromAfterEventToAtTime(t *testing.T) {
	f := Form{
		TelegramID: 1,
		Type:       TypeAfterMeal,
		Schedule:   AfterEvent{MinutesAfter: 120},
		Title:      "Замер",
	}

	got := SwitchKind(f, KindAtTime)

	assert.Equal(t, AtTime{Time: DefaultTime}, got.Schedule)
	p := BuildPayload(got)
	assert.Nil(t, p.MinutesAfter)
	assert.Equal(t, "Замер", got.Title)
}

func TestSwitchKind_Defaults(t *testing.T) {
	base := Form{TelegramID: 1, Type: TypeSugar, Schedule: AtTime{Time: "10:00"}, DaysOfWeek: []int{1, 2}}

	got := SwitchKind(base, KindEvery)
	assert.Equal(t, Every{IntervalMinutes: 60}, got.Schedule)
	assert.Equal(t, TypeSugar, got.Type)
	assert.Equal(t, []int{1, 2}, got.DaysOfWeek)

	got = SwitchKind(base, KindAfterEvent)
	assert.Equal(t, AfterEvent{MinutesAfter: 120}, got.Schedule)
	assert.Equal(t, TypeAfterMeal, got.Type)
	// days stay in the form; the payload builder drops them for after_event
	assert.Equal(t, []int{1, 2}, got.DaysOfWeek)
	assert.Nil(t, BuildPayload(got).DaysOfWeek)

	got = SwitchKind(got, KindAtTime)
	assert.Equal(t, AtTime{Time: "07:30"}, got.Schedule)
	assert.Equal(t, TypeAfterMeal, got.Type)
}

func TestSwitchKind_DoesNotAliasDays(t *testing.T) {
	base := Form{Schedule: AtTime{Time: "10:00"}, DaysOfWeek: []int{1, 2}}
	got := SwitchKind(base, KindEvery)
	got.DaysOfWeek[0] = 6
	assert.Equal(t, 1, base.DaysOfWeek[0])
}

func TestSwitchKind_Unknown(t *testing.T) {
	got := SwitchKind(NewForm(1), "weekly")
	assert.Nil(t, got.Schedule)
	assert.Contains(t, Validate(got), FieldKind)
}

func TestNewForm(t *testing.T) {
	f := NewForm(42)
	assert.Equal(t, int64(42), f.TelegramID)
	assert.Equal(t, KindAtTime, f.Kind())
	assert.True(t, f.Enabled())
	assert.False(t, Validate(f).HasErrors())
}
