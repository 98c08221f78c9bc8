package reminder

// Defaults filled in when the user switches to a schedule kind.
const (
	DefaultTime            = "07:30"
	DefaultIntervalMinutes = 60
	DefaultMinutesAfter    = 120
)

// DefaultSchedule returns the schedule a freshly selected kind starts with,
// or nil for an unknown kind.
func DefaultSchedule(k Kind) Schedule {
	switch k {
	case KindAtTime:
		return AtTime{Time: DefaultTime}
	case KindEvery:
		return Every{IntervalMinutes: DefaultIntervalMinutes}
	case KindAfterEvent:
		return AfterEvent{MinutesAfter: DefaultMinutesAfter}
	}
	return nil
}

// SwitchKind moves the form to another schedule kind. The previous scheduling
// field is dropped and the new one gets its default. Title and days of week
// are independent of the kind and stay as they are.
func SwitchKind(f Form, k Kind) Form {
	out := f
	out.Schedule = DefaultSchedule(k)
	if k == KindAfterEvent {
		out.Type = TypeAfterMeal
	}
	if f.DaysOfWeek != nil {
		out.DaysOfWeek = append([]int(nil), f.DaysOfWeek...)
	}
	return out
}

// NewForm returns the form the create page starts with.
func NewForm(telegramID int64) Form {
	return Form{
		TelegramID: telegramID,
		Type:       TypeSugar,
		Schedule:   DefaultSchedule(KindAtTime),
	}
}
