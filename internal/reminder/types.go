package reminder

// Type is what the reminder is about.
type Type string

const (
	TypeSugar         Type = "sugar"
	TypeInsulinShort  Type = "insulin_short"
	TypeInsulinLong   Type = "insulin_long"
	TypeAfterMeal     Type = "after_meal"
	TypeMeal          Type = "meal"
	TypeSensorChange  Type = "sensor_change"
	TypeInjectionSite Type = "injection_site"
	TypeCustom        Type = "custom"
)

var typeLabels = map[Type]string{
	TypeSugar:         "Сахар",
	TypeInsulinShort:  "Короткий инсулин",
	TypeInsulinLong:   "Длинный инсулин",
	TypeAfterMeal:     "После еды",
	TypeMeal:          "Приём пищи",
	TypeSensorChange:  "Замена сенсора",
	TypeInjectionSite: "Смена места инъекции",
	TypeCustom:        "Напоминание",
}

// Valid reports whether t is one of the known reminder types.
func (t Type) Valid() bool {
	_, ok := typeLabels[t]
	return ok
}

// Label returns the human-readable name used in generated titles.
func (t Type) Label() string {
	if label, ok := typeLabels[t]; ok {
		return label
	}
	return typeLabels[TypeCustom]
}

// Kind selects how a reminder is scheduled.
type Kind string

const (
	KindAtTime     Kind = "at_time"
	KindEvery      Kind = "every"
	KindAfterEvent Kind = "after_event"
)

// Valid reports whether k is a known schedule kind.
func (k Kind) Valid() bool {
	switch k {
	case KindAtTime, KindEvery, KindAfterEvent:
		return true
	}
	return false
}

// Schedule is one of AtTime, Every or AfterEvent. Each variant carries only
// the field relevant to its kind; a zero value means the field is not filled in.
type Schedule interface {
	Kind() Kind
	isSchedule()
}

// AtTime fires daily at a wall-clock time in HH:MM.
type AtTime struct {
	Time string
}

// Every fires repeatedly with the given interval.
type Every struct {
	IntervalMinutes int
}

// AfterEvent fires a fixed delay after a meal is logged.
type AfterEvent struct {
	MinutesAfter int
}

func (AtTime) Kind() Kind     { return KindAtTime }
func (Every) Kind() Kind      { return KindEvery }
func (AfterEvent) Kind() Kind { return KindAfterEvent }

func (AtTime) isSchedule()     {}
func (Every) isSchedule()      {}
func (AfterEvent) isSchedule() {}

// Form is the user-facing reminder form as filled in the Mini-App.
type Form struct {
	TelegramID int64
	Type       Type
	Schedule   Schedule
	DaysOfWeek []int // 0 = Sunday
	Title      string
	IsEnabled  *bool
}

// Kind returns the schedule kind of the form or "" when no schedule is set.
func (f Form) Kind() Kind {
	if f.Schedule == nil {
		return ""
	}
	return f.Schedule.Kind()
}

// Enabled returns IsEnabled with its default of true.
func (f Form) Enabled() bool {
	if f.IsEnabled == nil {
		return true
	}
	return *f.IsEnabled
}
