package reminder

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// Field names a form input; the names match the JSON keys of Payload.
type Field string

const (
	FieldTelegramID      Field = "telegramId"
	FieldType            Field = "type"
	FieldKind            Field = "kind"
	FieldTime            Field = "time"
	FieldIntervalMinutes Field = "intervalMinutes"
	FieldMinutesAfter    Field = "minutesAfter"
	FieldDaysOfWeek      Field = "daysOfWeek"
	FieldTitle           Field = "title"
)

const (
	MinMinutesAfter  = 5
	MaxMinutesAfter  = 480
	MinutesAfterStep = 5
	MaxTitleLength   = 100
)

const (
	msgNoUser         = "Не указан пользователь"
	msgUnknownType    = "Неизвестный тип напоминания"
	msgAfterEventType = "После события доступно только напоминание «После еды»"
	msgNoKind         = "Выберите режим напоминания"
	msgNoTime         = "Укажите время"
	msgBadTime        = "Время должно быть в формате ЧЧ:ММ"
	msgBadInterval    = "Интервал должен быть целым числом минут, не меньше 1"
	msgMinutesMissing = "Укажите минуты"
	msgMinutesRange   = "Допустимо от 5 до 480 минут"
	msgMinutesStep    = "Значение должно быть кратно 5"
	msgBadDay         = "Дни недели задаются числами от 0 до 6"
	msgTitleTooLong   = "Название не длиннее 100 символов"
)

// MinutesAfterProblem classifies what is wrong with a minutes-after value.
type MinutesAfterProblem int

const (
	MinutesAfterOK MinutesAfterProblem = iota
	MinutesAfterMissing
	MinutesAfterRange
	MinutesAfterNotStep
)

// Message returns the user-facing text for the problem, or "" for MinutesAfterOK.
func (p MinutesAfterProblem) Message() string {
	switch p {
	case MinutesAfterMissing:
		return msgMinutesMissing
	case MinutesAfterRange:
		return msgMinutesRange
	case MinutesAfterNotStep:
		return msgMinutesStep
	}
	return ""
}

// CheckMinutesAfter validates a delay after a meal. Zero means not filled in.
func CheckMinutesAfter(m int) MinutesAfterProblem {
	switch {
	case m == 0:
		return MinutesAfterMissing
	case m < MinMinutesAfter || m > MaxMinutesAfter:
		return MinutesAfterRange
	case m%MinutesAfterStep != 0:
		return MinutesAfterNotStep
	}
	return MinutesAfterOK
}

// ValidInterval reports whether an "every" interval is usable.
// There is deliberately no upper bound.
func ValidInterval(minutes int) bool {
	return minutes >= 1
}

// Errors maps a form field to a message describing what is wrong with it.
type Errors map[Field]string

// HasErrors reports whether any field failed validation.
func (e Errors) HasErrors() bool {
	return len(e) > 0
}

// Err returns nil when there are no errors and a *ValidationError otherwise.
func (e Errors) Err() error {
	if !e.HasErrors() {
		return nil
	}
	return &ValidationError{Fields: e}
}

// ValidationError carries per-field errors through error-returning call chains.
type ValidationError struct {
	Fields Errors
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[Field(k)]))
	}
	return "invalid reminder: " + strings.Join(parts, "; ")
}

// Validate checks a normalized form. It never panics and returns an empty
// map when the form can be submitted.
func Validate(f Form) Errors {
	errs := Errors{}

	if f.TelegramID <= 0 {
		errs[FieldTelegramID] = msgNoUser
	}
	if !f.Type.Valid() {
		errs[FieldType] = msgUnknownType
	}

	switch s := f.Schedule.(type) {
	case AtTime:
		switch {
		case strings.TrimSpace(s.Time) == "":
			errs[FieldTime] = msgNoTime
		case !IsValidTime(s.Time):
			errs[FieldTime] = msgBadTime
		}
	case Every:
		if !ValidInterval(s.IntervalMinutes) {
			errs[FieldIntervalMinutes] = msgBadInterval
		}
	case AfterEvent:
		if p := CheckMinutesAfter(s.MinutesAfter); p != MinutesAfterOK {
			errs[FieldMinutesAfter] = p.Message()
		}
		if f.Type.Valid() && f.Type != TypeAfterMeal {
			errs[FieldType] = msgAfterEventType
		}
	default:
		errs[FieldKind] = msgNoKind
	}

	for _, d := range f.DaysOfWeek {
		if d < 0 || d > 6 {
			errs[FieldDaysOfWeek] = msgBadDay
			break
		}
	}

	if utf8.RuneCountInString(strings.TrimSpace(f.Title)) > MaxTitleLength {
		errs[FieldTitle] = msgTitleTooLong
	}

	return errs
}
