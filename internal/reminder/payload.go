package reminder

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Title returns the user's title, or one derived from the type and schedule.
func Title(f Form) string {
	if t := strings.TrimSpace(f.Title); t != "" {
		return t
	}
	label := f.Type.Label()
	switch s := f.Schedule.(type) {
	case AtTime:
		if s.Time != "" {
			return fmt.Sprintf("%s · %s", label, s.Time)
		}
	case Every:
		if s.IntervalMinutes > 0 {
			return fmt.Sprintf("%s · каждые %d мин", label, s.IntervalMinutes)
		}
	case AfterEvent:
		if s.MinutesAfter > 0 {
			return fmt.Sprintf("%s · через %d мин", label, s.MinutesAfter)
		}
	}
	return label
}

// Payload is the reminder record accepted by POST and PATCH /reminders.
// At most one of Time, IntervalMinutes and MinutesAfter is set.
type Payload struct {
	TelegramID      int64   `json:"telegramId"`
	Type            Type    `json:"type"`
	Kind            Kind    `json:"kind"`
	Title           string  `json:"title"`
	IsEnabled       bool    `json:"isEnabled"`
	DaysOfWeek      []int   `json:"daysOfWeek,omitempty"`
	Time            *string `json:"time,omitempty"`
	IntervalMinutes *int    `json:"intervalMinutes,omitempty"`
	MinutesAfter    *int    `json:"minutesAfter,omitempty"`
}

// BuildPayload normalizes the form and maps it onto the backend record.
func BuildPayload(f Form) Payload {
	f = Normalize(f)

	p := Payload{
		TelegramID: f.TelegramID,
		Type:       f.Type,
		Kind:       f.Kind(),
		Title:      Title(f),
		IsEnabled:  f.Enabled(),
	}
	if p.Kind != KindAfterEvent && len(f.DaysOfWeek) > 0 {
		p.DaysOfWeek = append([]int(nil), f.DaysOfWeek...)
	}

	switch s := f.Schedule.(type) {
	case AtTime:
		if s.Time != "" {
			t := s.Time
			p.Time = &t
		}
	case Every:
		if s.IntervalMinutes != 0 {
			n := s.IntervalMinutes
			p.IntervalMinutes = &n
		}
	case AfterEvent:
		if s.MinutesAfter != 0 {
			n := s.MinutesAfter
			p.MinutesAfter = &n
		}
	}
	return p
}

// Form turns a decoded payload back into a form. The schedule variant is
// chosen by Kind; scheduling fields that do not match Kind are ignored.
func (p Payload) Form() Form {
	enabled := p.IsEnabled
	f := Form{
		TelegramID: p.TelegramID,
		Type:       p.Type,
		DaysOfWeek: append([]int(nil), p.DaysOfWeek...),
		Title:      p.Title,
		IsEnabled:  &enabled,
	}
	switch p.Kind {
	case KindAtTime:
		s := AtTime{}
		if p.Time != nil {
			s.Time = *p.Time
		}
		f.Schedule = s
	case KindEvery:
		s := Every{}
		if p.IntervalMinutes != nil {
			s.IntervalMinutes = *p.IntervalMinutes
		}
		f.Schedule = s
	case KindAfterEvent:
		s := AfterEvent{}
		if p.MinutesAfter != nil {
			s.MinutesAfter = *p.MinutesAfter
		}
		f.Schedule = s
	}
	return f
}

// Record is a stored reminder as returned by the API.
type Record struct {
	ID uint `json:"id"`
	Payload
	NextAt      *time.Time `json:"nextAt,omitempty"`
	LastFiredAt *time.Time `json:"lastFiredAt,omitempty"`
	Fires7d     int        `json:"fires7d"`
}

// LegacyPayload is the record shape of the older reminders backend, which
// stores intervals in hours and has no days of week or title.
type LegacyPayload struct {
	TelegramID    int64    `json:"telegram_id"`
	Type          Type     `json:"type"`
	IsEnabled     bool     `json:"is_enabled"`
	Time          *string  `json:"time,omitempty"`
	IntervalHours *float64 `json:"interval_hours,omitempty"`
	MinutesAfter  *int     `json:"minutes_after,omitempty"`
}

// BuildLegacyPayload maps a form onto LegacyPayload.
func BuildLegacyPayload(f Form) LegacyPayload {
	p := BuildPayload(f)
	lp := LegacyPayload{
		TelegramID:   p.TelegramID,
		Type:         p.Type,
		IsEnabled:    p.IsEnabled,
		Time:         p.Time,
		MinutesAfter: p.MinutesAfter,
	}
	if p.IntervalMinutes != nil {
		h := IntervalHours(*p.IntervalMinutes)
		lp.IntervalHours = &h
	}
	return lp
}

// IntervalHours converts minutes to hours rounded to two decimal places.
func IntervalHours(minutes int) float64 {
	return math.Round(float64(minutes)/60*100) / 100
}
