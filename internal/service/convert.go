package service

import (
	"glucodiary/internal/model"
	"glucodiary/internal/reminder"
)

// formFromModel rebuilds the edit form for a stored reminder.
func formFromModel(m model.Reminder) reminder.Form {
	enabled := m.IsEnabled
	f := reminder.Form{
		TelegramID: m.TelegramID,
		Type:       reminder.Type(m.Type),
		DaysOfWeek: m.Days(),
		Title:      m.Title,
		IsEnabled:  &enabled,
	}
	switch reminder.Kind(m.Kind) {
	case reminder.KindAtTime:
		s := reminder.AtTime{}
		if m.Time != nil {
			s.Time = *m.Time
		}
		f.Schedule = s
	case reminder.KindEvery:
		s := reminder.Every{}
		if m.IntervalMinutes != nil {
			s.IntervalMinutes = *m.IntervalMinutes
		}
		f.Schedule = s
	case reminder.KindAfterEvent:
		s := reminder.AfterEvent{}
		if m.MinutesAfter != nil {
			s.MinutesAfter = *m.MinutesAfter
		}
		f.Schedule = s
	}
	return f
}

// applyPayload copies a built payload onto the stored reminder, clearing the
// scheduling fields the payload does not carry.
func applyPayload(m *model.Reminder, p reminder.Payload) {
	m.TelegramID = p.TelegramID
	m.Type = string(p.Type)
	m.Kind = string(p.Kind)
	m.Title = p.Title
	m.IsEnabled = p.IsEnabled
	m.SetDays(p.DaysOfWeek)
	m.Time = p.Time
	m.IntervalMinutes = p.IntervalMinutes
	m.MinutesAfter = p.MinutesAfter
}

func recordFromModel(m model.Reminder, fires7d int) reminder.Record {
	return reminder.Record{
		ID:          m.ID,
		Payload:     reminder.BuildPayload(formFromModel(m)),
		NextAt:      m.NextAt,
		LastFiredAt: m.LastFiredAt,
		Fires7d:     fires7d,
	}
}
