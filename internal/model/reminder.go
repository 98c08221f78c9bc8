package model

import (
	"strconv"
	"strings"
	"time"
)

// Reminder is a scheduled notification owned by a Telegram user.
// Exactly one of Time, IntervalMinutes and MinutesAfter is set, matching Kind.
type Reminder struct {
	ID              uint  `gorm:"primaryKey"`
	TelegramID      int64 `gorm:"index"`
	Type            string
	Kind            string `gorm:"index"`
	Time            *string
	IntervalMinutes *int
	MinutesAfter    *int
	DaysOfWeek      string // comma separated, 0 = Sunday
	Title           string
	IsEnabled       bool       `gorm:"not null"`
	NextAt          *time.Time `gorm:"index"`
	LastFiredAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Days decodes DaysOfWeek, skipping anything malformed.
func (r Reminder) Days() []int {
	if r.DaysOfWeek == "" {
		return nil
	}
	parts := strings.Split(r.DaysOfWeek, ",")
	days := make([]int, 0, len(parts))
	for _, p := range parts {
		d, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		days = append(days, d)
	}
	return days
}

// SetDays encodes days into DaysOfWeek.
func (r *Reminder) SetDays(days []int) {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(d))
	}
	r.DaysOfWeek = strings.Join(parts, ",")
}

// ReminderFire records one delivery of a reminder.
type ReminderFire struct {
	ID         uint      `gorm:"primaryKey"`
	ReminderID uint      `gorm:"index"`
	TelegramID int64     `gorm:"index"`
	FiredAt    time.Time `gorm:"index"`
}
