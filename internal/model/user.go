package model

import "time"

// User stores Telegram user metadata.
type User struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	ChatID     int64
	FirstName  string
	LastName   string
	Username   string
	Timezone   string // IANA name, empty means the service default
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
