package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"glucodiary/internal/model"
)

// UserRepository stores Telegram users who talked to the bot or opened the Mini-App.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// TelegramProfile is the part of a Telegram user we keep.
type TelegramProfile struct {
	TelegramID int64
	ChatID     int64
	FirstName  string
	LastName   string
	Username   string
}

// UpsertFromTelegram finds a user by TelegramID and refreshes the profile,
// creating the user on first contact. A zero ChatID keeps the stored one.
func (r *UserRepository) UpsertFromTelegram(ctx context.Context, p TelegramProfile) (*model.User, error) {
	var user model.User
	db := r.db.WithContext(ctx)
	err := db.Where("telegram_id = ?", p.TelegramID).First(&user).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"first_name": p.FirstName,
			"last_name":  p.LastName,
			"username":   p.Username,
		}
		if p.ChatID != 0 {
			updates["chat_id"] = p.ChatID
		}
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = model.User{
			TelegramID: p.TelegramID,
			ChatID:     p.ChatID,
			FirstName:  p.FirstName,
			LastName:   p.LastName,
			Username:   p.Username,
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		return &user, nil
	default:
		return nil, fmt.Errorf("find user: %w", err)
	}
}

func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// SetTimezone stores the user's IANA time zone.
func (r *UserRepository) SetTimezone(ctx context.Context, telegramID int64, tz string) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("telegram_id = ?", telegramID).Update("timezone", tz)
	if res.Error != nil {
		return fmt.Errorf("set timezone: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
