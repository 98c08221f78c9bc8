package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmhodges/clock"

	"glucodiary/internal/model"
	"glucodiary/internal/repository"
	"glucodiary/internal/service"
)

const (
	cbDisablePrefix = "off:"
	cbEnablePrefix  = "on:"
)

const (
	menuLabelReminders = "⏰ Напоминания"
	menuLabelHelp      = "ℹ️ Помощь"
	btnOpenApp         = "📱 Открыть дневник"
	btnDisable         = "🔕 Выключить"
	btnEnable          = "🔔 Включить"
)

// Bot aggregates Telegram API with services.
type Bot struct {
	api       *tgbotapi.BotAPI
	userRepo  *repository.UserRepository
	reminders *service.ReminderService
	webAppURL string
	loc       *time.Location
	clk       clock.Clock
}

func New(token string, userRepo *repository.UserRepository, reminders *service.ReminderService, webAppURL string, clk clock.Clock, loc *time.Location) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return &Bot{
		api:       api,
		userRepo:  userRepo,
		reminders: reminders,
		webAppURL: webAppURL,
		loc:       loc,
		clk:       clk,
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("handle message: %v", err)
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	switch strings.TrimSpace(msg.Text) {
	case menuLabelReminders:
		return b.handleListReminders(ctx, msg)
	case menuLabelHelp:
		return b.handleHelp(msg)
	}

	return b.sendText(msg.Chat.ID, "Напоминания настраиваются в дневнике: /start. Список команд: /help.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "reminders":
		return b.handleListReminders(ctx, msg)
	case "tz":
		return b.handleTimezone(ctx, msg)
	default:
		return b.sendText(msg.Chat.ID, "Команда не поддерживается. Загляни в /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From, msg.Chat.ID); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "друг"
	}

	text := fmt.Sprintf(
		"👋 Привет, %s!\n<b>Я напомню про сахар, инсулин и еду.</b>\n\n"+
			"Открой дневник кнопкой ниже, чтобы настроить напоминания.\n"+
			"• /reminders — мои напоминания\n"+
			"• /tz &lt;зона&gt; — часовой пояс, например /tz Asia/Yekaterinburg\n"+
			"• /help — подсказки",
		escape(name),
	)

	if b.webAppURL == "" {
		return b.sendText(msg.Chat.ID, text)
	}
	// tgbotapi v5.5 has no web_app button type; a URL button opens the same page.
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(btnOpenApp, b.webAppURL)),
	)
	return b.sendWithReplyMarkup(msg.Chat.ID, text, markup)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Подсказки</b>\n" +
		"• Напоминание бывает на время, с интервалом или после еды.\n" +
		"• /reminders — список напоминаний, выключить можно кнопкой\n" +
		"• /tz &lt;зона&gt; — часовой пояс для напоминаний на время\n" +
		"• /start — открыть дневник"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleTimezone(ctx context.Context, msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		return b.sendText(msg.Chat.ID, "Укажи часовой пояс: /tz Europe/Moscow")
	}
	if _, err := time.LoadLocation(name); err != nil {
		return b.sendText(msg.Chat.ID, "Не знаю такой часовой пояс. Пример: /tz Asia/Novosibirsk")
	}
	if _, err := b.ensureUser(ctx, msg.From, msg.Chat.ID); err != nil {
		return err
	}
	if err := b.userRepo.SetTimezone(ctx, msg.From.ID, name); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось сохранить часовой пояс: %s", escape(err.Error())))
	}
	log.Printf("[info] timezone set user=%d tz=%s", msg.From.ID, name)
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🕰 Часовой пояс: <b>%s</b>. Новые напоминания будут считаться по нему.", escape(name)))
}

func (b *Bot) handleListReminders(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return err
	}
	return b.sendReminderList(ctx, msg.Chat.ID, user)
}

func (b *Bot) sendReminderList(ctx context.Context, chatID int64, user *model.User) error {
	records, err := b.reminders.List(ctx, user.TelegramID)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось получить напоминания: %s", escape(err.Error())))
	}
	if len(records) == 0 {
		return b.sendText(chatID, "Напоминаний пока нет. Добавь их в дневнике: /start.")
	}

	loc := b.userLocation(user)
	var builder strings.Builder
	builder.WriteString("⏰ <b>Напоминания</b>\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, rec := range records {
		builder.WriteString(formatRecord(rec, loc))
		label, data := btnDisable, cbDisablePrefix
		if !rec.IsEnabled {
			label, data = btnEnable, cbEnablePrefix
		}
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s #%d · %s", label, rec.ID, shortTitle(rec.Title, 20)), data+strconv.FormatUint(uint64(rec.ID), 10)),
		))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}

	id, enabled, ok := parseToggle(cb.Data)
	if !ok {
		return nil
	}
	log.Printf("[info] callback toggle user=%d reminder=%d enabled=%t", cb.From.ID, id, enabled)

	rec, err := b.reminders.SetEnabled(ctx, id, cb.From.ID, enabled)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return b.sendText(cb.Message.Chat.ID, "Напоминание не найдено.")
	case err != nil:
		return b.sendText(cb.Message.Chat.ID, fmt.Sprintf("Не удалось изменить напоминание: %s", escape(err.Error())))
	}

	state := "выключено"
	if rec.IsEnabled {
		state = "включено"
	}
	return b.sendText(cb.Message.Chat.ID, fmt.Sprintf("Напоминание «%s» %s.", escape(rec.Title), state))
}

// Notify delivers a fired reminder. It implements service.Notifier.
func (b *Bot) Notify(_ context.Context, chatID int64, rem model.Reminder) error {
	msg := tgbotapi.NewMessage(chatID, notificationText(rem))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btnDisable, cbDisablePrefix+strconv.FormatUint(uint64(rem.ID), 10)),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send reminder %d: %w", rem.ID, err)
	}
	return nil
}

// SendDailyDigest sends every user the list of today's timed reminders.
func (b *Bot) SendDailyDigest(ctx context.Context) error {
	users, err := b.userRepo.ListAll(ctx)
	if err != nil {
		return err
	}

	for _, user := range users {
		if user.ChatID == 0 {
			continue
		}
		text, ok, err := b.digestFor(ctx, &user)
		if err != nil {
			log.Printf("digest for %d: %v", user.TelegramID, err)
			continue
		}
		if !ok {
			continue
		}
		if err := b.sendText(user.ChatID, text); err != nil {
			log.Printf("send digest to %d: %v", user.ChatID, err)
		}
	}
	return nil
}

// digestFor builds the digest for the weekday it is in the user's own zone.
func (b *Bot) digestFor(ctx context.Context, user *model.User) (string, bool, error) {
	records, err := b.reminders.List(ctx, user.TelegramID)
	if err != nil {
		return "", false, err
	}
	text, ok := digestText(records, b.clk.Now().In(b.userLocation(user)).Weekday())
	return text, ok, nil
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User, chatID int64) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, repository.TelegramProfile{
		TelegramID: from.ID,
		ChatID:     chatID,
		FirstName:  from.FirstName,
		LastName:   from.LastName,
		Username:   from.UserName,
	})
}

func (b *Bot) userLocation(user *model.User) *time.Location {
	if user != nil && user.Timezone != "" {
		if loc, err := time.LoadLocation(user.Timezone); err == nil {
			return loc
		}
	}
	return b.loc
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelReminders),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}
