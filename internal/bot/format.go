package bot

import (
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"time"

	"glucodiary/internal/model"
	"glucodiary/internal/reminder"
)

var weekdayShort = [7]string{"вс", "пн", "вт", "ср", "чт", "пт", "сб"}

func escape(s string) string {
	return html.EscapeString(s)
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

// parseToggle decodes "off:<id>" and "on:<id>" callback data.
func parseToggle(data string) (id uint, enabled bool, ok bool) {
	var raw string
	switch {
	case strings.HasPrefix(data, cbDisablePrefix):
		raw = strings.TrimPrefix(data, cbDisablePrefix)
	case strings.HasPrefix(data, cbEnablePrefix):
		raw, enabled = strings.TrimPrefix(data, cbEnablePrefix), true
	default:
		return 0, false, false
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return 0, false, false
	}
	return uint(v), enabled, true
}

func formatDays(days []int) string {
	if len(days) == 0 {
		return "каждый день"
	}
	names := make([]string, 0, len(days))
	for _, d := range days {
		if d >= 0 && d < len(weekdayShort) {
			names = append(names, weekdayShort[d])
		}
	}
	return strings.Join(names, ", ")
}

func formatRecord(rec reminder.Record, loc *time.Location) string {
	icon := "🟢"
	if !rec.IsEnabled {
		icon = "⚪️"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s #%d <b>%s</b>\n", icon, rec.ID, escape(rec.Title))
	if rec.Kind != reminder.KindAfterEvent {
		fmt.Fprintf(&b, "   %s\n", formatDays(rec.DaysOfWeek))
	}
	if rec.NextAt != nil && rec.IsEnabled {
		fmt.Fprintf(&b, "   ⏳ %s\n", rec.NextAt.In(loc).Format("02.01 15:04"))
	}
	if rec.Fires7d > 0 {
		fmt.Fprintf(&b, "   за 7 дней: %d\n", rec.Fires7d)
	}
	return b.String()
}

func notificationText(rem model.Reminder) string {
	title := strings.TrimSpace(rem.Title)
	if title == "" {
		title = reminder.Type(rem.Type).Label()
	}
	text := fmt.Sprintf("🔔 <b>%s</b>", escape(title))
	switch reminder.Type(rem.Type) {
	case reminder.TypeSugar, reminder.TypeAfterMeal:
		text += "\nПора измерить сахар."
	case reminder.TypeInsulinShort, reminder.TypeInsulinLong:
		text += "\nПора сделать укол."
	case reminder.TypeSensorChange:
		text += "\nПора заменить сенсор."
	case reminder.TypeInjectionSite:
		text += "\nСмени место инъекции."
	}
	if reminder.Kind(rem.Kind) == reminder.KindAfterEvent && rem.MinutesAfter != nil {
		text += fmt.Sprintf("\nПрошло %d мин после еды.", *rem.MinutesAfter)
	}
	return text
}

// digestText lists the enabled timed reminders due on weekday, earliest first.
func digestText(records []reminder.Record, weekday time.Weekday) (string, bool) {
	type item struct {
		minutes int
		line    string
	}
	var items []item
	for _, rec := range records {
		if !rec.IsEnabled || rec.Kind != reminder.KindAtTime || rec.Time == nil {
			continue
		}
		if len(rec.DaysOfWeek) > 0 && !containsDay(rec.DaysOfWeek, int(weekday)) {
			continue
		}
		m, ok := reminder.ParseTimeToMinutes(*rec.Time)
		if !ok {
			continue
		}
		items = append(items, item{
			minutes: m,
			line:    fmt.Sprintf("• %s — %s", reminder.FormatMinutes(m), escape(rec.Title)),
		})
	}
	if len(items) == 0 {
		return "", false
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].minutes < items[j].minutes })

	lines := make([]string, 0, len(items)+1)
	lines = append(lines, "📅 <b>Сегодня</b>")
	for _, it := range items {
		lines = append(lines, it.line)
	}
	return strings.Join(lines, "\n"), true
}

func containsDay(days []int, d int) bool {
	for _, x := range days {
		if x == d {
			return true
		}
	}
	return false
}
