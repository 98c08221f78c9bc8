package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"glucodiary/internal/apiclient"
	"glucodiary/internal/reminder"
)

type reminderFlags struct {
	typ      string
	kind     string
	at       string
	every    int
	after    int
	days     string
	title    string
	disabled bool
}

func (f *reminderFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.typ, "type", "", "Reminder type: sugar, insulin_short, insulin_long, after_meal, meal, sensor_change, injection_site, custom")
	cmd.Flags().StringVar(&f.kind, "kind", "", "Schedule kind: at_time, every, after_event (guessed from --time/--every/--after)")
	cmd.Flags().StringVar(&f.at, "time", "", "Time of day, HH:MM")
	cmd.Flags().IntVar(&f.every, "every", 0, "Interval in minutes")
	cmd.Flags().IntVar(&f.after, "after", 0, "Minutes after a meal, 5 to 480 in steps of 5")
	cmd.Flags().StringVar(&f.days, "days", "", "Days of week, comma separated, 0 is Sunday")
	cmd.Flags().StringVar(&f.title, "title", "", "Custom title")
	cmd.Flags().BoolVar(&f.disabled, "disabled", false, "Create the reminder switched off")
}

// form builds the reminder the same way the Mini-App editor does: start from
// a new form, switch to the chosen kind, then fill in the fields.
func (f reminderFlags) form(telegramID int64) (reminder.Form, error) {
	form := reminder.NewForm(telegramID)
	if f.typ != "" {
		t := reminder.Type(f.typ)
		if !t.Valid() {
			return form, fmt.Errorf("unknown type %q", f.typ)
		}
		form.Type = t
	}

	kind := reminder.Kind(f.kind)
	switch {
	case f.kind != "":
		if !kind.Valid() {
			return form, fmt.Errorf("unknown kind %q", f.kind)
		}
	case f.every != 0:
		kind = reminder.KindEvery
	case f.after != 0:
		kind = reminder.KindAfterEvent
	default:
		kind = reminder.KindAtTime
	}
	form = reminder.SwitchKind(form, kind)

	switch kind {
	case reminder.KindAtTime:
		if f.at != "" {
			form.Schedule = reminder.AtTime{Time: f.at}
		}
	case reminder.KindEvery:
		if f.every != 0 {
			form.Schedule = reminder.Every{IntervalMinutes: f.every}
		}
	case reminder.KindAfterEvent:
		if f.after != 0 {
			form.Schedule = reminder.AfterEvent{MinutesAfter: f.after}
		}
	}

	days, err := parseDays(f.days)
	if err != nil {
		return form, err
	}
	form.DaysOfWeek = days
	form.Title = f.title
	if f.disabled {
		off := false
		form.IsEnabled = &off
	}
	return form, nil
}

func parseDays(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var days []int
	for _, part := range strings.Split(raw, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid day %q", part)
		}
		days = append(days, d)
	}
	return days, nil
}

// describe turns validation failures into one readable error.
func describe(err error) error {
	var verr *reminder.ValidationError
	if errors.As(err, &verr) {
		return errors.New(joinFields(verr.Fields))
	}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
		fields := make(reminder.Errors, len(apiErr.Fields))
		for k, v := range apiErr.Fields {
			fields[reminder.Field(k)] = v
		}
		return errors.New(joinFields(fields))
	}
	return err
}

func joinFields(errs reminder.Errors) string {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %s", k, errs[reminder.Field(k)]))
	}
	return strings.Join(lines, "\n")
}

func formatRecord(rec reminder.Record) string {
	state := green("on ")
	if !rec.IsEnabled {
		state = gray("off")
	}
	line := fmt.Sprintf("#%-4d %s %s", rec.ID, state, rec.Title)
	if len(rec.DaysOfWeek) > 0 {
		days := make([]string, 0, len(rec.DaysOfWeek))
		for _, d := range rec.DaysOfWeek {
			days = append(days, strconv.Itoa(d))
		}
		line += gray(" days " + strings.Join(days, ","))
	}
	if rec.NextAt != nil && rec.IsEnabled {
		line += gray(" next " + rec.NextAt.Local().Format("02.01 15:04"))
	}
	return line
}
