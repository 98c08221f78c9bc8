package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"glucodiary/internal/reminder"
)

// decodePayload reads a reminder payload. isEnabled defaults to true when absent.
func decodePayload(r *http.Request) (reminder.Payload, error) {
	p := reminder.Payload{IsEnabled: true}
	if err := render.DecodeJSON(r.Body, &p); err != nil {
		return reminder.Payload{}, err
	}
	return p, nil
}

func reminderID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func CreateReminder(log *slog.Logger, svc ReminderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateReminder"

		p, err := decodePayload(r)
		if err != nil {
			log.Info(op+": bad body", "error", err)
			respondError(w, r, http.StatusBadRequest, "invalid json")
			return
		}
		if err := authorize(r, p.TelegramID); err != nil {
			respondError(w, r, http.StatusForbidden, err.Error())
			return
		}

		rec, err := svc.Create(r.Context(), p.Form())
		if err != nil {
			respondServiceError(log, w, r, op, err)
			return
		}
		log.Info(op+": created", "id", rec.ID, "telegram_id", rec.TelegramID, "kind", rec.Kind)
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, rec)
	}
}

func UpdateReminder(log *slog.Logger, svc ReminderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateReminder"

		id, ok := reminderID(r)
		if !ok {
			respondError(w, r, http.StatusBadRequest, "invalid id")
			return
		}
		p, err := decodePayload(r)
		if err != nil {
			log.Info(op+": bad body", "error", err)
			respondError(w, r, http.StatusBadRequest, "invalid json")
			return
		}
		if err := authorize(r, p.TelegramID); err != nil {
			respondError(w, r, http.StatusForbidden, err.Error())
			return
		}

		rec, err := svc.Update(r.Context(), id, p.Form())
		if err != nil {
			respondServiceError(log, w, r, op, err)
			return
		}
		render.JSON(w, r, rec)
	}
}

func DeleteReminder(log *slog.Logger, svc ReminderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.DeleteReminder"

		id, ok := reminderID(r)
		if !ok {
			respondError(w, r, http.StatusBadRequest, "invalid id")
			return
		}
		telegramID, err := queryTelegramID(r)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "invalid telegram_id")
			return
		}
		if err := authorize(r, telegramID); err != nil {
			respondError(w, r, http.StatusForbidden, err.Error())
			return
		}

		if err := svc.Delete(r.Context(), id, telegramID); err != nil {
			respondServiceError(log, w, r, op, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ListReminders(log *slog.Logger, svc ReminderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListReminders"

		telegramID, err := queryTelegramID(r)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "invalid telegram_id")
			return
		}
		if err := authorize(r, telegramID); err != nil {
			respondError(w, r, http.StatusForbidden, err.Error())
			return
		}

		records, err := svc.List(r.Context(), telegramID)
		if err != nil {
			respondServiceError(log, w, r, op, err)
			return
		}
		if records == nil {
			records = []reminder.Record{}
		}
		render.JSON(w, r, listResponse{Reminders: records})
	}
}
