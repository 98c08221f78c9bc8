package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

// LogMeal records a meal and schedules the user's after-meal reminders.
func LogMeal(log *slog.Logger, events MealLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.LogMeal"

		var req mealRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			respondError(w, r, http.StatusBadRequest, "invalid json")
			return
		}
		if err := authorize(r, req.TelegramID); err != nil {
			respondError(w, r, http.StatusForbidden, err.Error())
			return
		}

		n, err := events.MealLogged(r.Context(), req.TelegramID)
		if err != nil {
			respondServiceError(log, w, r, op, err)
			return
		}
		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, mealResponse{Scheduled: n})
	}
}
