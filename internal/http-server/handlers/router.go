package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the API. auth guards every reminder and event route;
// /healthz and /metrics stay public.
func NewRouter(log *slog.Logger, auth func(http.Handler) http.Handler, reminders ReminderService, events MealLogger, gatherer prometheus.Gatherer) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	router.Group(func(r chi.Router) {
		r.Use(auth)

		r.Post("/reminders", CreateReminder(log, reminders))
		r.Get("/reminders", ListReminders(log, reminders))
		r.Patch("/reminders/{id}", UpdateReminder(log, reminders))
		r.Delete("/reminders/{id}", DeleteReminder(log, reminders))
		r.Post("/events/meal", LogMeal(log, events))
	})

	return router
}
