package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/render"

	"glucodiary/internal/http-server/middleware/tgauth"
	"glucodiary/internal/reminder"
	"glucodiary/internal/repository"
)

type ReminderService interface {
	Create(ctx context.Context, f reminder.Form) (*reminder.Record, error)
	Update(ctx context.Context, id uint, f reminder.Form) (*reminder.Record, error)
	Delete(ctx context.Context, id uint, telegramID int64) error
	List(ctx context.Context, telegramID int64) ([]reminder.Record, error)
}

type MealLogger interface {
	MealLogged(ctx context.Context, telegramID int64) (int, error)
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type listResponse struct {
	Reminders []reminder.Record `json:"reminders"`
}

type mealRequest struct {
	TelegramID int64 `json:"telegramId"`
}

type mealResponse struct {
	Scheduled int `json:"scheduled"`
}

var errForbidden = errors.New("telegram id does not match init data")

func respondError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg})
}

// respondServiceError maps service errors onto HTTP statuses.
func respondServiceError(log *slog.Logger, w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *reminder.ValidationError
	switch {
	case errors.As(err, &verr):
		fields := make(map[string]string, len(verr.Fields))
		for k, v := range verr.Fields {
			fields[string(k)] = v
		}
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, ErrorResponse{Error: "validation failed", Fields: fields})
	case errors.Is(err, repository.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "reminder not found")
	default:
		log.Error(op+": service error", "error", err, "url", r.URL.String())
		respondError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// authorize checks that telegramID belongs to the user that signed the request.
func authorize(r *http.Request, telegramID int64) error {
	u, ok := tgauth.UserFrom(r.Context())
	if !ok || u.ID != telegramID {
		return errForbidden
	}
	return nil
}

// queryTelegramID reads ?telegram_id=, falling back to the signed user.
func queryTelegramID(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("telegram_id")
	if raw == "" {
		if u, ok := tgauth.UserFrom(r.Context()); ok {
			return u.ID, nil
		}
		return 0, errors.New("telegram_id is required")
	}
	return strconv.ParseInt(raw, 10, 64)
}
