package api

import (
	"net/http"
	"strconv"

	"github.com/ashureev/diffbot/internal/domain"
	"github.com/go-chi/chi/v5"
)

func userIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// ListRecords returns a user's saved calculations, oldest first.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	records, err := h.repo.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list records", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	JSON(w, http.StatusOK, struct {
		UserID  int64           `json:"user_id"`
		Records []domain.Record `json:"records"`
	}{userID, records})
}

// DeleteRecords removes all of a user's saved calculations.
func (h *Handler) DeleteRecords(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	n, err := h.repo.DeleteByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to delete records", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	h.logger.Info("Records cleared via API", "user_id", userID, "deleted", n)
	JSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
