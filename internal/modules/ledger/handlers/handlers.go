// Package handlers provides HTTP handlers for the order ledger.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/restock/internal/domain"
	"github.com/aristath/restock/internal/modules/ledger"
	"github.com/rs/zerolog"
)

// Repository is the read side of the ledger
type Repository interface {
	AttemptsForDate(date string, productID string) ([]ledger.StoredAttempt, error)
	ArchivedDays(limit int) ([]ledger.DaySummary, error)
	ArchivedState(date string) (domain.DailyState, error)
}

// Handler handles ledger HTTP requests
type Handler struct {
	repo Repository
	loc  *time.Location
	now  func() time.Time
	log  zerolog.Logger
}

// NewHandler creates a new ledger handler. loc decides what "today" is when
// no date is requested.
func NewHandler(repo Repository, loc *time.Location, log zerolog.Logger) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		repo: repo,
		loc:  loc,
		now:  time.Now,
		log:  log.With().Str("handler", "ledger").Logger(),
	}
}

// HandleGetOrders handles GET /api/orders?date=YYYY-MM-DD&product=ID
func (h *Handler) HandleGetOrders(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.now().In(h.loc).Format(ledger.DateLayout)
	}
	if _, err := time.Parse(ledger.DateLayout, date); err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	product := r.URL.Query().Get("product")

	attempts, err := h.repo.AttemptsForDate(date, product)
	if err != nil {
		h.log.Error().Err(err).Str("date", date).Msg("Failed to query order attempts")
		http.Error(w, "Failed to query order attempts", http.StatusInternalServerError)
		return
	}

	var ok, failed, units int
	for _, a := range attempts {
		if a.Success {
			ok++
			units += a.FinalQuantity
		} else {
			failed++
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"date":     date,
			"attempts": attempts,
			"count":    len(attempts),
			"summary": map[string]interface{}{
				"successful_orders": ok,
				"failed_orders":     failed,
				"units_ordered":     units,
			},
		},
		"metadata": h.metadata(),
	})
}

// HandleGetDays handles GET /api/orders/days?limit=N
func (h *Handler) HandleGetDays(w http.ResponseWriter, r *http.Request) {
	limit := 30
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	days, err := h.repo.ArchivedDays(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query archived days")
		http.Error(w, "Failed to query archived days", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"days":  days,
			"count": len(days),
		},
		"metadata": h.metadata(),
	})
}

// HandleGetDay handles GET /api/orders/days/{date}
func (h *Handler) HandleGetDay(w http.ResponseWriter, r *http.Request, date string) {
	state, err := h.repo.ArchivedState(date)
	if domain.IsNotFound(err) {
		http.Error(w, "Day not archived", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("date", date).Msg("Failed to read archived day")
		http.Error(w, "Failed to read archived day", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     state,
		"metadata": h.metadata(),
	})
}

func (h *Handler) metadata() map[string]interface{} {
	return map[string]interface{}{
		"timestamp": h.now().Format(time.RFC3339),
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
