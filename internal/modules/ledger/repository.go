// Package ledger keeps an append-only audit trail of order attempts and
// archived days in SQLite.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/restock/internal/database"
	"github.com/aristath/restock/internal/domain"
	"github.com/aristath/restock/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DateLayout is the layout of order_date columns
const DateLayout = "2006-01-02"

// attemptColumns must match scanAttempt
const attemptColumns = `id, product_id, reference, requested_quantity, final_quantity, success, failure_reason, attempted_at`

// StoredAttempt is an order attempt with its ledger id
type StoredAttempt struct {
	ID string `json:"id"`
	domain.OrderAttempt
}

// DaySummary is one archived day
type DaySummary struct {
	Date             string `json:"date"`
	SuccessfulOrders int    `json:"successful_orders"`
	FailedOrders     int    `json:"failed_orders"`
	UnitsOrdered     int    `json:"units_ordered"`
	ArchivedAt       string `json:"archived_at"`
}

// Repository writes and reads the ledger database
type Repository struct {
	db  *database.DB
	loc *time.Location
	log zerolog.Logger
}

// NewRepository creates a ledger repository. loc decides which calendar day
// an attempt belongs to.
func NewRepository(db *database.DB, loc *time.Location, log zerolog.Logger) *Repository {
	if loc == nil {
		loc = time.Local
	}
	return &Repository{
		db:  db,
		loc: loc,
		log: log.With().Str("repo", "ledger").Logger(),
	}
}

// RecordAttempt appends an attempt
func (r *Repository) RecordAttempt(attempt domain.OrderAttempt) error {
	done := utils.MeasureDBQuery("insert_order_attempt", r.log)

	local := attempt.Timestamp.In(r.loc)
	result, err := r.db.Conn().Exec(`
		INSERT INTO order_attempts
		(id, product_id, reference, requested_quantity, final_quantity, success,
		 failure_reason, attempted_at, order_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		uuid.New().String(),
		attempt.ProductID,
		attempt.Reference,
		attempt.RequestedQuantity,
		attempt.FinalQuantity,
		boolToInt(attempt.Success),
		nullString(attempt.FailureReason),
		attempt.Timestamp.UTC().Format(time.RFC3339Nano),
		local.Format(DateLayout),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert order attempt: %w", err)
	}

	rows, _ := result.RowsAffected()
	done(rows)
	return nil
}

// ArchiveDay stores a rolled-over daily state. Archiving the same day twice
// replaces the earlier copy.
func (r *Repository) ArchiveDay(state domain.DailyState) error {
	date := state.ISODate()
	if date == "" {
		return fmt.Errorf("daily state has no date")
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode daily state: %w", err)
	}

	var ok, failed, units int
	for _, a := range state.OrdersPlacedToday {
		if a.Success {
			ok++
			units += a.FinalQuantity
		} else {
			failed++
		}
	}

	_, err = r.db.Conn().Exec(`
		INSERT INTO daily_archive (order_date, state_json, successful_orders, failed_orders, units_ordered, archived_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(order_date) DO UPDATE SET
			state_json = excluded.state_json,
			successful_orders = excluded.successful_orders,
			failed_orders = excluded.failed_orders,
			units_ordered = excluded.units_ordered,
			archived_at = excluded.archived_at
	`, date, string(data), ok, failed, units, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to archive day %s: %w", date, err)
	}

	r.log.Info().
		Str("date", date).
		Int("successful_orders", ok).
		Int("failed_orders", failed).
		Int("units_ordered", units).
		Msg("Archived day to ledger")
	return nil
}

// AttemptsForDate returns the attempts of a YYYY-MM-DD day, oldest first,
// optionally limited to one product
func (r *Repository) AttemptsForDate(date string, productID string) ([]StoredAttempt, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}

	query := `SELECT ` + attemptColumns + ` FROM order_attempts WHERE order_date = ?`
	args := []interface{}{date}
	if productID != "" {
		query += " AND product_id = ?"
		args = append(args, productID)
	}
	query += " ORDER BY attempted_at ASC, reference ASC"

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]StoredAttempt, 0)
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order attempts: %w", err)
	}
	return attempts, nil
}

// AttemptsOn returns the attempts of a YYYY-MM-DD day without their row ids
func (r *Repository) AttemptsOn(date string) ([]domain.OrderAttempt, error) {
	stored, err := r.AttemptsForDate(date, "")
	if err != nil {
		return nil, err
	}
	attempts := make([]domain.OrderAttempt, len(stored))
	for i, a := range stored {
		attempts[i] = a.OrderAttempt
	}
	return attempts, nil
}

// ArchivedDays returns archived day summaries, newest first
func (r *Repository) ArchivedDays(limit int) ([]DaySummary, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := r.db.Conn().Query(`
		SELECT order_date, successful_orders, failed_orders, units_ordered, archived_at
		FROM daily_archive ORDER BY order_date DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily archive: %w", err)
	}
	defer rows.Close()

	days := make([]DaySummary, 0)
	for rows.Next() {
		var d DaySummary
		if err := rows.Scan(&d.Date, &d.SuccessfulOrders, &d.FailedOrders, &d.UnitsOrdered, &d.ArchivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan archived day: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// ArchivedState returns the stored daily state of a YYYY-MM-DD day
func (r *Repository) ArchivedState(date string) (domain.DailyState, error) {
	var raw string
	err := r.db.Conn().QueryRow(`SELECT state_json FROM daily_archive WHERE order_date = ?`, date).Scan(&raw)
	if err == sql.ErrNoRows {
		return domain.DailyState{}, domain.NotFound("archived_state", "day "+date)
	}
	if err != nil {
		return domain.DailyState{}, fmt.Errorf("failed to read archived day: %w", err)
	}

	var state domain.DailyState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return domain.DailyState{}, fmt.Errorf("failed to decode archived day: %w", err)
	}
	return state, nil
}

func scanAttempt(rows *sql.Rows) (StoredAttempt, error) {
	var (
		a           StoredAttempt
		success     int
		reason      sql.NullString
		attemptedAt string
	)
	err := rows.Scan(&a.ID, &a.ProductID, &a.Reference, &a.RequestedQuantity, &a.FinalQuantity,
		&success, &reason, &attemptedAt)
	if err != nil {
		return a, fmt.Errorf("failed to scan order attempt: %w", err)
	}

	a.Success = success != 0
	if reason.Valid {
		a.FailureReason = reason.String
	}
	if t, err := time.Parse(time.RFC3339Nano, attemptedAt); err == nil {
		a.Timestamp = t
	}
	return a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
