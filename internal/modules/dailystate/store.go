// Package dailystate persists the per-day order counters and attempt log.
package dailystate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aristath/restock/internal/domain"
	"github.com/rs/zerolog"
)

// ReferenceDateLayout prefixes every order reference
const ReferenceDateLayout = "20060102"

var errCorrupt = errors.New("daily state file is corrupt")

// Config holds store configuration
type Config struct {
	Path       string         // state file, e.g. <data>/daily-state.json
	ArchiveDir string         // rolled-over days are written here; empty disables
	Location   *time.Location // supplier-local timezone for date boundaries
}

// Store is a single-writer JSON file datastore for the daily state.
// Every mutation reloads the file, applies the change and writes it back
// atomically, so a restart mid-day resumes with the persisted counters.
type Store struct {
	path       string
	archiveDir string
	loc        *time.Location
	archivers  []domain.DayArchiver
	history    domain.AttemptHistory
	mu         sync.Mutex
	log        zerolog.Logger
}

// NewStore creates a store
func NewStore(cfg Config, log zerolog.Logger) *Store {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Store{
		path:       cfg.Path,
		archiveDir: cfg.ArchiveDir,
		loc:        loc,
		log:        log.With().Str("service", "daily_state").Logger(),
	}
}

// AddArchiver registers a receiver for rolled-over days
func (s *Store) AddArchiver(a domain.DayArchiver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archivers = append(s.archivers, a)
}

// SetHistory sets the attempt source used to rebuild today's counters after
// a corrupt state file is quarantined
func (s *Store) SetHistory(h domain.AttemptHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = h
}

// Path returns the state file path
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted state. A missing file yields an empty state with no date.
func (s *Store) Load() (domain.DailyState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save persists state atomically
func (s *Store) Save(state domain.DailyState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(state)
}

// RolloverIfNeeded returns the state for the local date of now. When the
// stored state belongs to another date it is archived and replaced by a
// fresh, immediately persisted one.
func (s *Store) RolloverIfNeeded(now time.Time) (domain.DailyState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current(now)
}

// RecordAttempt appends an attempt to today's log. A successful attempt also
// increments the product's order count and units ordered.
func (s *Store) RecordAttempt(attempt domain.OrderAttempt, now time.Time) (domain.DailyState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.current(now)
	if err != nil {
		return state, err
	}

	orders := make([]domain.OrderAttempt, 0, len(state.OrdersPlacedToday)+1)
	orders = append(orders, state.OrdersPlacedToday...)
	state.OrdersPlacedToday = append(orders, attempt)

	if attempt.Success {
		c := state.Counters(attempt.ProductID)
		c.OrderCount++
		c.UnitsOrderedToday += attempt.FinalQuantity
		state = state.WithCounters(attempt.ProductID, c)
	}

	if err := s.save(state); err != nil {
		return state, err
	}
	return state, nil
}

// MarkStopped stops ordering a product until the next rollover
func (s *Store) MarkStopped(productID string, now time.Time) (domain.DailyState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.current(now)
	if err != nil {
		return state, err
	}
	c := state.Counters(productID)
	c.StoppedForToday = true
	state = state.WithCounters(productID, c)

	if err := s.save(state); err != nil {
		return state, err
	}
	s.log.Warn().Str("product", productID).Msg("Product stopped for today")
	return state, nil
}

// NextReference allocates the next order reference of the day, YYYYMMDD-NN.
// The sequence is persisted before the reference is returned so a restart
// never reuses one.
func (s *Store) NextReference(now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.current(now)
	if err != nil {
		return "", err
	}
	state.ReferenceSequence++
	if err := s.save(state); err != nil {
		return "", err
	}
	return FormatReference(now.In(s.loc), state.ReferenceSequence), nil
}

// FormatReference builds YYYYMMDD-NN for the date of t
func FormatReference(t time.Time, seq int) string {
	return fmt.Sprintf("%s-%02d", t.Format(ReferenceDateLayout), seq)
}

func (s *Store) current(now time.Time) (domain.DailyState, error) {
	local := now.In(s.loc)

	state, err := s.load()
	recovering := false
	if err != nil {
		if !errors.Is(err, errCorrupt) {
			return domain.DailyState{}, err
		}
		s.quarantine(local, err)
		state = domain.DailyState{}
		recovering = true
	}

	if state.IsFor(local) {
		return state, nil
	}

	if state.Date != "" {
		s.archive(state)
		s.log.Info().
			Str("previous_date", state.Date).
			Str("date", local.Format(domain.DailyStateDateLayout)).
			Msg("Daily state rolled over")
	}

	fresh := domain.NewDailyState(local)
	if recovering {
		fresh = s.replay(fresh, local)
	}
	if err := s.save(fresh); err != nil {
		return fresh, err
	}
	return fresh, nil
}

func (s *Store) load() (domain.DailyState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.DailyState{Products: map[string]domain.ProductCounters{}, OrdersPlacedToday: []domain.OrderAttempt{}}, nil
	}
	if err != nil {
		return domain.DailyState{}, fmt.Errorf("failed to read daily state: %w", err)
	}

	var state domain.DailyState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.DailyState{}, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	return state, nil
}

func (s *Store) save(state domain.DailyState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode daily state: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("failed to write daily state: %w", err)
	}
	return nil
}

func (s *Store) archive(state domain.DailyState) {
	if s.archiveDir != "" {
		data, err := json.MarshalIndent(state, "", "  ")
		if err == nil {
			err = writeFileAtomic(filepath.Join(s.archiveDir, ArchiveFileName(state)), data)
		}
		if err != nil {
			s.log.Error().Err(err).Str("date", state.Date).Msg("Failed to archive daily state")
		}
	}

	for _, a := range s.archivers {
		if err := a.ArchiveDay(state); err != nil {
			s.log.Error().Err(err).Str("date", state.Date).Msg("Day archiver failed")
		}
	}
}

// replay rebuilds counters, the attempt log and the reference sequence of
// state from the attempt history. Stop flags are not recorded there and stay
// cleared.
func (s *Store) replay(state domain.DailyState, local time.Time) domain.DailyState {
	if s.history == nil {
		return state
	}
	attempts, err := s.history.AttemptsOn(local.Format("2006-01-02"))
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to read attempt history, counters start at zero")
		return state
	}

	prefix := local.Format(ReferenceDateLayout) + "-"
	for _, a := range attempts {
		state.OrdersPlacedToday = append(state.OrdersPlacedToday, a)
		if a.Success {
			c := state.Counters(a.ProductID)
			c.OrderCount++
			c.UnitsOrderedToday += a.FinalQuantity
			state = state.WithCounters(a.ProductID, c)
		}
		if seq, ok := referenceSequence(a.Reference, prefix); ok && seq > state.ReferenceSequence {
			state.ReferenceSequence = seq
		}
	}

	s.log.Warn().
		Int("attempts", len(attempts)).
		Int("reference_sequence", state.ReferenceSequence).
		Msg("Daily state rebuilt from attempt history")
	return state
}

func referenceSequence(ref, prefix string) (int, bool) {
	rest, ok := strings.CutPrefix(ref, prefix)
	if !ok {
		return 0, false
	}
	seq, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return seq, true
}

// quarantine moves an unreadable state file aside so the day can start fresh
func (s *Store) quarantine(now time.Time, cause error) {
	dst := fmt.Sprintf("%s.corrupt-%s", s.path, now.Format("20060102T150405"))
	if err := os.Rename(s.path, dst); err != nil {
		s.log.Error().Err(err).Msg("Failed to move corrupt daily state aside")
		return
	}
	s.log.Error().Err(cause).Str("moved_to", dst).Msg("Daily state unreadable, starting fresh")
}

// ArchiveFileName is the archive file of a day, daily-state-YYYY-MM-DD.json
func ArchiveFileName(state domain.DailyState) string {
	return "daily-state-" + state.ISODate() + ".json"
}

// writeFileAtomic writes to a temp file in the same directory, syncs it and
// renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
