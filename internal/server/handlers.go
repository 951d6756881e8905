package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/restock/internal/monitor"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// StatusResponse is the body of GET /api/status
type StatusResponse struct {
	Stats     monitor.Stats  `json:"stats"`
	AutoOrder bool           `json:"autoOrder"`
	Products  []string       `json:"products"`
	Cooldowns map[string]int `json:"cooldowns"`
	Timestamp string         `json:"timestamp"`
}

// handleHealth reports process health, host load and ledger reachability
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := s.getSystemStats()
	response := map[string]interface{}{
		"status":         "healthy",
		"service":        "restock",
		"cpu_percent":    cpuPercent,
		"memory_percent": memPercent,
	}

	status := http.StatusOK
	if s.cfg.LedgerDB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.cfg.LedgerDB.QuickCheck(ctx); err != nil {
			response["status"] = "degraded"
			response["ledger"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			response["ledger"] = "ok"
		}
	}

	s.writeJSON(w, status, response)
}

// handleStatus returns the loop counters and mode
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	response := StatusResponse{
		AutoOrder: s.cfg.AutoOrder,
		Products:  make([]string, 0, len(s.cfg.Products)),
		Cooldowns: map[string]int{},
		Timestamp: s.now().Format(time.RFC3339),
	}
	for _, p := range s.cfg.Products {
		response.Products = append(response.Products, p.ID)
	}
	if s.cfg.Loop != nil {
		response.Stats = s.cfg.Loop.Stats()
	}
	if s.cfg.Cooldowns != nil {
		response.Cooldowns = s.cfg.Cooldowns.Snapshot(s.now())
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleState returns today's persisted daily state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if s.cfg.State == nil {
		http.Error(w, "Daily state not available", http.StatusServiceUnavailable)
		return
	}
	state, err := s.cfg.State.Load()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load daily state")
		http.Error(w, "Failed to load daily state", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

// handleCooldowns returns the remaining seconds of every active cooldown
func (s *Server) handleCooldowns(w http.ResponseWriter, r *http.Request) {
	cooldowns := map[string]int{}
	if s.cfg.Cooldowns != nil {
		cooldowns = s.cfg.Cooldowns.Snapshot(s.now())
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"cooldowns": cooldowns})
}

// getSystemStats returns CPU and RAM usage percentages.
// CPU is sampled over 100ms to keep the health check fast.
func (s *Server) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
