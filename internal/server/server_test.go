package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aristath/restock/internal/domain"
	"github.com/aristath/restock/internal/events"
	"github.com/aristath/restock/internal/modules/cooldown"
	"github.com/aristath/restock/internal/modules/dailystate"
	"github.com/aristath/restock/internal/modules/ledger"
	ledgerhandlers "github.com/aristath/restock/internal/modules/ledger/handlers"
	"github.com/aristath/restock/internal/monitor"
	testingpkg "github.com/aristath/restock/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

var now = time.Date(2026, 10, 13, 9, 30, 0, 0, time.UTC)

type fixedStats monitor.Stats

func (s fixedStats) Stats() monitor.Stats { return monitor.Stats(s) }

type testEnv struct {
	server    *Server
	store     *dailystate.Store
	cooldowns *cooldown.Tracker
	bus       *events.Bus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testingpkg.NewTestDB(t, "ledger")
	repo := ledger.NewRepository(db, time.UTC, zerolog.Nop())

	env := &testEnv{
		store: dailystate.NewStore(dailystate.Config{
			Path:     filepath.Join(t.TempDir(), "daily-state.json"),
			Location: time.UTC,
		}, zerolog.Nop()),
		cooldowns: cooldown.NewTracker(180*time.Second, zerolog.Nop()),
		bus:       events.NewBus(),
	}
	env.server = New(Config{
		Log:       zerolog.Nop(),
		Port:      0,
		DevMode:   true,
		AutoOrder: true,
		Products:  []domain.ProductConfig{testingpkg.WoundProduct(), testingpkg.CappedProduct()},
		Loop:      fixedStats{Mode: monitor.ModeActive, Cycles: 3, TotalChecks: 6},
		State:     env.store,
		Cooldowns: env.cooldowns,
		LedgerDB:  db,
		Ledger:    ledgerhandlers.NewHandler(repo, time.UTC, zerolog.Nop()),
		EventBus:  env.bus,
	})
	env.server.now = func() time.Time { return now }
	return env
}

func (e *testEnv) get(t *testing.T, url string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)

	var body map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t)

	w, body := env.get(t, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "restock", body["service"])
	assert.Equal(t, "ok", body["ledger"])
	assert.Contains(t, body, "cpu_percent")
	assert.Contains(t, body, "memory_percent")
}

func TestHandleHealth_LedgerDown(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.server.cfg.LedgerDB.Close())

	w, body := env.get(t, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", body["status"])
}

func TestHandleStatus(t *testing.T) {
	env := newTestEnv(t)
	env.cooldowns.StartCooldown("product1", now.Add(-80*time.Second))

	w, body := env.get(t, "/api/status")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, true, body["autoOrder"])
	assert.Equal(t, []interface{}{"product1", "product2"}, body["products"])
	assert.Equal(t, map[string]interface{}{"product1": float64(100)}, body["cooldowns"])
	stats := body["stats"].(map[string]interface{})
	assert.Equal(t, "active", stats["mode"])
	assert.EqualValues(t, 6, stats["totalChecks"])
	assert.Equal(t, "2026-10-13T09:30:00Z", body["timestamp"])
}

func TestHandleState(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.store.RecordAttempt(domain.OrderAttempt{
		Timestamp:         now,
		ProductID:         "product1",
		Reference:         "20261013-01",
		RequestedQuantity: 700,
		FinalQuantity:     700,
		Success:           true,
	}, now)
	require.NoError(t, err)

	w, body := env.get(t, "/api/state")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Tue Oct 13 2026", body["date"])
	assert.EqualValues(t, 1, body["product1OrderCount"])
}

func TestHandleCooldowns_Empty(t *testing.T) {
	env := newTestEnv(t)

	w, body := env.get(t, "/api/cooldowns")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{}, body["cooldowns"])
}

func TestLedgerRoutesMounted(t *testing.T) {
	env := newTestEnv(t)

	w, body := env.get(t, "/api/orders?date=2026-10-13")
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	assert.EqualValues(t, 0, data["count"])

	w, _ = env.get(t, "/api/orders/days/2026-10-12")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEventStream_SSE(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events/stream?types=ORDER_PLACED", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readData := func() map[string]interface{} {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") {
				var msg map[string]interface{}
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg))
				return msg
			}
		}
	}

	assert.Equal(t, "connected", readData()["type"])

	// Filtered out
	env.bus.Emit(events.StockChecked, "monitor", map[string]interface{}{"product_id": "product1"})
	env.bus.Emit(events.OrderPlaced, "ordering", map[string]interface{}{"product_id": "product1", "quantity": 700})

	msg := readData()
	assert.Equal(t, "ORDER_PLACED", msg["type"])
	assert.Equal(t, "ordering", msg["module"])
	assert.Equal(t, "product1", msg["data"].(map[string]interface{})["product_id"])
}

func TestEventStream_WebSocket(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/events/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() map[string]interface{} {
		typ, data, err := conn.Read(ctx)
		require.NoError(t, err)
		require.Equal(t, websocket.MessageText, typ)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}

	assert.Equal(t, "connected", read()["type"])

	env.bus.Emit(events.ProductStopped, "ordering", map[string]interface{}{"product_id": "product2"})
	msg := read()
	assert.Equal(t, "PRODUCT_STOPPED", msg["type"])
	assert.Equal(t, "product2", msg["data"].(map[string]interface{})["product_id"])
}

func TestSubscribe_Unsubscribes(t *testing.T) {
	bus := events.NewBus()
	h := NewEventsStreamHandler(bus, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/events/stream?types=ORDER_PLACED,%20ORDER_FAILED", nil)
	_, unsubscribe := h.subscribe(req)
	assert.Equal(t, 1, bus.SubscriberCount(events.OrderPlaced))
	assert.Equal(t, 1, bus.SubscriberCount(events.OrderFailed))
	assert.Zero(t, bus.SubscriberCount(events.StockChecked))

	unsubscribe()
	assert.Zero(t, bus.SubscriberCount(events.OrderPlaced))
}
