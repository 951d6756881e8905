package cooldown

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestTracker_WindowBoundaries(t *testing.T) {
	tr := NewTracker(180*time.Second, zerolog.Nop())
	start := time.Date(2026, 10, 13, 10, 0, 0, 0, time.UTC)

	assert.False(t, tr.IsCoolingDown("product1", start))

	tr.StartCooldown("product1", start)

	assert.True(t, tr.IsCoolingDown("product1", start))
	assert.True(t, tr.IsCoolingDown("product1", start.Add(179*time.Second)))
	assert.False(t, tr.IsCoolingDown("product1", start.Add(180*time.Second)))
	assert.False(t, tr.IsCoolingDown("product1", start.Add(181*time.Second)))

	// Other products are unaffected
	assert.False(t, tr.IsCoolingDown("product2", start))
}

func TestTracker_RemainingSeconds(t *testing.T) {
	tr := NewTracker(180*time.Second, zerolog.Nop())
	start := time.Date(2026, 10, 13, 10, 0, 0, 0, time.UTC)
	tr.StartCooldown("product1", start)

	assert.Equal(t, 180, tr.RemainingSeconds("product1", start))
	assert.Equal(t, 120, tr.RemainingSeconds("product1", start.Add(60*time.Second)))
	assert.Equal(t, 1, tr.RemainingSeconds("product1", start.Add(179500*time.Millisecond)))
	assert.Equal(t, 0, tr.RemainingSeconds("product1", start.Add(time.Hour)))
}

func TestTracker_RestartExtends(t *testing.T) {
	tr := NewTracker(time.Minute, zerolog.Nop())
	start := time.Date(2026, 10, 13, 10, 0, 0, 0, time.UTC)

	tr.StartCooldown("product1", start)
	tr.StartCooldown("product1", start.Add(50*time.Second))

	assert.True(t, tr.IsCoolingDown("product1", start.Add(90*time.Second)))
}

func TestTracker_Snapshot(t *testing.T) {
	tr := NewTracker(time.Minute, zerolog.Nop())
	start := time.Date(2026, 10, 13, 10, 0, 0, 0, time.UTC)

	tr.StartCooldown("product1", start)
	tr.StartCooldown("product2", start.Add(30*time.Second))

	snap := tr.Snapshot(start.Add(45 * time.Second))
	assert.Equal(t, map[string]int{"product1": 15, "product2": 45}, snap)

	snap = tr.Snapshot(start.Add(75 * time.Second))
	assert.Equal(t, map[string]int{"product2": 15}, snap)
}

func TestNewTracker_DefaultDuration(t *testing.T) {
	tr := NewTracker(0, zerolog.Nop())
	assert.Equal(t, DefaultDuration, tr.Duration())
}

func TestTracker_ConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Minute, zerolog.Nop())
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			tr.StartCooldown("product1", now)
		}()
		go func() {
			defer wg.Done()
			_ = tr.Snapshot(now)
			_ = tr.IsCoolingDown("product1", now)
		}()
	}
	wg.Wait()

	assert.True(t, tr.IsCoolingDown("product1", now))
}
