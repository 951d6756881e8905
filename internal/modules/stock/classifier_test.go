package stock

import (
	"testing"
	"time"

	"github.com/aristath/restock/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(Vocabulary{})

	tests := []struct {
		name       string
		raw        string
		status     domain.StockStatus
		confidence int
	}{
		{"swedish in stock", "Finns i lager", domain.StockAvailable, 90},
		{"english in stock", "In Stock", domain.StockAvailable, 90},
		{"out of stock", "Tillfälligt slut", domain.StockUnavailable, 95},
		{"not available wins over available", "Inte tillgänglig", domain.StockUnavailable, 95},
		{"ej i lager", "Ej i lager", domain.StockUnavailable, 95},
		{"backorder", "Restorder", domain.StockUnavailable, 95},
		{"sold out", "SOLD OUT", domain.StockUnavailable, 95},
		{"limited", "Begränsat antal i lager", domain.StockLimited, 95},
		{"delivery heuristic", "Leveranstid 2-3 dagar", domain.StockAvailable, 90},
		{"delivery only", "Expected delivery Friday", domain.StockAvailable, 80},
		{"delivery overrides unavailable", "Tillfälligt slut i lager, leveranstid 2 veckor", domain.StockAvailable, 95},
		{"no signal", "Kontakta oss", domain.StockUnknown, 50},
		{"empty", "   ", domain.StockUnknown, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, confidence := c.Classify(tt.raw)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.confidence, confidence)
		})
	}
}

func TestClassify_UnavailableTakesPrecedence(t *testing.T) {
	c := NewClassifier(Vocabulary{})

	// Text carrying both vocabularies always resolves to unavailable
	for _, raw := range []string{
		"In stock soon - currently out of stock",
		"Finns i lager: inte på lager",
		"available: sold out",
	} {
		status, _ := c.Classify(raw)
		assert.Equal(t, domain.StockUnavailable, status, raw)
	}
}

func TestClassify_UnknownIsNeverOrderable(t *testing.T) {
	c := NewClassifier(Vocabulary{})
	status, _ := c.Classify("Ring för pris")
	assert.False(t, status.Orderable())
}

func TestNewClassifier_CustomVocabulary(t *testing.T) {
	c := NewClassifier(Vocabulary{
		Available:   []string{"  Auf Lager "},
		Unavailable: []string{"Ausverkauft"},
	})

	status, _ := c.Classify("AUF LAGER")
	assert.Equal(t, domain.StockAvailable, status)

	status, _ = c.Classify("ausverkauft")
	assert.Equal(t, domain.StockUnavailable, status)

	// Swedish defaults are not merged into a custom vocabulary
	status, _ = c.Classify("finns i lager")
	assert.Equal(t, domain.StockUnknown, status)
}

func TestSample(t *testing.T) {
	c := NewClassifier(Vocabulary{})
	now := time.Date(2026, 10, 13, 8, 0, 0, 0, time.UTC)

	s := c.Sample("product1", "  Finns i lager ", "250,00 SEK", now)

	assert.Equal(t, "product1", s.ProductID)
	assert.Equal(t, "Finns i lager", s.RawText)
	assert.Equal(t, domain.StockAvailable, s.Status)
	assert.Equal(t, 90, s.Confidence)
	assert.True(t, s.HasPrice)
	assert.InDelta(t, 250.0, s.Price, 0.001)
	assert.Equal(t, now, s.ObservedAt)
}

func TestSample_MissingPrice(t *testing.T) {
	c := NewClassifier(Vocabulary{})
	s := c.Sample("product1", "Slut", "Price not found", time.Now())

	assert.False(t, s.HasPrice)
	assert.Zero(t, s.Price)
}
