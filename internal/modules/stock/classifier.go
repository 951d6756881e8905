// Package stock interprets the free-form availability text of product pages.
package stock

import (
	"strings"
	"time"

	"github.com/aristath/restock/internal/domain"
)

// Confidence scores attached to each kind of match
const (
	ConfidenceUnavailable = 95
	ConfidenceLimited     = 95
	ConfidenceAvailable   = 90
	ConfidenceDelivery    = 80
	ConfidenceDefault     = 50
)

// Vocabulary is the set of phrases the classifier looks for.
// All phrases are matched case-insensitively as substrings.
type Vocabulary struct {
	Limited     []string
	Unavailable []string
	Available   []string
	Delivery    []string
}

// DefaultVocabulary covers the Swedish supplier pages plus English fallbacks
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Limited: []string{"begränsat antal", "limited stock", "few left"},
		Unavailable: []string{
			"slut", "inte tillgänglig", "ej i lager", "restorder", "inte på lager",
			"out of stock", "unavailable", "sold out",
		},
		Available: []string{
			"tillgänglig", "i lager", "finns", "leverans",
			"available", "in stock", "ready",
		},
		Delivery: []string{"leveranstid", "delivery"},
	}
}

// Classifier maps raw stock text onto a status and a confidence score
type Classifier struct {
	vocab Vocabulary
}

// NewClassifier creates a classifier. A zero vocabulary uses DefaultVocabulary.
func NewClassifier(vocab Vocabulary) *Classifier {
	if len(vocab.Unavailable) == 0 && len(vocab.Available) == 0 && len(vocab.Limited) == 0 {
		vocab = DefaultVocabulary()
	}
	return &Classifier{vocab: normalizeVocabulary(vocab)}
}

// Classify returns the status and confidence for the given text.
//
// Precedence: limited phrase, then unavailable phrases, then available
// phrases. A delivery mention forces available and raises the confidence to
// at least 80, even over an unavailable phrase. Text with no signal is unknown.
func (c *Classifier) Classify(raw string) (domain.StockStatus, int) {
	text := strings.ToLower(strings.TrimSpace(raw))
	if text == "" {
		return domain.StockUnknown, ConfidenceDefault
	}

	if containsAny(text, c.vocab.Limited) {
		return domain.StockLimited, ConfidenceLimited
	}

	status, confidence := domain.StockUnknown, ConfidenceDefault
	switch {
	case containsAny(text, c.vocab.Unavailable):
		status, confidence = domain.StockUnavailable, ConfidenceUnavailable
	case containsAny(text, c.vocab.Available):
		status, confidence = domain.StockAvailable, ConfidenceAvailable
	}
	if containsAny(text, c.vocab.Delivery) {
		status = domain.StockAvailable
		if confidence < ConfidenceDelivery {
			confidence = ConfidenceDelivery
		}
	}
	return status, confidence
}

// Sample classifies raw text and parses the price into a stock sample
func (c *Classifier) Sample(productID, raw, priceText string, now time.Time) domain.StockSample {
	status, confidence := c.Classify(raw)
	price, ok := ParsePrice(priceText)
	return domain.StockSample{
		ObservedAt: now,
		ProductID:  productID,
		RawText:    strings.TrimSpace(raw),
		PriceText:  strings.TrimSpace(priceText),
		Status:     status,
		Confidence: confidence,
		Price:      price,
		HasPrice:   ok,
	}
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func normalizeVocabulary(v Vocabulary) Vocabulary {
	lower := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, s := range in {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return Vocabulary{
		Limited:     lower(v.Limited),
		Unavailable: lower(v.Unavailable),
		Available:   lower(v.Available),
		Delivery:    lower(v.Delivery),
	}
}
