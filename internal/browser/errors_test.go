package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/aristath/restock/internal/domain"
	"github.com/go-rod/rod"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		onTimeout domain.ErrorKind
		expected  domain.ErrorKind
	}{
		{"element wait deadline", context.DeadlineExceeded, domain.KindNotFound, domain.KindNotFound},
		{"navigation deadline", fmt.Errorf("navigate: %w", context.DeadlineExceeded), domain.KindTransient, domain.KindTransient},
		{"element not found", &rod.ElementNotFoundError{}, domain.KindTransient, domain.KindNotFound},
		{"navigation error", &rod.NavigationError{Reason: "net::ERR_NAME_NOT_RESOLVED"}, domain.KindTransient, domain.KindTransient},
		{"connection closed", io.EOF, domain.KindNotFound, domain.KindFatal},
		{"websocket gone", errors.New("write tcp: use of closed network connection"), domain.KindNotFound, domain.KindFatal},
		{"anything else", errors.New("boom"), domain.KindNotFound, domain.KindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("op", tt.err, tt.onTimeout)
			assert.Equal(t, tt.expected, domain.KindOf(err))
		})
	}
}

func TestClassify_ClosedSessionIsSessionExpired(t *testing.T) {
	err := classify("goto", io.EOF, domain.KindTransient)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestClassify_KeepsClassifiedErrors(t *testing.T) {
	original := domain.NotFound("click", "button")
	assert.Same(t, original, classify("click", original, domain.KindTransient))
	assert.Nil(t, classify("click", nil, domain.KindTransient))
}

func TestParseQuantity(t *testing.T) {
	assert.Equal(t, 700, parseQuantity("700"))
	assert.Equal(t, 1620, parseQuantity(" 1 620 st"))
	assert.Equal(t, 0, parseQuantity(""))
	assert.Equal(t, 0, parseQuantity("-"))
}
