package browser

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/aristath/restock/internal/domain"
	"github.com/go-rod/rod"
)

// Messages of a CDP connection that is gone for good
var closedMarkers = []string{
	"use of closed network connection",
	"websocket: close",
	"connection reset by peer",
	"broken pipe",
	"target closed",
	"session closed",
}

// classify maps a rod error to a domain error. onTimeout is the kind of a
// context deadline: element waits time out as NotFound, navigation as Transient.
func classify(op string, err error, onTimeout domain.ErrorKind) error {
	if err == nil {
		return nil
	}

	var classified *domain.Error
	if errors.As(err, &classified) {
		return err
	}

	if isClosed(err) {
		return &domain.Error{
			Kind:   domain.KindFatal,
			Op:     op,
			Reason: domain.ErrSessionExpired.Reason,
			Err:    err,
		}
	}

	var notFound *rod.ElementNotFoundError
	if errors.As(err, &notFound) {
		return domain.NewError(domain.KindNotFound, op, "element not found", err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewError(onTimeout, op, "timed out", err)
	}

	var navErr *rod.NavigationError
	if errors.As(err, &navErr) {
		return domain.NewError(domain.KindTransient, op, "navigation failed", err)
	}

	return domain.Transient(op, err)
}

func isClosed(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range closedMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
