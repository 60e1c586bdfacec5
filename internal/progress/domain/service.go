package domain

import (
	"context"
	"time"

	mesadomain "github.com/smallbiznis/escrutinio/internal/mesa/domain"
)

type Service interface {
	// PendingDataEntry lists mesas an operator can load now, by load order.
	// A window of zero or less uses the configured staleness window.
	PendingDataEntry(ctx context.Context, window time.Duration) ([]mesadomain.Mesa, error)
	// PendingConfirmation lists mesas with loaded results awaiting a second check.
	PendingConfirmation(ctx context.Context) ([]mesadomain.Mesa, error)
	Summary(ctx context.Context) (Summary, error)
}

// SummaryCache holds the last computed summary for a short time.
type SummaryCache interface {
	Get(ctx context.Context) (Summary, bool, error)
	Set(ctx context.Context, summary Summary, ttl time.Duration) error
}
