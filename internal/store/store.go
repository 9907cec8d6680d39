// Package store persists CMA job correlation state, processed webhook
// events, score history, and the property-data cache.
package store

import (
	"context"
	"time"

	"github.com/sells-group/willow/internal/model"
)

// Store defines the persistence interface shared by the Postgres and
// SQLite backends.
type Store interface {
	// CMA jobs
	CreateCMAJob(ctx context.Context, job model.CMAJob) (*model.CMAJob, error)
	GetCMAJobByToken(ctx context.Context, token string) (*model.CMAJob, error)
	CompleteCMAJob(ctx context.Context, token, editURL, pdfURL string) error

	// Webhook idempotency. MarkEventProcessed returns false when the
	// (eventID, action) pair was already recorded, so the caller skips
	// duplicate deliveries. UnmarkEventProcessed releases a mark when the
	// delivery's side effects failed, so the provider's redelivery is
	// treated as fresh.
	MarkEventProcessed(ctx context.Context, eventID, action string) (bool, error)
	UnmarkEventProcessed(ctx context.Context, eventID, action string) error

	// Score history
	RecordScore(ctx context.Context, snap model.ScoreSnapshot) (*model.ScoreSnapshot, error)
	LatestScore(ctx context.Context, leadID string) (*model.ScoreSnapshot, error)

	// Property cache
	GetCachedProperty(ctx context.Context, addressKey string) ([]byte, error)
	SetCachedProperty(ctx context.Context, addressKey string, data []byte, ttl time.Duration) error
	DeleteExpiredProperties(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
