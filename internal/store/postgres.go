package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/willow/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS cma_jobs (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	token        TEXT NOT NULL UNIQUE,
	lead_id      TEXT NOT NULL,
	address      TEXT NOT NULL,
	center_value BIGINT NOT NULL DEFAULT 0,
	status       TEXT NOT NULL DEFAULT 'requested',
	edit_url     TEXT,
	pdf_url      TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS processed_events (
	event_id     TEXT NOT NULL,
	action       TEXT NOT NULL,
	processed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (event_id, action)
);

CREATE TABLE IF NOT EXISTS score_history (
	id        TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	lead_id   TEXT NOT NULL,
	composite INTEGER NOT NULL,
	tier      TEXT NOT NULL,
	sources   JSONB,
	scored_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS property_cache (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	address_key TEXT NOT NULL UNIQUE,
	data        JSONB NOT NULL,
	cached_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cma_jobs_lead_id ON cma_jobs(lead_id);
CREATE INDEX IF NOT EXISTS idx_cma_jobs_status ON cma_jobs(status);
CREATE INDEX IF NOT EXISTS idx_score_history_lead ON score_history(lead_id, scored_at DESC);
CREATE INDEX IF NOT EXISTS idx_property_cache_expires ON property_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) CreateCMAJob(ctx context.Context, job model.CMAJob) (*model.CMAJob, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = model.CMAJobRequested
	}
	job.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO cma_jobs (id, token, lead_id, address, center_value, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.Token, job.LeadID, job.Address, job.CenterValue, string(job.Status), job.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert cma job")
	}
	return &job, nil
}

func (s *PostgresStore) GetCMAJobByToken(ctx context.Context, token string) (*model.CMAJob, error) {
	var job model.CMAJob
	var status string
	var editURL, pdfURL *string

	err := s.pool.QueryRow(ctx,
		`SELECT id, token, lead_id, address, center_value, status, edit_url, pdf_url, created_at, completed_at
		 FROM cma_jobs WHERE token = $1`,
		token,
	).Scan(&job.ID, &job.Token, &job.LeadID, &job.Address, &job.CenterValue,
		&status, &editURL, &pdfURL, &job.CreatedAt, &job.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get cma job")
	}
	job.Status = model.CMAJobStatus(status)
	if editURL != nil {
		job.EditURL = *editURL
	}
	if pdfURL != nil {
		job.PDFURL = *pdfURL
	}
	return &job, nil
}

func (s *PostgresStore) CompleteCMAJob(ctx context.Context, token, editURL, pdfURL string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE cma_jobs SET status = $1, edit_url = $2, pdf_url = $3, completed_at = $4 WHERE token = $5`,
		string(model.CMAJobCompleted), editURL, pdfURL, time.Now().UTC(), token,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete cma job %s", token)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: cma job not found: %s", token)
	}
	return nil
}

func (s *PostgresStore) MarkEventProcessed(ctx context.Context, eventID, action string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO processed_events (event_id, action, processed_at) VALUES ($1, $2, $3)
		 ON CONFLICT (event_id, action) DO NOTHING`,
		eventID, action, time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: mark event processed")
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) UnmarkEventProcessed(ctx context.Context, eventID, action string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM processed_events WHERE event_id = $1 AND action = $2`,
		eventID, action,
	)
	return eris.Wrap(err, "postgres: unmark event processed")
}

func (s *PostgresStore) RecordScore(ctx context.Context, snap model.ScoreSnapshot) (*model.ScoreSnapshot, error) {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.ScoredAt.IsZero() {
		snap.ScoredAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO score_history (id, lead_id, composite, tier, sources, scored_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		snap.ID, snap.LeadID, snap.Composite, string(snap.Tier), snap.Sources, snap.ScoredAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert score")
	}
	return &snap, nil
}

func (s *PostgresStore) LatestScore(ctx context.Context, leadID string) (*model.ScoreSnapshot, error) {
	var snap model.ScoreSnapshot
	var tier string

	err := s.pool.QueryRow(ctx,
		`SELECT id, lead_id, composite, tier, sources, scored_at FROM score_history
		 WHERE lead_id = $1 ORDER BY scored_at DESC LIMIT 1`,
		leadID,
	).Scan(&snap.ID, &snap.LeadID, &snap.Composite, &tier, &snap.Sources, &snap.ScoredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: latest score")
	}
	snap.Tier = model.PriorityTier(tier)
	return &snap, nil
}

func (s *PostgresStore) GetCachedProperty(ctx context.Context, addressKey string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM property_cache
		 WHERE address_key = $1 AND expires_at > now()
		 ORDER BY cached_at DESC LIMIT 1`,
		addressKey,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get cached property")
	}
	return data, nil
}

func (s *PostgresStore) SetCachedProperty(ctx context.Context, addressKey string, data []byte, ttl time.Duration) error {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO property_cache (id, address_key, data, cached_at, expires_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (address_key) DO UPDATE SET data = $3, cached_at = $4, expires_at = $5`,
		id, addressKey, data, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached property")
}

func (s *PostgresStore) DeleteExpiredProperties(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM property_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired properties")
	}
	return int(tag.RowsAffected()), nil
}
