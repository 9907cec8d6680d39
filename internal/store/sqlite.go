package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/willow/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the default
// backend for single-agent installs where running Postgres is overkill.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS cma_jobs (
	id           TEXT PRIMARY KEY,
	token        TEXT NOT NULL UNIQUE,
	lead_id      TEXT NOT NULL,
	address      TEXT NOT NULL,
	center_value INTEGER NOT NULL DEFAULT 0,
	status       TEXT NOT NULL DEFAULT 'requested',
	edit_url     TEXT,
	pdf_url      TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS processed_events (
	event_id     TEXT NOT NULL,
	action       TEXT NOT NULL,
	processed_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (event_id, action)
);

CREATE TABLE IF NOT EXISTS score_history (
	id        TEXT PRIMARY KEY,
	lead_id   TEXT NOT NULL,
	composite INTEGER NOT NULL,
	tier      TEXT NOT NULL,
	sources   TEXT,
	scored_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS property_cache (
	id          TEXT PRIMARY KEY,
	address_key TEXT NOT NULL UNIQUE,
	data        TEXT NOT NULL,
	cached_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cma_jobs_lead_id ON cma_jobs(lead_id);
CREATE INDEX IF NOT EXISTS idx_cma_jobs_status ON cma_jobs(status);
CREATE INDEX IF NOT EXISTS idx_score_history_lead ON score_history(lead_id, scored_at);
CREATE INDEX IF NOT EXISTS idx_property_cache_expires ON property_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateCMAJob(ctx context.Context, job model.CMAJob) (*model.CMAJob, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = model.CMAJobRequested
	}
	job.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cma_jobs (id, token, lead_id, address, center_value, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Token, job.LeadID, job.Address, job.CenterValue, string(job.Status), job.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert cma job")
	}
	return &job, nil
}

func (s *SQLiteStore) GetCMAJobByToken(ctx context.Context, token string) (*model.CMAJob, error) {
	var job model.CMAJob
	var status string
	var editURL, pdfURL sql.NullString
	var completedAt sql.NullTime

	err := s.db.QueryRowContext(ctx,
		`SELECT id, token, lead_id, address, center_value, status, edit_url, pdf_url, created_at, completed_at
		 FROM cma_jobs WHERE token = ?`,
		token,
	).Scan(&job.ID, &job.Token, &job.LeadID, &job.Address, &job.CenterValue,
		&status, &editURL, &pdfURL, &job.CreatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get cma job")
	}
	job.Status = model.CMAJobStatus(status)
	job.EditURL = editURL.String
	job.PDFURL = pdfURL.String
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}

func (s *SQLiteStore) CompleteCMAJob(ctx context.Context, token, editURL, pdfURL string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE cma_jobs SET status = ?, edit_url = ?, pdf_url = ?, completed_at = ? WHERE token = ?`,
		string(model.CMAJobCompleted), editURL, pdfURL, time.Now().UTC(), token,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete cma job %s", token)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: cma job not found: %s", token)
	}
	return nil
}

func (s *SQLiteStore) MarkEventProcessed(ctx context.Context, eventID, action string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO processed_events (event_id, action, processed_at) VALUES (?, ?, ?)
		 ON CONFLICT (event_id, action) DO NOTHING`,
		eventID, action, time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: mark event processed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) UnmarkEventProcessed(ctx context.Context, eventID, action string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM processed_events WHERE event_id = ? AND action = ?`,
		eventID, action,
	)
	return eris.Wrap(err, "sqlite: unmark event processed")
}

func (s *SQLiteStore) RecordScore(ctx context.Context, snap model.ScoreSnapshot) (*model.ScoreSnapshot, error) {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.ScoredAt.IsZero() {
		snap.ScoredAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO score_history (id, lead_id, composite, tier, sources, scored_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.LeadID, snap.Composite, string(snap.Tier), snap.Sources, snap.ScoredAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert score")
	}
	return &snap, nil
}

func (s *SQLiteStore) LatestScore(ctx context.Context, leadID string) (*model.ScoreSnapshot, error) {
	var snap model.ScoreSnapshot
	var tier string
	var sources sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, lead_id, composite, tier, sources, scored_at FROM score_history
		 WHERE lead_id = ? ORDER BY scored_at DESC LIMIT 1`,
		leadID,
	).Scan(&snap.ID, &snap.LeadID, &snap.Composite, &tier, &sources, &snap.ScoredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: latest score")
	}
	snap.Tier = model.PriorityTier(tier)
	if sources.Valid {
		snap.Sources = []byte(sources.String)
	}
	return &snap, nil
}

func (s *SQLiteStore) GetCachedProperty(ctx context.Context, addressKey string) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM property_cache
		 WHERE address_key = ? AND expires_at > ?
		 ORDER BY cached_at DESC LIMIT 1`,
		addressKey, time.Now().UTC(),
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get cached property")
	}
	return []byte(data), nil
}

func (s *SQLiteStore) SetCachedProperty(ctx context.Context, addressKey string, data []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO property_cache (id, address_key, data, cached_at, expires_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (address_key) DO UPDATE SET data = excluded.data, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		uuid.New().String(), addressKey, string(data), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set cached property")
}

func (s *SQLiteStore) DeleteExpiredProperties(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM property_cache WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired properties")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return int(n), nil
}
