package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

const (
	defaultMaxContracts = 5
	defaultRetention    = 7 * 24 * time.Hour
	schemaLockKey       = int64(2026101501)
)

// AnalysisCacheRepository is the durable interim cache. Rows are keyed by
// contract and language; contracts beyond maxContracts are evicted by last
// write time and rows older than the retention read as misses.
type AnalysisCacheRepository struct {
	db           *sql.DB
	maxContracts int
	retention    time.Duration
	now          func() time.Time
}

func NewAnalysisCacheRepository(db *sql.DB, maxContracts int, retention time.Duration) *AnalysisCacheRepository {
	if maxContracts <= 0 {
		maxContracts = defaultMaxContracts
	}
	if retention <= 0 {
		retention = defaultRetention
	}
	return &AnalysisCacheRepository{db: db, maxContracts: maxContracts, retention: retention, now: time.Now}
}

func (r *AnalysisCacheRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS analysis_cache (
	contract_id TEXT NOT NULL,
	language TEXT NOT NULL,
	analysis JSONB NOT NULL,
	translated_at TIMESTAMPTZ NOT NULL,
	written_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (contract_id, language)
);

CREATE INDEX IF NOT EXISTS idx_analysis_cache_written_at ON analysis_cache(written_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *AnalysisCacheRepository) PutSection(ctx context.Context, contractID, language string, data domain.SectionData) error {
	if data == nil {
		return domain.WrapError(domain.ErrInvalidInput, "cache put section", errors.New("section data is nil"))
	}
	lang := domain.NormalizeLanguage(language)
	now := r.now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put section tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// FOR UPDATE locks nothing on a missing row, so concurrent first writes
	// of different sections reserve it first and serialize on its key.
	if _, err := tx.ExecContext(ctx, `
INSERT INTO analysis_cache (contract_id, language, analysis, translated_at, written_at)
VALUES ($1, $2, '{}'::jsonb, $3, $3)
ON CONFLICT (contract_id, language) DO NOTHING`, contractID, lang, now); err != nil {
		return fmt.Errorf("reserve cached analysis row: %w", err)
	}

	analysis := domain.CachedAnalysis{}
	var raw []byte
	var translatedAt time.Time
	err = tx.QueryRowContext(ctx, `
SELECT analysis, translated_at FROM analysis_cache
WHERE contract_id = $1 AND language = $2
FOR UPDATE`, contractID, lang).Scan(&raw, &translatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("select cached analysis: %w", err)
	case now.Sub(translatedAt) <= r.retention:
		if err := json.Unmarshal(raw, &analysis); err != nil {
			return fmt.Errorf("decode cached analysis: %w", err)
		}
	}

	analysis.Patch(data)
	analysis.TranslatedAt = now
	if err := r.upsert(ctx, tx, contractID, lang, analysis, now); err != nil {
		return err
	}
	if err := r.evict(ctx, tx, now); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put section tx: %w", err)
	}
	return nil
}

func (r *AnalysisCacheRepository) Put(ctx context.Context, contractID, language string, analysis domain.CachedAnalysis) error {
	now := r.now().UTC()
	if analysis.TranslatedAt.IsZero() {
		analysis.TranslatedAt = now
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := r.upsert(ctx, tx, contractID, domain.NormalizeLanguage(language), analysis, now); err != nil {
		return err
	}
	if err := r.evict(ctx, tx, now); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put tx: %w", err)
	}
	return nil
}

func (r *AnalysisCacheRepository) Get(ctx context.Context, contractID, language string) (*domain.CachedAnalysis, error) {
	lang := domain.NormalizeLanguage(language)
	var raw []byte
	err := r.db.QueryRowContext(ctx, `
SELECT analysis FROM analysis_cache
WHERE contract_id = $1 AND language = $2 AND translated_at >= $3`,
		contractID, lang, r.cutoff()).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrCacheMiss, "cache get", fmt.Errorf("contract %s language %s", contractID, lang))
		}
		return nil, fmt.Errorf("select cached analysis: %w", err)
	}

	var analysis domain.CachedAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, fmt.Errorf("decode cached analysis: %w", err)
	}
	return &analysis, nil
}

func (r *AnalysisCacheRepository) Languages(ctx context.Context, contractID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT language FROM analysis_cache
WHERE contract_id = $1 AND translated_at >= $2
ORDER BY language`, contractID, r.cutoff())
	if err != nil {
		return nil, fmt.Errorf("select cached languages: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var lang string
		if err := rows.Scan(&lang); err != nil {
			return nil, fmt.Errorf("scan cached language: %w", err)
		}
		out = append(out, lang)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cached languages: %w", err)
	}
	return out, nil
}

func (r *AnalysisCacheRepository) cutoff() time.Time {
	return r.now().UTC().Add(-r.retention)
}

func (r *AnalysisCacheRepository) upsert(ctx context.Context, tx *sql.Tx, contractID, language string, analysis domain.CachedAnalysis, now time.Time) error {
	payload, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("encode cached analysis: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO analysis_cache (contract_id, language, analysis, translated_at, written_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (contract_id, language) DO UPDATE SET
	analysis = EXCLUDED.analysis,
	translated_at = EXCLUDED.translated_at,
	written_at = EXCLUDED.written_at`,
		contractID, language, payload, analysis.TranslatedAt.UTC(), now)
	if err != nil {
		return fmt.Errorf("upsert cached analysis: %w", err)
	}
	return nil
}

// evict drops expired rows and every contract outside the most recently
// written maxContracts.
func (r *AnalysisCacheRepository) evict(ctx context.Context, tx *sql.Tx, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
DELETE FROM analysis_cache
WHERE translated_at < $1
   OR contract_id NOT IN (
	SELECT contract_id FROM analysis_cache
	GROUP BY contract_id
	ORDER BY MAX(written_at) DESC
	LIMIT $2
)`, now.Add(-r.retention), r.maxContracts)
	if err != nil {
		return fmt.Errorf("evict cached analyses: %w", err)
	}
	return nil
}
