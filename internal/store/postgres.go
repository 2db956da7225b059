package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tender-cli/internal/db"
	"github.com/sells-group/tender-cli/internal/model"
)

// PostgresStore implements Store on a JSONB document column.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres connects to Postgres and returns a store over the pool.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.NewPool(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS tenders (
	reg_number TEXT PRIMARY KEY,
	doc        JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_tenders_processed ON tenders ((doc->>'isProcessed'), created_at);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	reg_number TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	stage      TEXT NOT NULL DEFAULT 'new',
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_reg_number ON runs(reg_number);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
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

func (s *PostgresStore) UpsertByKey(ctx context.Context, rec *model.TenderRecord) (bool, error) {
	doc, err := marshalDoc(rec)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO tenders (reg_number, doc, created_at, updated_at) VALUES ($1, $2::jsonb, $3, $3) ON CONFLICT (reg_number) DO NOTHING`,
		rec.RegNumber, doc, now,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: upsert tender %s", rec.RegNumber)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) FindByKey(ctx context.Context, key string) (*model.TenderRecord, error) {
	var (
		doc                  []byte
		createdAt, updatedAt time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT doc, created_at, updated_at FROM tenders WHERE reg_number = $1`,
		key,
	).Scan(&doc, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find tender %s", key)
	}
	return unmarshalDoc(doc, createdAt, updatedAt)
}

func (s *PostgresStore) SetField(ctx context.Context, key string, path Path, value any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	val, err := marshalValue(value)
	if err != nil {
		return err
	}
	return s.update(ctx, "set field", key, path,
		`UPDATE tenders SET doc = jsonb_set(doc, $2::text[], $3::jsonb, true), updated_at = now() WHERE reg_number = $1`,
		key, []string(path), val,
	)
}

func (s *PostgresStore) AppendToArray(ctx context.Context, key string, path Path, value any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	val, err := marshalValue(value)
	if err != nil {
		return err
	}
	return s.update(ctx, "append", key, path,
		`UPDATE tenders SET doc = jsonb_set(doc, $2::text[], COALESCE(doc #> $2::text[], '[]'::jsonb) || jsonb_build_array($3::jsonb), true), updated_at = now() WHERE reg_number = $1`,
		key, []string(path), val,
	)
}

func (s *PostgresStore) UpsertArrayEntry(ctx context.Context, key string, path Path, matchField, matchValue string, value any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	if err := P(matchField).Validate(); err != nil {
		return err
	}
	val, err := marshalValue(value)
	if err != nil {
		return err
	}
	return s.update(ctx, "upsert entry", key, path,
		`UPDATE tenders SET doc = jsonb_set(doc, $2::text[],
			COALESCE((
				SELECT jsonb_agg(e ORDER BY ord)
				FROM jsonb_array_elements(COALESCE(doc #> $2::text[], '[]'::jsonb)) WITH ORDINALITY AS t(e, ord)
				WHERE e->>($3::text) IS DISTINCT FROM $4::text
			), '[]'::jsonb) || jsonb_build_array($5::jsonb), true),
			updated_at = now()
		WHERE reg_number = $1`,
		key, []string(path), matchField, matchValue, val,
	)
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, key, report string) error {
	return s.update(ctx, "mark processed", key, P("finalReport"),
		`UPDATE tenders SET doc = doc || jsonb_build_object('finalReport', $2::text, 'isProcessed', true), updated_at = now() WHERE reg_number = $1`,
		key, report,
	)
}

func (s *PostgresStore) update(ctx context.Context, op, key string, path Path, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: %s %s %s", op, key, path)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: %s %s", op, key)
	}
	return nil
}

func (s *PostgresStore) ListUnprocessed(ctx context.Context, limit int) ([]model.TenderRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT doc, created_at, updated_at FROM tenders WHERE COALESCE((doc->>'isProcessed')::boolean, false) = false ORDER BY created_at LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unprocessed")
	}
	defer rows.Close()

	var out []model.TenderRecord
	for rows.Next() {
		var (
			doc                  []byte
			createdAt, updatedAt time.Time
		)
		if err := rows.Scan(&doc, &createdAt, &updatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan tender")
		}
		rec, err := unmarshalDoc(doc, createdAt, updatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate tenders")
}

func (s *PostgresStore) CreateRun(ctx context.Context, regNumber string) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		RegNumber: regNumber,
		Status:    model.RunStatusRunning,
		Stage:     model.StageNew,
		CreatedAt: time.Now().UTC(),
	}
	run.UpdatedAt = run.CreatedAt

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, reg_number, status, stage, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.RegNumber, string(run.Status), string(run.Stage), run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, stage model.Stage, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, stage = $2, error = $3, updated_at = $4 WHERE id = $5`,
		string(status), string(stage), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, reg_number, status, stage, error, created_at, updated_at FROM runs
		WHERE ($1::text = '' OR reg_number = $1::text) AND ($2::text = '' OR status = $2::text)
		ORDER BY created_at DESC LIMIT $3`,
		filter.RegNumber, string(filter.Status), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var out []model.Run
	for rows.Next() {
		var (
			r             model.Run
			status, stage string
		)
		if err := rows.Scan(&r.ID, &r.RegNumber, &status, &stage, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = model.RunStatus(status)
		r.Stage = model.Stage(stage)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate runs")
}
