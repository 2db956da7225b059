package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/tender-cli/internal/model"
)

// SQLiteStore implements Store on a JSON text column using SQLite's JSON1
// functions.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// A single connection serializes writers.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS tenders (
	reg_number TEXT PRIMARY KEY,
	doc        TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	reg_number TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	stage      TEXT NOT NULL DEFAULT 'new',
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_reg_number ON runs(reg_number);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertByKey(ctx context.Context, rec *model.TenderRecord) (bool, error) {
	doc, err := marshalDoc(rec)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tenders (reg_number, doc, created_at, updated_at) VALUES (?, ?, ?, ?) ON CONFLICT (reg_number) DO NOTHING`,
		rec.RegNumber, doc, now, now,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: upsert tender %s", rec.RegNumber)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) FindByKey(ctx context.Context, key string) (*model.TenderRecord, error) {
	var (
		doc                  string
		createdAt, updatedAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT doc, created_at, updated_at FROM tenders WHERE reg_number = ?`,
		key,
	).Scan(&doc, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find tender %s", key)
	}
	return unmarshalDoc([]byte(doc), createdAt, updatedAt)
}

func (s *SQLiteStore) SetField(ctx context.Context, key string, path Path, value any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	val, err := marshalValue(value)
	if err != nil {
		return err
	}
	return s.update(ctx, "set field", key, path,
		`UPDATE tenders SET doc = json_set(doc, ?1, json(?2)), updated_at = ?3 WHERE reg_number = ?4`,
		path.sqlitePath(), val, time.Now().UTC(), key,
	)
}

func (s *SQLiteStore) AppendToArray(ctx context.Context, key string, path Path, value any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	val, err := marshalValue(value)
	if err != nil {
		return err
	}
	return s.update(ctx, "append", key, path,
		`UPDATE tenders SET doc = json_set(doc, ?1,
			json(json_insert(COALESCE(json_extract(doc, ?1), json_array()), '$[#]', json(?2)))),
			updated_at = ?3
		WHERE reg_number = ?4`,
		path.sqlitePath(), val, time.Now().UTC(), key,
	)
}

func (s *SQLiteStore) UpsertArrayEntry(ctx context.Context, key string, path Path, matchField, matchValue string, value any) error {
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
		`UPDATE tenders SET doc = json_set(doc, ?1, json(json_insert(
			(SELECT json_group_array(json(value)) FROM json_each(tenders.doc, ?1)
				WHERE json_extract(value, ?2) IS NOT ?3),
			'$[#]', json(?4)))),
			updated_at = ?5
		WHERE reg_number = ?6`,
		path.sqlitePath(), "$."+matchField, matchValue, val, time.Now().UTC(), key,
	)
}

func (s *SQLiteStore) MarkProcessed(ctx context.Context, key, report string) error {
	return s.update(ctx, "mark processed", key, P("finalReport"),
		`UPDATE tenders SET doc = json_set(doc, '$.finalReport', ?1, '$.isProcessed', json('true')), updated_at = ?2 WHERE reg_number = ?3`,
		report, time.Now().UTC(), key,
	)
}

func (s *SQLiteStore) update(ctx context.Context, op, key string, path Path, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: %s %s %s", op, key, path)
	}
	return checkRowsAffected(res, op, key)
}

func checkRowsAffected(res sql.Result, op, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: %s %s", op, key)
	}
	return nil
}

func (s *SQLiteStore) ListUnprocessed(ctx context.Context, limit int) ([]model.TenderRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc, created_at, updated_at FROM tenders
		WHERE COALESCE(json_extract(doc, '$.isProcessed'), 0) = 0
		ORDER BY created_at LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unprocessed")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.TenderRecord
	for rows.Next() {
		var (
			doc                  string
			createdAt, updatedAt time.Time
		)
		if err := rows.Scan(&doc, &createdAt, &updatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tender")
		}
		rec, err := unmarshalDoc([]byte(doc), createdAt, updatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate tenders")
}

func (s *SQLiteStore) CreateRun(ctx context.Context, regNumber string) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		RegNumber: regNumber,
		Status:    model.RunStatusRunning,
		Stage:     model.StageNew,
		CreatedAt: time.Now().UTC(),
	}
	run.UpdatedAt = run.CreatedAt

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, reg_number, status, stage, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.RegNumber, string(run.Status), string(run.Stage), run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, stage model.Stage, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, stage = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), string(stage), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "finish run", runID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, reg_number, status, stage, error, created_at, updated_at FROM runs
		WHERE (?1 = '' OR reg_number = ?1) AND (?2 = '' OR status = ?2)
		ORDER BY created_at DESC LIMIT ?3`,
		filter.RegNumber, string(filter.Status), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Run
	for rows.Next() {
		var (
			r             model.Run
			status, stage string
		)
		if err := rows.Scan(&r.ID, &r.RegNumber, &status, &stage, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Status = model.RunStatus(status)
		r.Stage = model.Stage(stage)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}
