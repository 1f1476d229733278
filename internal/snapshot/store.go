// Package snapshot persists fetched test-run tables in a local SQLite file so
// other processes can read a consistent dataset without talking to Jama.
package snapshot

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"jama-reports/internal/testrun"
)

// ErrNoSnapshot is returned when a plan was never written.
var ErrNoSnapshot = errors.New("no snapshot for test plan")

// Meta describes the stored dataset of one plan. Updated is the last time the
// plan was checked, Modified the last time its content changed.
type Meta struct {
	Project  string    `json:"project"`
	TestPlan string    `json:"testplan"`
	Digest   string    `json:"digest"`
	Count    int       `json:"count"`
	Updated  time.Time `json:"updated"`
	Modified time.Time `json:"modified"`
}

// Store is a SQLite-backed dataset store.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates the database file and schema when missing.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS datasets (
		project TEXT NOT NULL,
		testplan TEXT NOT NULL,
		digest TEXT NOT NULL,
		record_count INTEGER NOT NULL,
		updated_at TEXT NOT NULL,
		modified_at TEXT NOT NULL,
		PRIMARY KEY (project, testplan)
	);
	CREATE TABLE IF NOT EXISTS testruns (
		project TEXT NOT NULL,
		testplan TEXT NOT NULL,
		seq INTEGER NOT NULL,
		id INTEGER NOT NULL,
		payload TEXT NOT NULL,
		PRIMARY KEY (project, testplan, seq)
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Write stores records as the dataset of a plan. When the content digest is
// unchanged only the updated time moves; otherwise the rows are replaced and
// modified is set to now as well.
func (s *Store) Write(ctx context.Context, project, plan string, records []testrun.Record, now time.Time) (Meta, error) {
	payloads := make([]string, len(records))
	h := sha256.New()
	for i, r := range records {
		b, err := json.Marshal(r)
		if err != nil {
			return Meta{}, fmt.Errorf("failed to encode test run %d: %w", r.ID, err)
		}
		payloads[i] = string(b)
		h.Write(b)
		h.Write([]byte{'\n'})
	}
	digest := hex.EncodeToString(h.Sum(nil))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Meta{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	prev, err := readMeta(ctx, tx, project, plan)
	if err != nil && !errors.Is(err, ErrNoSnapshot) {
		return Meta{}, err
	}

	meta := Meta{
		Project:  project,
		TestPlan: plan,
		Digest:   digest,
		Count:    len(records),
		Updated:  now,
		Modified: now,
	}
	changed := prev.Digest != digest
	if !changed {
		meta.Modified = prev.Modified
	}

	if changed {
		if _, err := tx.ExecContext(ctx, `DELETE FROM testruns WHERE project = ? AND testplan = ?`, project, plan); err != nil {
			return Meta{}, fmt.Errorf("failed to clear test runs: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO testruns (project, testplan, seq, id, payload) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return Meta{}, fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()
		for i, p := range payloads {
			if _, err := stmt.ExecContext(ctx, project, plan, i, records[i].ID, p); err != nil {
				return Meta{}, fmt.Errorf("failed to insert test run %d: %w", records[i].ID, err)
			}
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO datasets (project, testplan, digest, record_count, updated_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (project, testplan) DO UPDATE SET
			digest = excluded.digest,
			record_count = excluded.record_count,
			updated_at = excluded.updated_at,
			modified_at = excluded.modified_at`,
		project, plan, digest, meta.Count, formatTime(meta.Updated), formatTime(meta.Modified))
	if err != nil {
		return Meta{}, fmt.Errorf("failed to upsert dataset: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Meta{}, fmt.Errorf("failed to commit snapshot: %w", err)
	}

	log.Info().Str("project", project).Str("testplan", plan).Int("count", meta.Count).Bool("changed", changed).Msg("Snapshot written")
	return meta, nil
}

// Read returns the stored records of a plan in their original order.
func (s *Store) Read(ctx context.Context, project, plan string) ([]testrun.Record, Meta, error) {
	meta, err := readMeta(ctx, s.db, project, plan)
	if err != nil {
		return nil, Meta{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM testruns WHERE project = ? AND testplan = ? ORDER BY seq`, project, plan)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("failed to query test runs: %w", err)
	}
	defer rows.Close()

	records := make([]testrun.Record, 0, meta.Count)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, Meta{}, fmt.Errorf("failed to scan test run: %w", err)
		}
		var r testrun.Record
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, Meta{}, fmt.Errorf("failed to decode test run: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, Meta{}, err
	}
	return records, meta, nil
}

// List returns the metadata of every stored plan.
func (s *Store) List(ctx context.Context) ([]Meta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project, testplan, digest, record_count, updated_at, modified_at
		FROM datasets ORDER BY project, testplan`)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var out []Meta
	for rows.Next() {
		m, err := scanMeta(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func readMeta(ctx context.Context, q queryer, project, plan string) (Meta, error) {
	row := q.QueryRowContext(ctx, `
		SELECT project, testplan, digest, record_count, updated_at, modified_at
		FROM datasets WHERE project = ? AND testplan = ?`, project, plan)
	m, err := scanMeta(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Meta{}, fmt.Errorf("%w: %s/%s", ErrNoSnapshot, project, plan)
	}
	return m, err
}

func scanMeta(row scanner) (Meta, error) {
	var m Meta
	var updated, modified string
	if err := row.Scan(&m.Project, &m.TestPlan, &m.Digest, &m.Count, &updated, &modified); err != nil {
		return Meta{}, err
	}
	var err error
	if m.Updated, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return Meta{}, fmt.Errorf("invalid updated time %q: %w", updated, err)
	}
	if m.Modified, err = time.Parse(time.RFC3339Nano, modified); err != nil {
		return Meta{}, fmt.Errorf("invalid modified time %q: %w", modified, err)
	}
	return m, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
