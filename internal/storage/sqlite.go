package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the local archive of queries and dialogue transcripts.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "faultchat.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// A single connection keeps ":memory:" databases alive and avoids
	// "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies embedded migrations that are not yet recorded in
// schema_version, in filename order.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

// touchDialogue creates the dialogue row if needed and bumps updated_at.
func touchDialogue(ctx context.Context, tx *sql.Tx, id string, at time.Time) error {
	ts := formatTime(at)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO dialogues (id, started_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = MAX(dialogues.updated_at, excluded.updated_at)`,
		id, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("recording dialogue %s: %w", id, err)
	}
	return nil
}

// --- Queries ---

// SaveQuery stores q, assigning an ID when it has none.
func (s *Store) SaveQuery(ctx context.Context, q Query) (Query, error) {
	if q.DialogueID == "" {
		return Query{}, errors.New("saving query: dialogue id is required")
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Query{}, fmt.Errorf("beginning query transaction: %w", err)
	}
	defer tx.Rollback()

	if err := touchDialogue(ctx, tx, q.DialogueID, q.CreatedAt); err != nil {
		return Query{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO queries (id, dialogue_id, text, engine, created_at) VALUES (?, ?, ?, ?, ?)`,
		q.ID, q.DialogueID, q.Text, q.Engine, formatTime(q.CreatedAt),
	); err != nil {
		return Query{}, fmt.Errorf("inserting query: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Query{}, fmt.Errorf("committing query: %w", err)
	}
	return q, nil
}

// RecentQueries returns up to limit queries, newest first.
func (s *Store) RecentQueries(ctx context.Context, limit int) ([]Query, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, dialogue_id, text, engine, created_at
		FROM queries ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Query
	for rows.Next() {
		var q Query
		var createdAt string
		if err := rows.Scan(&q.ID, &q.DialogueID, &q.Text, &q.Engine, &createdAt); err != nil {
			return nil, err
		}
		if q.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		results = append(results, q)
	}
	return results, rows.Err()
}

// --- Turns ---

// SaveTurn appends t to its dialogue.
func (s *Store) SaveTurn(ctx context.Context, t Turn) error {
	if t.DialogueID == "" {
		return errors.New("saving turn: dialogue id is required")
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning turn transaction: %w", err)
	}
	defer tx.Rollback()

	if err := touchDialogue(ctx, tx, t.DialogueID, t.CreatedAt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO turns (dialogue_id, seq, role, kind, text, payload_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.DialogueID, t.Seq, t.Role, t.Kind, t.Text, t.PayloadJSON, formatTime(t.CreatedAt),
	); err != nil {
		return fmt.Errorf("inserting turn: %w", err)
	}
	return tx.Commit()
}

// --- Dialogues ---

// ListDialogues returns up to limit dialogues, most recently active first.
func (s *Store) ListDialogues(ctx context.Context, limit int) ([]Dialogue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.started_at, d.updated_at,
			(SELECT COUNT(*) FROM turns t WHERE t.dialogue_id = d.id),
			COALESCE((SELECT q.text FROM queries q WHERE q.dialogue_id = d.id ORDER BY q.created_at ASC, q.rowid ASC LIMIT 1), '')
		FROM dialogues d ORDER BY d.updated_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Dialogue
	for rows.Next() {
		var d Dialogue
		var startedAt, updatedAt string
		if err := rows.Scan(&d.ID, &startedAt, &updatedAt, &d.Turns, &d.FirstQuery); err != nil {
			return nil, err
		}
		if d.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		if d.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// GetDialogue returns a dialogue and its turns in the order they were saved.
// id may be a unique prefix of the dialogue ID.
func (s *Store) GetDialogue(ctx context.Context, id string) (Dialogue, []Turn, error) {
	if id == "" {
		return Dialogue{}, nil, ErrNotFound
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM dialogues WHERE id LIKE ? ESCAPE '\' LIMIT 2`, escapeLike(id)+"%")
	if err != nil {
		return Dialogue{}, nil, err
	}
	var ids []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return Dialogue{}, nil, err
		}
		ids = append(ids, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Dialogue{}, nil, err
	}
	switch len(ids) {
	case 0:
		return Dialogue{}, nil, ErrNotFound
	case 2:
		return Dialogue{}, nil, fmt.Errorf("dialogue id prefix %q is ambiguous", id)
	}

	d := Dialogue{ID: ids[0]}
	var startedAt, updatedAt string
	err = s.db.QueryRowContext(ctx, `
		SELECT started_at, updated_at,
			COALESCE((SELECT q.text FROM queries q WHERE q.dialogue_id = ? ORDER BY q.created_at ASC, q.rowid ASC LIMIT 1), '')
		FROM dialogues WHERE id = ?`, d.ID, d.ID,
	).Scan(&startedAt, &updatedAt, &d.FirstQuery)
	if err != nil {
		return Dialogue{}, nil, err
	}
	if d.StartedAt, err = parseTime(startedAt); err != nil {
		return Dialogue{}, nil, err
	}
	if d.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Dialogue{}, nil, err
	}

	turnRows, err := s.db.QueryContext(ctx, `
		SELECT dialogue_id, seq, role, kind, text, payload_json, created_at
		FROM turns WHERE dialogue_id = ? ORDER BY id ASC`, d.ID,
	)
	if err != nil {
		return Dialogue{}, nil, err
	}
	defer turnRows.Close()

	var turns []Turn
	for turnRows.Next() {
		var t Turn
		var createdAt string
		if err := turnRows.Scan(&t.DialogueID, &t.Seq, &t.Role, &t.Kind, &t.Text, &t.PayloadJSON, &createdAt); err != nil {
			return Dialogue{}, nil, err
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return Dialogue{}, nil, err
		}
		turns = append(turns, t)
	}
	if err := turnRows.Err(); err != nil {
		return Dialogue{}, nil, err
	}
	d.Turns = len(turns)
	return d, turns, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Purge deletes every archived dialogue, turn and query and returns the number
// of dialogues removed.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning purge: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"turns", "queries"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return 0, fmt.Errorf("purging %s: %w", table, err)
		}
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM dialogues")
	if err != nil {
		return 0, fmt.Errorf("purging dialogues: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}
