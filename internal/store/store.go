// Package store keeps the client's local state in SQLite: per-page view
// preferences and the last-known-good task snapshot per scope, so a failed
// refetch leaves something to show.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"taskdeck/internal/pipeline"
	"taskdeck/internal/task"
)

// Prefs is the per-page view preference record. It is created with a
// default on first use and overwritten on every change.
type Prefs struct {
	ViewMode string
	Sort     pipeline.SortOption
	Statuses []task.Status
}

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, err
	}
	dsn := sqliteDSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS prefs (
	page TEXT PRIMARY KEY,
	view_mode TEXT NOT NULL DEFAULT '',
	sort_option TEXT NOT NULL DEFAULT '',
	statuses TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS snapshots (
	scope TEXT PRIMARY KEY,
	payload TEXT NOT NULL,
	fetched_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS session (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	access_token TEXT NOT NULL DEFAULT '',
	refresh_token TEXT NOT NULL DEFAULT ''
);`
	if _, err := s.db.Exec(ddl); err != nil {
		return err
	}
	return s.ensurePrefsColumns()
}

func (s *Store) ensurePrefsColumns() error {
	required := map[string]string{
		"statuses": "ALTER TABLE prefs ADD COLUMN statuses TEXT NOT NULL DEFAULT '';",
	}
	existing := map[string]struct{}{}
	rows, err := s.db.Query(`PRAGMA table_info(prefs);`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		existing[name] = struct{}{}
	}
	for col, alter := range required {
		if _, ok := existing[col]; ok {
			continue
		}
		if _, err := s.db.Exec(alter); err != nil {
			return err
		}
	}
	return rows.Err()
}

// LoadPrefs returns the stored preferences for a page. The second return
// is false when the page has never been saved.
func (s *Store) LoadPrefs(page string) (Prefs, bool, error) {
	row := s.db.QueryRow(`SELECT view_mode, sort_option, statuses FROM prefs WHERE page = ?;`, page)
	var p Prefs
	var sortOpt, statuses string
	if err := row.Scan(&p.ViewMode, &sortOpt, &statuses); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Prefs{}, false, nil
		}
		return Prefs{}, false, err
	}
	p.Sort = pipeline.SortOption(sortOpt)
	p.Statuses = splitStatuses(statuses)
	return p, true, nil
}

func (s *Store) SavePrefs(page string, p Prefs) error {
	_, err := s.db.Exec(`INSERT INTO prefs (page, view_mode, sort_option, statuses) VALUES (?, ?, ?, ?)
		ON CONFLICT(page) DO UPDATE SET view_mode=excluded.view_mode, sort_option=excluded.sort_option, statuses=excluded.statuses;`,
		page, p.ViewMode, string(p.Sort), joinStatuses(p.Statuses))
	return err
}

// SaveSnapshot stores the fetched task collection for a scope (a project
// id, or "" for the all-tasks view).
func (s *Store) SaveSnapshot(scope string, tasks []task.Task) error {
	payload, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.Exec(`INSERT INTO snapshots (scope, payload, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(scope) DO UPDATE SET payload=excluded.payload, fetched_at=excluded.fetched_at;`,
		scope, string(payload), now)
	return err
}

// LoadSnapshot returns the last stored task collection for a scope and
// when it was fetched. A missing or undecodable snapshot returns nil
// tasks; stale local cache is never a hard error.
func (s *Store) LoadSnapshot(scope string) ([]task.Task, time.Time, error) {
	row := s.db.QueryRow(`SELECT payload, fetched_at FROM snapshots WHERE scope = ?;`, scope)
	var payload, fetchedStr string
	if err := row.Scan(&payload, &fetchedStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, time.Time{}, nil
		}
		return nil, time.Time{}, err
	}
	var tasks []task.Task
	if err := json.Unmarshal([]byte(payload), &tasks); err != nil {
		return nil, time.Time{}, nil
	}
	var fetched time.Time
	if parsed, err := time.Parse(time.RFC3339, fetchedStr); err == nil {
		fetched = parsed
	}
	return tasks, fetched, nil
}

// SaveSession persists the token pair; empty strings clear it.
func (s *Store) SaveSession(access, refresh string) error {
	_, err := s.db.Exec(`INSERT INTO session (id, access_token, refresh_token) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET access_token=excluded.access_token, refresh_token=excluded.refresh_token;`,
		access, refresh)
	return err
}

func (s *Store) LoadSession() (access, refresh string, err error) {
	row := s.db.QueryRow(`SELECT access_token, refresh_token FROM session WHERE id = 1;`)
	if err := row.Scan(&access, &refresh); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", nil
		}
		return "", "", err
	}
	return access, refresh, nil
}

func joinStatuses(statuses []task.Status) string {
	parts := make([]string, 0, len(statuses))
	for _, s := range statuses {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, ",")
}

func splitStatuses(v string) []task.Status {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]task.Status, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, task.Status(p))
		}
	}
	return out
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}
