package metric

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const definitionColumns = `id, farm_id, name, display_name, category, formula, unit, format,
	decimals, target_value, warning_threshold, critical_threshold, higher_is_better,
	scope, version, is_current, is_active, created_at, updated_at`

// SQLiteStore persists definitions and their version history to SQLite.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	hooks  storeHooks
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates a definition catalogue at path, which is a
// file path or ":memory:".
func NewSQLiteStore(path string, opts ...StoreOption) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: ":memory:" databases are per connection, and writes
	// are serialized by the store anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS metric_definitions (
			id TEXT PRIMARY KEY,
			farm_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			display_name TEXT NOT NULL,
			category TEXT NOT NULL,
			formula TEXT NOT NULL,
			unit TEXT NOT NULL DEFAULT '',
			format TEXT NOT NULL DEFAULT '',
			decimals INTEGER,
			target_value REAL,
			warning_threshold REAL,
			critical_threshold REAL,
			higher_is_better INTEGER NOT NULL DEFAULT 1,
			scope TEXT NOT NULL,
			version INTEGER NOT NULL,
			is_current INTEGER NOT NULL,
			is_active INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_metric_definitions_farm_name
		ON metric_definitions(farm_id, name, version)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db, hooks: newStoreHooks(opts)}, nil
}

// Create implements Store.
func (s *SQLiteStore) Create(def Definition) (Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Definition{}, ErrStoreClosed
	}

	def, err := s.hooks.prepareCreate(def)
	if err != nil {
		return Definition{}, err
	}

	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM metric_definitions WHERE id = ?`, def.ID).Scan(&exists); err != nil {
		return Definition{}, fmt.Errorf("check definition id: %w", err)
	}
	if exists > 0 {
		return Definition{}, ErrDuplicateID
	}

	if err := insertDefinition(s.db, def); err != nil {
		return Definition{}, err
	}
	s.hooks.versioned(def)
	return def, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(id string) (Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Definition{}, ErrStoreClosed
	}
	return s.get(id)
}

func (s *SQLiteStore) get(id string) (Definition, error) {
	row := s.db.QueryRow(`SELECT `+definitionColumns+` FROM metric_definitions WHERE id = ?`, id)
	def, err := scanDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Definition{}, ErrNotFound
	}
	if err != nil {
		return Definition{}, fmt.Errorf("load definition: %w", err)
	}
	return def, nil
}

// Update implements Store.
func (s *SQLiteStore) Update(patch Definition) (Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Definition{}, ErrStoreClosed
	}

	stored, err := s.get(patch.ID)
	if err != nil {
		return Definition{}, err
	}

	next, versioned, err := s.hooks.prepareUpdate(stored, patch)
	if err != nil {
		return Definition{}, err
	}

	if !versioned {
		if err := updateDefinition(s.db, next); err != nil {
			return Definition{}, err
		}
		return next, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Definition{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(`
		UPDATE metric_definitions SET is_current = 0, updated_at = ? WHERE id = ?
	`, formatTime(next.UpdatedAt), stored.ID); err != nil {
		return Definition{}, fmt.Errorf("supersede definition: %w", err)
	}
	if err := insertDefinition(tx, next); err != nil {
		return Definition{}, err
	}
	if err := tx.Commit(); err != nil {
		return Definition{}, fmt.Errorf("commit new version: %w", err)
	}

	s.hooks.versioned(next)
	return next, nil
}

// ListCurrent implements Store.
func (s *SQLiteStore) ListCurrent(farmID string) ([]Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	return s.query(`
		SELECT `+definitionColumns+` FROM metric_definitions
		WHERE (farm_id = ? OR farm_id = '') AND is_current = 1 AND is_active = 1
		ORDER BY category, display_name, id
	`, farmID)
}

// History implements Store.
func (s *SQLiteStore) History(farmID, name string) ([]Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	return s.query(`
		SELECT `+definitionColumns+` FROM metric_definitions
		WHERE farm_id = ? AND name = ?
		ORDER BY version
	`, farmID, name)
}

// Deactivate implements Store.
func (s *SQLiteStore) Deactivate(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	res, err := s.db.Exec(`
		UPDATE metric_definitions SET is_active = 0, updated_at = ? WHERE id = ?
	`, formatTime(s.hooks.now()), id)
	if err != nil {
		return fmt.Errorf("deactivate definition: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

func (s *SQLiteStore) query(q string, args ...any) ([]Definition, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query definitions: %w", err)
	}
	defer rows.Close()

	defs := make([]Definition, 0)
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate definitions: %w", err)
	}
	return defs, nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertDefinition(db execer, d Definition) error {
	_, err := db.Exec(`INSERT INTO metric_definitions (`+definitionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.FarmID, d.Name, d.DisplayName, string(d.Category), d.Formula, d.Unit, string(d.Format),
		nullable(d.Decimals), nullable(d.TargetValue), nullable(d.WarningThreshold), nullable(d.CriticalThreshold), d.PrefersHigher(),
		string(d.Scope), d.Version, d.IsCurrent, d.IsActive,
		formatTime(d.CreatedAt), formatTime(d.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert definition: %w", err)
	}
	return nil
}

func updateDefinition(db execer, d Definition) error {
	_, err := db.Exec(`
		UPDATE metric_definitions SET
			name = ?, display_name = ?, category = ?, unit = ?, format = ?,
			decimals = ?, target_value = ?, warning_threshold = ?, critical_threshold = ?,
			higher_is_better = ?, scope = ?, updated_at = ?
		WHERE id = ?`,
		d.Name, d.DisplayName, string(d.Category), d.Unit, string(d.Format),
		nullable(d.Decimals), nullable(d.TargetValue), nullable(d.WarningThreshold), nullable(d.CriticalThreshold),
		d.PrefersHigher(), string(d.Scope), formatTime(d.UpdatedAt),
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("update definition: %w", err)
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row scanner) (Definition, error) {
	var (
		d                         Definition
		category, format, scope   string
		decimals                  sql.NullInt64
		target, warning, critical sql.NullFloat64
		higher                    bool
		createdAt, updatedAt      string
	)

	err := row.Scan(
		&d.ID, &d.FarmID, &d.Name, &d.DisplayName, &category, &d.Formula, &d.Unit, &format,
		&decimals, &target, &warning, &critical, &higher,
		&scope, &d.Version, &d.IsCurrent, &d.IsActive, &createdAt, &updatedAt,
	)
	if err != nil {
		return Definition{}, err
	}

	d.Category, d.Format, d.Scope = Category(category), Format(format), Scope(scope)
	if decimals.Valid {
		n := int(decimals.Int64)
		d.Decimals = &n
	}
	d.TargetValue = nullFloat(target)
	d.WarningThreshold = nullFloat(warning)
	d.CriticalThreshold = nullFloat(critical)
	d.HigherIsBetter = &higher
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	d.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return d, nil
}

// nullable binds a nil pointer as SQL NULL.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
