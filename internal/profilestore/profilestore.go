// Package profilestore persists user-authored exclusion rule sets per
// profile in an embedded SQLite database. The store is an opaque sink for
// rules; the engine only reads them back into scanner excludes. Manifests
// remain the source of truth for runs; this database holds nothing that
// cannot be re-entered by the user.
package profilestore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/PolymathAlchemist/wcbt/internal/backup"
	"github.com/PolymathAlchemist/wcbt/internal/clock"
	"github.com/PolymathAlchemist/wcbt/internal/wcbterrors"
)

// Rule kinds.
const (
	KindExcludeDir  = "exclude_dir"
	KindExcludeFile = "exclude_file"
)

// Rule is one persisted exclusion rule.
type Rule struct {
	ID        string
	Profile   string
	Kind      string
	Pattern   string
	CreatedAt string
}

// Store wraps the rules database.
type Store struct {
	db *sql.DB
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS rules (
	id         TEXT PRIMARY KEY,
	profile    TEXT NOT NULL,
	kind       TEXT NOT NULL,
	pattern    TEXT NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE (profile, kind, pattern)
);
CREATE INDEX IF NOT EXISTS rules_profile ON rules (profile);
`

// Open opens (creating if needed) the rules database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create store dir: %v", wcbterrors.ErrIO, err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open rule store %s: %v", wcbterrors.ErrIO, path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate rule store %s: %v", wcbterrors.ErrIO, path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// AddRule inserts a rule and returns it. Duplicate (profile, kind,
// pattern) triples are rejected.
func (s *Store) AddRule(profile, kind, pattern string, clk clock.Clock) (*Rule, error) {
	switch kind {
	case KindExcludeDir, KindExcludeFile:
	default:
		return nil, fmt.Errorf("%w: rule kind %q", wcbterrors.ErrSchemaUnsupported, kind)
	}
	if pattern == "" {
		return nil, fmt.Errorf("%w: empty rule pattern", wcbterrors.ErrManifestInvalid)
	}
	r := &Rule{
		ID:        uuid.NewString(),
		Profile:   profile,
		Kind:      kind,
		Pattern:   pattern,
		CreatedAt: clock.Timestamp(clk.Now()),
	}
	_, err := s.db.Exec(
		`INSERT INTO rules (id, profile, kind, pattern, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Profile, r.Kind, r.Pattern, r.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: add rule: %v", wcbterrors.ErrIO, err)
	}
	return r, nil
}

// ListRules returns the rules for a profile ordered by kind then pattern.
func (s *Store) ListRules(profile string) ([]Rule, error) {
	rows, err := s.db.Query(
		`SELECT id, profile, kind, pattern, created_at FROM rules WHERE profile = ? ORDER BY kind, pattern`,
		profile,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list rules: %v", wcbterrors.ErrIO, err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var r Rule
		if err := rows.Scan(&r.ID, &r.Profile, &r.Kind, &r.Pattern, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan rule: %v", wcbterrors.ErrIO, err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list rules: %v", wcbterrors.ErrIO, err)
	}
	return rules, nil
}

// RemoveRule deletes a rule by id. Removing an unknown id is an error so
// typos surface.
func (s *Store) RemoveRule(id string) error {
	res, err := s.db.Exec(`DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: remove rule: %v", wcbterrors.ErrIO, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: remove rule: %v", wcbterrors.ErrIO, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: rule %s not found", wcbterrors.ErrManifestInvalid, id)
	}
	return nil
}

// Excludes folds a profile's rules into scanner exclude rules.
func (s *Store) Excludes(profile string) (backup.ExcludeRules, error) {
	rules, err := s.ListRules(profile)
	if err != nil {
		return backup.ExcludeRules{}, err
	}
	var ex backup.ExcludeRules
	for _, r := range rules {
		switch r.Kind {
		case KindExcludeDir:
			ex.DirNames = append(ex.DirNames, r.Pattern)
		case KindExcludeFile:
			ex.FileNames = append(ex.FileNames, r.Pattern)
		}
	}
	return ex, nil
}
