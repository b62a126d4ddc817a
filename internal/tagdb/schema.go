// Package tagdb implements the persistent tag/rule store (C5): the single
// relational coordination primitive multiple worker processes share while
// building one tree, per spec.md §3/§4.3. Grounded on
// Aureuma-si/apps/ReleaseParty/backend/internal/store (the pack's own
// sqlite-backed store: Open/migrate/ExecContext idiom) using
// modernc.org/sqlite, the pure-Go driver also used by
// theRebelliousNerd-codenerd, so muddle carries no cgo dependency.
package tagdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/muddle-build/muddle/internal/label"
)

// RuleStatus mirrors spec.md §3's rules.status enumeration.
type RuleStatus int

const (
	StatusClear RuleStatus = iota
	StatusProcessing
	StatusDone
)

// LabelStore wraps one domain's `labels` table - per spec.md §4.3, each
// (sub)domain keeps its own labels table so it stays independently
// stampable, even though the scheduler treats all rules uniformly once
// subdomains are merged in (spec.md §4.7).
type LabelStore struct {
	domain string
	db     *sql.DB
	owned  bool // true if this store opened db itself and must Close it

	mu          sync.Mutex
	transientDone map[label.Key]bool // process-local "done" set for transient labels, spec.md §4.3
}

const labelsDDL = `CREATE TABLE IF NOT EXISTS labels (
	label TEXT PRIMARY KEY,
	done INTEGER NOT NULL DEFAULT 0,
	transient INTEGER NOT NULL DEFAULT 0
);`

// OpenLabelStore opens (creating if necessary) the labels table at path for
// the given domain name ("" for the top-level build).
func OpenLabelStore(domain, path string) (*LabelStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("tagdb: creating directory for %s: %w", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("tagdb: opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)
	if _, err := db.ExecContext(context.Background(), labelsDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tagdb: migrating labels table at %s: %w", path, err)
	}
	return &LabelStore{domain: domain, db: db, owned: true, transientDone: map[label.Key]bool{}}, nil
}

// newLabelStoreOnDB wraps an already-open *sql.DB (used by Store, whose root
// file holds both the root domain's labels table and the coordination
// tables side by side).
func newLabelStoreOnDB(domain string, db *sql.DB) (*LabelStore, error) {
	if _, err := db.ExecContext(context.Background(), labelsDDL); err != nil {
		return nil, fmt.Errorf("tagdb: migrating labels table for domain %q: %w", domain, err)
	}
	return &LabelStore{domain: domain, db: db, transientDone: map[label.Key]bool{}}, nil
}

// Close releases the store's own connection, if it opened one.
func (ls *LabelStore) Close() error {
	if ls.owned {
		return ls.db.Close()
	}
	return nil
}

const rootDDL = `
CREATE TABLE IF NOT EXISTS rules (
	target TEXT PRIMARY KEY,
	req_master INTEGER NOT NULL DEFAULT 0,
	transient INTEGER NOT NULL DEFAULT 0,
	status INTEGER NOT NULL DEFAULT 0,
	owner_pid INTEGER,
	owner_uuid TEXT,
	timestamp TEXT
);
CREATE TABLE IF NOT EXISTS rules_to_labels (
	dep TEXT NOT NULL,
	dep_domain TEXT NOT NULL DEFAULT '',
	rule_target TEXT NOT NULL,
	PRIMARY KEY (dep, dep_domain, rule_target)
);
CREATE TABLE IF NOT EXISTS labels_to_rules (
	target TEXT NOT NULL,
	rule_target TEXT NOT NULL,
	PRIMARY KEY (target, rule_target)
);
CREATE TABLE IF NOT EXISTS rules_to_build (
	target TEXT PRIMARY KEY,
	req_master INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS processes (
	uuid TEXT PRIMARY KEY,
	pid INTEGER NOT NULL,
	master INTEGER NOT NULL DEFAULT 0,
	pause_requested_by TEXT,
	paused INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS just_pulled (
	label TEXT NOT NULL,
	domain TEXT NOT NULL DEFAULT '',
	committed INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (label, domain)
);
`

// Store is the root coordinator: the rules/processes/just_pulled tables
// (which "live only at the root", per spec.md §3) plus a registry of every
// domain's LabelStore, so a dependency check that crosses a subdomain
// boundary can still resolve "is this label done" against the right file.
type Store struct {
	db   *sql.DB
	path string

	mu          sync.Mutex
	labelStores map[string]*LabelStore
}

// OpenRoot opens (creating if necessary) the root tag_db file at path,
// which holds the coordination tables plus the top-level domain's labels
// table, per spec.md §4.3's "The root store creates labels, rules,
// rules_to_labels, labels_to_rules, rules_to_build, processes, just_pulled."
func OpenRoot(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("tagdb: creating directory for %s: %w", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("tagdb: opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)
	if _, err := db.ExecContext(context.Background(), rootDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tagdb: migrating root tables at %s: %w", path, err)
	}
	rootLabels, err := newLabelStoreOnDB("", db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{
		db:          db,
		path:        path,
		labelStores: map[string]*LabelStore{"": rootLabels},
	}, nil
}

// Close releases the root connection and every registered domain store.
func (s *Store) Close() error {
	for domain, ls := range s.labelStores {
		if domain != "" {
			_ = ls.Close()
		}
	}
	return s.db.Close()
}

// RegisterDomainLabelStore wires a subdomain's own labels table into the
// root coordinator's view, as subdomain inclusion (spec.md §4.7) checks it
// out and loads it.
func (s *Store) RegisterDomainLabelStore(domain string, ls *LabelStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labelStores[domain] = ls
}

// labelStoreFor returns the LabelStore for domain, or (nil, false) if no
// store has been registered for it yet.
func (s *Store) labelStoreFor(domain string) (*LabelStore, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ls, ok := s.labelStores[domain]
	return ls, ok
}
