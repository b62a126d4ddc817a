package tagdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/muddle-build/muddle/internal/label"
)

// SetTag inserts or replaces l in this domain's labels table (I3: a
// transient label's "done" is never written to persistent storage - it only
// ever lives in the process-local set), per spec.md §4.3's set_tag.
func (ls *LabelStore) SetTag(ctx context.Context, l label.Label) error {
	if l.Transient {
		ls.mu.Lock()
		ls.transientDone[l.Key()] = true
		ls.mu.Unlock()
		return nil
	}
	_, err := ls.db.ExecContext(ctx, `
		INSERT INTO labels (label, done, transient) VALUES (?, 1, 0)
		ON CONFLICT(label) DO UPDATE SET done = 1
	`, l.CopyWithFlags(false, false).String())
	if err != nil {
		return fmt.Errorf("tagdb: set_tag(%s): %w", l, err)
	}
	return nil
}

// ClearTag deletes l's done marker, per spec.md §4.3's clear_tag.
func (ls *LabelStore) ClearTag(ctx context.Context, l label.Label) error {
	if l.Transient {
		ls.mu.Lock()
		delete(ls.transientDone, l.Key())
		ls.mu.Unlock()
		return nil
	}
	_, err := ls.db.ExecContext(ctx, `DELETE FROM labels WHERE label = ?`, l.CopyWithFlags(false, false).String())
	if err != nil {
		return fmt.Errorf("tagdb: clear_tag(%s): %w", l, err)
	}
	return nil
}

// IsTagDone reports whether l is recorded as satisfied, per spec.md §4.3's
// is_tag_done.
func (ls *LabelStore) IsTagDone(ctx context.Context, l label.Label) (bool, error) {
	if l.Transient {
		ls.mu.Lock()
		done := ls.transientDone[l.Key()]
		ls.mu.Unlock()
		return done, nil
	}
	var done int
	err := ls.db.QueryRowContext(ctx, `SELECT done FROM labels WHERE label = ?`,
		l.CopyWithFlags(false, false).String()).Scan(&done)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("tagdb: is_tag_done(%s): %w", l, err)
	}
	return done != 0, nil
}

// ClearTagsType deletes every persisted label of typ in this domain, per
// spec.md §4.3's clear_tags_type (used when retracting a whole sub-tree).
// Transient labels of typ are also dropped from the local set.
func (ls *LabelStore) ClearTagsType(ctx context.Context, typ label.Type) error {
	prefix := string(typ) + ":%"
	if _, err := ls.db.ExecContext(ctx, `DELETE FROM labels WHERE label LIKE ?`, prefix); err != nil {
		return fmt.Errorf("tagdb: clear_tags_type(%s): %w", typ, err)
	}
	ls.mu.Lock()
	for k := range ls.transientDone {
		if k.Type == typ {
			delete(ls.transientDone, k)
		}
	}
	ls.mu.Unlock()
	return nil
}

// SetTag/ClearTag/IsTagDone on Store dispatch to the LabelStore registered
// for l.Domain, falling back to an error if the domain isn't known yet (it
// should always have been registered by subdomain inclusion before any of
// its labels are touched).

func (s *Store) SetTag(ctx context.Context, l label.Label) error {
	ls, ok := s.labelStoreFor(l.Domain)
	if !ok {
		return fmt.Errorf("tagdb: no label store registered for domain %q", l.Domain)
	}
	return ls.SetTag(ctx, l)
}

func (s *Store) ClearTag(ctx context.Context, l label.Label) error {
	ls, ok := s.labelStoreFor(l.Domain)
	if !ok {
		return fmt.Errorf("tagdb: no label store registered for domain %q", l.Domain)
	}
	return ls.ClearTag(ctx, l)
}

func (s *Store) IsTagDone(ctx context.Context, l label.Label) (bool, error) {
	ls, ok := s.labelStoreFor(l.Domain)
	if !ok {
		return false, fmt.Errorf("tagdb: no label store registered for domain %q", l.Domain)
	}
	return ls.IsTagDone(ctx, l)
}
