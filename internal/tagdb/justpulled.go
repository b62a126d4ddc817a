package tagdb

import (
	"context"
	"fmt"

	"github.com/muddle-build/muddle/internal/label"
)

// NotePulled records that l's checkout was updated in the current
// operation, per spec.md §4.3's just-pulled set. committed starts false.
// The row is keyed by l's domain as given; subdomain inclusion does not
// re-label or merge just_pulled entries.
func (s *Store) NotePulled(ctx context.Context, l label.Label) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO just_pulled (label, domain, committed) VALUES (?, ?, 0)
		ON CONFLICT(label, domain) DO UPDATE SET committed = 0
	`, l.CopyWithFlags(false, false).String(), l.Domain)
	if err != nil {
		return fmt.Errorf("tagdb: note_pulled(%s): %w", l, err)
	}
	return nil
}

// JustPulled returns the set view over just_pulled WHERE committed=0.
func (s *Store) JustPulled(ctx context.Context) ([]label.Label, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT label FROM just_pulled WHERE committed = 0`)
	if err != nil {
		return nil, fmt.Errorf("tagdb: just_pulled: %w", err)
	}
	defer rows.Close()

	var out []label.Label
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("tagdb: just_pulled: %w", err)
		}
		l, err := label.Parse(text, label.Defaults{})
		if err != nil {
			return nil, fmt.Errorf("tagdb: just_pulled: parsing %q: %w", text, err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// CommitJustPulled marks every currently-uncommitted just_pulled entry as
// committed, clearing the set view for the next top-level command, per
// spec.md §4.3.
func (s *Store) CommitJustPulled(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `UPDATE just_pulled SET committed = 1 WHERE committed = 0`)
	if err != nil {
		return fmt.Errorf("tagdb: commit_just_pulled: %w", err)
	}
	return nil
}
