package tagdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Register inserts a fresh process row with a new UUID and the calling OS
// pid, per spec.md §4.3's process lifecycle. Callers must Unregister on
// exit.
func (s *Store) Register(ctx context.Context, pid int) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processes (uuid, pid, master, pause_requested_by, paused)
		VALUES (?, ?, 0, NULL, 0)
	`, id, pid)
	if err != nil {
		return "", fmt.Errorf("tagdb: register process: %w", err)
	}
	return id, nil
}

// Unregister removes a process row on worker exit.
func (s *Store) Unregister(ctx context.Context, selfUUID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM processes WHERE uuid = ?`, selfUUID)
	if err != nil {
		return fmt.Errorf("tagdb: unregister process %s: %w", selfUUID, err)
	}
	return nil
}

// AttemptSetMaster atomically promotes selfUUID to master iff no master row
// currently exists, per spec.md §4.3's attempt_set_master. Only the master
// may request pauses.
func (s *Store) AttemptSetMaster(ctx context.Context, selfUUID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("tagdb: attempt_set_master: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM processes WHERE master = 1`).Scan(&count); err != nil {
		return false, fmt.Errorf("tagdb: attempt_set_master: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, `UPDATE processes SET master = 1 WHERE uuid = ?`, selfUUID); err != nil {
		return false, fmt.Errorf("tagdb: attempt_set_master: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("tagdb: attempt_set_master: %w", err)
	}
	return true, nil
}

// IsMaster reports whether selfUUID currently holds the master row.
func (s *Store) IsMaster(ctx context.Context, selfUUID string) (bool, error) {
	var master int
	err := s.db.QueryRowContext(ctx, `SELECT master FROM processes WHERE uuid = ?`, selfUUID).Scan(&master)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("tagdb: is_master(%s): %w", selfUUID, err)
	}
	return master != 0, nil
}

// RequestPause sets pause_requested_by on every process row but the
// master's own, per spec.md §4.3's pause protocol. Only the master calls
// this.
func (s *Store) RequestPause(ctx context.Context, masterUUID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE processes SET pause_requested_by = ? WHERE uuid != ?
	`, masterUUID, masterUUID)
	if err != nil {
		return fmt.Errorf("tagdb: request_pause: %w", err)
	}
	return nil
}

// IsPauseRequested reports whether selfUUID has been asked to pause.
func (s *Store) IsPauseRequested(ctx context.Context, selfUUID string) (bool, error) {
	var requestedBy sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT pause_requested_by FROM processes WHERE uuid = ?`, selfUUID).Scan(&requestedBy)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("tagdb: is_pause_requested(%s): %w", selfUUID, err)
	}
	return requestedBy.Valid && requestedBy.String != "", nil
}

// MarkPaused records that selfUUID has honored a pause request.
func (s *Store) MarkPaused(ctx context.Context, selfUUID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE processes SET paused = 1 WHERE uuid = ?`, selfUUID)
	if err != nil {
		return fmt.Errorf("tagdb: mark_paused(%s): %w", selfUUID, err)
	}
	return nil
}

// AreOthersPaused reports whether every process but masterUUID is currently
// paused - the master polls this before it mutates shared structures.
func (s *Store) AreOthersPaused(ctx context.Context, masterUUID string) (bool, error) {
	var unpaused int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM processes WHERE uuid != ? AND paused = 0
	`, masterUUID).Scan(&unpaused)
	if err != nil {
		return false, fmt.Errorf("tagdb: are_others_paused: %w", err)
	}
	return unpaused == 0, nil
}

// ClearPause is the master's resume step: pause_requested_by and paused are
// reset on every row.
func (s *Store) ClearPause(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `UPDATE processes SET pause_requested_by = NULL, paused = 0`)
	if err != nil {
		return fmt.Errorf("tagdb: clear_pause: %w", err)
	}
	return nil
}
