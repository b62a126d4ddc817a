package tagdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/muddle-build/muddle/internal/depend"
	"github.com/muddle-build/muddle/internal/label"
)

// RegisterRuleForBuild records r as part of the current run's frontier:
// a rules row (status clear) and a rules_to_build row, per spec.md §3's
// rules/rules_to_build tables. Re-registering the same target is harmless
// (ON CONFLICT leaves status alone, so an in-progress claim survives a
// second registration of the same rule).
func (s *Store) RegisterRuleForBuild(ctx context.Context, r *depend.Rule) error {
	reqMaster := r.RequiresMaster()
	transient := r.Target.Transient
	targetText := r.Target.String()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rules (target, req_master, transient, status, owner_pid, owner_uuid, timestamp)
		VALUES (?, ?, ?, ?, NULL, NULL, NULL)
		ON CONFLICT(target) DO UPDATE SET req_master = excluded.req_master, transient = excluded.transient
	`, targetText, boolToInt(reqMaster), boolToInt(transient), int(StatusClear))
	if err != nil {
		return fmt.Errorf("tagdb: register_rule_for_build(%s): %w", r.Target, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rules_to_build (target, req_master) VALUES (?, ?)
		ON CONFLICT(target) DO NOTHING
	`, targetText, boolToInt(reqMaster))
	if err != nil {
		return fmt.Errorf("tagdb: register_rule_for_build(%s): %w", r.Target, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *Store) ruleStatus(ctx context.Context, targetText string) (RuleStatus, error) {
	var status int
	err := s.db.QueryRowContext(ctx, `SELECT status FROM rules WHERE target = ?`, targetText).Scan(&status)
	if err == sql.ErrNoRows {
		return StatusClear, nil
	}
	if err != nil {
		return StatusClear, fmt.Errorf("tagdb: rule_status(%s): %w", targetText, err)
	}
	return RuleStatus(status), nil
}

// IsRuleClear reports whether target's rule row is clear - callers
// double-check this after a SQL candidate query, per spec.md §4.4 step 3,
// since transient/local state can move it out of "clear" without a write to
// this row.
func (s *Store) IsRuleClear(ctx context.Context, target label.Label) (bool, error) {
	status, err := s.ruleStatus(ctx, target.String())
	if err != nil {
		return false, err
	}
	return status == StatusClear, nil
}

// SetRuleProcessing is the atomic claim: set status=processing,
// owner_uuid=self, owner_pid=pid WHERE target=? AND status=clear, then read
// back and report whether this owner now holds the row, per spec.md §4.3.
func (s *Store) SetRuleProcessing(ctx context.Context, target label.Label, selfUUID string, pid int) (bool, error) {
	targetText := target.String()
	res, err := s.db.ExecContext(ctx, `
		UPDATE rules SET status = ?, owner_uuid = ?, owner_pid = ?, timestamp = ?
		WHERE target = ? AND status = ?
	`, int(StatusProcessing), selfUUID, pid, time.Now().UTC().Format(time.RFC3339Nano), targetText, int(StatusClear))
	if err != nil {
		return false, fmt.Errorf("tagdb: set_rule_processing(%s): %w", target, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("tagdb: set_rule_processing(%s): %w", target, err)
	}
	if n == 0 {
		return false, nil
	}
	var owner sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT owner_uuid FROM rules WHERE target = ?`, targetText).Scan(&owner); err != nil {
		return false, fmt.Errorf("tagdb: set_rule_processing(%s): %w", target, err)
	}
	return owner.Valid && owner.String == selfUUID, nil
}

// SetRuleClear returns target to clear and forgets its owner - used both to
// re-enqueue after a failed action and by set_rule_done's transient branch,
// per spec.md §4.3/§4.4.
func (s *Store) SetRuleClear(ctx context.Context, target label.Label) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE rules SET status = ?, owner_uuid = NULL, owner_pid = NULL WHERE target = ?
	`, int(StatusClear), target.String())
	if err != nil {
		return fmt.Errorf("tagdb: set_rule_clear(%s): %w", target, err)
	}
	return nil
}

// SetRuleDone implements spec.md §4.3's set_rule_done:
//  1. non-transient: status=done, removed from rules_to_build.
//  2. transient: status reset to clear, recorded in the local done set.
//  3. wildcard realisation: once every wildcard rule matching r.Target is
//     itself done, r.Target's tag is marked done in its domain's labels
//     table. When r is itself a wildcard rule, every concrete label it
//     matches whose own rule is already done is re-checked the same way.
func (s *Store) SetRuleDone(ctx context.Context, rs *depend.RuleSet, r *depend.Rule) error {
	target := r.Target
	targetText := target.String()

	if target.Transient {
		if _, err := s.db.ExecContext(ctx, `UPDATE rules SET status = ? WHERE target = ?`,
			int(StatusClear), targetText); err != nil {
			return fmt.Errorf("tagdb: set_rule_done(%s): %w", target, err)
		}
	} else {
		if _, err := s.db.ExecContext(ctx, `UPDATE rules SET status = ? WHERE target = ?`,
			int(StatusDone), targetText); err != nil {
			return fmt.Errorf("tagdb: set_rule_done(%s): %w", target, err)
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM rules_to_build WHERE target = ?`, targetText); err != nil {
			return fmt.Errorf("tagdb: set_rule_done(%s): %w", target, err)
		}
	}

	allWildcardRulesDone := true
	for _, wr := range rs.WildcardRulesMatching(target) {
		status, err := s.ruleStatus(ctx, wr.Target.String())
		if err != nil {
			return err
		}
		if status != StatusDone {
			allWildcardRulesDone = false
			break
		}
	}
	if !allWildcardRulesDone {
		return nil
	}
	if err := s.SetTag(ctx, target); err != nil || !target.IsWildcard() {
		return err
	}
	for _, l := range rs.ExpandWildcards(target, "") {
		exact, ok := rs.RuleForTarget(l)
		if !ok || exact.Target.IsWildcard() {
			continue
		}
		status, err := s.ruleStatus(ctx, exact.Target.String())
		if err == nil && status == StatusDone {
			err = s.SetRuleDone(ctx, rs, exact)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// CandidateRules implements spec.md §4.4 step 2's SQL-expressible filter:
// rules_to_build minus those with an unsatisfied non-transient dependency.
// Transient and cross-domain deps are re-checked by RuleDepsSatisfied once a
// candidate is actually attempted, per spec.md §4.4 step 3.
func (s *Store) CandidateRules(ctx context.Context, rs *depend.RuleSet) ([]*depend.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT target FROM rules_to_build`)
	if err != nil {
		return nil, fmt.Errorf("tagdb: candidate_rules: %w", err)
	}
	defer rows.Close()

	var frontier []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("tagdb: candidate_rules: %w", err)
		}
		frontier = append(frontier, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tagdb: candidate_rules: %w", err)
	}

	var out []*depend.Rule
	for _, t := range frontier {
		target, err := label.Parse(t, label.Defaults{})
		if err != nil {
			return nil, fmt.Errorf("tagdb: candidate_rules: parsing stored target %q: %w", t, err)
		}
		rule, ok := rs.RuleForTarget(target)
		if !ok {
			continue // registered for build but the loaded ruleset no longer knows it
		}
		satisfied := true
		for _, dep := range rule.DepsList() {
			for _, concreteDep := range rs.ExpandWildcards(dep, "") {
				if concreteDep.Transient {
					continue
				}
				done, err := s.IsTagDone(ctx, concreteDep)
				if err != nil {
					return nil, err
				}
				if !done {
					satisfied = false
					break
				}
			}
			if !satisfied {
				break
			}
		}
		if satisfied {
			out = append(out, rule)
		}
	}
	return out, nil
}

// AnyRuleProcessingByOther reports whether some rule row is claimed
// (status=processing) by a process other than selfUUID - the scheduler's
// step 5 check of whether "no other process is still processing any rule"
// before a worker with nothing runnable gives up and exits.
func (s *Store) AnyRuleProcessingByOther(ctx context.Context, selfUUID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM rules WHERE status = ? AND (owner_uuid IS NULL OR owner_uuid != ?)
	`, int(StatusProcessing), selfUUID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("tagdb: any_rule_processing_by_other: %w", err)
	}
	return count > 0, nil
}

// RuleDepsSatisfied is spec.md §4.4 step 3's _rule_deps_satisfied: unlike
// CandidateRules, it checks every dep including transient and cross-domain
// ones, consulting each dep's own domain's labels table (or the local
// transient set).
func (s *Store) RuleDepsSatisfied(ctx context.Context, rs *depend.RuleSet, rule *depend.Rule) (bool, error) {
	for _, dep := range rule.DepsList() {
		for _, concreteDep := range rs.ExpandWildcards(dep, "") {
			done, err := s.IsTagDone(ctx, concreteDep)
			if err != nil {
				return false, err
			}
			if !done {
				return false, nil
			}
		}
	}
	return true, nil
}
