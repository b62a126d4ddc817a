// Package scheduler implements the per-worker main loop (C7) that drives
// rules from "clear" to "done" against the shared internal/tagdb Store,
// per spec.md §4.4. Grounded on original_source/muddled's (inferred)
// scheduler module, generalising the teacher's single-process command
// loop (surgeon/reposurgeon.go's Do* dispatch) to the candidate/claim/
// build/done cycle spec.md describes, atop the already-built tagdb
// primitives.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/muddle-build/muddle/internal/action"
	"github.com/muddle-build/muddle/internal/depend"
	"github.com/muddle-build/muddle/internal/label"
	"github.com/muddle-build/muddle/internal/merrors"
	"github.com/muddle-build/muddle/internal/mlog"
	"github.com/muddle-build/muddle/internal/tagdb"
)

// Failure records one rule action's "give up"/"unsupported" outcome for
// the end-of-run report, per spec.md §4.4's failure semantics.
type Failure struct {
	Target label.Label
	Err    error
}

// Options tunes one worker's run.
type Options struct {
	// IsMaster, when true, lets this worker also claim requires_master
	// rules in a second pass. Exactly one process in a run should set this.
	IsMaster bool
	// StopOnFailure makes a "give up" abort the whole run immediately
	// instead of continuing with non-dependent rules, per spec.md §4.4's
	// `-stop` switch.
	StopOnFailure bool
	// PollInterval is how long a worker sleeps between empty candidate
	// scans before checking whether every process is done.
	PollInterval time.Duration
}

func (o Options) pollInterval() time.Duration {
	if o.PollInterval <= 0 {
		return 50 * time.Millisecond
	}
	return o.PollInterval
}

// Run drives target to completion: register its transitive prerequisites
// for build, then loop claiming and running candidates until either target
// is done or nothing remains runnable, per spec.md §4.4's main loop.
// builder is the narrow action.Builder surface each Action needs; selfUUID
// identifies this worker process (from store.Register).
func Run(ctx context.Context, rs *depend.RuleSet, store *tagdb.Store, b action.Builder,
	target label.Label, selfUUID string, opts Options) ([]Failure, error) {

	needed, err := rs.NeededToBuild(target, true)
	if err != nil {
		return nil, err
	}
	for _, r := range needed {
		if err := store.RegisterRuleForBuild(ctx, r); err != nil {
			return nil, err
		}
	}

	var failures []Failure
	pid := os.Getpid()
	// failed holds the targets whose action already failed in this run;
	// they are not attempted again.
	failed := map[label.Key]bool{}

	for {
		if err := ctx.Err(); err != nil {
			return failures, err
		}

		if requested, err := store.IsPauseRequested(ctx, selfUUID); err != nil {
			return failures, err
		} else if requested {
			if err := pause(ctx, store, selfUUID); err != nil {
				return failures, err
			}
			continue
		}

		candidates, err := store.CandidateRules(ctx, rs)
		if err != nil {
			return failures, err
		}

		ran := false
		for _, rule := range candidates {
			if failed[rule.Target.Key()] {
				continue
			}
			if rule.RequiresMaster() && !opts.IsMaster {
				continue
			}
			clear, err := store.IsRuleClear(ctx, rule.Target)
			if err != nil {
				return failures, err
			}
			if !clear {
				continue
			}
			satisfied, err := store.RuleDepsSatisfied(ctx, rs, rule)
			if err != nil {
				return failures, err
			}
			if !satisfied {
				continue
			}
			claimed, err := store.SetRuleProcessing(ctx, rule.Target, selfUUID, pid)
			if err != nil {
				return failures, err
			}
			if !claimed {
				continue
			}

			ran = true
			mlog.Logit(mlog.Scheduler, "building rule", map[string]interface{}{"target": rule.Target.String()})
			buildErr := runAction(ctx, rule, b)
			if buildErr == nil {
				if err := store.SetRuleDone(ctx, rs, rule); err != nil {
					return failures, err
				}
				continue
			}

			if err := store.SetRuleClear(ctx, rule.Target); err != nil {
				return failures, err
			}
			failed[rule.Target.Key()] = true
			switch buildErr.(type) {
			case *merrors.MuddleBug:
				return failures, buildErr
			case *merrors.Unsupported:
				mlog.Logit(mlog.Warn, "rule unsupported", map[string]interface{}{
					"target": rule.Target.String(), "error": buildErr.Error(),
				})
				failures = append(failures, Failure{Target: rule.Target, Err: buildErr})
			default:
				failures = append(failures, Failure{Target: rule.Target, Err: buildErr})
				if opts.StopOnFailure {
					return failures, buildErr
				}
			}
		}

		if ran {
			continue
		}

		done, err := store.IsTagDone(ctx, target)
		if err != nil {
			return failures, err
		}
		if done {
			return failures, nil
		}

		othersBusy, err := anyOtherProcessBusy(ctx, store, selfUUID)
		if err != nil {
			return failures, err
		}
		if !othersBusy {
			return failures, nil
		}
		time.Sleep(opts.pollInterval())
	}
}

// runAction invokes the rule's action, treating a nil Action (a purely
// synthetic label) as trivially successful.
func runAction(ctx context.Context, rule *depend.Rule, b action.Builder) error {
	if rule.Action == nil {
		return nil
	}
	return rule.Action.BuildLabel(ctx, b, rule.Target)
}

// pause implements spec.md §4.4 step 1: stop claiming new work, record
// that this process has paused, and wait for the pause to clear.
func pause(ctx context.Context, store *tagdb.Store, selfUUID string) error {
	if err := store.MarkPaused(ctx, selfUUID); err != nil {
		return err
	}
	for {
		requested, err := store.IsPauseRequested(ctx, selfUUID)
		if err != nil {
			return err
		}
		if !requested {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// anyOtherProcessBusy reports whether some other worker still owns a
// processing rule, per spec.md §4.4 step 5.
func anyOtherProcessBusy(ctx context.Context, store *tagdb.Store, selfUUID string) (bool, error) {
	return store.AnyRuleProcessingByOther(ctx, selfUUID)
}

// FailureReport renders the end-of-run failure summary, per spec.md §4.4's
// "all failures are re-reported at the end".
func FailureReport(failures []Failure) string {
	if len(failures) == 0 {
		return ""
	}
	s := fmt.Sprintf("%d rule(s) failed:\n", len(failures))
	for _, f := range failures {
		s += fmt.Sprintf("  %s: %s\n", f.Target, f.Err)
	}
	return s
}
