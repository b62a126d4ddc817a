package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/muddle-build/muddle/internal/action"
	"github.com/muddle-build/muddle/internal/depend"
	"github.com/muddle-build/muddle/internal/label"
	"github.com/muddle-build/muddle/internal/merrors"
	"github.com/muddle-build/muddle/internal/tagdb"
)

type fakeBuilder struct{ justPrint bool }

func (b *fakeBuilder) RootPath() string { return "/tmp/build" }
func (b *fakeBuilder) JustPrint() bool  { return b.justPrint }

type recordingAction struct {
	mu       *sync.Mutex
	ran      *[]string
	master   bool
	failWith error
}

func (a recordingAction) BuildLabel(ctx context.Context, b action.Builder, target action.Label) error {
	if a.failWith != nil {
		return a.failWith
	}
	a.mu.Lock()
	*a.ran = append(*a.ran, target.String())
	a.mu.Unlock()
	return nil
}
func (a recordingAction) RequiresMaster() bool { return a.master }
func (a recordingAction) Name() string         { return "record" }

func openStore(t *testing.T) *tagdb.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := tagdb.OpenRoot(filepath.Join(dir, "tag_db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func co(name, tag string) label.Label {
	return label.New(label.Checkout, name, "", tag, "")
}

func TestRunBuildsInDependencyOrder(t *testing.T) {
	ctx := context.Background()
	rs := depend.NewRuleSet()
	var mu sync.Mutex
	var ran []string

	base := co("base", label.CheckedOut)
	mid := co("mid", label.CheckedOut)
	top := co("top", label.CheckedOut)

	rs.Add(depend.NewRule(base, recordingAction{mu: &mu, ran: &ran}))
	rs.Add(depend.NewRule(mid, recordingAction{mu: &mu, ran: &ran}, base))
	rs.Add(depend.NewRule(top, recordingAction{mu: &mu, ran: &ran}, mid))

	store := openStore(t)
	selfUUID, err := store.Register(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}

	failures, err := Run(ctx, rs, store, &fakeBuilder{}, top, selfUUID, Options{IsMaster: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
	if len(ran) != 3 || ran[0] != base.String() || ran[1] != mid.String() || ran[2] != top.String() {
		t.Fatalf("got order %v", ran)
	}

	done, err := store.IsTagDone(ctx, top)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatalf("expected top to be marked done")
	}
}

func TestRunRecordsGiveUpAndContinues(t *testing.T) {
	ctx := context.Background()
	rs := depend.NewRuleSet()
	var mu sync.Mutex
	var ran []string

	broken := co("broken", label.CheckedOut)
	healthy := co("healthy", label.CheckedOut)
	top := co("top", label.CheckedOut)

	rs.Add(depend.NewRule(broken, recordingAction{mu: &mu, ran: &ran, failWith: merrors.NewGiveUp("boom")}))
	rs.Add(depend.NewRule(healthy, recordingAction{mu: &mu, ran: &ran}))
	rs.Add(depend.NewRule(top, recordingAction{mu: &mu, ran: &ran}, broken, healthy))

	store := openStore(t)
	selfUUID, err := store.Register(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}

	failures, err := Run(ctx, rs, store, &fakeBuilder{}, top, selfUUID, Options{IsMaster: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(failures) != 1 || failures[0].Target.String() != broken.String() {
		t.Fatalf("got failures %+v", failures)
	}
	if len(ran) != 1 || ran[0] != healthy.String() {
		t.Fatalf("expected only healthy to have run, got %v", ran)
	}
}

func TestRunSkipsMasterRuleForNonMaster(t *testing.T) {
	ctx := context.Background()
	rs := depend.NewRuleSet()
	var mu sync.Mutex
	var ran []string

	masterOnly := co("master-only", label.CheckedOut)
	masterOnly.Transient = false
	rs.Add(depend.NewRule(masterOnly, recordingAction{mu: &mu, ran: &ran, master: true}))

	store := openStore(t)
	selfUUID, err := store.Register(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}

	failures, err := Run(ctx, rs, store, &fakeBuilder{}, masterOnly, selfUUID, Options{IsMaster: false})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
	if len(ran) != 0 {
		t.Fatalf("expected master-only rule not to run on a non-master worker, got %v", ran)
	}
	done, err := store.IsTagDone(ctx, masterOnly)
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Fatalf("rule should remain undone without a master to claim it")
	}
}
