package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"freshnest/internal/db"
	"freshnest/internal/domain"
	"freshnest/internal/engine"
	"freshnest/internal/fault"
	"freshnest/internal/migrate"
	"freshnest/internal/notify"
	"freshnest/internal/seed"
	"freshnest/internal/store"
)

type testEnv struct {
	Engine *engine.Engine
	Notify *notify.Store
	Port   store.Store
	Ctx    context.Context
}

// testClock returns a clock that moves forward one second per reading, so
// consecutive transitions always get increasing timestamps.
func testClock() func() time.Time {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx := context.Background()
	port := store.New(conn)
	clock := testClock()
	n := notify.New(ctx, port)
	n.Now = clock
	eng := engine.New(ctx, port, n)
	eng.Now = clock
	// Reseed so the fixture timestamps come from the test clock rather
	// than the wall clock the first load used.
	if err := n.Reset(ctx); err != nil {
		t.Fatalf("reset feed: %v", err)
	}
	if err := eng.Reset(ctx); err != nil {
		t.Fatalf("reset engine: %v", err)
	}
	return testEnv{Engine: eng, Notify: n, Port: port, Ctx: ctx}
}

func mustCreate(t *testing.T, env testEnv, price int) domain.ServiceRequest {
	t.Helper()
	r, err := env.Engine.Create(env.Ctx, engine.CreateInput{
		HostID:   seed.HostID,
		HostName: seed.HostName,
		Asset:    domain.AssetSnapshot{Name: "Loft Canal", Address: "3 Quai de Valmy", Surface: 60, Type: "loft"},
		Schedule: domain.Schedule{Date: "2024-02-01", Time: "10:00", Duration: "2h"},
		Price:    price,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return r
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name string
		in   engine.CreateInput
	}{
		{"zero price", engine.CreateInput{
			HostID:   seed.HostID,
			Asset:    domain.AssetSnapshot{Name: "x"},
			Schedule: domain.Schedule{Date: "2024-02-01", Time: "10:00", Duration: "2h"},
		}},
		{"missing date", engine.CreateInput{
			HostID:   seed.HostID,
			Asset:    domain.AssetSnapshot{Name: "x"},
			Schedule: domain.Schedule{Time: "10:00", Duration: "2h"},
			Price:    10,
		}},
		{"missing duration", engine.CreateInput{
			HostID:   seed.HostID,
			Asset:    domain.AssetSnapshot{Name: "x"},
			Schedule: domain.Schedule{Date: "2024-02-01", Time: "10:00"},
			Price:    10,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.Engine.Create(env.Ctx, tc.in)
			var ve *fault.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestApplyThenReject(t *testing.T) {
	env := newTestEnv(t)
	r := mustCreate(t, env, 55)
	if r.Status != domain.StatusPending || r.CleanerID != nil {
		t.Fatalf("new request should be pending and unassigned: %+v", r)
	}

	r, err := env.Engine.Apply(env.Ctx, r.ID, engine.CleanerRef{ID: seed.CleanerID, Name: seed.CleanerName})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if r.Status != domain.StatusApplied || r.CleanerID == nil || *r.CleanerID != seed.CleanerID {
		t.Fatalf("apply result: %+v", r)
	}
	if r.AppliedAt == nil {
		t.Fatal("applied_at not set")
	}

	r, err = env.Engine.Reject(env.Ctx, r.ID)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if r.Status != domain.StatusPending || r.CleanerID != nil || r.AppliedAt != nil {
		t.Fatalf("reject should clear the application: %+v", r)
	}
}

func TestApplyThenWithdraw(t *testing.T) {
	env := newTestEnv(t)
	r := mustCreate(t, env, 40)
	if _, err := env.Engine.Apply(env.Ctx, r.ID, engine.CleanerRef{ID: seed.CleanerID}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	r, err := env.Engine.Withdraw(env.Ctx, r.ID)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if r.Status != domain.StatusPending || r.CleanerID != nil || r.AppliedAt != nil {
		t.Fatalf("withdraw should clear the application: %+v", r)
	}
	if _, err := env.Engine.Withdraw(env.Ctx, r.ID); !isInvalidTransition(err) {
		t.Fatalf("withdraw outside applied should fail, got %v", err)
	}
}

func TestFullLifecycleTimestamps(t *testing.T) {
	env := newTestEnv(t)
	r := mustCreate(t, env, 72)

	steps := []func() (domain.ServiceRequest, error){
		func() (domain.ServiceRequest, error) {
			return env.Engine.Apply(env.Ctx, r.ID, engine.CleanerRef{ID: seed.CleanerID, Name: seed.CleanerName})
		},
		func() (domain.ServiceRequest, error) { return env.Engine.Confirm(env.Ctx, r.ID, seed.HostID) },
		func() (domain.ServiceRequest, error) { return env.Engine.Start(env.Ctx, r.ID, seed.CleanerID) },
		func() (domain.ServiceRequest, error) { return env.Engine.Complete(env.Ctx, r.ID) },
	}
	want := []domain.Status{domain.StatusApplied, domain.StatusConfirmed, domain.StatusInProgress, domain.StatusCompleted}
	var err error
	for i, step := range steps {
		r, err = step()
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if r.Status != want[i] {
			t.Fatalf("step %d: status %s, want %s", i, r.Status, want[i])
		}
	}

	stamps := []string{r.CreatedAt, *r.AppliedAt, *r.ConfirmedAt, *r.StartedAt, *r.CompletedAt}
	for i := 1; i < len(stamps); i++ {
		if stamps[i] < stamps[i-1] {
			t.Fatalf("timestamp %d (%s) precedes %d (%s)", i, stamps[i], i-1, stamps[i-1])
		}
	}
}

func TestRateOnlyFromCompleted(t *testing.T) {
	env := newTestEnv(t)
	r := mustCreate(t, env, 72)
	_, err := env.Engine.Rate(env.Ctx, r.ID, 5, "great")
	var ite *fault.InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("rate from pending should fail, got %v", err)
	}
	if ite.From != string(domain.StatusPending) || ite.Op != "rate" {
		t.Fatalf("transition error detail: %+v", ite)
	}
	env.Engine.Apply(env.Ctx, r.ID, engine.CleanerRef{ID: seed.CleanerID})
	env.Engine.Confirm(env.Ctx, r.ID, seed.HostID)
	env.Engine.Start(env.Ctx, r.ID, seed.CleanerID)
	env.Engine.Complete(env.Ctx, r.ID)

	r, err = env.Engine.Rate(env.Ctx, r.ID, 5, "great")
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if r.Status != domain.StatusRated || r.Rating == nil || *r.Rating != 5 {
		t.Fatalf("rate result: %+v", r)
	}
	if r.Review == nil || *r.Review != "great" {
		t.Fatalf("review not stored: %+v", r)
	}

	if _, err := env.Engine.Rate(env.Ctx, r.ID, 3, "x"); !isInvalidTransition(err) {
		t.Fatalf("second rate should fail, got %v", err)
	}
	r, _ = env.Engine.ByID(r.ID)
	if *r.Rating != 5 {
		t.Fatalf("rating changed after rejected re-rate: %d", *r.Rating)
	}
}

func TestRateRange(t *testing.T) {
	env := newTestEnv(t)
	r := mustCreate(t, env, 30)
	for _, rating := range []int{0, 6, -1} {
		_, err := env.Engine.Rate(env.Ctx, r.ID, rating, "")
		var ve *fault.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("rating %d: expected validation error, got %v", rating, err)
		}
	}
}

func TestApplyIdempotentForSameCleaner(t *testing.T) {
	env := newTestEnv(t)
	r := mustCreate(t, env, 30)
	first, err := env.Engine.Apply(env.Ctx, r.ID, engine.CleanerRef{ID: seed.CleanerID})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	again, err := env.Engine.Apply(env.Ctx, r.ID, engine.CleanerRef{ID: seed.CleanerID})
	if err != nil {
		t.Fatalf("duplicate apply should be a no-op, got %v", err)
	}
	if again.AppliedAt == nil || *again.AppliedAt != *first.AppliedAt {
		t.Fatalf("duplicate apply changed applied_at: %+v", again)
	}

	if _, err := env.Engine.Apply(env.Ctx, r.ID, engine.CleanerRef{ID: "cleaner-other"}); !isInvalidTransition(err) {
		t.Fatalf("apply by another cleaner should fail, got %v", err)
	}
}

func TestCancelIdempotent(t *testing.T) {
	env := newTestEnv(t)
	r := mustCreate(t, env, 30)
	env.Engine.Apply(env.Ctx, r.ID, engine.CleanerRef{ID: seed.CleanerID})

	r, err := env.Engine.Cancel(env.Ctx, r.ID)
	if err != nil || r.Status != domain.StatusCancelled {
		t.Fatalf("cancel: %v %+v", err, r)
	}
	// Cancellation leaves the assignment untouched.
	if r.CleanerID == nil {
		t.Fatal("cancel should not clear the cleaner")
	}
	if r, err = env.Engine.Cancel(env.Ctx, r.ID); err != nil || r.Status != domain.StatusCancelled {
		t.Fatalf("second cancel should be a no-op: %v", err)
	}
}

func TestCancelRejectedWhenRated(t *testing.T) {
	env := newTestEnv(t)
	r := mustCreate(t, env, 30)
	env.Engine.Apply(env.Ctx, r.ID, engine.CleanerRef{ID: seed.CleanerID})
	env.Engine.Confirm(env.Ctx, r.ID, seed.HostID)
	env.Engine.Start(env.Ctx, r.ID, seed.CleanerID)
	env.Engine.Complete(env.Ctx, r.ID)
	env.Engine.Rate(env.Ctx, r.ID, 4, "")
	if _, err := env.Engine.Cancel(env.Ctx, r.ID); !isInvalidTransition(err) {
		t.Fatalf("cancel of a rated request should fail, got %v", err)
	}
}

func TestCallerGuards(t *testing.T) {
	env := newTestEnv(t)
	r := mustCreate(t, env, 30)
	env.Engine.Apply(env.Ctx, r.ID, engine.CleanerRef{ID: seed.CleanerID})

	var ve *fault.ValidationError
	if _, err := env.Engine.Confirm(env.Ctx, r.ID, "someone-else"); !errors.As(err, &ve) {
		t.Fatalf("confirm by a stranger should fail, got %v", err)
	}
	env.Engine.Confirm(env.Ctx, r.ID, seed.HostID)
	if _, err := env.Engine.Start(env.Ctx, r.ID, "someone-else"); !errors.As(err, &ve) {
		t.Fatalf("start by an unassigned cleaner should fail, got %v", err)
	}
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t)
	var nfe *fault.NotFoundError
	if _, err := env.Engine.Cancel(env.Ctx, "nope"); !errors.As(err, &nfe) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := env.Engine.ByID("nope"); !errors.As(err, &nfe) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPendingMeansUnassigned(t *testing.T) {
	env := newTestEnv(t)
	for _, r := range env.Engine.All() {
		if r.Status == domain.StatusCancelled {
			continue
		}
		unassigned := r.CleanerID == nil
		if (r.Status == domain.StatusPending) != unassigned {
			t.Fatalf("request %s: status %s with cleaner %v", r.ID, r.Status, r.CleanerID)
		}
	}
}

func TestLateEffectDiscardedAfterPause(t *testing.T) {
	env := newTestEnv(t)
	r := mustCreate(t, env, 30)
	env.Engine.Apply(env.Ctx, r.ID, engine.CleanerRef{ID: seed.CleanerID})

	// The request is cancelled while the confirm is suspended. The late
	// confirm must observe the new state and drop its effect without error.
	env.Engine.Pause = func(ctx context.Context) error {
		env.Engine.Pause = nil
		_, err := env.Engine.Cancel(ctx, r.ID)
		return err
	}
	got, err := env.Engine.Confirm(env.Ctx, r.ID, seed.HostID)
	if err != nil {
		t.Fatalf("late confirm should not error: %v", err)
	}
	if got.Status != domain.StatusCancelled {
		t.Fatalf("late confirm should return the stored state, got %s", got.Status)
	}
	if got.ConfirmedAt != nil {
		t.Fatal("late confirm must not stamp confirmed_at")
	}
}

func TestPauseAbortStopsOperation(t *testing.T) {
	env := newTestEnv(t)
	r := mustCreate(t, env, 30)
	env.Engine.Apply(env.Ctx, r.ID, engine.CleanerRef{ID: seed.CleanerID})

	env.Engine.Pause = func(ctx context.Context) error { return context.Canceled }
	if _, err := env.Engine.Confirm(env.Ctx, r.ID, seed.HostID); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	env.Engine.Pause = nil
	got, _ := env.Engine.ByID(r.ID)
	if got.Status != domain.StatusApplied {
		t.Fatalf("aborted confirm must leave state untouched, got %s", got.Status)
	}
}

func TestStatePersistsAcrossEngines(t *testing.T) {
	env := newTestEnv(t)
	r := mustCreate(t, env, 30)
	env.Engine.Apply(env.Ctx, r.ID, engine.CleanerRef{ID: seed.CleanerID, Name: seed.CleanerName})

	reloaded := engine.New(env.Ctx, env.Port, env.Notify)
	got, err := reloaded.ByID(r.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != domain.StatusApplied || got.CleanerID == nil {
		t.Fatalf("reloaded request out of date: %+v", got)
	}
}

func TestQueries(t *testing.T) {
	env := newTestEnv(t)
	r := mustCreate(t, env, 30)
	env.Engine.Apply(env.Ctx, r.ID, engine.CleanerRef{ID: seed.CleanerID})

	for _, avail := range env.Engine.Available() {
		if avail.ID == r.ID {
			t.Fatal("applied request still listed as available")
		}
		if avail.Status != domain.StatusPending || avail.CleanerID != nil {
			t.Fatalf("available returned %+v", avail)
		}
	}
	apps := env.Engine.MyApplications(seed.CleanerID)
	if !containsRequest(apps, r.ID) {
		t.Fatal("application missing from MyApplications")
	}

	env.Engine.Confirm(env.Ctx, r.ID, seed.HostID)
	if !containsRequest(env.Engine.ActiveFor(seed.CleanerID), r.ID) {
		t.Fatal("confirmed request missing from ActiveFor")
	}

	env.Engine.Start(env.Ctx, r.ID, seed.CleanerID)
	env.Engine.Complete(env.Ctx, r.ID)
	if !containsRequest(env.Engine.PastFor(domain.RoleHost, seed.HostID), r.ID) {
		t.Fatal("completed request missing from PastFor")
	}
	if !containsRequest(env.Engine.ByStatus(domain.StatusCompleted, domain.RoleCleaner, seed.CleanerID), r.ID) {
		t.Fatal("completed request missing from ByStatus")
	}
}

func TestTransitionNotifications(t *testing.T) {
	env := newTestEnv(t)
	r := mustCreate(t, env, 30)

	if !hasNotification(env.Notify.ListFor(domain.RoleCleaner), domain.NotifRequestCreated, r.ID) {
		t.Fatal("create should notify cleaners")
	}
	env.Engine.Apply(env.Ctx, r.ID, engine.CleanerRef{ID: seed.CleanerID, Name: seed.CleanerName})
	if !hasNotification(env.Notify.ListFor(domain.RoleHost), domain.NotifRequestApplied, r.ID) {
		t.Fatal("apply should notify the host")
	}
	env.Engine.Confirm(env.Ctx, r.ID, seed.HostID)
	if !hasNotification(env.Notify.ListFor(domain.RoleCleaner), domain.NotifRequestConfirmed, r.ID) {
		t.Fatal("confirm should notify the cleaner")
	}

	// A failed transition must not notify anyone.
	before := len(env.Notify.ListFor(domain.RoleHost)) + len(env.Notify.ListFor(domain.RoleCleaner))
	env.Engine.Rate(env.Ctx, r.ID, 5, "")
	after := len(env.Notify.ListFor(domain.RoleHost)) + len(env.Notify.ListFor(domain.RoleCleaner))
	if after != before {
		t.Fatal("failed rate emitted a notification")
	}
}

func containsRequest(items []domain.ServiceRequest, id string) bool {
	for _, r := range items {
		if r.ID == id {
			return true
		}
	}
	return false
}

func hasNotification(items []domain.Notification, typ domain.NotificationType, ref string) bool {
	for _, n := range items {
		if n.Type == typ && n.RequestRef == ref {
			return true
		}
	}
	return false
}

func isInvalidTransition(err error) bool {
	var ite *fault.InvalidTransitionError
	return errors.As(err, &ite)
}

func TestConcurrentApplyAdmitsOneCleaner(t *testing.T) {
	env := newTestEnv(t)

	refs := []engine.CleanerRef{
		{ID: "cleaner-a", Name: "Ana"},
		{ID: "cleaner-b", Name: "Bo"},
	}
	for i := 0; i < 25; i++ {
		r := mustCreate(t, env, 60)

		var wg sync.WaitGroup
		errs := make([]error, len(refs))
		start := make(chan struct{})
		for j, ref := range refs {
			wg.Add(1)
			go func(j int, ref engine.CleanerRef) {
				defer wg.Done()
				<-start
				_, err := env.Engine.Apply(env.Ctx, r.ID, ref)
				errs[j] = err
			}(j, ref)
		}
		close(start)
		wg.Wait()

		var wins, conflicts int
		for _, err := range errs {
			switch {
			case err == nil:
				wins++
			case isInvalidTransition(err):
				conflicts++
			default:
				t.Fatalf("apply: %v", err)
			}
		}
		if wins != 1 || conflicts != 1 {
			t.Fatalf("wins=%d conflicts=%d, want exactly one of each", wins, conflicts)
		}

		got, err := env.Engine.ByID(r.ID)
		if err != nil {
			t.Fatalf("by id: %v", err)
		}
		if got.Status != domain.StatusApplied || got.CleanerID == nil {
			t.Fatalf("request after racing applies: %+v", got)
		}
		if *got.CleanerID != "cleaner-a" && *got.CleanerID != "cleaner-b" {
			t.Fatalf("cleaner id %q is neither contender", *got.CleanerID)
		}
	}
}
