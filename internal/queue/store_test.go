package queue_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"mediaferry/internal/queue"
	"mediaferry/internal/testsupport"
)

func imagePayload(data string) queue.Payload {
	return queue.Payload{Data: data, Dest: "categories/a/" + data + ".webp"}
}

func TestEnqueueAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	task := testsupport.Enqueue(t, store, queue.KindImage, imagePayload("tmp-1"), 3)
	if task.ID == 0 {
		t.Fatal("expected task ID to be assigned")
	}
	if task.Status != queue.StatusInactive {
		t.Fatalf("expected inactive, got %s", task.Status)
	}
	if task.AttemptsAllowed != 3 || task.Attempts != 0 {
		t.Fatalf("unexpected attempt counters: %d/%d", task.Attempts, task.AttemptsAllowed)
	}

	fetched, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.Payload.Data != "tmp-1" || fetched.Payload.Dest != "categories/a/tmp-1.webp" {
		t.Fatalf("unexpected fetched task: %#v", fetched)
	}

	missing, err := store.GetByID(ctx, 9999)
	if err != nil {
		t.Fatalf("GetByID missing failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing task, got %#v", missing)
	}
}

func TestEnqueueValidatesPayload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, queue.KindImage, queue.Payload{Dest: "x"}, 1); err == nil {
		t.Fatal("expected error when data key missing")
	}
	if _, err := store.Enqueue(ctx, queue.KindVideo, queue.Payload{Data: "a", Dest: "b"}, 1); err == nil {
		t.Fatal("expected error when video fallback missing")
	}
	if _, err := store.Enqueue(ctx, queue.Kind("audio"), imagePayload("a"), 1); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestClaimNextIsPerKindAndOrdered(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.Enqueue(t, store, queue.KindImage, imagePayload("a"), 1)
	second := testsupport.Enqueue(t, store, queue.KindImage, imagePayload("b"), 1)
	testsupport.Enqueue(t, store, queue.KindUpload, queue.Payload{Data: "c", Dest: "d"}, 1)

	claimed, err := store.ClaimNext(ctx, queue.KindImage)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("expected first task, got %#v", claimed)
	}
	if claimed.Status != queue.StatusActive || claimed.Attempts != 1 {
		t.Fatalf("unexpected claimed state: %s attempts=%d", claimed.Status, claimed.Attempts)
	}
	if claimed.StartedAt == nil || claimed.LastHeartbeat == nil {
		t.Fatal("expected started_at and heartbeat to be set")
	}

	next, err := store.ClaimNext(ctx, queue.KindImage)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if next == nil || next.ID != second.ID {
		t.Fatalf("expected second task, got %#v", next)
	}

	none, err := store.ClaimNext(ctx, queue.KindImage)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if none != nil {
		t.Fatalf("expected no runnable image task, got %#v", none)
	}

	none, err = store.ClaimNext(ctx, queue.KindVideo)
	if err != nil || none != nil {
		t.Fatalf("expected no video task, got %#v err=%v", none, err)
	}
}

func TestFailDelaysUntilAttemptsExhausted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	task := testsupport.Enqueue(t, store, queue.KindImage, imagePayload("retry"), 2)

	claimed, err := store.ClaimNext(ctx, queue.KindImage)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	status, err := store.Fail(ctx, task.ID, errors.New("boom"), true, 0)
	if err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	if status != queue.StatusDelayed {
		t.Fatalf("expected delayed, got %s", status)
	}

	// zero backoff makes the delayed task runnable immediately
	claimed, err = store.ClaimNext(ctx, queue.KindImage)
	if err != nil || claimed == nil {
		t.Fatalf("expected delayed task to be claimable, err=%v", err)
	}
	if claimed.Attempts != 2 {
		t.Fatalf("expected second attempt, got %d", claimed.Attempts)
	}

	status, err = store.Fail(ctx, task.ID, errors.New("boom again"), true, 0)
	if err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	if status != queue.StatusFailed {
		t.Fatalf("expected failed after exhausting attempts, got %s", status)
	}

	final, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if final.ErrorMessage != "boom again" {
		t.Fatalf("expected error message recorded, got %q", final.ErrorMessage)
	}
}

func TestFailNonRetryableSkipsDelay(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	task := testsupport.Enqueue(t, store, queue.KindImage, imagePayload("fatal"), 5)
	if _, err := store.ClaimNext(ctx, queue.KindImage); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	status, err := store.Fail(ctx, task.ID, errors.New("bad input"), false, time.Second)
	if err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	if status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", status)
	}
}

func TestDelayedTaskWaitsForRunAfter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	task := testsupport.Enqueue(t, store, queue.KindImage, imagePayload("later"), 3)
	if _, err := store.ClaimNext(ctx, queue.KindImage); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if _, err := store.Fail(ctx, task.ID, errors.New("flaky"), true, time.Hour); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	claimed, err := store.ClaimNext(ctx, queue.KindImage)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed != nil {
		t.Fatalf("expected delayed task to wait, got %#v", claimed)
	}

	delayed, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if delayed.RunAfter == nil || delayed.RunAfter.Before(time.Now().Add(30*time.Minute)) {
		t.Fatalf("expected run_after about an hour out, got %v", delayed.RunAfter)
	}
}

func TestRetryDelayDoubles(t *testing.T) {
	base := 10 * time.Second
	cases := map[int]time.Duration{
		0: 10 * time.Second,
		1: 10 * time.Second,
		2: 20 * time.Second,
		3: 40 * time.Second,
	}
	for attempts, want := range cases {
		if got := queue.RetryDelay(base, attempts); got != want {
			t.Fatalf("RetryDelay(%d) = %v, want %v", attempts, got, want)
		}
	}
	if got := queue.RetryDelay(0, 3); got != 0 {
		t.Fatalf("expected zero delay for zero base, got %v", got)
	}
}

func TestCompleteAndProgress(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	task := testsupport.Enqueue(t, store, queue.KindUpload, queue.Payload{Data: "u", Dest: "home/x/u.bin"}, 1)
	if _, err := store.ClaimNext(ctx, queue.KindUpload); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if err := store.UpdateProgress(ctx, task.ID, 140, "copying"); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	mid, _ := store.GetByID(ctx, task.ID)
	if mid.ProgressPercent != 100 || mid.ProgressMessage != "copying" {
		t.Fatalf("unexpected progress: %v %q", mid.ProgressPercent, mid.ProgressMessage)
	}

	if err := store.Complete(ctx, task.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	done, _ := store.GetByID(ctx, task.ID)
	if done.Status != queue.StatusComplete || done.CompletedAt == nil {
		t.Fatalf("unexpected completed task: %#v", done)
	}

	if err := store.Complete(ctx, 4242); !errors.Is(err, queue.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestRestartRejectsActive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	task := testsupport.Enqueue(t, store, queue.KindImage, imagePayload("r"), 1)
	if _, err := store.ClaimNext(ctx, queue.KindImage); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if _, err := store.Restart(ctx, task.ID); !errors.Is(err, queue.ErrTaskActive) {
		t.Fatalf("expected ErrTaskActive, got %v", err)
	}

	if _, err := store.Fail(ctx, task.ID, errors.New("x"), true, 0); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	restarted, err := store.Restart(ctx, task.ID)
	if err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	if restarted.Status != queue.StatusInactive || restarted.Attempts != 0 || restarted.ErrorMessage != "" {
		t.Fatalf("unexpected restarted task: %#v", restarted)
	}

	if _, err := store.Restart(ctx, 777); !errors.Is(err, queue.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	task := testsupport.Enqueue(t, store, queue.KindImage, imagePayload("gone"), 1)
	if err := store.Remove(ctx, task.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := store.Remove(ctx, task.ID); !errors.Is(err, queue.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestReferencesSourceCountsFailedTasks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	video := testsupport.Enqueue(t, store, queue.KindVideo, queue.Payload{Data: "shared", Dest: "v.mp4", FallbackDest: "v.webp"}, 1)
	upload := testsupport.Enqueue(t, store, queue.KindUpload, queue.Payload{Data: "shared", Dest: "v.bin"}, 1)

	held, err := store.ReferencesSource(ctx, "shared", video.ID)
	if err != nil {
		t.Fatalf("ReferencesSource failed: %v", err)
	}
	if !held {
		t.Fatal("expected inactive upload task to hold the source")
	}

	if _, err := store.ClaimNext(ctx, queue.KindUpload); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if _, err := store.Fail(ctx, upload.ID, errors.New("x"), true, 0); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	held, _ = store.ReferencesSource(ctx, "shared", video.ID)
	if !held {
		t.Fatal("expected failed upload task to keep holding the source")
	}

	if err := store.Remove(ctx, upload.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	held, _ = store.ReferencesSource(ctx, "shared", video.ID)
	if held {
		t.Fatal("expected no other holder after removal")
	}

	keys, err := store.HeldSources(ctx)
	if err != nil {
		t.Fatalf("HeldSources failed: %v", err)
	}
	if _, ok := keys["shared"]; !ok {
		t.Fatalf("expected video task to hold shared, got %v", keys)
	}
}

func TestReclaimStaleAndResetActive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	task := testsupport.Enqueue(t, store, queue.KindImage, imagePayload("stale"), 2)
	if _, err := store.ClaimNext(ctx, queue.KindImage); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}

	reclaimed, err := store.ReclaimStale(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ReclaimStale failed: %v", err)
	}
	if reclaimed != 0 {
		t.Fatalf("expected fresh heartbeat to survive, reclaimed %d", reclaimed)
	}

	reclaimed, err = store.ReclaimStale(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStale failed: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("expected one reclaimed task, got %d", reclaimed)
	}

	if _, err := store.ClaimNext(ctx, queue.KindImage); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	reset, err := store.ResetActive(ctx)
	if err != nil {
		t.Fatalf("ResetActive failed: %v", err)
	}
	if reset != 1 {
		t.Fatalf("expected one reset task, got %d", reset)
	}
	final, _ := store.GetByID(ctx, task.ID)
	if final.Status != queue.StatusInactive {
		t.Fatalf("expected inactive after reset, got %s", final.Status)
	}
}

func TestListAndClearCompleted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.Enqueue(t, store, queue.KindImage, imagePayload("a"), 1)
	second := testsupport.Enqueue(t, store, queue.KindImage, imagePayload("b"), 1)
	if _, err := store.ClaimNext(ctx, queue.KindImage); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(all))
	}

	inactive, err := store.List(ctx, queue.StatusInactive)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(inactive) != 1 || inactive[0].ID != second.ID {
		t.Fatalf("unexpected inactive list: %#v", inactive)
	}

	if err := store.Complete(ctx, first.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	removed, err := store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("ClearCompleted failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed task, got %d", removed)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[queue.StatusComplete] != 0 || stats[queue.StatusInactive] != 1 {
		t.Fatalf("unexpected stats after clear: %+v", stats)
	}
}

func TestReopenKeepsTasks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	task := testsupport.Enqueue(t, store, queue.KindImage, imagePayload("kept"), 1)

	reopened, err := queue.OpenPath(store.Path())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	fetched, err := reopened.GetByID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.Payload.Data != "kept" {
		t.Fatalf("expected task to survive reopen, got %#v", fetched)
	}
}

func TestPromoteDelayed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	task := testsupport.Enqueue(t, store, queue.KindImage, imagePayload("promote"), 3)
	if _, err := store.ClaimNext(ctx, queue.KindImage); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if _, err := store.Fail(ctx, task.ID, errors.New("flaky"), true, time.Minute); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	promoted, err := store.PromoteDelayed(ctx, time.Now())
	if err != nil {
		t.Fatalf("PromoteDelayed failed: %v", err)
	}
	if promoted != 0 {
		t.Fatalf("expected nothing promoted before backoff elapses, got %d", promoted)
	}

	promoted, err = store.PromoteDelayed(ctx, time.Now().Add(2*time.Minute))
	if err != nil {
		t.Fatalf("PromoteDelayed failed: %v", err)
	}
	if promoted != 1 {
		t.Fatalf("expected one promoted task, got %d", promoted)
	}
	fetched, _ := store.GetByID(ctx, task.ID)
	if fetched.Status != queue.StatusInactive || fetched.Attempts != 1 {
		t.Fatalf("unexpected promoted task: %s attempts=%d", fetched.Status, fetched.Attempts)
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	path := store.Path()
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("read user_version: %v", err)
	}
	if version < 1 {
		t.Fatalf("expected migrated database, user_version=%d", version)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("bump user_version: %v", err)
	}
	_ = db.Close()

	if _, err := queue.OpenPath(path); !errors.Is(err, queue.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}
