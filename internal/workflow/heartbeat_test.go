package workflow

import (
	"context"
	"testing"
	"time"

	"mediaferry/internal/logging"
	"mediaferry/internal/queue"
	"mediaferry/internal/testsupport"
)

func TestHeartbeatKeepAliveRefreshesTask(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.Enqueue(t, store, queue.KindImage, queue.Payload{Data: "a.png", Dest: "c/a.webp"}, 1)
	claimed := testsupport.Claim(t, store, queue.KindImage)
	first := *claimed.LastHeartbeat

	hb := newHeartbeat(store, logging.NewNop(), 5*time.Millisecond, time.Hour)
	stop := hb.keepAlive(ctx, claimed.ID)
	time.Sleep(40 * time.Millisecond)
	stop()

	reloaded, err := store.GetByID(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if reloaded.LastHeartbeat == nil || !reloaded.LastHeartbeat.After(first) {
		t.Fatalf("heartbeat not refreshed: before=%v after=%v", first, reloaded.LastHeartbeat)
	}
}

func TestHeartbeatReclaimReturnsStaleTasks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	task := testsupport.Enqueue(t, store, queue.KindVideo, queue.Payload{Data: "a.mov", Dest: "c/a.mp4", FallbackDest: "c/a.webp"}, 2)
	testsupport.Claim(t, store, queue.KindVideo)

	if n, err := newHeartbeat(store, nil, 0, 0).reclaim(ctx); err != nil || n != 0 {
		t.Fatalf("disabled timeout should reclaim nothing, n=%d err=%v", n, err)
	}

	time.Sleep(5 * time.Millisecond)
	n, err := newHeartbeat(store, nil, 0, time.Millisecond).reclaim(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected one reclaimed task, n=%d err=%v", n, err)
	}
	reloaded, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if reloaded.Status == queue.StatusActive {
		t.Fatalf("stale task still active")
	}
}
