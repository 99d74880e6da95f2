package testsupport

import (
	"context"
	"testing"

	"mediaferry/internal/config"
	"mediaferry/internal/queue"
)

// MustOpenStore opens the task database under cfg and closes it when the
// test ends.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open task store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// Enqueue adds an inactive task allowed attempts runs.
func Enqueue(t testing.TB, store *queue.Store, kind queue.Kind, payload queue.Payload, attempts int) *queue.Task {
	t.Helper()
	task, err := store.Enqueue(context.Background(), kind, payload, attempts)
	if err != nil {
		t.Fatalf("enqueue %s task: %v", kind, err)
	}
	return task
}

// Claim moves the next runnable task of kind to active and fails the test
// when there is none.
func Claim(t testing.TB, store *queue.Store, kind queue.Kind) *queue.Task {
	t.Helper()
	task, err := store.ClaimNext(context.Background(), kind)
	if err != nil {
		t.Fatalf("claim %s task: %v", kind, err)
	}
	if task == nil {
		t.Fatalf("claim %s task: nothing runnable", kind)
	}
	return task
}
