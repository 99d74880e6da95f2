package services_test

import (
	"context"
	"testing"

	"mediaferry/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithTaskID(ctx, 42)
	ctx = services.WithTaskKind(ctx, "video")
	ctx = services.WithConnectionID(ctx, "conn-1")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.TaskIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected task id: %v %v", id, ok)
	}
	if kind, ok := services.TaskKindFromContext(ctx); !ok || kind != "video" {
		t.Fatalf("unexpected task kind: %v %v", kind, ok)
	}
	if cid, ok := services.ConnectionIDFromContext(ctx); !ok || cid != "conn-1" {
		t.Fatalf("unexpected connection id: %v %v", cid, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithTaskKind(ctx, "")
	ctx = services.WithConnectionID(ctx, "")
	if _, ok := services.TaskKindFromContext(ctx); ok {
		t.Fatal("expected no task kind value")
	}
	if _, ok := services.ConnectionIDFromContext(ctx); ok {
		t.Fatal("expected no connection id value")
	}
}
