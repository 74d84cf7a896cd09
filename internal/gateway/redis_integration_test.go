//go:build integration

package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"
)

func TestRedisStreamRoundTrip(t *testing.T) {
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("redis endpoint: %v", err)
	}

	rs, err := NewRedisStream(ctx, "redis://"+endpoint, "", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer rs.Close()

	subCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	events := rs.Subscribe(subCtx)

	// XREAD with "$" only sees entries added after the call blocks.
	time.Sleep(300 * time.Millisecond)
	if err := rs.Publish(ctx, Event{Type: EventRoundCompleted, RoundID: "r42", Status: "ok"}); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		if ev.RoundID != "r42" || ev.Type != EventRoundCompleted {
			t.Errorf("got %+v", ev)
		}
	case <-subCtx.Done():
		t.Fatal("no event received")
	}
}
