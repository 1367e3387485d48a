package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"leaderbot/core"
)

func TestEventBusSync(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	unsub := bus.Subscribe(core.EventCycleStarted, func(ctx context.Context, e core.Event) { count++ })
	bus.Publish(context.Background(), core.NewCycleStarted("r", 1, 2024))
	bus.Publish(context.Background(), core.NewCycleSucceeded("r", 1, 2024, time.Second))
	if count != 1 {
		t.Fatalf("want 1 got %d", count)
	}
	unsub()
	bus.Publish(context.Background(), core.NewCycleStarted("r", 1, 2024))
	if count != 1 {
		t.Fatalf("unsubscribed handler was called, count %d", count)
	}
}

func TestEventBusAsync(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	defer bus.Close()
	ch := make(chan struct{})
	bus.Subscribe(core.EventCycleFailed, func(ctx context.Context, e core.Event) { close(ch) })
	bus.Publish(context.Background(), core.NewCycleFailed("r", 1, 2024, core.StageFetching, time.Second, errors.New("x")))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestEventBusAsyncDropsWhenFull(t *testing.T) {
	bus := NewEventBus(DispatchAsync, WithQueueSize(1), WithWorkers(1))
	block := make(chan struct{})
	var handled atomic.Int64
	bus.Subscribe(core.EventCycleStarted, func(ctx context.Context, e core.Event) {
		<-block
		handled.Add(1)
	})
	for i := 0; i < 10; i++ {
		bus.Publish(context.Background(), core.NewCycleStarted("r", 1, 2024))
	}
	if bus.Dropped() == 0 {
		t.Fatal("expected dropped events")
	}
	close(block)
	bus.Close()
	if handled.Load()+bus.Dropped() != 10 {
		t.Fatalf("handled %d dropped %d", handled.Load(), bus.Dropped())
	}
}

func TestEventBusSubscribeAll(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	seen := map[core.EventType]int{}
	unsub := bus.SubscribeAll(func(ctx context.Context, e core.Event) { seen[e.Type]++ })
	bus.Publish(context.Background(), core.NewBaselineSaved("r", 1, 2024, 3))
	bus.Publish(context.Background(), core.NewChangesDetected("r", 1, 2024, core.ChangeSet{}))
	unsub()
	bus.Publish(context.Background(), core.NewBaselineSaved("r", 1, 2024, 3))
	if seen[core.EventBaselineSaved] != 1 || seen[core.EventChangesDetected] != 1 {
		t.Fatalf("unexpected deliveries %v", seen)
	}
}
