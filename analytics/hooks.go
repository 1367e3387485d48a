package analytics

import (
	"context"

	"leaderbot/core"
	"leaderbot/engine"
)

// Hook receives cycle events.
type Hook interface {
	OnEvent(ctx context.Context, e core.Event)
}

// BridgeHook fans one event source out to multiple hooks.
type BridgeHook struct{ hooks []Hook }

func NewBridge(hooks ...Hook) *BridgeHook { return &BridgeHook{hooks: hooks} }

func (b *BridgeHook) OnEvent(ctx context.Context, e core.Event) {
	for _, h := range b.hooks {
		h.OnEvent(ctx, e)
	}
}

// Attach subscribes h to every event of bus and returns the detach func.
func Attach(bus *engine.EventBus, h Hook) func() {
	return bus.SubscribeAll(h.OnEvent)
}
