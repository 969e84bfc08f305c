// internal/delivery/bridge.go

// Package delivery mirrors agent lifecycle events into the owning session's
// debug log, where the push queue carries them to live stream consumers.
package delivery

import (
	"fmt"

	"github.com/user/songforge/internal/bus"
	"github.com/user/songforge/internal/state"
	"github.com/user/songforge/internal/types"
)

// Bridge subscribes to the thought, action and asset events and rewrites each
// one as a human-readable debug line. Subscriptions run sync so the lines
// land in emission order.
type Bridge struct {
	tracker *state.Tracker
	subs    []*bus.Subscription
}

// Attach registers the bridge's subscribers on b.
func Attach(b *bus.Bus, tracker *state.Tracker) *Bridge {
	br := &Bridge{tracker: tracker}
	br.subs = []*bus.Subscription{
		b.Register(types.EventThoughtCompleted, bus.HandlerFunc(br.onThought), bus.ModeSync),
		b.Register(types.EventActionCompleted, bus.HandlerFunc(br.onActionCompleted), bus.ModeSync),
		b.Register(types.EventActionFailed, bus.HandlerFunc(br.onActionFailed), bus.ModeSync),
		b.Register(types.EventAssetCreated, bus.HandlerFunc(br.onAsset), bus.ModeSync),
		b.Register(types.EventAssetFinalized, bus.HandlerFunc(br.onAsset), bus.ModeSync),
	}
	return br
}

// Detach removes the bridge's subscribers from b.
func (br *Bridge) Detach(b *bus.Bus) {
	for _, sub := range br.subs {
		b.Unregister(sub)
	}
	br.subs = nil
}

func (br *Bridge) onThought(ev types.Event) error {
	return br.tracker.AddDebugLog(ev.SessionID, "💭 思考: "+payloadString(ev, "thought"))
}

func (br *Bridge) onActionCompleted(ev types.Event) error {
	return br.tracker.AddDebugLog(ev.SessionID, fmt.Sprintf("✅ 行动完成: %s -> %s",
		payloadString(ev, "action_type"), payloadString(ev, "result")))
}

func (br *Bridge) onActionFailed(ev types.Event) error {
	return br.tracker.AddDebugLog(ev.SessionID, fmt.Sprintf("❌ 行动失败: %s -> %s",
		payloadString(ev, "action_type"), payloadString(ev, "error")))
}

func (br *Bridge) onAsset(ev types.Event) error {
	return br.tracker.AddDebugLog(ev.SessionID, fmt.Sprintf("📄 资产创建: %s (%s)",
		payloadString(ev, "asset_type"), payloadString(ev, "asset_id")))
}

func payloadString(ev types.Event, key string) string {
	if v, ok := ev.Payload[key].(string); ok {
		return v
	}
	return ""
}
