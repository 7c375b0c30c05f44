package world

import (
	"raidcraft.ai/internal/protocol"
	"raidcraft.ai/internal/sim/raid"
)

type anchorPort struct{ w *World }

func (a anchorPort) Pos() Vec3i {
	a.w.mu.RLock()
	defer a.w.mu.RUnlock()
	if a.w.anchor == nil {
		return Vec3i{}
	}
	return *a.w.anchor
}

func (a anchorPort) Placed() bool {
	a.w.mu.RLock()
	defer a.w.mu.RUnlock()
	return a.w.anchor != nil && a.w.blockIDLocked(*a.w.anchor) == a.w.ids.anchor
}

func (w *World) Broadcast(text string) {
	w.enqueue(protocol.ChatMsg{Type: protocol.TypeChat, Tick: w.tick.Load(), Text: text})
}

func (w *World) SendTo(playerID, text string) {
	w.enqueue(protocol.ChatMsg{Type: protocol.TypeChat, Tick: w.tick.Load(), To: playerID, Text: text})
}

func (w *World) PlaySound(pos Vec3i, cue raid.Cue) {
	w.enqueue(protocol.SoundMsg{Type: protocol.TypeSound, Tick: w.tick.Load(), Cue: string(cue), Pos: pos.ToArray()})
}

func (w *World) EmitProgress(ev raid.ProgressEvent) {
	w.enqueue(protocol.ProgressMsg{
		Type:      protocol.TypeProgress,
		Tick:      w.tick.Load(),
		ChannelID: ev.ChannelID,
		Pos:       ev.Pos.ToArray(),
		Stage:     ev.Stage,
	})
}
