package world

import (
	"encoding/json"

	"github.com/google/uuid"

	"raidcraft.ai/internal/protocol"
)

type JoinRequest struct {
	Name string
	// PlayerID pins the player id; replays use the recorded one.
	PlayerID string
	// Observer sessions only receive the event stream.
	Observer bool
	Spawn    *Vec3i
	Out      chan []byte
	Resp     chan JoinResponse
}

type JoinResponse struct {
	SessionID string
	PlayerID  string
	Spawn     Vec3i
	Welcome   protocol.WelcomeMsg
}

type observer struct {
	sessionID string
	playerID  string
	out       chan []byte
}

func (w *World) welcome(sessionID, playerID string) protocol.WelcomeMsg {
	m := w.catalogs.Materials
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		PlayerID:        playerID,
		WorldParams: protocol.WorldParams{
			WorldID:    w.cfg.ID,
			TickRateHz: w.cfg.TickRateHz,
			DayTicks:   w.cfg.DayTicks,
			Seed:       w.cfg.Seed,
		},
		Catalogs: protocol.CatalogDigests{
			MaterialPalette: protocol.PaletteDigest{Digest: m.PaletteDigest, Count: len(m.Palette)},
			AgentsDigest:    w.catalogs.Agents.Digest,
		},
	}
}

func (w *World) handleObserverJoin(req JoinRequest) {
	sid := uuid.NewString()
	if req.Out != nil {
		w.observers[sid] = &observer{sessionID: sid, out: req.Out}
	}
	if req.Resp != nil {
		req.Resp <- JoinResponse{SessionID: sid, Welcome: w.welcome(sid, "")}
	}
}

func (w *World) joinPlayer(req JoinRequest) JoinResponse {
	sid := uuid.NewString()
	pid := req.PlayerID
	if pid == "" {
		pid = uuid.NewString()
	}
	pos := Vec3i{Y: w.cfg.GroundY}
	if req.Spawn != nil && w.inBounds(*req.Spawn) {
		pos = *req.Spawn
	}
	w.addPlayer(pid, req.Name, pos)
	if req.Out != nil {
		w.observers[sid] = &observer{sessionID: sid, playerID: pid, out: req.Out}
	}
	w.logger.Printf("player joined: %s (%s) at %s", req.Name, pid, pos)
	return JoinResponse{SessionID: sid, PlayerID: pid, Spawn: pos, Welcome: w.welcome(sid, pid)}
}

// handleLeave drops a session and its player. It returns the player id, if any.
// Replayed leaves carry player ids instead of session ids.
func (w *World) handleLeave(sessionID string) string {
	o := w.observers[sessionID]
	if o == nil {
		if w.removePlayer(sessionID) {
			return sessionID
		}
		return ""
	}
	delete(w.observers, sessionID)
	if o.playerID != "" && w.removePlayer(o.playerID) {
		return o.playerID
	}
	return ""
}

// flushOutbox sends this tick's messages to every session. Direct chat goes
// only to the addressed player.
func (w *World) flushOutbox() {
	msgs := w.drainOutbox()
	if len(msgs) == 0 || len(w.observers) == 0 {
		return
	}
	for _, msg := range msgs {
		b, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		to := ""
		switch m := msg.(type) {
		case protocol.ChatMsg:
			to = m.To
		case protocol.ErrorMsg:
			to = m.To
		}
		for _, o := range w.observers {
			if to != "" && o.playerID != to {
				continue
			}
			sendLatest(o.out, b)
		}
	}
}

func (w *World) ObserverCount() int { return len(w.observers) }
