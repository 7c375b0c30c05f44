package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"raidcraft.ai/internal/protocol"
	"raidcraft.ai/internal/sim/world"
)

// Server streams raid events to observers and accepts player actions.
type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		resp, out := s.handshake(r.Context(), conn)
		if resp.SessionID == "" {
			return
		}
		defer s.world.Leave(resp.SessionID)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop. Observers only keep the connection alive.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if resp.PlayerID == "" {
				continue
			}
			base, err := protocol.ValidateClient(msg)
			if err != nil || base.Type != protocol.TypeAct {
				s.sendError(out, protocol.ErrProtoBadRequest, "expected a valid ACT")
				continue
			}
			var act protocol.ActMsg
			if err := json.Unmarshal(msg, &act); err != nil {
				continue
			}
			if act.ProtocolVersion != protocol.Version {
				s.sendError(out, protocol.ErrProtoBadRequest, "bad protocol_version")
				continue
			}
			ok := s.world.Submit(world.BlockEdit{
				PlayerID: resp.PlayerID,
				Kind:     act.Kind,
				Pos:      world.Vec3i{X: act.Pos[0], Y: act.Pos[1], Z: act.Pos[2]},
				Block:    act.Block,
			})
			if !ok {
				s.sendError(out, protocol.ErrWorldBusy, "action queue full")
			}
		}
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (world.JoinResponse, chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return world.JoinResponse{}, nil
	}

	if _, err := protocol.ValidateClient(msg); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return world.JoinResponse{}, nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil || hello.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return world.JoinResponse{}, nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return world.JoinResponse{}, nil
	}

	out := make(chan []byte, 256)
	req := world.JoinRequest{Name: hello.Name, Observer: hello.Role == protocol.RoleObserver, Out: out}
	if hello.Spawn != nil {
		p := world.Vec3i{X: hello.Spawn[0], Y: hello.Spawn[1], Z: hello.Spawn[2]}
		req.Spawn = &p
	}

	jctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	resp, err := s.world.Join(jctx, req)
	if err != nil {
		s.log.Printf("join %s: %v", hello.Name, err)
		return world.JoinResponse{}, nil
	}
	if err := writeJSON(conn, resp.Welcome); err != nil {
		s.world.Leave(resp.SessionID)
		return world.JoinResponse{}, nil
	}
	s.log.Printf("session %s joined as %s (%s)", resp.SessionID, hello.Role, hello.Name)
	return resp, out
}

func (s *Server) sendError(out chan []byte, code, message string) {
	b, err := json.Marshal(protocol.ErrorMsg{Type: protocol.TypeError, Code: code, Message: message})
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
