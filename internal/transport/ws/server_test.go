package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"raidcraft.ai/internal/protocol"
	"raidcraft.ai/internal/sim/catalogs"
	"raidcraft.ai/internal/sim/raid"
	"raidcraft.ai/internal/sim/world"
)

func startWorld(t *testing.T) (*world.World, string) {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	w, err := world.New(world.WorldConfig{ID: "ws", TickRateHz: 50, StatusEveryTicks: 5}, cats, raid.DefaultConfig(), world.Options{})
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Run(ctx) }()
	t.Cleanup(cancel)

	srv := httptest.NewServer(NewServer(w, nil).Handler())
	t.Cleanup(srv.Close)
	return w, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string, hello protocol.HelloMsg) (*websocket.Conn, protocol.WelcomeMsg) {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := conn.WriteJSON(hello); err != nil {
		t.Fatalf("hello: %v", err)
	}
	var welcome protocol.WelcomeMsg
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	return conn, welcome
}

// readUntil reads frames until one has the wanted type.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) []byte {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		_, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		base, _ := protocol.DecodeBase(b)
		if base.Type == typ {
			return b
		}
	}
	t.Fatalf("no %s frame", typ)
	return nil
}

func TestServer_ObserverReceivesStatus(t *testing.T) {
	_, url := startWorld(t)
	conn, welcome := dial(t, url, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, Role: protocol.RoleObserver, Name: "dash"})
	if welcome.SessionID == "" || welcome.PlayerID != "" {
		t.Fatalf("welcome: %+v", welcome)
	}
	if welcome.Catalogs.MaterialPalette.Count == 0 {
		t.Fatalf("welcome missing catalog digests")
	}

	var st protocol.StatusMsg
	if err := json.Unmarshal(readUntil(t, conn, protocol.TypeStatus), &st); err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Phase != string(raid.PhaseIdle) || st.RaidLevel != raid.MinLevel {
		t.Fatalf("status: %+v", st)
	}
}

func TestServer_PlayerPlacesAnchor(t *testing.T) {
	w, url := startWorld(t)
	spawn := [3]int{4, 64, 0}
	conn, welcome := dial(t, url, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, Role: protocol.RolePlayer, Name: "alice", Spawn: &spawn})
	if welcome.PlayerID == "" {
		t.Fatalf("player id missing")
	}

	// Invalid frames are answered with an error, not a disconnect.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ACT","protocol_version":"1.0","kind":"PLACE"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	readUntil(t, conn, protocol.TypeError)

	act := protocol.ActMsg{Type: protocol.TypeAct, ProtocolVersion: protocol.Version, Kind: protocol.ActPlace, Pos: [3]int{0, 64, 0}, Block: "NEXUS"}
	if err := conn.WriteJSON(act); err != nil {
		t.Fatalf("act: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		if w.Block(world.Vec3i{Y: 64}) == "NEXUS" {
			break
		}
		select {
		case <-ctx.Done():
			t.Fatalf("anchor never placed")
		case <-time.After(20 * time.Millisecond):
		}
	}
	if err := w.ForceStartRaid(ctx); err != nil {
		t.Fatalf("force start: %v", err)
	}
	readUntil(t, conn, protocol.TypeChat)
}
