package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"housevault/internal/metrics"
	"housevault/internal/persistence/store"
	"housevault/internal/protocol"
	"housevault/internal/sim/game"
	"housevault/internal/sim/player"
	"housevault/internal/sim/tuning"
)

const badge = "4539578763621486"

type result struct {
	Type   string                  `json:"type"`
	ReqID  string                  `json:"req_id"`
	OK     bool                    `json:"ok"`
	Error  *protocol.ErrorResponse `json:"error"`
	Result json.RawMessage         `json:"result"`
}

func newTestServer(t *testing.T) (*game.Service, string) {
	t.Helper()
	st := store.NewMemory()
	if err := st.PutBadge(context.Background(), player.Badge{Key: badge}); err != nil {
		t.Fatalf("seed badge: %v", err)
	}
	svc := game.New(game.Options{
		Store:   st,
		Tuning:  tuning.NewLive(tuning.Defaults()),
		Metrics: metrics.NewRegistry("housevault_"),
	})
	srv := httptest.NewServer(NewServer(svc, nil).Handler())
	t.Cleanup(srv.Close)
	return svc, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func hello(t *testing.T, conn *websocket.Conn, playerID, token string) {
	t.Helper()
	err := conn.WriteJSON(protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerID:        playerID,
		Token:           token,
	})
	if err != nil {
		t.Fatalf("write hello: %v", err)
	}
}

func request(t *testing.T, conn *websocket.Conn, req protocol.RequestMsg) result {
	t.Helper()
	req.Type = protocol.TypeRequest
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("write %s: %v", req.Op, err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var res result
	if err := conn.ReadJSON(&res); err != nil {
		t.Fatalf("read result for %s: %v", req.Op, err)
	}
	if res.Type != protocol.TypeResult || res.ReqID != req.ReqID {
		t.Fatalf("result envelope = %+v", res)
	}
	return res
}

func TestHandshakeAndRequests(t *testing.T) {
	svc, url := newTestServer(t)
	ctx := context.Background()
	p, err := svc.Register(ctx, "alice", badge)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	h, err := svc.CreateHouse(ctx, "alice")
	if err != nil {
		t.Fatalf("create house: %v", err)
	}

	conn := dial(t, url)
	hello(t, conn, "alice", p.Token)
	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	if welcome.Type != protocol.TypeWelcome || welcome.PlayerID != "alice" || welcome.HouseID != h.ID {
		t.Fatalf("welcome = %+v", welcome)
	}
	if welcome.Palette.Digest == "" || welcome.Palette.Count == 0 {
		t.Fatalf("palette = %+v", welcome.Palette)
	}

	res := request(t, conn, protocol.RequestMsg{ReqID: "1", Op: protocol.OpVault})
	if !res.OK {
		t.Fatalf("vault failed: %+v", res.Error)
	}
	var vault protocol.VaultResponse
	if err := json.Unmarshal(res.Result, &vault); err != nil {
		t.Fatalf("decode vault: %v", err)
	}
	if vault.Dollars != 100 {
		t.Fatalf("dollars = %d", vault.Dollars)
	}

	res = request(t, conn, protocol.RequestMsg{ReqID: "2", Op: protocol.OpLook})
	if res.OK || res.Error == nil || res.Error.Code != protocol.ErrConflict {
		t.Fatalf("look outside = %+v", res)
	}

	res = request(t, conn, protocol.RequestMsg{ReqID: "3", Op: protocol.OpEnter, HouseID: h.ID, Compressed: true})
	if !res.OK {
		t.Fatalf("enter failed: %+v", res.Error)
	}
	var view protocol.ViewResponse
	if err := json.Unmarshal(res.Result, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.HouseID != h.ID || view.PlayerLocation != [2]int{0, 15} {
		t.Fatalf("view = %+v", view)
	}

	res = request(t, conn, protocol.RequestMsg{ReqID: "4", Op: protocol.OpMove, Direction: "right"})
	if !res.OK {
		t.Fatalf("move failed: %+v", res.Error)
	}
	if err := json.Unmarshal(res.Result, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.PlayerLocation != [2]int{1, 15} {
		t.Fatalf("after move location = %v", view.PlayerLocation)
	}

	res = request(t, conn, protocol.RequestMsg{ReqID: "5", Op: "DANCE"})
	if res.OK || res.Error.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("unknown op = %+v", res)
	}

	res = request(t, conn, protocol.RequestMsg{ReqID: "6", Op: protocol.OpLeave})
	if !res.OK {
		t.Fatalf("leave failed: %+v", res.Error)
	}
	if _, err := svc.Occupancy().SessionOf(ctx, "alice"); err == nil {
		t.Fatalf("session survived LEAVE")
	}
}

func TestHandshakeRejectsBadToken(t *testing.T) {
	svc, url := newTestServer(t)
	if _, err := svc.Register(context.Background(), "bob", badge); err != nil {
		t.Fatalf("register: %v", err)
	}
	conn := dial(t, url)
	hello(t, conn, "bob", "not-the-token")
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy close, got %v", err)
	}
}

func TestHandshakeRejectsWrongVersion(t *testing.T) {
	_, url := newTestServer(t)
	conn := dial(t, url)
	err := conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: "0.1", PlayerID: "x", Token: "y"})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy close, got %v", err)
	}
}
