package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"housevault/internal/metrics"
	"housevault/internal/persistence/store"
	"housevault/internal/protocol"
	"housevault/internal/sim/game"
	"housevault/internal/sim/player"
	"housevault/internal/sim/tuning"
)

const (
	badge    = "4539578763621486"
	adminKey = "let-me-in"
)

type client struct {
	t   *testing.T
	url string
}

func newTestServer(t *testing.T) (*client, *game.Service, *metrics.Registry) {
	t.Helper()
	reg := metrics.NewRegistry("housevault_")
	st := store.NewMemory()
	if err := st.PutBadge(context.Background(), player.Badge{Key: badge, MAC: "aa:bb:cc:00:00:01"}); err != nil {
		t.Fatalf("seed badge: %v", err)
	}
	svc := game.New(game.Options{
		Store:   st,
		Tuning:  tuning.NewLive(tuning.Defaults()),
		Metrics: reg,
	})
	srv := httptest.NewServer(NewServer(svc, Config{AdminKey: adminKey, Registry: reg}).Handler())
	t.Cleanup(srv.Close)
	return &client{t: t, url: srv.URL}, svc, reg
}

// do sends body (marshalled when not nil) and decodes the reply into out.
func (c *client) do(method, path string, headers map[string]string, body, out any) int {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.url+path, rd)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (c *client) register(id string) map[string]string {
	c.t.Helper()
	var reg protocol.RegisterResponse
	if code := c.do(http.MethodPost, "/api/player/"+id, map[string]string{HeaderRegisterToken: badge}, nil, &reg); code != http.StatusCreated {
		c.t.Fatalf("register %s status = %d", id, code)
	}
	return map[string]string{HeaderAPIToken: reg.Token}
}

func TestPlayerLifecycle(t *testing.T) {
	c, _, _ := newTestServer(t)

	var e protocol.ErrorResponse
	if code := c.do(http.MethodPost, "/api/player/alice", map[string]string{HeaderRegisterToken: "1234"}, nil, &e); code != http.StatusUnauthorized || e.Code != protocol.ErrUnauthorized {
		t.Fatalf("bad key = %d %+v", code, e)
	}
	auth := c.register("alice")
	if code := c.do(http.MethodPost, "/api/player/alice", map[string]string{HeaderRegisterToken: badge}, nil, &e); code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d", code)
	}

	if code := c.do(http.MethodGet, "/api/player/alice", map[string]string{HeaderAPIToken: "nope"}, nil, &e); code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d", code)
	}
	var p protocol.PlayerResponse
	if code := c.do(http.MethodGet, "/api/player/alice", auth, nil, &p); code != http.StatusOK {
		t.Fatalf("get player status = %d", code)
	}
	if p.PlayerID != "alice" || p.CreatedOn == "" || p.HouseID != "" {
		t.Fatalf("player = %+v", p)
	}

	var h protocol.HouseResponse
	if code := c.do(http.MethodPost, "/api/house/alice", auth, nil, &h); code != http.StatusCreated {
		t.Fatalf("create house status = %d", code)
	}
	var v protocol.VaultResponse
	if code := c.do(http.MethodGet, "/api/house/alice/vault", auth, nil, &v); code != http.StatusOK {
		t.Fatalf("vault status = %d", code)
	}
	if v.Dollars != 100 || v.Walls != 10 {
		t.Fatalf("vault = %+v", v)
	}

	var m protocol.MessageResponse
	if code := c.do(http.MethodDelete, "/api/player/alice", auth, nil, &m); code != http.StatusOK {
		t.Fatalf("delete status = %d", code)
	}
	if code := c.do(http.MethodGet, "/api/player/alice", auth, nil, &e); code != http.StatusNotFound {
		t.Fatalf("deleted player status = %d", code)
	}
}

func TestEditAndPlayRoutes(t *testing.T) {
	c, _, reg := newTestServer(t)
	auth := c.register("alice")
	var h struct {
		House struct {
			HouseID string `json:"house_id"`
		} `json:"house"`
	}
	c.do(http.MethodPost, "/api/house/alice", auth, nil, &h)
	houseID := h.House.HouseID
	if houseID == "" {
		t.Fatalf("no house id in create response")
	}

	var e protocol.ErrorResponse
	if code := c.do(http.MethodPost, "/api/edit-house/alice/build", auth, protocol.BuildRequest{X: 10, Y: 10, MaterialType: "Wooden_Wall"}, &e); code != http.StatusForbidden {
		t.Fatalf("build from outside status = %d %+v", code, e)
	}

	var view protocol.ViewResponse
	if code := c.do(http.MethodPost, "/api/game/alice/enter?compressed=true", auth, protocol.EnterRequest{HouseID: houseID}, &view); code != http.StatusOK {
		t.Fatalf("enter status = %d", code)
	}
	if view.Format != "compressed" || view.PlayerLocation != [2]int{0, 15} {
		t.Fatalf("enter view = %+v", view)
	}

	if code := c.do(http.MethodPost, "/api/edit-house/alice/build", auth, protocol.BuildRequest{X: 10, Y: 10, MaterialType: "Wooden_Wall"}, &view); code != http.StatusOK {
		t.Fatalf("build status = %d", code)
	}
	if view.LuckyNumbers == "" {
		t.Fatalf("build returned no lucky numbers")
	}
	if got := reg.Counter("house_edits_total", map[string]string{"op": "build", "result": "success"}); got != 1 {
		t.Fatalf("build counter = %v", got)
	}
	if code := c.do(http.MethodPost, "/api/edit-house/alice/move-vault", auth, protocol.CoordRequest{X: 5, Y: 14}, &e); code != http.StatusBadRequest || e.Code != protocol.ErrBlocked {
		t.Fatalf("vault onto wall = %d %+v", code, e)
	}
	if code := c.do(http.MethodDelete, "/api/edit-house/alice/clear", auth, protocol.CoordRequest{X: 10, Y: 10}, &view); code != http.StatusOK {
		t.Fatalf("clear status = %d", code)
	}

	// Schema violations surface as protocol errors.
	if code := c.do(http.MethodPost, "/api/edit-house/alice/move-vault", auth, map[string]int{"x": 31, "y": 0}, &e); code != http.StatusBadRequest || e.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("out of range = %d %+v", code, e)
	}
	if code := c.do(http.MethodPost, "/api/game/alice/move", auth, protocol.MoveRequest{Direction: "sideways"}, &e); code != http.StatusBadRequest {
		t.Fatalf("bad direction status = %d", code)
	}

	if code := c.do(http.MethodPost, "/api/game/alice/move", auth, protocol.MoveRequest{Direction: "right"}, &view); code != http.StatusOK {
		t.Fatalf("move status = %d", code)
	}
	if view.PlayerLocation != [2]int{1, 15} || view.Format != "explicit" {
		t.Fatalf("move view = %+v", view)
	}
	if code := c.do(http.MethodGet, "/api/game/alice/look?compressed=1", auth, nil, &view); code != http.StatusOK || view.Format != "compressed" {
		t.Fatalf("look = %d %+v", code, view)
	}
	if code := c.do(http.MethodGet, "/api/game/alice/look?compressed=maybe", auth, nil, &e); code != http.StatusBadRequest {
		t.Fatalf("bad compressed flag status = %d", code)
	}

	var m protocol.MessageResponse
	if code := c.do(http.MethodPost, "/api/game/alice/leave", auth, nil, &m); code != http.StatusOK {
		t.Fatalf("leave status = %d", code)
	}
	if code := c.do(http.MethodGet, "/api/game/alice/look", auth, nil, &e); code != http.StatusConflict {
		t.Fatalf("look outside status = %d", code)
	}
}

func TestShopAndFindHouse(t *testing.T) {
	c, _, _ := newTestServer(t)
	alice := c.register("alice")
	bob := c.register("bob")
	c.do(http.MethodPost, "/api/house/alice", alice, nil, nil)
	var h struct {
		House struct {
			HouseID string `json:"house_id"`
		} `json:"house"`
	}
	c.do(http.MethodPost, "/api/house/bob", bob, nil, &h)

	var tr protocol.TradeResponse
	if code := c.do(http.MethodPost, "/api/shop/alice/purchase", alice, protocol.TradeRequest{Material: "Steel_Wall", Quantity: 2}, &tr); code != http.StatusOK {
		t.Fatalf("purchase status = %d", code)
	}
	if tr.Total != 100 || tr.Dollars != 0 {
		t.Fatalf("purchase = %+v", tr)
	}
	var e protocol.ErrorResponse
	if code := c.do(http.MethodPost, "/api/shop/alice/purchase", alice, protocol.TradeRequest{Material: "Wooden_Wall"}, &e); code != http.StatusBadRequest || e.Code != protocol.ErrNoResource {
		t.Fatalf("broke purchase = %d %+v", code, e)
	}
	if code := c.do(http.MethodPost, "/api/shop/alice/sell", alice, protocol.TradeRequest{Material: "Wooden_Wall"}, &tr); code != http.StatusOK || tr.Dollars != 5 {
		t.Fatalf("sell = %d %+v", code, tr)
	}

	var fh protocol.FindHouseResponse
	if code := c.do(http.MethodGet, "/api/game/alice/find-house", alice, nil, &fh); code != http.StatusOK {
		t.Fatalf("find house status = %d", code)
	}
	if fh.HouseID != h.House.HouseID {
		t.Fatalf("find house = %q, want bob's %q", fh.HouseID, h.House.HouseID)
	}

	var m protocol.MessageResponse
	if code := c.do(http.MethodDelete, "/api/house/bob/abandon", bob, nil, &m); code != http.StatusOK {
		t.Fatalf("abandon status = %d", code)
	}
	if code := c.do(http.MethodGet, "/api/house/bob", bob, nil, &e); code != http.StatusNotFound {
		t.Fatalf("house after abandon status = %d", code)
	}
}

func TestAdminRoutes(t *testing.T) {
	c, svc, _ := newTestServer(t)
	auth := c.register("alice")
	var h struct {
		House struct {
			HouseID string `json:"house_id"`
		} `json:"house"`
	}
	c.do(http.MethodPost, "/api/house/alice", auth, nil, &h)
	c.do(http.MethodPost, "/api/game/alice/enter", auth, protocol.EnterRequest{HouseID: h.House.HouseID}, nil)

	admin := map[string]string{HeaderAPIToken: adminKey}
	var e protocol.ErrorResponse
	if code := c.do(http.MethodGet, "/api/admin/state", auth, nil, &e); code != http.StatusUnauthorized {
		t.Fatalf("player token on admin status = %d", code)
	}
	var st StateResponse
	if code := c.do(http.MethodGet, "/api/admin/state", admin, nil, &st); code != http.StatusOK {
		t.Fatalf("state status = %d", code)
	}
	if st.Players != 1 || st.Houses != 1 || st.Owners != 1 {
		t.Fatalf("state = %+v", st)
	}

	var cfg protocol.ConfigResponse
	if code := c.do(http.MethodPut, "/api/admin/config/robbery.cooldown_seconds", admin, protocol.ConfigSetRequest{Value: "60"}, &cfg); code != http.StatusOK {
		t.Fatalf("config set status = %d", code)
	}
	if svc.Tuning().Current().Robbery.CooldownSeconds != 60 || cfg.Value != "60" {
		t.Fatalf("config set = %+v", cfg)
	}
	if code := c.do(http.MethodPut, "/api/admin/config/robbery.cooldown_seconds", admin, protocol.ConfigSetRequest{Value: "soon"}, &e); code != http.StatusBadRequest {
		t.Fatalf("bad config value status = %d", code)
	}
	if code := c.do(http.MethodGet, "/api/admin/config/no.such_key", admin, nil, &e); code != http.StatusBadRequest {
		t.Fatalf("unknown key status = %d", code)
	}
	if code := c.do(http.MethodGet, "/api/admin/config", admin, nil, &cfg); code != http.StatusOK || cfg.Items["robbery.cooldown_seconds"] != "60" {
		t.Fatalf("config dump = %d %+v", code, cfg)
	}

	var cmp protocol.CompareResponse
	path := "/api/admin/compare/" + h.House.HouseID + "/" + h.House.HouseID
	if code := c.do(http.MethodGet, path, admin, nil, &cmp); code != http.StatusOK || len(cmp.Differences) != 0 {
		t.Fatalf("self compare = %d %+v", code, cmp)
	}

	var m protocol.MessageResponse
	if code := c.do(http.MethodPost, "/api/admin/trigger-evictions/all", admin, nil, &m); code != http.StatusOK || m.Count != 1 {
		t.Fatalf("evict all = %d %+v", code, m)
	}
	if code := c.do(http.MethodPost, "/api/admin/evict/alice", admin, nil, &e); code != http.StatusConflict {
		t.Fatalf("evict outside player status = %d", code)
	}
	if code := c.do(http.MethodDelete, "/api/admin/player/alice", admin, nil, &m); code != http.StatusOK {
		t.Fatalf("admin delete status = %d", code)
	}
}

func TestRegistrationRoutes(t *testing.T) {
	c, _, _ := newTestServer(t)
	admin := map[string]string{HeaderAPIToken: adminKey}
	const key, mac = "4111111111111111", "de:ad:be:ef:00:01"
	body := protocol.SelfRegisterRequest{RegistrationKey: key, MAC: mac}

	var e protocol.ErrorResponse
	if code := c.do(http.MethodPost, "/api/self-register", nil, body, &e); code != http.StatusForbidden {
		t.Fatalf("self register while disabled = %d %+v", code, e)
	}
	var m protocol.MessageResponse
	if code := c.do(http.MethodPost, "/api/admin/enable-registration", admin, nil, &m); code != http.StatusOK {
		t.Fatalf("enable status = %d", code)
	}
	var b struct {
		Badge player.Badge `json:"badge"`
	}
	if code := c.do(http.MethodPost, "/api/self-register", nil, body, &b); code != http.StatusCreated || b.Badge.Key != key {
		t.Fatalf("self register = %d %+v", code, b)
	}
	repeat := protocol.SelfRegisterRequest{RegistrationKey: "5500000000000004", MAC: mac}
	if code := c.do(http.MethodPost, "/api/self-register", nil, repeat, &e); code != http.StatusConflict || e.RegisterToken != key {
		t.Fatalf("repeat mac = %d %+v", code, e)
	}
	e = protocol.ErrorResponse{}
	bad := protocol.SelfRegisterRequest{RegistrationKey: "5500000000000005", MAC: "de:ad:be:ef:00:02"}
	if code := c.do(http.MethodPost, "/api/self-register", nil, bad, &e); code != http.StatusBadRequest || e.RegisterToken != "" {
		t.Fatalf("bad luhn = %d %+v", code, e)
	}

	var list struct {
		Badges []player.Badge `json:"badges"`
	}
	if code := c.do(http.MethodGet, "/api/admin/registration", admin, nil, &list); code != http.StatusOK || len(list.Badges) != 2 {
		t.Fatalf("list = %d %+v", code, list)
	}
	if code := c.do(http.MethodPost, "/api/admin/disable-registration", admin, nil, &m); code != http.StatusOK {
		t.Fatalf("disable status = %d", code)
	}
	if code := c.do(http.MethodPost, "/api/self-register", nil, repeat, &e); code != http.StatusForbidden {
		t.Fatalf("self register after disable = %d", code)
	}

	c.register("alice")
	if code := c.do(http.MethodDelete, "/api/admin/clear-registration", admin, nil, &b); code != http.StatusOK || b.Badge.MAC != player.DefaultBadgeMAC {
		t.Fatalf("clear = %d %+v", code, b)
	}
	if code := c.do(http.MethodPost, "/api/player/bob", map[string]string{HeaderRegisterToken: badge}, nil, &e); code != http.StatusUnauthorized {
		t.Fatalf("register with cleared key = %d", code)
	}
	var reg protocol.RegisterResponse
	if code := c.do(http.MethodPost, "/api/player/bob", map[string]string{HeaderRegisterToken: b.Badge.Key}, nil, &reg); code != http.StatusCreated {
		t.Fatalf("register with fresh key = %d", code)
	}
}

func TestPurgeRoute(t *testing.T) {
	c, _, _ := newTestServer(t)
	admin := map[string]string{HeaderAPIToken: adminKey}
	for _, id := range []string{"a", "b", "c"} {
		c.register(id)
	}

	var e protocol.ErrorResponse
	bad := map[string]any{"registration_key": badge, "options": map[string]any{"delete_by": "richest"}}
	if code := c.do(http.MethodPost, "/api/admin/purge-players", admin, bad, &e); code != http.StatusBadRequest {
		t.Fatalf("bad order status = %d", code)
	}

	var m protocol.MessageResponse
	if code := c.do(http.MethodPost, "/api/admin/purge-players", admin, protocol.PurgeRequest{RegistrationKey: badge}, &m); code != http.StatusOK || m.Count != 2 {
		t.Fatalf("default purge = %d %+v", code, m)
	}
	var st StateResponse
	if c.do(http.MethodGet, "/api/admin/state", admin, nil, &st); st.Players != 1 {
		t.Fatalf("players after purge = %d", st.Players)
	}

	zero := 0
	all := protocol.PurgeRequest{RegistrationKey: badge, Options: protocol.PurgeOptions{RemainingPlayers: &zero, DeleteBy: "all"}}
	if code := c.do(http.MethodPost, "/api/admin/purge-players", admin, all, &m); code != http.StatusOK || m.Count != 1 {
		t.Fatalf("purge all = %d %+v", code, m)
	}
	if c.do(http.MethodGet, "/api/admin/state", admin, nil, &st); st.Players != 0 {
		t.Fatalf("players after purge all = %d", st.Players)
	}
}

func TestAdminRejectsRemotePeer(t *testing.T) {
	svc := game.New(game.Options{Store: store.NewMemory(), Tuning: tuning.NewLive(tuning.Defaults())})
	h := NewServer(svc, Config{AdminKey: adminKey}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/admin/state", nil)
	req.RemoteAddr = "203.0.113.9:4242"
	req.Header.Set(HeaderAPIToken, adminKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote admin status = %d", rec.Code)
	}
}

func TestAdminDisabledWithoutKey(t *testing.T) {
	svc := game.New(game.Options{Store: store.NewMemory(), Tuning: tuning.NewLive(tuning.Defaults())})
	h := NewServer(svc, Config{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/admin/state", nil)
	req.RemoteAddr = "127.0.0.1:4242"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("admin without key status = %d", rec.Code)
	}
}

func TestMiscRoutes(t *testing.T) {
	c, _, reg := newTestServer(t)
	reg.RobberyAttempt(true)

	resp, err := http.Get(c.url + "/coffee")
	if err != nil {
		t.Fatalf("coffee: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTeapot {
		t.Fatalf("coffee status = %d", resp.StatusCode)
	}

	resp, err = http.Get(c.url + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "housevault_robbery_attempts_total") {
		t.Fatalf("metrics body:\n%s", body)
	}
}
