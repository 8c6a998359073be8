package game

import (
	"errors"
	"sort"
	"testing"
	"time"

	"housevault/internal/sim/fault"
	"housevault/internal/sim/player"
)

const otherBadge = "79927398713"

func TestSelfRegister(t *testing.T) {
	e := newEnv(t)
	const key, mac = "4111111111111111", "de:ad:be:ef:00:01"

	if _, err := e.svc.SelfRegister(e.ctx, key, mac); !errors.Is(err, fault.ErrSelfRegisterOff) {
		t.Fatalf("disabled err = %v", err)
	}
	if err := e.svc.SetSelfRegistration(true); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if _, err := e.svc.SelfRegister(e.ctx, "4111111111111112", "de:ad:be:ef:00:02"); !errors.Is(err, fault.ErrBadBadgeKey) {
		t.Fatalf("bad luhn err = %v", err)
	}
	if _, err := e.svc.SelfRegister(e.ctx, key, ""); !errors.Is(err, fault.ErrBadRequest) {
		t.Fatalf("missing mac err = %v", err)
	}
	b, err := e.svc.SelfRegister(e.ctx, key, mac)
	if err != nil {
		t.Fatalf("self register: %v", err)
	}
	if b.Key != key || b.MAC != mac || !b.CreatedOn.Equal(e.now) {
		t.Fatalf("badge = %+v", b)
	}

	_, err = e.svc.SelfRegister(e.ctx, "5500000000000004", mac)
	var me *fault.MACRegisteredError
	if !errors.As(err, &me) || me.Key != key {
		t.Fatalf("repeat mac err = %v", err)
	}
	if _, err := e.svc.SelfRegister(e.ctx, badge, "de:ad:be:ef:00:03"); !errors.Is(err, fault.ErrBadgeExists) {
		t.Fatalf("duplicate key err = %v", err)
	}

	if _, err := e.svc.Register(e.ctx, "alice", key); err != nil {
		t.Fatalf("register under self-registered key: %v", err)
	}

	if err := e.svc.SetSelfRegistration(false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if _, err := e.svc.SelfRegister(e.ctx, "5500000000000004", "de:ad:be:ef:00:04"); !errors.Is(err, fault.ErrSelfRegisterOff) {
		t.Fatalf("disabled again err = %v", err)
	}
}

func TestClearRegistrationIssuesFreshKey(t *testing.T) {
	e := newEnv(t)
	b, err := e.svc.ClearRegistration(e.ctx)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !player.ValidRegistrationKey(b.Key) || b.MAC != player.DefaultBadgeMAC {
		t.Fatalf("default badge = %+v", b)
	}
	badges, err := e.svc.Badges(e.ctx)
	if err != nil || len(badges) != 1 || badges[0].Key != b.Key {
		t.Fatalf("badges = %+v, %v", badges, err)
	}
	if _, err := e.svc.Register(e.ctx, "alice", badge); !errors.Is(err, fault.ErrUnauthorized) {
		t.Fatalf("cleared key still accepted: %v", err)
	}
	if _, err := e.svc.Register(e.ctx, "alice", b.Key); err != nil {
		t.Fatalf("register under fresh key: %v", err)
	}

	if _, created, err := e.svc.EnsureRegistrationKey(e.ctx); err != nil || created {
		t.Fatalf("ensure with a key present: created=%v err=%v", created, err)
	}
	if err := e.st.ClearBadges(e.ctx); err != nil {
		t.Fatalf("clear badges: %v", err)
	}
	nb, created, err := e.svc.EnsureRegistrationKey(e.ctx)
	if err != nil || !created || !player.ValidRegistrationKey(nb.Key) {
		t.Fatalf("ensure on empty list = %+v, %v, %v", nb, created, err)
	}
}

func TestDefaultRegistrationCap(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 10; i++ {
		if _, err := e.svc.Register(e.ctx, "p"+string(rune('a'+i)), badge); err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
	}
	if _, err := e.svc.Register(e.ctx, "pk", badge); !errors.Is(err, fault.ErrRegistrationLimit) {
		t.Fatalf("eleventh err = %v", err)
	}
	if err := e.live.Set("registration.max_players_per_key", "-1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := e.svc.Register(e.ctx, "pk", badge); err != nil {
		t.Fatalf("unlimited: %v", err)
	}
}

// seedPurge registers four players under badge (a oldest, d newest) and one
// under otherBadge. a holds 50 dollars, b and d 300, c has no house.
func seedPurge(t *testing.T, e *env) {
	t.Helper()
	if err := e.st.PutBadge(e.ctx, player.Badge{Key: otherBadge, CreatedOn: e.now}); err != nil {
		t.Fatalf("put badge: %v", err)
	}
	dollars := map[string]int{"a": 50, "b": 300, "d": 300}
	for _, id := range []string{"a", "b", "c", "d"} {
		e.now = e.now.Add(time.Minute)
		if _, err := e.svc.Register(e.ctx, id, badge); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
		n, ok := dollars[id]
		if !ok {
			continue
		}
		h, err := e.svc.CreateHouse(e.ctx, id)
		if err != nil {
			t.Fatalf("create house: %v", err)
		}
		h.Vault.Dollars = n
		if err := e.st.PutHouse(e.ctx, h); err != nil {
			t.Fatalf("put house: %v", err)
		}
	}
	if _, err := e.svc.Register(e.ctx, "outsider", otherBadge); err != nil {
		t.Fatalf("register outsider: %v", err)
	}
}

func remaining(t *testing.T, e *env) []string {
	t.Helper()
	all, err := e.st.ListPlayers(e.ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []string
	for _, p := range all {
		ids = append(ids, p.ID)
	}
	sort.Strings(ids)
	return ids
}

func TestPurgePlayers(t *testing.T) {
	cases := []struct {
		order   PurgeOrder
		keep    int
		deleted int
		want    []string
	}{
		{PurgeByMoney, 2, 2, []string{"b", "d", "outsider"}},
		{PurgeByMoney, 1, 3, []string{"b", "outsider"}},
		{PurgeByFirstCreated, 2, 2, []string{"a", "b", "outsider"}},
		{PurgeAll, 3, 4, []string{"outsider"}},
		{PurgeByFirstCreated, 10, 0, []string{"a", "b", "c", "d", "outsider"}},
	}
	for _, tc := range cases {
		e := newEnv(t)
		seedPurge(t, e)
		n, err := e.svc.PurgePlayers(e.ctx, badge, tc.keep, tc.order)
		if err != nil || n != tc.deleted {
			t.Fatalf("%s keep %d: deleted %d, %v; want %d", tc.order, tc.keep, n, err, tc.deleted)
		}
		got := remaining(t, e)
		if len(got) != len(tc.want) {
			t.Fatalf("%s keep %d: remaining %v, want %v", tc.order, tc.keep, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%s keep %d: remaining %v, want %v", tc.order, tc.keep, got, tc.want)
			}
		}
		archived, err := e.st.ListArchivedPlayers(e.ctx)
		if err != nil || len(archived) != tc.deleted {
			t.Fatalf("%s: archived %d, %v; want %d", tc.order, len(archived), err, tc.deleted)
		}
	}
}

func TestPurgeRejectsBadOptions(t *testing.T) {
	e := newEnv(t)
	if _, err := e.svc.PurgePlayers(e.ctx, badge, 1, "richest"); !errors.Is(err, fault.ErrPurgeOptions) {
		t.Fatalf("bad order err = %v", err)
	}
	if _, err := e.svc.PurgePlayers(e.ctx, " ", 1, PurgeByMoney); !errors.Is(err, fault.ErrPurgeOptions) {
		t.Fatalf("empty key err = %v", err)
	}
	if _, err := e.svc.PurgePlayers(e.ctx, badge, -1, PurgeByMoney); !errors.Is(err, fault.ErrPurgeOptions) {
		t.Fatalf("negative keep err = %v", err)
	}
}
