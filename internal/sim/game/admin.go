package game

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	persistlog "housevault/internal/persistence/log"
	"housevault/internal/protocol"
	"housevault/internal/sim/catalogs"
	"housevault/internal/sim/fault"
	"housevault/internal/sim/grid"
	"housevault/internal/sim/player"
)

// EvictPlayer forcibly ends one player's session.
func (s *Service) EvictPlayer(ctx context.Context, playerID string) error {
	return s.occ.Evict(ctx, playerID, "admin")
}

// TriggerEvictions runs one sweep now, or evicts everyone when all is set.
func (s *Service) TriggerEvictions(ctx context.Context, all bool) (int, error) {
	if all {
		return s.occ.EvictAll(ctx)
	}
	return s.occ.Sweep(ctx)
}

type PurgeOrder string

const (
	PurgeAll            PurgeOrder = "all"
	PurgeByMoney        PurgeOrder = "money"
	PurgeByFirstCreated PurgeOrder = "first_created"
)

// PurgePlayers deletes the players registered under key, keeping the first
// keep of them ranked by order: richest vault first, or oldest first.
// PurgeAll keeps nobody. It returns how many players were deleted.
func (s *Service) PurgePlayers(ctx context.Context, key string, keep int, order PurgeOrder) (int, error) {
	key = strings.TrimSpace(key)
	if key == "" || keep < 0 {
		return 0, fault.ErrPurgeOptions
	}
	all, err := s.store.ListPlayers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list players: %w", err)
	}
	var players []*player.Player
	for _, p := range all {
		if p.RegisteredBy == key {
			players = append(players, p)
		}
	}
	if err := s.rankForPurge(ctx, players, order); err != nil {
		return 0, err
	}
	if order == PurgeAll {
		keep = 0
	}
	if keep > len(players) {
		keep = len(players)
	}

	deleted := 0
	for _, p := range players[keep:] {
		err := s.DeletePlayer(ctx, p.ID)
		if errors.Is(err, fault.ErrPlayerNotFound) {
			continue
		}
		if err != nil {
			return deleted, err
		}
		deleted++
	}
	s.auditf(persistlog.AuditEntry{Actor: "admin", Action: "PURGE", Reason: fmt.Sprintf("key=%s order=%s deleted=%d", key, order, deleted)})
	s.logf("purged %d players registered by %s", deleted, key)
	return deleted, nil
}

// rankForPurge sorts players best first. Ties fall back to creation time,
// then id.
func (s *Service) rankForPurge(ctx context.Context, players []*player.Player, order PurgeOrder) error {
	older := func(a, b *player.Player) bool {
		if !a.CreatedOn.Equal(b.CreatedOn) {
			return a.CreatedOn.Before(b.CreatedOn)
		}
		return a.ID < b.ID
	}
	switch order {
	case PurgeAll, PurgeByFirstCreated:
		sort.Slice(players, func(i, j int) bool { return older(players[i], players[j]) })
	case PurgeByMoney:
		dollars := make(map[string]int, len(players))
		for _, p := range players {
			h, err := s.getHouse(ctx, p.HouseID)
			switch {
			case err == nil:
				dollars[p.ID] = h.Vault.Dollars
			case errors.Is(err, fault.ErrNoHouse), errors.Is(err, fault.ErrHouseNotFound):
			default:
				return err
			}
		}
		sort.Slice(players, func(i, j int) bool {
			a, b := players[i], players[j]
			if dollars[a.ID] != dollars[b.ID] {
				return dollars[a.ID] > dollars[b.ID]
			}
			return older(a, b)
		})
	default:
		return fault.ErrPurgeOptions
	}
	return nil
}

// CompareHouses lists every in-bounds cell where the two houses hold
// different materials.
func (s *Service) CompareHouses(ctx context.Context, a, b string) (protocol.CompareResponse, error) {
	ha, err := s.getHouse(ctx, a)
	if err != nil {
		return protocol.CompareResponse{}, err
	}
	hb, err := s.getHouse(ctx, b)
	if err != nil {
		return protocol.CompareResponse{}, err
	}
	out := protocol.CompareResponse{
		Success:     true,
		Differences: []protocol.CellDiff{},
		Dollars:     [2]int{ha.Vault.Dollars, hb.Vault.Dollars},
	}
	for x := 0; x <= grid.Max; x++ {
		for y := 0; y <= grid.Max; y++ {
			c := grid.Cell{X: x, Y: y}
			ka, _ := ha.MaterialAt(c)
			kb, _ := hb.MaterialAt(c)
			if ka != kb {
				out.Differences = append(out.Differences, protocol.CellDiff{
					Location: [2]int{x, y},
					A:        ka.String(),
					B:        kb.String(),
				})
			}
		}
	}
	return out, nil
}

// ActiveWindow is how recently a player must have made a request to count
// as active.
const ActiveWindow = 30 * time.Minute

// Census is a point-in-time head count of the store.
type Census struct {
	Players         int `json:"players"`
	ActivePlayers   int `json:"active_players"`
	Houses          int `json:"houses"`
	AbandonedHouses int `json:"abandoned_houses"`
	Owners          int `json:"owners_inside"`
	Robbers         int `json:"robbers_inside"`
}

func (s *Service) Census(ctx context.Context) (Census, error) {
	players, err := s.store.ListPlayers(ctx)
	if err != nil {
		return Census{}, fmt.Errorf("list players: %w", err)
	}
	houses, err := s.store.ListHouses(ctx)
	if err != nil {
		return Census{}, fmt.Errorf("list houses: %w", err)
	}
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return Census{}, fmt.Errorf("list sessions: %w", err)
	}

	now := s.now()
	c := Census{Players: len(players), Houses: len(houses)}
	owned := make(map[string]string, len(players))
	for _, p := range players {
		if now.Sub(p.LastActivity) <= ActiveWindow {
			c.ActivePlayers++
		}
		owned[p.ID] = p.HouseID
	}
	for _, h := range houses {
		if h.Abandoned {
			c.AbandonedHouses++
		}
	}
	for _, sess := range sessions {
		if owned[sess.PlayerID] == sess.HouseID {
			c.Owners++
		} else {
			c.Robbers++
		}
	}
	return c, nil
}

// RefreshGauges recomputes the population gauges from the store.
func (s *Service) RefreshGauges(ctx context.Context) error {
	c, err := s.Census(ctx)
	if err != nil {
		return err
	}
	s.metrics.SetGauge("players", map[string]string{"state": "active"}, float64(c.ActivePlayers))
	s.metrics.SetGauge("players", map[string]string{"state": "inactive"}, float64(c.Players-c.ActivePlayers))
	s.metrics.SetGauge("houses", map[string]string{"state": "abandoned"}, float64(c.AbandonedHouses))
	s.metrics.SetGauge("houses", map[string]string{"state": "active"}, float64(c.Houses-c.AbandonedHouses))
	s.metrics.SetGauge("occupancy", map[string]string{"role": "owner"}, float64(c.Owners))
	s.metrics.SetGauge("occupancy", map[string]string{"role": "robber"}, float64(c.Robbers))
	return nil
}

// Palette is the material palette sent to websocket clients.
func Palette() protocol.DigestRef {
	return protocol.DigestRef{Digest: catalogs.PaletteDigest(), Count: len(catalogs.Palette())}
}
