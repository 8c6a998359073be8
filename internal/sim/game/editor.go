package game

import (
	"context"
	"fmt"

	persistlog "housevault/internal/persistence/log"
	"housevault/internal/sim/catalogs"
	"housevault/internal/sim/fault"
	"housevault/internal/sim/grid"
	"housevault/internal/sim/house"
	"housevault/internal/sim/logic/pathfind"
	"housevault/internal/sim/occupancy"
)

const (
	OpBuild     = "build"
	OpClear     = "clear"
	OpMoveVault = "move_vault"
)

// Build places material k at c in the player's own house.
func (s *Service) Build(ctx context.Context, playerID string, c grid.Cell, k catalogs.Kind) (View, error) {
	op := OpBuild
	if k == catalogs.Empty {
		op = OpClear
	}
	return s.edit(ctx, playerID, op, c, func(h *house.House) (pathfind.Path, persistlog.AuditEntry, error) {
		res, err := h.Build(c, k)
		return res.Path, auditFor(op, c, res), err
	})
}

// Clear empties c in the player's own house.
func (s *Service) Clear(ctx context.Context, playerID string, c grid.Cell) (View, error) {
	return s.edit(ctx, playerID, OpClear, c, func(h *house.House) (pathfind.Path, persistlog.AuditEntry, error) {
		res, err := h.Clear(c)
		return res.Path, auditFor(OpClear, c, res), err
	})
}

// MoveVault relocates the player's vault to c.
func (s *Service) MoveVault(ctx context.Context, playerID string, c grid.Cell) (View, error) {
	return s.edit(ctx, playerID, OpMoveVault, c, func(h *house.House) (pathfind.Path, persistlog.AuditEntry, error) {
		from := h.VaultCell()
		path, err := h.MoveVault(c)
		return path, persistlog.AuditEntry{
			Action: "MOVE_VAULT",
			Pos:    &[2]int{c.X, c.Y},
			From:   fmt.Sprintf("%d,%d", from.X, from.Y),
			To:     fmt.Sprintf("%d,%d", c.X, c.Y),
		}, err
	})
}

func auditFor(op string, c grid.Cell, res house.EditResult) persistlog.AuditEntry {
	action := "BUILD"
	if op == OpClear {
		action = "CLEAR"
	}
	return persistlog.AuditEntry{
		Action: action,
		Pos:    &[2]int{c.X, c.Y},
		From:   res.Replaced.String(),
		To:     res.Placed.String(),
	}
}

type editFunc func(h *house.House) (pathfind.Path, persistlog.AuditEntry, error)

// edit runs fn against the owner's house while they stand inside it. The
// house is only written back when fn succeeds.
func (s *Service) edit(ctx context.Context, playerID, op string, c grid.Cell, fn editFunc) (View, error) {
	if _, err := s.ownSession(ctx, playerID); err != nil {
		s.metrics.HouseEdit(op, false)
		return View{}, err
	}

	defer s.locks.Lock(occupancy.PlayerKey(playerID))()
	p, err := s.getPlayer(ctx, playerID)
	if err != nil {
		return View{}, err
	}
	if !p.HasHouse() {
		return View{}, fault.ErrNoHouse
	}
	defer s.locks.Lock(occupancy.HouseKey(p.HouseID))()

	// Re-read under the house lock: the sweeper may have evicted us.
	sess, err := s.occ.SessionOf(ctx, playerID)
	if err != nil || sess.HouseID != p.HouseID {
		s.metrics.HouseEdit(op, false)
		return View{}, fault.ErrNotOwnHouse
	}
	h, err := s.getHouse(ctx, p.HouseID)
	if err != nil {
		return View{}, err
	}

	path, entry, err := fn(h)
	if err != nil {
		s.metrics.HouseEdit(op, false)
		return View{}, err
	}
	if err := s.store.PutHouse(ctx, h); err != nil {
		return View{}, fmt.Errorf("put house: %w", err)
	}
	now := s.now()
	sess.LatestActivity = now
	if err := s.store.PutSession(ctx, sess); err != nil {
		return View{}, fmt.Errorf("put session: %w", err)
	}
	s.metrics.HouseEdit(op, true)
	entry.Actor = playerID
	entry.HouseID = h.ID
	s.auditf(entry)

	v := viewOf(h, sess.Location, true)
	v.LuckyNumbers = "0"
	if s.tuning.Current().Game.DisplayLuckyNumbers {
		v.LuckyNumbers = path.LuckyNumbers()
	}
	return v, nil
}

// Trade is a completed shop order plus the resulting balance.
type Trade struct {
	house.Trade
	Dollars int
}

// Purchase buys qty units of k into the player's vault stock. Zero means one.
func (s *Service) Purchase(ctx context.Context, playerID string, k catalogs.Kind, qty int) (Trade, error) {
	return s.trade(ctx, playerID, "PURCHASE", qty, func(h *house.House, qty, max int) (house.Trade, error) {
		return h.Purchase(k, qty, max)
	})
}

// Sell converts qty units of stock back into dollars. Zero means one.
func (s *Service) Sell(ctx context.Context, playerID string, k catalogs.Kind, qty int) (Trade, error) {
	return s.trade(ctx, playerID, "SELL", qty, func(h *house.House, qty, max int) (house.Trade, error) {
		return h.Sell(k, qty, max)
	})
}

func (s *Service) trade(ctx context.Context, playerID, action string, qty int, fn func(h *house.House, qty, max int) (house.Trade, error)) (Trade, error) {
	if qty == 0 {
		qty = 1
	}
	defer s.locks.Lock(occupancy.PlayerKey(playerID))()
	p, err := s.getPlayer(ctx, playerID)
	if err != nil {
		return Trade{}, err
	}
	if !p.HasHouse() {
		return Trade{}, fault.ErrNoHouse
	}
	defer s.locks.Lock(occupancy.HouseKey(p.HouseID))()
	h, err := s.getHouse(ctx, p.HouseID)
	if err != nil {
		return Trade{}, err
	}
	t, err := fn(h, qty, s.tuning.Current().Shop.MaxQuantity)
	if err != nil {
		return Trade{}, err
	}
	if err := s.store.PutHouse(ctx, h); err != nil {
		return Trade{}, fmt.Errorf("put house: %w", err)
	}
	s.auditf(persistlog.AuditEntry{
		Actor:   playerID,
		HouseID: h.ID,
		Action:  action,
		To:      t.Kind.String(),
		Reason:  fmt.Sprintf("qty=%d total=%d", t.Quantity, t.Total),
	})
	return Trade{Trade: t, Dollars: h.Vault.Dollars}, nil
}
