package occupancy

import (
	"context"
	"fmt"
	"strings"

	persistlog "housevault/internal/persistence/log"
	"housevault/internal/sim/catalogs"
	"housevault/internal/sim/fault"
	"housevault/internal/sim/grid"
	"housevault/internal/sim/house"
	"housevault/internal/sim/player"
)

type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// ParseDirection accepts up, down, left or right in any case.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case Up, Down, Left, Right:
		return d, nil
	}
	return "", fault.ErrBadDirection
}

// Delta: up is +y, down is -y.
func (d Direction) Delta() grid.Cell {
	switch d {
	case Up:
		return grid.Cell{Y: 1}
	case Down:
		return grid.Cell{Y: -1}
	case Left:
		return grid.Cell{X: -1}
	case Right:
		return grid.Cell{X: 1}
	}
	return grid.Cell{}
}

type Robbery struct {
	VictimHouseID string
	RobberHouseID string
	Dollars       int
}

type MoveResult struct {
	Session Session
	House   *house.House
	Robbery *Robbery
}

// Move steps the player one cell. Stepping onto another player's vault robs
// it and leaves the robber standing on the vault cell.
func (m *Manager) Move(ctx context.Context, playerID string, dir Direction) (MoveResult, error) {
	delta := dir.Delta()
	if delta == (grid.Cell{}) {
		return MoveResult{}, fault.ErrBadDirection
	}

	defer m.locks.Lock(PlayerKey(playerID))()

	p, err := m.loadPlayer(ctx, playerID)
	if err != nil {
		return MoveResult{}, err
	}
	s, inside, err := m.session(ctx, playerID)
	if err != nil {
		return MoveResult{}, err
	}
	if !inside {
		if p.Evicted {
			if err := m.store.SetEvicted(ctx, playerID, false); err != nil {
				return MoveResult{}, fmt.Errorf("clear evicted flag: %w", err)
			}
			return MoveResult{}, fault.ErrEvicted
		}
		return MoveResult{}, fault.ErrNotInHouse
	}

	houseID := s.HouseID
	defer m.locks.LockAll(houseKeys(houseID, p.HouseID)...)()

	// An eviction may have landed between reading the session and taking
	// the house lock.
	s, inside, err = m.session(ctx, playerID)
	if err != nil {
		return MoveResult{}, err
	}
	if !inside || s.HouseID != houseID {
		return MoveResult{}, fault.ErrNotInHouse
	}

	h, err := m.loadHouse(ctx, houseID)
	if err != nil {
		return MoveResult{}, err
	}

	next := grid.Cell{X: s.Location.X + delta.X, Y: s.Location.Y + delta.Y}
	if !grid.InBounds(next) && !grid.IsDoor(next) {
		return MoveResult{}, fault.ErrBlocked
	}
	k, err := material(h, next)
	if err != nil {
		return MoveResult{}, fault.ErrBlocked
	}

	now := m.now()
	res := MoveResult{House: h}
	switch {
	case k == catalogs.Vault:
		if p.HouseID == h.ID {
			return MoveResult{}, fault.ErrOwnVault
		}
		rob, err := m.robLocked(ctx, p, h)
		if err != nil {
			return MoveResult{}, err
		}
		res.Robbery = rob
	case !k.Passable():
		return MoveResult{}, fault.ErrBlocked
	case k != catalogs.Empty && m.tuning.Current().Movement.RejectNonEmpty:
		return MoveResult{}, fault.ErrBlocked
	}

	s.Location = next
	s.LatestActivity = now
	if err := m.store.PutSession(ctx, s); err != nil {
		return MoveResult{}, fmt.Errorf("put session: %w", err)
	}
	p.Touch(now)
	if err := m.store.PutPlayer(ctx, p); err != nil {
		return MoveResult{}, fmt.Errorf("put player: %w", err)
	}
	res.Session = s
	return res, nil
}

// robLocked moves the victim's dollars into the robber's vault. Both house
// locks must be held.
func (m *Manager) robLocked(ctx context.Context, robber *player.Player, victim *house.House) (*Robbery, error) {
	if !robber.HasHouse() {
		m.metrics.RobberyAttempt(false)
		return nil, fault.ErrNoHouse
	}
	now := m.now()
	if left := robber.CooldownRemaining(now, m.tuning.Current().Robbery.Cooldown()); left > 0 {
		m.metrics.RobberyAttempt(false)
		return nil, &fault.CooldownError{Remaining: left}
	}
	robber.RecordRobberyAttempt(now)
	if err := m.store.PutPlayer(ctx, robber); err != nil {
		return nil, fmt.Errorf("record robbery attempt: %w", err)
	}

	home, err := m.store.GetHouse(ctx, robber.HouseID)
	if isMissing(err) {
		m.metrics.RobberyAttempt(false)
		return nil, fault.ErrNoHouse
	}
	if err != nil {
		return nil, fmt.Errorf("load robber house: %w", err)
	}

	loot := victim.Vault.TakeDollars()
	home.Vault.Dollars += loot
	if err := m.store.PutHouse(ctx, victim); err != nil {
		return nil, fmt.Errorf("put victim house: %w", err)
	}
	if err := m.store.PutHouse(ctx, home); err != nil {
		return nil, fmt.Errorf("put robber house: %w", err)
	}
	m.metrics.RobberyAttempt(true)
	m.auditf(persistlog.AuditEntry{
		Actor:   robber.ID,
		HouseID: victim.ID,
		Action:  "ROB",
		To:      home.ID,
		Reason:  fmt.Sprintf("dollars=%d", loot),
	})
	m.logf("robbery player=%s victim=%s dollars=%d", robber.ID, victim.ID, loot)
	return &Robbery{VictimHouseID: victim.ID, RobberHouseID: home.ID, Dollars: loot}, nil
}
