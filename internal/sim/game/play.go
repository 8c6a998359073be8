package game

import (
	"context"
	"errors"

	"housevault/internal/protocol"
	"housevault/internal/sim/fault"
	"housevault/internal/sim/grid"
	"housevault/internal/sim/house"
	"housevault/internal/sim/occupancy"
	"housevault/internal/sim/render"
)

// View is what a player inside a house gets back from every operation.
type View struct {
	HouseID      string
	Location     grid.Cell
	LuckyNumbers string
	Render       render.Rendered
	Robbery      *occupancy.Robbery
}

func (v View) Response() protocol.ViewResponse {
	r := protocol.ViewResponse{
		Success:        true,
		HouseID:        v.HouseID,
		PlayerLocation: [2]int{v.Location.X, v.Location.Y},
		LuckyNumbers:   v.LuckyNumbers,
		Format:         v.Render.Format,
		Construction:   v.Render.Construction,
	}
	if v.Robbery != nil {
		r.Robbery = &protocol.Robbery{VictimHouseID: v.Robbery.VictimHouseID, Dollars: v.Robbery.Dollars}
	}
	return r
}

func viewOf(h *house.House, loc grid.Cell, compressed bool) View {
	return View{
		HouseID:  h.ID,
		Location: loc,
		Render:   render.Render(h, loc, compressed),
	}
}

// Enter puts the player at the door of houseID.
func (s *Service) Enter(ctx context.Context, playerID, houseID string, compressed bool) (View, error) {
	sess, err := s.occ.Enter(ctx, playerID, houseID)
	if err != nil {
		return View{}, err
	}
	h, err := s.getHouse(ctx, sess.HouseID)
	if err != nil {
		return View{}, err
	}
	return viewOf(h, sess.Location, compressed), nil
}

// FindHouse suggests an unoccupied house other than the player's own.
func (s *Service) FindHouse(ctx context.Context, playerID string) (string, error) {
	p, err := s.getPlayer(ctx, playerID)
	if err != nil {
		return "", err
	}
	return s.occ.FindUnoccupiedHouse(ctx, p.HouseID)
}

// Move steps the player one cell and returns the new view. A robbery is
// reported in the view.
func (s *Service) Move(ctx context.Context, playerID string, dir occupancy.Direction, compressed bool) (View, error) {
	res, err := s.occ.Move(ctx, playerID, dir)
	if err != nil {
		return View{}, err
	}
	v := viewOf(res.House, res.Session.Location, compressed)
	v.Robbery = res.Robbery
	return v, nil
}

func (s *Service) Leave(ctx context.Context, playerID string) error {
	return s.occ.Leave(ctx, playerID)
}

// Look renders the player's surroundings without changing anything.
func (s *Service) Look(ctx context.Context, playerID string, compressed bool) (View, error) {
	sess, err := s.occ.SessionOf(ctx, playerID)
	if err != nil {
		return View{}, err
	}
	h, err := s.getHouse(ctx, sess.HouseID)
	if err != nil {
		return View{}, err
	}
	return viewOf(h, sess.Location, compressed), nil
}

// ownSession returns the player's session when they stand in their own
// house, evicting it first if it has gone stale.
func (s *Service) ownSession(ctx context.Context, playerID string) (occupancy.Session, error) {
	p, err := s.getPlayer(ctx, playerID)
	if err != nil {
		return occupancy.Session{}, err
	}
	if !p.HasHouse() {
		return occupancy.Session{}, fault.ErrNoHouse
	}
	sess, err := s.occ.SessionOf(ctx, playerID)
	if errors.Is(err, fault.ErrNotInHouse) {
		return occupancy.Session{}, fault.ErrNotOwnHouse
	}
	if err != nil {
		return occupancy.Session{}, err
	}
	if sess.HouseID != p.HouseID {
		return occupancy.Session{}, fault.ErrNotOwnHouse
	}
	if s.occ.VisitTooLong(ctx, sess, s.now()) {
		if err := s.occ.Evict(ctx, playerID, "stale"); err != nil && !errors.Is(err, fault.ErrNotInHouse) {
			return occupancy.Session{}, err
		}
		return occupancy.Session{}, fault.ErrEvicted
	}
	return sess, nil
}
