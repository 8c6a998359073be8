package httpapi

import (
	"context"
	"errors"
	"net/http"

	"housevault/internal/protocol"
	"housevault/internal/sim/catalogs"
	"housevault/internal/sim/fault"
	"housevault/internal/sim/game"
	"housevault/internal/sim/grid"
	"housevault/internal/sim/occupancy"
	"housevault/internal/sim/player"
)

func (s *Server) handleRegister(rw http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Register(r.Context(), r.PathValue("player_id"), r.Header.Get(HeaderRegisterToken))
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusCreated, protocol.RegisterResponse{Success: true, PlayerID: p.ID, Token: p.Token})
}

func (s *Server) handleSelfRegister(rw http.ResponseWriter, r *http.Request) {
	var req protocol.SelfRegisterRequest
	if err := decode(r, protocol.SchemaSelfRegister, &req); err != nil {
		s.writeError(rw, r, err)
		return
	}
	b, err := s.svc.SelfRegister(r.Context(), req.RegistrationKey, req.MAC)
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusCreated, protocol.BadgeResponse{Success: true, Badge: b})
}

func (s *Server) handleGetPlayer(rw http.ResponseWriter, r *http.Request, p *player.Player) {
	resp := protocol.PlayerResponse{
		Success:      true,
		PlayerID:     p.ID,
		HouseID:      p.HouseID,
		CreatedOn:    formatTime(p.CreatedOn),
		LastActivity: formatTime(p.LastActivity),
	}
	if p.LastRobberyAttempt != nil {
		resp.LastRobberyAttempt = formatTime(*p.LastRobberyAttempt)
	}
	sess, err := s.svc.Occupancy().SessionOf(r.Context(), p.ID)
	switch {
	case err == nil:
		resp.InHouse = sess.HouseID
	case !errors.Is(err, fault.ErrNotInHouse):
		s.writeError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (s *Server) handleDeletePlayer(rw http.ResponseWriter, r *http.Request, p *player.Player) {
	if err := s.svc.DeletePlayer(r.Context(), p.ID); err != nil {
		s.writeError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, protocol.MessageResponse{Success: true, Message: "player deleted"})
}

func (s *Server) handleCreateHouse(rw http.ResponseWriter, r *http.Request, p *player.Player) {
	h, err := s.svc.CreateHouse(r.Context(), p.ID)
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusCreated, protocol.HouseResponse{Success: true, House: h.ToRecord()})
}

func (s *Server) handleGetHouse(rw http.ResponseWriter, r *http.Request, p *player.Player) {
	h, err := s.svc.House(r.Context(), p.ID)
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, protocol.HouseResponse{Success: true, House: h.ToRecord()})
}

func (s *Server) handleVault(rw http.ResponseWriter, r *http.Request, p *player.Player) {
	v, err := s.svc.Vault(r.Context(), p.ID)
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, protocol.VaultResponse{Success: true, Dollars: v.Dollars, Walls: v.Walls, Stock: v.Stock})
}

func (s *Server) handleAbandon(rw http.ResponseWriter, r *http.Request, p *player.Player) {
	if err := s.svc.Abandon(r.Context(), p.ID); err != nil {
		s.writeError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, protocol.MessageResponse{Success: true, Message: "house abandoned"})
}

// Editor.

func (s *Server) handleMoveVault(rw http.ResponseWriter, r *http.Request, p *player.Player) {
	var req protocol.CoordRequest
	if err := decode(r, protocol.SchemaCoord, &req); err != nil {
		s.writeError(rw, r, err)
		return
	}
	s.writeView(rw, r)(s.svc.MoveVault(r.Context(), p.ID, grid.Cell{X: req.X, Y: req.Y}))
}

func (s *Server) handleBuild(rw http.ResponseWriter, r *http.Request, p *player.Player) {
	var req protocol.BuildRequest
	if err := decode(r, protocol.SchemaBuild, &req); err != nil {
		s.writeError(rw, r, err)
		return
	}
	k, err := catalogs.Parse(req.MaterialType)
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	s.writeView(rw, r)(s.svc.Build(r.Context(), p.ID, grid.Cell{X: req.X, Y: req.Y}, k))
}

func (s *Server) handleClear(rw http.ResponseWriter, r *http.Request, p *player.Player) {
	var req protocol.CoordRequest
	if err := decode(r, protocol.SchemaCoord, &req); err != nil {
		s.writeError(rw, r, err)
		return
	}
	s.writeView(rw, r)(s.svc.Clear(r.Context(), p.ID, grid.Cell{X: req.X, Y: req.Y}))
}

// Shop.

func (s *Server) handlePurchase(rw http.ResponseWriter, r *http.Request, p *player.Player) {
	s.handleTrade(rw, r, p, s.svc.Purchase)
}

func (s *Server) handleSell(rw http.ResponseWriter, r *http.Request, p *player.Player) {
	s.handleTrade(rw, r, p, s.svc.Sell)
}

type tradeFunc func(ctx context.Context, playerID string, k catalogs.Kind, qty int) (game.Trade, error)

func (s *Server) handleTrade(rw http.ResponseWriter, r *http.Request, p *player.Player, fn tradeFunc) {
	var req protocol.TradeRequest
	if err := decode(r, protocol.SchemaTrade, &req); err != nil {
		s.writeError(rw, r, err)
		return
	}
	k, err := catalogs.Parse(req.Material)
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	t, err := fn(r.Context(), p.ID, k, req.Quantity)
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, protocol.TradeResponse{
		Success:  true,
		Material: t.Kind.String(),
		Quantity: t.Quantity,
		Price:    t.Price,
		Total:    t.Total,
		Dollars:  t.Dollars,
	})
}

// Game.

func (s *Server) handleEnter(rw http.ResponseWriter, r *http.Request, p *player.Player) {
	var req protocol.EnterRequest
	if err := decode(r, protocol.SchemaEnter, &req); err != nil {
		s.writeError(rw, r, err)
		return
	}
	c, err := compressed(r)
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	s.writeView(rw, r)(s.svc.Enter(r.Context(), p.ID, req.HouseID, c))
}

func (s *Server) handleFindHouse(rw http.ResponseWriter, r *http.Request, p *player.Player) {
	id, err := s.svc.FindHouse(r.Context(), p.ID)
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, protocol.FindHouseResponse{Success: true, HouseID: id})
}

func (s *Server) handleMove(rw http.ResponseWriter, r *http.Request, p *player.Player) {
	var req protocol.MoveRequest
	if err := decode(r, protocol.SchemaMove, &req); err != nil {
		s.writeError(rw, r, err)
		return
	}
	dir, err := occupancy.ParseDirection(req.Direction)
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	c, err := compressed(r)
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	s.writeView(rw, r)(s.svc.Move(r.Context(), p.ID, dir, c))
}

func (s *Server) handleLeave(rw http.ResponseWriter, r *http.Request, p *player.Player) {
	if err := s.svc.Leave(r.Context(), p.ID); err != nil {
		s.writeError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, protocol.MessageResponse{Success: true, Message: "left the house"})
}

func (s *Server) handleLook(rw http.ResponseWriter, r *http.Request, p *player.Player) {
	c, err := compressed(r)
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	s.writeView(rw, r)(s.svc.Look(r.Context(), p.ID, c))
}

// writeView returns a sink for the (View, error) pair every play and editor
// call produces.
func (s *Server) writeView(rw http.ResponseWriter, r *http.Request) func(game.View, error) {
	return func(v game.View, err error) {
		if err != nil {
			s.writeError(rw, r, err)
			return
		}
		writeJSON(rw, http.StatusOK, v.Response())
	}
}
