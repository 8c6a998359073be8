package httpapi

import (
	"net/http"

	"housevault/internal/protocol"
	"housevault/internal/sim/game"
)

// StateResponse is the body of GET /api/admin/state.
type StateResponse struct {
	Success bool `json:"success"`
	game.Census
}

func (s *Server) handleState(rw http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Census(r.Context())
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, StateResponse{Success: true, Census: c})
}

func (s *Server) handleTriggerEvictions(all bool) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		n, err := s.svc.TriggerEvictions(r.Context(), all)
		if err != nil {
			s.writeError(rw, r, err)
			return
		}
		s.logf("admin evictions all=%v evicted=%d", all, n)
		writeJSON(rw, http.StatusOK, protocol.MessageResponse{Success: true, Message: "evictions triggered", Count: n})
	}
}

func (s *Server) handleConfigDump(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, protocol.ConfigResponse{Success: true, Items: s.svc.Tuning().Dump()})
}

func (s *Server) handleConfigGet(rw http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	v, err := s.svc.Tuning().Get(key)
	if err != nil {
		s.writeError(rw, r, &protocol.ValidationError{Reason: err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, protocol.ConfigResponse{Success: true, Key: key, Value: v})
}

func (s *Server) handleConfigSet(rw http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	var req protocol.ConfigSetRequest
	if err := decode(r, protocol.SchemaConfigSet, &req); err != nil {
		s.writeError(rw, r, err)
		return
	}
	if err := s.svc.Tuning().Set(key, req.Value); err != nil {
		s.writeError(rw, r, &protocol.ValidationError{Reason: err.Error()})
		return
	}
	s.logf("admin config %s=%s", key, req.Value)
	v, _ := s.svc.Tuning().Get(key)
	writeJSON(rw, http.StatusOK, protocol.ConfigResponse{Success: true, Key: key, Value: v})
}

func (s *Server) handleEvict(rw http.ResponseWriter, r *http.Request) {
	if err := s.svc.EvictPlayer(r.Context(), r.PathValue("player_id")); err != nil {
		s.writeError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, protocol.MessageResponse{Success: true, Message: "player evicted"})
}

func (s *Server) handleAdminDeletePlayer(rw http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeletePlayer(r.Context(), r.PathValue("player_id")); err != nil {
		s.writeError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, protocol.MessageResponse{Success: true, Message: "player deleted"})
}

func (s *Server) handleCompare(rw http.ResponseWriter, r *http.Request) {
	resp, err := s.svc.CompareHouses(r.Context(), r.PathValue("a"), r.PathValue("b"))
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (s *Server) handleListBadges(rw http.ResponseWriter, r *http.Request) {
	badges, err := s.svc.Badges(r.Context())
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, protocol.BadgeResponse{Success: true, Badges: badges})
}

func (s *Server) handleSelfRegistration(enabled bool) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if err := s.svc.SetSelfRegistration(enabled); err != nil {
			s.writeError(rw, r, err)
			return
		}
		s.logf("admin self registration enabled=%v", enabled)
		msg := "self registration disabled"
		if enabled {
			msg = "self registration enabled"
		}
		writeJSON(rw, http.StatusOK, protocol.MessageResponse{Success: true, Message: msg})
	}
}

func (s *Server) handleClearRegistration(rw http.ResponseWriter, r *http.Request) {
	b, err := s.svc.ClearRegistration(r.Context())
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	s.logf("admin cleared registration list")
	writeJSON(rw, http.StatusOK, protocol.BadgeResponse{Success: true, Badge: b, Message: "registration list cleared"})
}

func (s *Server) handlePurge(rw http.ResponseWriter, r *http.Request) {
	var req protocol.PurgeRequest
	if err := decode(r, protocol.SchemaPurge, &req); err != nil {
		s.writeError(rw, r, err)
		return
	}
	keep := 1
	if req.Options.RemainingPlayers != nil {
		keep = *req.Options.RemainingPlayers
	}
	order := game.PurgeByMoney
	if req.Options.DeleteBy != "" {
		order = game.PurgeOrder(req.Options.DeleteBy)
	}
	n, err := s.svc.PurgePlayers(r.Context(), req.RegistrationKey, keep, order)
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	s.logf("admin purge key=%s keep=%d by=%s deleted=%d", req.RegistrationKey, keep, order, n)
	writeJSON(rw, http.StatusOK, protocol.MessageResponse{Success: true, Message: "players purged", Count: n})
}
