// Package httpapi exposes game.Service as a JSON HTTP API. Player routes are
// authenticated with the X-API-Token header; admin routes additionally
// require a loopback peer and the administration key.
package httpapi

import (
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"housevault/internal/metrics"
	"housevault/internal/protocol"
	"housevault/internal/sim/fault"
	"housevault/internal/sim/game"
	"housevault/internal/sim/player"
)

const (
	HeaderAPIToken      = "X-API-Token"
	HeaderRegisterToken = "X-Register-Token"

	maxBodyBytes = 64 << 10
)

type Config struct {
	// AdminKey guards /api/admin. Empty disables the admin routes.
	AdminKey string
	// Registry, when set, is served on /metrics.
	Registry *metrics.Registry
	Logger   *log.Logger
}

type Server struct {
	svc      *game.Service
	adminKey string
	reg      *metrics.Registry
	log      *log.Logger
}

func NewServer(svc *game.Service, cfg Config) *Server {
	return &Server{svc: svc, adminKey: cfg.AdminKey, reg: cfg.Registry, log: cfg.Logger}
}

// Register mounts every route on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /coffee", func(rw http.ResponseWriter, r *http.Request) {
		http.Error(rw, "I'm a teapot", http.StatusTeapot)
	})
	if s.reg != nil {
		mux.HandleFunc("GET /metrics", func(rw http.ResponseWriter, r *http.Request) {
			rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
			if err := s.reg.WritePrometheus(rw); err != nil {
				s.logf("write metrics: %v", err)
			}
		})
	}

	mux.HandleFunc("POST /api/self-register", s.handleSelfRegister)
	mux.HandleFunc("POST /api/player/{player_id}", s.handleRegister)
	mux.HandleFunc("GET /api/player/{player_id}", s.authed(s.handleGetPlayer))
	mux.HandleFunc("DELETE /api/player/{player_id}", s.authed(s.handleDeletePlayer))

	mux.HandleFunc("POST /api/house/{player_id}", s.authed(s.handleCreateHouse))
	mux.HandleFunc("GET /api/house/{player_id}", s.authed(s.handleGetHouse))
	mux.HandleFunc("GET /api/house/{player_id}/vault", s.authed(s.handleVault))
	mux.HandleFunc("DELETE /api/house/{player_id}/abandon", s.authed(s.handleAbandon))

	mux.HandleFunc("POST /api/edit-house/{player_id}/move-vault", s.authed(s.handleMoveVault))
	mux.HandleFunc("POST /api/edit-house/{player_id}/build", s.authed(s.handleBuild))
	mux.HandleFunc("DELETE /api/edit-house/{player_id}/clear", s.authed(s.handleClear))

	mux.HandleFunc("POST /api/shop/{player_id}/purchase", s.authed(s.handlePurchase))
	mux.HandleFunc("POST /api/shop/{player_id}/sell", s.authed(s.handleSell))

	mux.HandleFunc("POST /api/game/{player_id}/enter", s.authed(s.handleEnter))
	mux.HandleFunc("GET /api/game/{player_id}/find-house", s.authed(s.handleFindHouse))
	mux.HandleFunc("POST /api/game/{player_id}/move", s.authed(s.handleMove))
	mux.HandleFunc("POST /api/game/{player_id}/leave", s.authed(s.handleLeave))
	mux.HandleFunc("GET /api/game/{player_id}/look", s.authed(s.handleLook))

	if s.adminKey == "" {
		s.logf("admin endpoints disabled (no administration key)")
		return
	}
	mux.HandleFunc("GET /api/admin/state", s.admin(s.handleState))
	mux.HandleFunc("POST /api/admin/trigger-evictions", s.admin(s.handleTriggerEvictions(false)))
	mux.HandleFunc("POST /api/admin/trigger-evictions/all", s.admin(s.handleTriggerEvictions(true)))
	mux.HandleFunc("GET /api/admin/config", s.admin(s.handleConfigDump))
	mux.HandleFunc("GET /api/admin/config/{key}", s.admin(s.handleConfigGet))
	mux.HandleFunc("PUT /api/admin/config/{key}", s.admin(s.handleConfigSet))
	mux.HandleFunc("POST /api/admin/evict/{player_id}", s.admin(s.handleEvict))
	mux.HandleFunc("DELETE /api/admin/player/{player_id}", s.admin(s.handleAdminDeletePlayer))
	mux.HandleFunc("GET /api/admin/compare/{a}/{b}", s.admin(s.handleCompare))
	mux.HandleFunc("GET /api/admin/registration", s.admin(s.handleListBadges))
	mux.HandleFunc("POST /api/admin/enable-registration", s.admin(s.handleSelfRegistration(true)))
	mux.HandleFunc("POST /api/admin/disable-registration", s.admin(s.handleSelfRegistration(false)))
	mux.HandleFunc("DELETE /api/admin/clear-registration", s.admin(s.handleClearRegistration))
	mux.HandleFunc("POST /api/admin/purge-players", s.admin(s.handlePurge))
}

// Handler returns a fresh mux with every route mounted.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

type playerHandler func(rw http.ResponseWriter, r *http.Request, p *player.Player)

// authed resolves {player_id} against the X-API-Token header.
func (s *Server) authed(h playerHandler) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		p, err := s.svc.Authenticate(r.Context(), r.PathValue("player_id"), r.Header.Get(HeaderAPIToken))
		if err != nil {
			s.writeError(rw, r, err)
			return
		}
		h(rw, r, p)
	}
}

func (s *Server) admin(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			s.writeError(rw, r, fault.New(fault.Denied, "forbidden"))
			return
		}
		if r.Header.Get(HeaderAPIToken) != s.adminKey {
			s.writeError(rw, r, fault.ErrUnauthorized)
			return
		}
		h(rw, r)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// decode reads the body and validates it against the named request schema.
func decode(r *http.Request, schema string, dst any) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return &protocol.ValidationError{Reason: "unreadable body"}
	}
	return protocol.Decode(schema, raw, dst)
}

// compressed reads the ?compressed= flag; absent means false.
func compressed(r *http.Request) (bool, error) {
	v := r.URL.Query().Get("compressed")
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &protocol.ValidationError{Reason: "compressed must be a boolean"}
	}
	return b, nil
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func (s *Server) writeError(rw http.ResponseWriter, r *http.Request, err error) {
	code, status := protocol.CodeFor(err)
	if code == protocol.ErrInternal {
		s.logf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(rw, status, protocol.NewErrorResponse(err))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
