// Package ws serves the game over a websocket. It is strictly
// request/response: every REQ gets exactly one RESULT and nothing is pushed.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"housevault/internal/protocol"
	"housevault/internal/sim/catalogs"
	"housevault/internal/sim/game"
	"housevault/internal/sim/grid"
	"housevault/internal/sim/occupancy"
)

type Server struct {
	svc *game.Service
	log *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(svc *game.Service, logger *log.Logger) *Server {
	return &Server{
		svc: svc,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		playerID := s.handshake(ctx, conn)
		if playerID == "" {
			return
		}

		out := make(chan []byte, 8)
		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			res := s.serve(ctx, playerID, msg)
			b, err := json.Marshal(res)
			if err != nil {
				s.logf("ws marshal result: %v", err)
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) string {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return ""
	}
	reject := func(reason string) string {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
		return ""
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		return reject("expected HELLO")
	}
	var hello protocol.HelloMsg
	if err := protocol.Decode(protocol.SchemaHello, msg, &hello); err != nil {
		return reject("malformed HELLO")
	}
	if hello.ProtocolVersion != protocol.Version {
		return reject("bad protocol_version")
	}
	p, err := s.svc.Authenticate(ctx, hello.PlayerID, hello.Token)
	if err != nil {
		return reject("unauthorized")
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		PlayerID:        p.ID,
		HouseID:         p.HouseID,
		Palette:         game.Palette(),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return ""
	}
	return p.ID
}

func (s *Server) serve(ctx context.Context, playerID string, msg []byte) protocol.ResultMsg {
	var req protocol.RequestMsg
	if err := protocol.Decode(protocol.SchemaRequest, msg, &req); err != nil {
		return failure("", err)
	}
	if req.Type != protocol.TypeRequest {
		return failure(req.ReqID, &protocol.ValidationError{Reason: "expected REQ"})
	}
	result, err := s.dispatch(ctx, playerID, req)
	if err != nil {
		if code, _ := protocol.CodeFor(err); code == protocol.ErrInternal {
			s.logf("ws %s player=%s: %v", req.Op, playerID, err)
		}
		return failure(req.ReqID, err)
	}
	return protocol.ResultMsg{Type: protocol.TypeResult, ReqID: req.ReqID, OK: true, Result: result}
}

func failure(reqID string, err error) protocol.ResultMsg {
	e := protocol.NewErrorResponse(err)
	return protocol.ResultMsg{Type: protocol.TypeResult, ReqID: reqID, Error: &e}
}

func (s *Server) dispatch(ctx context.Context, playerID string, req protocol.RequestMsg) (any, error) {
	cell := grid.Cell{X: req.X, Y: req.Y}
	switch req.Op {
	case protocol.OpLook:
		v, err := s.svc.Look(ctx, playerID, req.Compressed)
		return v.Response(), err
	case protocol.OpEnter:
		v, err := s.svc.Enter(ctx, playerID, req.HouseID, req.Compressed)
		return v.Response(), err
	case protocol.OpFindHouse:
		id, err := s.svc.FindHouse(ctx, playerID)
		return protocol.FindHouseResponse{Success: true, HouseID: id}, err
	case protocol.OpMove:
		dir, err := occupancy.ParseDirection(req.Direction)
		if err != nil {
			return nil, err
		}
		v, err := s.svc.Move(ctx, playerID, dir, req.Compressed)
		return v.Response(), err
	case protocol.OpLeave:
		return protocol.MessageResponse{Success: true}, s.svc.Leave(ctx, playerID)
	case protocol.OpBuild:
		k, err := catalogs.Parse(req.MaterialType)
		if err != nil {
			return nil, err
		}
		v, err := s.svc.Build(ctx, playerID, cell, k)
		return v.Response(), err
	case protocol.OpClear:
		v, err := s.svc.Clear(ctx, playerID, cell)
		return v.Response(), err
	case protocol.OpMoveVault:
		v, err := s.svc.MoveVault(ctx, playerID, cell)
		return v.Response(), err
	case protocol.OpVault:
		v, err := s.svc.Vault(ctx, playerID)
		return protocol.VaultResponse{Success: true, Dollars: v.Dollars, Walls: v.Walls, Stock: v.Stock}, err
	default:
		return nil, &protocol.ValidationError{Reason: "unknown op " + req.Op}
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
