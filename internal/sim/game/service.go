// Package game is the application service behind both transports. It
// authenticates players, loads and stores aggregates under the shared key
// locks and turns results into rendered views.
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"housevault/internal/metrics"
	persistlog "housevault/internal/persistence/log"
	"housevault/internal/persistence/store"
	"housevault/internal/sim/fault"
	"housevault/internal/sim/house"
	"housevault/internal/sim/keylock"
	"housevault/internal/sim/occupancy"
	"housevault/internal/sim/player"
	"housevault/internal/sim/tuning"
)

type Logger interface {
	Printf(format string, args ...any)
}

type Options struct {
	Store   store.Store
	Tuning  *tuning.Live
	Metrics metrics.Recorder
	Audit   occupancy.Auditor
	Logger  Logger
	Now     func() time.Time
	Rand    *rand.Rand
}

type Service struct {
	store   store.Store
	tuning  *tuning.Live
	occ     *occupancy.Manager
	locks   *keylock.Map
	metrics metrics.Recorder
	audit   occupancy.Auditor
	logger  Logger
	now     func() time.Time
}

func New(opts Options) *Service {
	s := &Service{
		store:   opts.Store,
		tuning:  opts.Tuning,
		locks:   keylock.New(),
		metrics: opts.Metrics,
		audit:   opts.Audit,
		logger:  opts.Logger,
		now:     opts.Now,
	}
	if s.tuning == nil {
		s.tuning = tuning.NewLive(tuning.Defaults())
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.occ = occupancy.NewManager(occupancy.Options{
		Store:   s.store,
		Tuning:  s.tuning,
		Locks:   s.locks,
		Metrics: s.metrics,
		Audit:   s.audit,
		Logger:  s.logger,
		Now:     s.now,
		Rand:    opts.Rand,
	})
	return s
}

func (s *Service) Occupancy() *occupancy.Manager { return s.occ }
func (s *Service) Tuning() *tuning.Live           { return s.tuning }

func (s *Service) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

func (s *Service) auditf(e persistlog.AuditEntry) {
	if s.audit == nil {
		return
	}
	e.Time = s.now().UTC()
	if err := s.audit.WriteAudit(e); err != nil {
		s.logf("audit write: %v", err)
	}
}

func missing(err error) bool { return errors.Is(err, store.ErrNotFound) }

func (s *Service) getPlayer(ctx context.Context, id string) (*player.Player, error) {
	p, err := s.store.GetPlayer(ctx, id)
	if missing(err) {
		return nil, fault.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load player %s: %w", id, err)
	}
	return p, nil
}

func (s *Service) getHouse(ctx context.Context, id string) (*house.House, error) {
	if id == "" {
		return nil, fault.ErrNoHouse
	}
	h, err := s.store.GetHouse(ctx, id)
	if missing(err) {
		return nil, fault.ErrHouseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load house %s: %w", id, err)
	}
	return h, nil
}

// Authenticate checks token against the player's and marks them active.
func (s *Service) Authenticate(ctx context.Context, playerID, token string) (*player.Player, error) {
	if playerID == "" || token == "" {
		return nil, fault.ErrUnauthorized
	}
	defer s.locks.Lock(occupancy.PlayerKey(playerID))()
	p, err := s.getPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if p.Token != token {
		return nil, fault.ErrUnauthorized
	}
	p.Touch(s.now())
	if err := s.store.PutPlayer(ctx, p); err != nil {
		return nil, fmt.Errorf("touch player: %w", err)
	}
	return p, nil
}

const maxPlayerIDLen = 64

func validPlayerID(id string) bool {
	if id == "" || len(id) > maxPlayerIDLen {
		return false
	}
	return !strings.ContainsAny(id, "/ \t\r\n")
}

// Register creates a player under a badge registration key and issues its
// API token.
func (s *Service) Register(ctx context.Context, playerID, registrationKey string) (*player.Player, error) {
	if !validPlayerID(playerID) {
		return nil, fault.ErrBadRequest
	}
	key := strings.TrimSpace(registrationKey)
	if key == "" {
		return nil, fault.ErrUnauthorized
	}
	if _, err := s.store.GetBadge(ctx, key); missing(err) {
		return nil, fault.ErrUnauthorized
	} else if err != nil {
		return nil, fmt.Errorf("load badge: %w", err)
	}
	defer s.locks.Lock(occupancy.PlayerKey(playerID))()
	// Registrations under one key are serialized so the cap holds.
	defer s.locks.Lock(badgeKey(key))()

	if _, err := s.store.GetPlayer(ctx, playerID); err == nil {
		return nil, fault.ErrPlayerExists
	} else if !missing(err) {
		return nil, fmt.Errorf("load player %s: %w", playerID, err)
	}
	if reg := s.tuning.Current().Registration; reg.MaxPlayersPerKey >= 0 {
		n, err := s.store.PlayersRegisteredBy(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("count registrations: %w", err)
		}
		if reg.Limited(n) {
			return nil, fault.ErrRegistrationLimit
		}
	}
	p := player.New(playerID, key, s.now())
	if err := s.store.PutPlayer(ctx, p); err != nil {
		return nil, fmt.Errorf("put player: %w", err)
	}
	s.auditf(persistlog.AuditEntry{Actor: playerID, Action: "REGISTER"})
	s.logf("registered player=%s", playerID)
	return p, nil
}

// Player returns the stored player; the caller is already authenticated.
func (s *Service) Player(ctx context.Context, playerID string) (*player.Player, error) {
	return s.getPlayer(ctx, playerID)
}

// DeletePlayer removes the player, ends their session and abandons their
// house. A copy of the player is archived first.
func (s *Service) DeletePlayer(ctx context.Context, playerID string) error {
	if err := s.occ.Leave(ctx, playerID); err != nil {
		return err
	}
	defer s.locks.Lock(occupancy.PlayerKey(playerID))()
	p, err := s.getPlayer(ctx, playerID)
	if err != nil {
		return err
	}
	if p.HasHouse() {
		if err := s.abandonLocked(ctx, p); err != nil && !errors.Is(err, fault.ErrHouseNotFound) {
			return err
		}
	}
	archived := store.ArchivedPlayer{ArchiveID: uuid.NewString(), DeletedOn: s.now().UTC(), Player: p}
	if err := s.store.ArchivePlayer(ctx, archived); err != nil {
		return fmt.Errorf("archive player: %w", err)
	}
	if err := s.store.DeletePlayer(ctx, playerID); err != nil && !missing(err) {
		return fmt.Errorf("delete player: %w", err)
	}
	s.auditf(persistlog.AuditEntry{Actor: playerID, Action: "DELETE_PLAYER"})
	s.logf("deleted player=%s", playerID)
	return nil
}

// CreateHouse gives a houseless player a fresh house.
func (s *Service) CreateHouse(ctx context.Context, playerID string) (*house.House, error) {
	defer s.locks.Lock(occupancy.PlayerKey(playerID))()
	p, err := s.getPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if p.HasHouse() {
		return nil, fault.ErrHasHouse
	}
	h := house.New(uuid.NewString(), s.tuning.Current().House)
	h.Metadata["owner"] = playerID
	if err := s.store.PutHouse(ctx, h); err != nil {
		return nil, fmt.Errorf("put house: %w", err)
	}
	p.HouseID = h.ID
	if err := s.store.PutPlayer(ctx, p); err != nil {
		return nil, fmt.Errorf("put player: %w", err)
	}
	s.auditf(persistlog.AuditEntry{Actor: playerID, HouseID: h.ID, Action: "CREATE_HOUSE"})
	return h, nil
}

// House returns the player's own house.
func (s *Service) House(ctx context.Context, playerID string) (*house.House, error) {
	p, err := s.getPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return s.getHouse(ctx, p.HouseID)
}

// Abandon gives up the player's house: it stays in the world, marked
// abandoned, and the player may create a new one.
func (s *Service) Abandon(ctx context.Context, playerID string) error {
	if err := s.occ.Leave(ctx, playerID); err != nil {
		return err
	}
	defer s.locks.Lock(occupancy.PlayerKey(playerID))()
	p, err := s.getPlayer(ctx, playerID)
	if err != nil {
		return err
	}
	if !p.HasHouse() {
		return fault.ErrNoHouse
	}
	if err := s.abandonLocked(ctx, p); err != nil {
		return err
	}
	p.HouseID = ""
	if err := s.store.PutPlayer(ctx, p); err != nil {
		return fmt.Errorf("put player: %w", err)
	}
	return nil
}

// abandonLocked requires the player lock.
func (s *Service) abandonLocked(ctx context.Context, p *player.Player) error {
	defer s.locks.Lock(occupancy.HouseKey(p.HouseID))()
	h, err := s.getHouse(ctx, p.HouseID)
	if err != nil {
		return err
	}
	h.Abandon(p.ID)
	if err := s.store.PutHouse(ctx, h); err != nil {
		return fmt.Errorf("put house: %w", err)
	}
	s.auditf(persistlog.AuditEntry{Actor: p.ID, HouseID: h.ID, Action: "ABANDON"})
	return nil
}

// VaultSummary condenses the player's vault.
type VaultSummary struct {
	Dollars int
	Walls   int
	Stock   map[string]int
}

func (s *Service) Vault(ctx context.Context, playerID string) (VaultSummary, error) {
	h, err := s.House(ctx, playerID)
	if err != nil {
		return VaultSummary{}, err
	}
	v := VaultSummary{Dollars: h.Vault.Dollars, Stock: map[string]int{}}
	for k, n := range h.Vault.Materials {
		if k.Placeable() {
			v.Walls += n
		}
		v.Stock[k.String()] = n
	}
	return v, nil
}
