// Package occupancy runs the per-house session state machine: who is inside
// which house, how they walk, when they are thrown out and what happens when
// they reach someone else's vault.
package occupancy

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"housevault/internal/metrics"
	persistlog "housevault/internal/persistence/log"
	"housevault/internal/sim/catalogs"
	"housevault/internal/sim/fault"
	"housevault/internal/sim/grid"
	"housevault/internal/sim/house"
	"housevault/internal/sim/keylock"
	"housevault/internal/sim/player"
	"housevault/internal/sim/tuning"
)

// Store is the slice of persistence the manager needs. Missing records are
// reported as fault.ErrNoRecord. PutPlayer must not change the evicted flag
// of a stored player; SetEvicted is the only writer.
type Store interface {
	GetPlayer(ctx context.Context, id string) (*player.Player, error)
	PutPlayer(ctx context.Context, p *player.Player) error
	SetEvicted(ctx context.Context, playerID string, evicted bool) error
	GetHouse(ctx context.Context, id string) (*house.House, error)
	PutHouse(ctx context.Context, h *house.House) error
	ListHouses(ctx context.Context) ([]*house.House, error)
	GetSession(ctx context.Context, playerID string) (Session, error)
	PutSession(ctx context.Context, s Session) error
	DeleteSession(ctx context.Context, playerID string) error
	SessionsForHouse(ctx context.Context, houseID string) ([]Session, error)
	ListSessions(ctx context.Context) ([]Session, error)
}

type Logger interface {
	Printf(format string, args ...any)
}

type Auditor interface {
	WriteAudit(e persistlog.AuditEntry) error
}

// Lock keys shared by every component that touches players or houses.
func PlayerKey(id string) string { return "player/" + id }
func HouseKey(id string) string  { return "house/" + id }

func houseKeys(ids ...string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, HouseKey(id))
		}
	}
	return out
}

type Options struct {
	Store   Store
	Tuning  tuning.Source
	Locks   *keylock.Map
	Metrics metrics.Recorder
	Audit   Auditor
	Logger  Logger
	Now     func() time.Time
	Rand    *rand.Rand
}

type Manager struct {
	store   Store
	tuning  tuning.Source
	locks   *keylock.Map
	metrics metrics.Recorder
	audit   Auditor
	logger  Logger
	now     func() time.Time

	randMu sync.Mutex
	rand   *rand.Rand
}

func NewManager(opts Options) *Manager {
	m := &Manager{
		store:   opts.Store,
		tuning:  opts.Tuning,
		locks:   opts.Locks,
		metrics: opts.Metrics,
		audit:   opts.Audit,
		logger:  opts.Logger,
		now:     opts.Now,
		rand:    opts.Rand,
	}
	if m.tuning == nil {
		m.tuning = tuning.Static(tuning.Defaults())
	}
	if m.locks == nil {
		m.locks = keylock.New()
	}
	if m.metrics == nil {
		m.metrics = metrics.Nop{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.rand == nil {
		m.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return m
}

func (m *Manager) Locks() *keylock.Map { return m.locks }

func (m *Manager) logf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}

func (m *Manager) auditf(e persistlog.AuditEntry) {
	if m.audit == nil {
		return
	}
	e.Time = m.now().UTC()
	if err := m.audit.WriteAudit(e); err != nil {
		m.logf("audit write: %v", err)
	}
}

func isMissing(err error) bool { return errors.Is(err, fault.ErrNoRecord) }

func (m *Manager) loadPlayer(ctx context.Context, id string) (*player.Player, error) {
	p, err := m.store.GetPlayer(ctx, id)
	if isMissing(err) {
		return nil, fault.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load player %s: %w", id, err)
	}
	return p, nil
}

func (m *Manager) loadHouse(ctx context.Context, id string) (*house.House, error) {
	h, err := m.store.GetHouse(ctx, id)
	if isMissing(err) {
		return nil, fault.ErrHouseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load house %s: %w", id, err)
	}
	return h, nil
}

// session returns the player's session, ok=false when outside.
func (m *Manager) session(ctx context.Context, playerID string) (Session, bool, error) {
	s, err := m.store.GetSession(ctx, playerID)
	if isMissing(err) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("load session %s: %w", playerID, err)
	}
	return s, true, nil
}

// Enter opens a session for playerID at the door of houseID. A stale
// occupant is evicted first; a fresh one makes the house unavailable.
func (m *Manager) Enter(ctx context.Context, playerID, houseID string) (Session, error) {
	defer m.locks.Lock(PlayerKey(playerID))()

	p, err := m.loadPlayer(ctx, playerID)
	if err != nil {
		return Session{}, err
	}
	if _, inside, err := m.session(ctx, playerID); err != nil {
		return Session{}, err
	} else if inside {
		return Session{}, fault.ErrAlreadyInside
	}

	defer m.locks.Lock(HouseKey(houseID))()

	h, err := m.loadHouse(ctx, houseID)
	if err != nil {
		return Session{}, err
	}
	if h.Abandoned {
		return Session{}, fault.ErrAbandoned
	}

	now := m.now()
	occupants, err := m.store.SessionsForHouse(ctx, houseID)
	if err != nil {
		return Session{}, fmt.Errorf("sessions for house %s: %w", houseID, err)
	}
	for _, occ := range occupants {
		if occ.PlayerID == playerID {
			continue
		}
		if !m.VisitTooLong(ctx, occ, now) {
			return Session{}, fault.ErrHouseOccupied
		}
		if err := m.evictLocked(ctx, occ, "stale"); err != nil {
			return Session{}, err
		}
	}

	s := Session{
		PlayerID:       playerID,
		HouseID:        houseID,
		AccessTime:     now,
		LatestActivity: now,
		Location:       grid.Door,
	}
	if err := m.store.PutSession(ctx, s); err != nil {
		return Session{}, fmt.Errorf("put session: %w", err)
	}
	p.Touch(now)
	if err := m.store.PutPlayer(ctx, p); err != nil {
		return Session{}, fmt.Errorf("put player: %w", err)
	}
	if p.Evicted {
		if err := m.store.SetEvicted(ctx, playerID, false); err != nil {
			return Session{}, fmt.Errorf("clear evicted flag: %w", err)
		}
	}
	m.auditf(persistlog.AuditEntry{Actor: playerID, HouseID: houseID, Action: "ENTER"})
	return s, nil
}

// Leave closes the player's session. Leaving while outside is not an error.
func (m *Manager) Leave(ctx context.Context, playerID string) error {
	defer m.locks.Lock(PlayerKey(playerID))()

	s, inside, err := m.session(ctx, playerID)
	if err != nil || !inside {
		return err
	}
	defer m.locks.Lock(HouseKey(s.HouseID))()
	if err := m.store.DeleteSession(ctx, playerID); err != nil && !isMissing(err) {
		return fmt.Errorf("delete session: %w", err)
	}
	m.auditf(persistlog.AuditEntry{Actor: playerID, HouseID: s.HouseID, Action: "LEAVE"})
	return nil
}

// Evict removes the player's session and flags the player so their next
// move learns why.
func (m *Manager) Evict(ctx context.Context, playerID, reason string) error {
	defer m.locks.Lock(PlayerKey(playerID))()

	s, inside, err := m.session(ctx, playerID)
	if err != nil {
		return err
	}
	if !inside {
		return fault.ErrNotInHouse
	}
	defer m.locks.Lock(HouseKey(s.HouseID))()
	return m.evictLocked(ctx, s, reason)
}

// evictLocked requires the house lock of s.HouseID. The player's lock may
// not be held, so the player record is only touched through SetEvicted.
func (m *Manager) evictLocked(ctx context.Context, s Session, reason string) error {
	if err := m.store.DeleteSession(ctx, s.PlayerID); err != nil && !isMissing(err) {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := m.store.SetEvicted(ctx, s.PlayerID, true); err != nil && !isMissing(err) {
		return fmt.Errorf("flag evicted player: %w", err)
	}
	m.metrics.Eviction(reason)
	m.auditf(persistlog.AuditEntry{Actor: s.PlayerID, HouseID: s.HouseID, Action: "EVICT", Reason: reason})
	m.logf("evicted player=%s house=%s reason=%s", s.PlayerID, s.HouseID, reason)
	return nil
}

// VisitTooLong applies the eviction policy to s, looking up whether the
// occupant owns the house.
func (m *Manager) VisitTooLong(ctx context.Context, s Session, now time.Time) bool {
	isOwner := false
	if p, err := m.store.GetPlayer(ctx, s.PlayerID); err == nil {
		isOwner = p.HouseID == s.HouseID
	}
	return VisitTooLong(s, isOwner, now, m.tuning.Current().Evictions)
}

// Sweep evicts every stale session and reports how many went.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	return m.sweep(ctx, false)
}

// EvictAll evicts every session regardless of staleness.
func (m *Manager) EvictAll(ctx context.Context) (int, error) {
	return m.sweep(ctx, true)
}

func (m *Manager) sweep(ctx context.Context, force bool) (int, error) {
	all, err := m.store.ListSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}
	reason := "stale"
	if force {
		reason = "forced"
	}
	n := 0
	for _, s := range all {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		evicted, err := m.sweepOne(ctx, s.PlayerID, s.HouseID, force, reason)
		if err != nil {
			return n, err
		}
		if evicted {
			n++
		}
	}
	return n, nil
}

func (m *Manager) sweepOne(ctx context.Context, playerID, houseID string, force bool, reason string) (bool, error) {
	defer m.locks.Lock(HouseKey(houseID))()
	s, inside, err := m.session(ctx, playerID)
	if err != nil || !inside || s.HouseID != houseID {
		return false, err
	}
	if !force && !m.VisitTooLong(ctx, s, m.now()) {
		return false, nil
	}
	return true, m.evictLocked(ctx, s, reason)
}

// SessionOf returns the player's session or fault.ErrNotInHouse.
func (m *Manager) SessionOf(ctx context.Context, playerID string) (Session, error) {
	s, inside, err := m.session(ctx, playerID)
	if err != nil {
		return Session{}, err
	}
	if !inside {
		return Session{}, fault.ErrNotInHouse
	}
	return s, nil
}

// OccupyingHouse returns the id of the house the player is inside.
func (m *Manager) OccupyingHouse(ctx context.Context, playerID string) (string, bool, error) {
	s, inside, err := m.session(ctx, playerID)
	if err != nil || !inside {
		return "", false, err
	}
	return s.HouseID, true, nil
}

// FindUnoccupiedHouse picks a random non-abandoned house nobody is inside,
// skipping exclusions.
func (m *Manager) FindUnoccupiedHouse(ctx context.Context, exclusions ...string) (string, error) {
	houses, err := m.store.ListHouses(ctx)
	if err != nil {
		return "", fmt.Errorf("list houses: %w", err)
	}
	sessions, err := m.store.ListSessions(ctx)
	if err != nil {
		return "", fmt.Errorf("list sessions: %w", err)
	}
	skip := make(map[string]bool, len(sessions)+len(exclusions))
	for _, s := range sessions {
		skip[s.HouseID] = true
	}
	for _, id := range exclusions {
		skip[strings.TrimSpace(id)] = true
	}
	var open []string
	for _, h := range houses {
		if h.Abandoned || skip[h.ID] {
			continue
		}
		open = append(open, h.ID)
	}
	if len(open) == 0 {
		return "", fault.ErrHouseNotFound
	}
	sort.Strings(open)
	m.randMu.Lock()
	i := m.rand.Intn(len(open))
	m.randMu.Unlock()
	return open[i], nil
}

// material reports what a walker would step onto. The door is always open.
func material(h *house.House, c grid.Cell) (catalogs.Kind, error) {
	if grid.IsDoor(c) {
		return catalogs.Empty, nil
	}
	return h.MaterialAt(c)
}
