package store

import (
	"context"
	"sort"
	"sync"

	"housevault/internal/sim/house"
	"housevault/internal/sim/occupancy"
	"housevault/internal/sim/player"
)

type Memory struct {
	mu       sync.RWMutex
	players  map[string]*player.Player
	evicted  map[string]bool
	houses   map[string]*house.House
	sessions map[string]occupancy.Session
	badges   map[string]player.Badge
	archived []ArchivedPlayer
}

func NewMemory() *Memory {
	return &Memory{
		players:  map[string]*player.Player{},
		evicted:  map[string]bool{},
		houses:   map[string]*house.House{},
		sessions: map[string]occupancy.Session{},
		badges:   map[string]player.Badge{},
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) GetPlayer(_ context.Context, id string) (*player.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.playerCopy(p), nil
}

func (m *Memory) playerCopy(p *player.Player) *player.Player {
	cp := p.Clone()
	cp.Evicted = m.evicted[p.ID]
	return cp
}

func (m *Memory) PutPlayer(_ context.Context, p *player.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.players[p.ID]; !ok {
		m.evicted[p.ID] = p.Evicted
	}
	m.players[p.ID] = p.Clone()
	return nil
}

func (m *Memory) SetEvicted(_ context.Context, playerID string, evicted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.players[playerID]; !ok {
		return ErrNotFound
	}
	m.evicted[playerID] = evicted
	return nil
}

func (m *Memory) DeletePlayer(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.players[id]; !ok {
		return ErrNotFound
	}
	delete(m.players, id)
	delete(m.evicted, id)
	return nil
}

func (m *Memory) PlayersRegisteredBy(_ context.Context, key string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, p := range m.players {
		if p.RegisteredBy == key {
			n++
		}
	}
	return n, nil
}

func (m *Memory) ListPlayers(_ context.Context) ([]*player.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*player.Player, 0, len(m.players))
	for _, p := range m.players {
		out = append(out, m.playerCopy(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ArchivePlayer(_ context.Context, a ArchivedPlayer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.Player = a.Player.Clone()
	m.archived = append(m.archived, a)
	return nil
}

func (m *Memory) ListArchivedPlayers(_ context.Context) ([]ArchivedPlayer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ArchivedPlayer, len(m.archived))
	for i, a := range m.archived {
		a.Player = a.Player.Clone()
		out[i] = a
	}
	return out, nil
}

func (m *Memory) GetBadge(_ context.Context, key string) (player.Badge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.badges[key]
	if !ok {
		return player.Badge{}, ErrNotFound
	}
	return b, nil
}

func (m *Memory) BadgeByMAC(_ context.Context, mac string) (player.Badge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.badges {
		if mac != "" && b.MAC == mac {
			return b, nil
		}
	}
	return player.Badge{}, ErrNotFound
}

func (m *Memory) PutBadge(_ context.Context, b player.Badge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.badges[b.Key] = b
	return nil
}

func (m *Memory) ListBadges(_ context.Context) ([]player.Badge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]player.Badge, 0, len(m.badges))
	for _, b := range m.badges {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *Memory) ClearBadges(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.badges = map[string]player.Badge{}
	return nil
}

func (m *Memory) GetHouse(_ context.Context, id string) (*house.House, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.houses[id]
	if !ok {
		return nil, ErrNotFound
	}
	return h.Clone(), nil
}

func (m *Memory) PutHouse(_ context.Context, h *house.House) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.houses[h.ID] = h.Clone()
	return nil
}

func (m *Memory) ListHouses(_ context.Context) ([]*house.House, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*house.House, 0, len(m.houses))
	for _, h := range m.houses {
		out = append(out, h.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetSession(_ context.Context, playerID string) (occupancy.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[playerID]
	if !ok {
		return occupancy.Session{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) PutSession(_ context.Context, s occupancy.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.PlayerID] = s
	return nil
}

func (m *Memory) DeleteSession(_ context.Context, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[playerID]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, playerID)
	return nil
}

func (m *Memory) SessionsForHouse(_ context.Context, houseID string) ([]occupancy.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []occupancy.Session
	for _, s := range m.sessions {
		if s.HouseID == houseID {
			out = append(out, s)
		}
	}
	sortSessions(out)
	return out, nil
}

func (m *Memory) ListSessions(_ context.Context) ([]occupancy.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]occupancy.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sortSessions(out)
	return out, nil
}

func sortSessions(s []occupancy.Session) {
	sort.Slice(s, func(i, j int) bool { return s[i].PlayerID < s[j].PlayerID })
}
