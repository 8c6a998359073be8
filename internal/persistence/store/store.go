// Package store persists players, houses and occupancy sessions. Every
// backend hands out copies; callers mutate and Put back.
//
// A player's evicted flag is the one field written without the player's
// lock (the sweeper holds only house locks). It lives outside the player
// document: PutPlayer keeps the stored flag of an existing player and only
// SetEvicted changes it.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"housevault/internal/sim/fault"
	"housevault/internal/sim/house"
	"housevault/internal/sim/occupancy"
	"housevault/internal/sim/player"
)

// ErrNotFound is returned for missing keys.
var ErrNotFound = fault.ErrNoRecord

type Store interface {
	GetPlayer(ctx context.Context, id string) (*player.Player, error)
	PutPlayer(ctx context.Context, p *player.Player) error
	SetEvicted(ctx context.Context, playerID string, evicted bool) error
	DeletePlayer(ctx context.Context, id string) error
	PlayersRegisteredBy(ctx context.Context, key string) (int, error)
	ListPlayers(ctx context.Context) ([]*player.Player, error)
	// ArchivePlayer keeps a copy of a deleted player under a fresh id, so
	// one player id may be archived more than once.
	ArchivePlayer(ctx context.Context, a ArchivedPlayer) error
	ListArchivedPlayers(ctx context.Context) ([]ArchivedPlayer, error)

	GetBadge(ctx context.Context, key string) (player.Badge, error)
	BadgeByMAC(ctx context.Context, mac string) (player.Badge, error)
	PutBadge(ctx context.Context, b player.Badge) error
	ListBadges(ctx context.Context) ([]player.Badge, error)
	ClearBadges(ctx context.Context) error

	GetHouse(ctx context.Context, id string) (*house.House, error)
	PutHouse(ctx context.Context, h *house.House) error
	ListHouses(ctx context.Context) ([]*house.House, error)

	GetSession(ctx context.Context, playerID string) (occupancy.Session, error)
	PutSession(ctx context.Context, s occupancy.Session) error
	DeleteSession(ctx context.Context, playerID string) error
	SessionsForHouse(ctx context.Context, houseID string) ([]occupancy.Session, error)
	ListSessions(ctx context.Context) ([]occupancy.Session, error)

	Close() error
}

type ArchivedPlayer struct {
	ArchiveID string
	DeletedOn time.Time
	Player    *player.Player
}

var (
	_ occupancy.Store = Store(nil)
	_ Store           = (*Memory)(nil)
	_ Store           = (*SQLite)(nil)
	_ Store           = (*Postgres)(nil)
)

type Config struct {
	// Backend is memory, sqlite or postgres.
	Backend     string
	SQLitePath  string
	PostgresDSN string
}

// Open builds the configured backend.
func Open(cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "sqlite":
		return OpenSQLite(cfg.SQLitePath)
	case "memory":
		return NewMemory(), nil
	case "postgres":
		return OpenPostgres(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
