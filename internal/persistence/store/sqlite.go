package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"housevault/internal/sim/house"
	"housevault/internal/sim/occupancy"
	"housevault/internal/sim/player"
)

// SQLite is the default durable backend. Writes are synchronous: this is the
// source of truth, not a secondary index.
type SQLite struct {
	db   *sql.DB
	once sync.Once
}

func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS players (
			player_id TEXT PRIMARY KEY,
			house_id TEXT NOT NULL DEFAULT '',
			registered_by TEXT NOT NULL DEFAULT '',
			evicted INTEGER NOT NULL DEFAULT 0,
			doc TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_players_registered_by ON players(registered_by);`,
		`CREATE TABLE IF NOT EXISTS houses (
			house_id TEXT PRIMARY KEY,
			abandoned INTEGER NOT NULL DEFAULT 0,
			doc TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			player_id TEXT PRIMARY KEY,
			house_id TEXT NOT NULL,
			doc TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_house ON sessions(house_id);`,
		`CREATE TABLE IF NOT EXISTS registration (
			registration_key TEXT PRIMARY KEY,
			mac TEXT NOT NULL DEFAULT '',
			doc TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_registration_mac ON registration(mac);`,
		`CREATE TABLE IF NOT EXISTS deleted_players (
			archive_id TEXT PRIMARY KEY,
			player_id TEXT NOT NULL,
			deleted_on TEXT NOT NULL,
			doc TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_deleted_players_player ON deleted_players(player_id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return ensureColumn(db, "players", "evicted", "INTEGER NOT NULL DEFAULT 0")
}

// ensureColumn adds a column missing from a table created by an older build.
func ensureColumn(db *sql.DB, table, column, decl string) error {
	rows, err := db.Query(fmt.Sprintf(`SELECT name FROM pragma_table_info('%s')`, table))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	_, err = db.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, decl))
	return err
}

// DB exposes the handle for read-only inspection tools.
func (s *SQLite) DB() *sql.DB { return s.db }

func (s *SQLite) Close() error {
	var err error
	s.once.Do(func() { err = s.db.Close() })
	return err
}

func (s *SQLite) GetPlayer(ctx context.Context, id string) (*player.Player, error) {
	ps, err := s.queryPlayers(ctx, `SELECT doc, evicted FROM players WHERE player_id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(ps) == 0 {
		return nil, ErrNotFound
	}
	return ps[0], nil
}

// PutPlayer upserts everything but the evicted flag of an existing row.
func (s *SQLite) PutPlayer(ctx context.Context, p *player.Player) error {
	doc, err := encodePlayer(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO players(player_id, house_id, registered_by, evicted, doc) VALUES(?,?,?,?,?)
		 ON CONFLICT(player_id) DO UPDATE SET house_id=excluded.house_id, registered_by=excluded.registered_by, doc=excluded.doc`,
		p.ID, p.HouseID, p.RegisteredBy, boolInt(p.Evicted), doc)
	return err
}

func (s *SQLite) SetEvicted(ctx context.Context, playerID string, evicted bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE players SET evicted = ? WHERE player_id = ?`, boolInt(evicted), playerID)
	if err != nil {
		return err
	}
	return affected(res)
}

func (s *SQLite) DeletePlayer(ctx context.Context, id string) error {
	return s.deleteRow(ctx, `DELETE FROM players WHERE player_id = ?`, id)
}

func (s *SQLite) PlayersRegisteredBy(ctx context.Context, key string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM players WHERE registered_by = ?`, key).Scan(&n)
	return n, err
}

func (s *SQLite) ListPlayers(ctx context.Context) ([]*player.Player, error) {
	return s.queryPlayers(ctx, `SELECT doc, evicted FROM players ORDER BY player_id`)
}

func (s *SQLite) queryPlayers(ctx context.Context, q string, args ...any) ([]*player.Player, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*player.Player
	for rows.Next() {
		var doc string
		var evicted int
		if err := rows.Scan(&doc, &evicted); err != nil {
			return nil, err
		}
		p, err := decodePlayer(doc)
		if err != nil {
			return nil, err
		}
		p.Evicted = evicted != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

// archiveTimeLayout sorts lexically in time order.
const archiveTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (s *SQLite) ArchivePlayer(ctx context.Context, a ArchivedPlayer) error {
	doc, err := encodePlayer(a.Player)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO deleted_players(archive_id, player_id, deleted_on, doc) VALUES(?,?,?,?)`,
		a.ArchiveID, a.Player.ID, a.DeletedOn.UTC().Format(archiveTimeLayout), doc)
	return err
}

func (s *SQLite) ListArchivedPlayers(ctx context.Context) ([]ArchivedPlayer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT archive_id, deleted_on, doc FROM deleted_players ORDER BY deleted_on, archive_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ArchivedPlayer
	for rows.Next() {
		var id, at, doc string
		if err := rows.Scan(&id, &at, &doc); err != nil {
			return nil, err
		}
		p, err := decodePlayer(doc)
		if err != nil {
			return nil, err
		}
		deletedOn, err := time.Parse(archiveTimeLayout, at)
		if err != nil {
			return nil, fmt.Errorf("archived player %s: %w", id, err)
		}
		out = append(out, ArchivedPlayer{ArchiveID: id, DeletedOn: deletedOn, Player: p})
	}
	return out, rows.Err()
}

func (s *SQLite) GetBadge(ctx context.Context, key string) (player.Badge, error) {
	doc, err := s.getDoc(ctx, `SELECT doc FROM registration WHERE registration_key = ?`, key)
	if err != nil {
		return player.Badge{}, err
	}
	return decodeBadge(doc)
}

func (s *SQLite) BadgeByMAC(ctx context.Context, mac string) (player.Badge, error) {
	if mac == "" {
		return player.Badge{}, ErrNotFound
	}
	doc, err := s.getDoc(ctx, `SELECT doc FROM registration WHERE mac = ? ORDER BY registration_key LIMIT 1`, mac)
	if err != nil {
		return player.Badge{}, err
	}
	return decodeBadge(doc)
}

func (s *SQLite) PutBadge(ctx context.Context, b player.Badge) error {
	doc, err := encodeBadge(b)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO registration(registration_key, mac, doc) VALUES(?,?,?)
		 ON CONFLICT(registration_key) DO UPDATE SET mac=excluded.mac, doc=excluded.doc`,
		b.Key, b.MAC, doc)
	return err
}

func (s *SQLite) ListBadges(ctx context.Context) ([]player.Badge, error) {
	docs, err := s.listDocs(ctx, `SELECT doc FROM registration ORDER BY registration_key`)
	if err != nil {
		return nil, err
	}
	out := make([]player.Badge, 0, len(docs))
	for _, d := range docs {
		b, err := decodeBadge(d)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *SQLite) ClearBadges(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM registration`)
	return err
}

func (s *SQLite) GetHouse(ctx context.Context, id string) (*house.House, error) {
	doc, err := s.getDoc(ctx, `SELECT doc FROM houses WHERE house_id = ?`, id)
	if err != nil {
		return nil, err
	}
	return decodeHouse(doc)
}

func (s *SQLite) PutHouse(ctx context.Context, h *house.House) error {
	doc, err := encodeHouse(h)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO houses(house_id, abandoned, doc) VALUES(?,?,?)
		 ON CONFLICT(house_id) DO UPDATE SET abandoned=excluded.abandoned, doc=excluded.doc`,
		h.ID, boolInt(h.Abandoned), doc)
	return err
}

func (s *SQLite) ListHouses(ctx context.Context) ([]*house.House, error) {
	docs, err := s.listDocs(ctx, `SELECT doc FROM houses ORDER BY house_id`)
	if err != nil {
		return nil, err
	}
	out := make([]*house.House, 0, len(docs))
	for _, d := range docs {
		h, err := decodeHouse(d)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func (s *SQLite) GetSession(ctx context.Context, playerID string) (occupancy.Session, error) {
	doc, err := s.getDoc(ctx, `SELECT doc FROM sessions WHERE player_id = ?`, playerID)
	if err != nil {
		return occupancy.Session{}, err
	}
	return decodeSession(doc)
}

func (s *SQLite) PutSession(ctx context.Context, sess occupancy.Session) error {
	doc, err := encodeSession(sess)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions(player_id, house_id, doc) VALUES(?,?,?)
		 ON CONFLICT(player_id) DO UPDATE SET house_id=excluded.house_id, doc=excluded.doc`,
		sess.PlayerID, sess.HouseID, doc)
	return err
}

func (s *SQLite) DeleteSession(ctx context.Context, playerID string) error {
	return s.deleteRow(ctx, `DELETE FROM sessions WHERE player_id = ?`, playerID)
}

func (s *SQLite) SessionsForHouse(ctx context.Context, houseID string) ([]occupancy.Session, error) {
	docs, err := s.listDocs(ctx, `SELECT doc FROM sessions WHERE house_id = ? ORDER BY player_id`, houseID)
	if err != nil {
		return nil, err
	}
	return decodeSessions(docs)
}

func (s *SQLite) ListSessions(ctx context.Context) ([]occupancy.Session, error) {
	docs, err := s.listDocs(ctx, `SELECT doc FROM sessions ORDER BY player_id`)
	if err != nil {
		return nil, err
	}
	return decodeSessions(docs)
}

func (s *SQLite) getDoc(ctx context.Context, q string, args ...any) (string, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, q, args...).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return doc, err
}

func (s *SQLite) listDocs(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *SQLite) deleteRow(ctx context.Context, q string, id string) error {
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	return affected(res)
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeSessions(docs []string) ([]occupancy.Session, error) {
	out := make([]occupancy.Session, 0, len(docs))
	for _, d := range docs {
		s, err := decodeSession(d)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
