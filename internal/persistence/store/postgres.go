package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"housevault/internal/sim/house"
	"housevault/internal/sim/occupancy"
	"housevault/internal/sim/player"
)

type playerRow struct {
	PlayerID     string `gorm:"primaryKey"`
	HouseID      string
	RegisteredBy string `gorm:"index"`
	Evicted      bool   `gorm:"not null;default:false"`
	Doc          string `gorm:"type:text;not null"`
}

func (playerRow) TableName() string { return "players" }

type houseRow struct {
	HouseID   string `gorm:"primaryKey"`
	Abandoned bool
	Doc       string `gorm:"type:text;not null"`
}

func (houseRow) TableName() string { return "houses" }

type sessionRow struct {
	PlayerID string `gorm:"primaryKey"`
	HouseID  string `gorm:"index;not null"`
	Doc      string `gorm:"type:text;not null"`
}

func (sessionRow) TableName() string { return "sessions" }

type badgeRow struct {
	RegistrationKey string `gorm:"primaryKey"`
	MAC             string `gorm:"column:mac;index"`
	Doc             string `gorm:"type:text;not null"`
}

func (badgeRow) TableName() string { return "registration" }

type archivedPlayerRow struct {
	ArchiveID string    `gorm:"primaryKey"`
	PlayerID  string    `gorm:"index;not null"`
	DeletedOn time.Time `gorm:"index;not null"`
	Doc       string    `gorm:"type:text;not null"`
}

func (archivedPlayerRow) TableName() string { return "deleted_players" }

// Postgres keeps the same tables as the sqlite backend, managed by gorm.
type Postgres struct {
	db *gorm.DB
}

func OpenPostgres(dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty postgres dsn")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&playerRow{}, &houseRow{}, &sessionRow{}, &badgeRow{}, &archivedPlayerRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (s *Postgres) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Postgres) GetPlayer(ctx context.Context, id string) (*player.Player, error) {
	var row playerRow
	if err := s.first(ctx, &row, "player_id = ?", id); err != nil {
		return nil, err
	}
	return row.player()
}

func (r playerRow) player() (*player.Player, error) {
	p, err := decodePlayer(r.Doc)
	if err != nil {
		return nil, err
	}
	p.Evicted = r.Evicted
	return p, nil
}

// PutPlayer upserts everything but the evicted flag of an existing row.
func (s *Postgres) PutPlayer(ctx context.Context, p *player.Player) error {
	doc, err := encodePlayer(p)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"house_id", "registered_by", "doc"}),
	}).Create(&playerRow{
		PlayerID:     p.ID,
		HouseID:      p.HouseID,
		RegisteredBy: p.RegisteredBy,
		Evicted:      p.Evicted,
		Doc:          doc,
	}).Error
}

func (s *Postgres) SetEvicted(ctx context.Context, playerID string, evicted bool) error {
	res := s.db.WithContext(ctx).Model(&playerRow{}).Where("player_id = ?", playerID).Update("evicted", evicted)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) DeletePlayer(ctx context.Context, id string) error {
	return s.delete(ctx, &playerRow{}, "player_id = ?", id)
}

func (s *Postgres) PlayersRegisteredBy(ctx context.Context, key string) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&playerRow{}).Where("registered_by = ?", key).Count(&n).Error
	return int(n), err
}

func (s *Postgres) ListPlayers(ctx context.Context) ([]*player.Player, error) {
	var rows []playerRow
	if err := s.db.WithContext(ctx).Order("player_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*player.Player, 0, len(rows))
	for _, r := range rows {
		p, err := r.player()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Postgres) ArchivePlayer(ctx context.Context, a ArchivedPlayer) error {
	doc, err := encodePlayer(a.Player)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&archivedPlayerRow{
		ArchiveID: a.ArchiveID,
		PlayerID:  a.Player.ID,
		DeletedOn: a.DeletedOn.UTC(),
		Doc:       doc,
	}).Error
}

func (s *Postgres) ListArchivedPlayers(ctx context.Context) ([]ArchivedPlayer, error) {
	var rows []archivedPlayerRow
	if err := s.db.WithContext(ctx).Order("deleted_on, archive_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ArchivedPlayer, 0, len(rows))
	for _, r := range rows {
		p, err := decodePlayer(r.Doc)
		if err != nil {
			return nil, err
		}
		out = append(out, ArchivedPlayer{ArchiveID: r.ArchiveID, DeletedOn: r.DeletedOn, Player: p})
	}
	return out, nil
}

func (s *Postgres) GetBadge(ctx context.Context, key string) (player.Badge, error) {
	var row badgeRow
	if err := s.first(ctx, &row, "registration_key = ?", key); err != nil {
		return player.Badge{}, err
	}
	return decodeBadge(row.Doc)
}

func (s *Postgres) BadgeByMAC(ctx context.Context, mac string) (player.Badge, error) {
	if mac == "" {
		return player.Badge{}, ErrNotFound
	}
	var row badgeRow
	if err := s.first(ctx, &row, "mac = ?", mac); err != nil {
		return player.Badge{}, err
	}
	return decodeBadge(row.Doc)
}

func (s *Postgres) PutBadge(ctx context.Context, b player.Badge) error {
	doc, err := encodeBadge(b)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(&badgeRow{RegistrationKey: b.Key, MAC: b.MAC, Doc: doc}).Error
}

func (s *Postgres) ListBadges(ctx context.Context) ([]player.Badge, error) {
	var rows []badgeRow
	if err := s.db.WithContext(ctx).Order("registration_key").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]player.Badge, 0, len(rows))
	for _, r := range rows {
		b, err := decodeBadge(r.Doc)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *Postgres) ClearBadges(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&badgeRow{}).Error
}

func (s *Postgres) GetHouse(ctx context.Context, id string) (*house.House, error) {
	var row houseRow
	if err := s.first(ctx, &row, "house_id = ?", id); err != nil {
		return nil, err
	}
	return decodeHouse(row.Doc)
}

func (s *Postgres) PutHouse(ctx context.Context, h *house.House) error {
	doc, err := encodeHouse(h)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(&houseRow{HouseID: h.ID, Abandoned: h.Abandoned, Doc: doc}).Error
}

func (s *Postgres) ListHouses(ctx context.Context) ([]*house.House, error) {
	var rows []houseRow
	if err := s.db.WithContext(ctx).Order("house_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*house.House, 0, len(rows))
	for _, r := range rows {
		h, err := decodeHouse(r.Doc)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func (s *Postgres) GetSession(ctx context.Context, playerID string) (occupancy.Session, error) {
	var row sessionRow
	if err := s.first(ctx, &row, "player_id = ?", playerID); err != nil {
		return occupancy.Session{}, err
	}
	return decodeSession(row.Doc)
}

func (s *Postgres) PutSession(ctx context.Context, sess occupancy.Session) error {
	doc, err := encodeSession(sess)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(&sessionRow{PlayerID: sess.PlayerID, HouseID: sess.HouseID, Doc: doc}).Error
}

func (s *Postgres) DeleteSession(ctx context.Context, playerID string) error {
	return s.delete(ctx, &sessionRow{}, "player_id = ?", playerID)
}

func (s *Postgres) SessionsForHouse(ctx context.Context, houseID string) ([]occupancy.Session, error) {
	var rows []sessionRow
	if err := s.db.WithContext(ctx).Where("house_id = ?", houseID).Order("player_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return sessionDocs(rows)
}

func (s *Postgres) ListSessions(ctx context.Context) ([]occupancy.Session, error) {
	var rows []sessionRow
	if err := s.db.WithContext(ctx).Order("player_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return sessionDocs(rows)
}

func (s *Postgres) first(ctx context.Context, dst any, cond string, arg string) error {
	err := s.db.WithContext(ctx).Where(cond, arg).First(dst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *Postgres) delete(ctx context.Context, model any, cond string, arg string) error {
	res := s.db.WithContext(ctx).Where(cond, arg).Delete(model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func sessionDocs(rows []sessionRow) ([]occupancy.Session, error) {
	docs := make([]string, len(rows))
	for i, r := range rows {
		docs[i] = r.Doc
	}
	return decodeSessions(docs)
}
