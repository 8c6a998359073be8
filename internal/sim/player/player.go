package player

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Player struct {
	ID                 string
	HouseID            string
	Token              string
	RegisteredBy       string
	CreatedOn          time.Time
	LastActivity       time.Time
	LastRobberyAttempt *time.Time
	// Evicted is set when a session is reclaimed and consumed by the next
	// move attempt so the client learns why it is outside.
	Evicted bool
}

func New(id, registeredBy string, now time.Time) *Player {
	return &Player{
		ID:           id,
		Token:        NewToken(),
		RegisteredBy: registeredBy,
		CreatedOn:    now,
		LastActivity: now,
	}
}

func NewToken() string { return uuid.NewString() }

func (p *Player) HasHouse() bool { return p.HouseID != "" }

func (p *Player) Touch(now time.Time) { p.LastActivity = now }

// CooldownRemaining returns the whole seconds left before another robbery
// attempt is allowed, rounded up. Zero means an attempt may proceed.
func (p *Player) CooldownRemaining(now time.Time, cooldown time.Duration) int {
	if p.LastRobberyAttempt == nil || cooldown <= 0 {
		return 0
	}
	left := cooldown - now.Sub(*p.LastRobberyAttempt)
	if left <= 0 {
		return 0
	}
	secs := int(left / time.Second)
	if left%time.Second != 0 {
		secs++
	}
	return secs
}

func (p *Player) RecordRobberyAttempt(now time.Time) {
	t := now
	p.LastRobberyAttempt = &t
}

func (p *Player) Clone() *Player {
	cp := *p
	if p.LastRobberyAttempt != nil {
		t := *p.LastRobberyAttempt
		cp.LastRobberyAttempt = &t
	}
	return &cp
}

// Record is the stored form of a Player.
type Record struct {
	PlayerID           string     `json:"player_id"`
	HouseID            string     `json:"house_id,omitempty"`
	Token              string     `json:"token"`
	RegisteredBy       string     `json:"registered_by,omitempty"`
	CreatedOn          time.Time  `json:"created_on"`
	LastActivity       time.Time  `json:"last_activity"`
	LastRobberyAttempt *time.Time `json:"last_robbery_attempt,omitempty"`
	Evicted            bool       `json:"evicted"`
}

func (p *Player) ToRecord() Record {
	c := p.Clone()
	return Record{
		PlayerID:           c.ID,
		HouseID:            c.HouseID,
		Token:              c.Token,
		RegisteredBy:       c.RegisteredBy,
		CreatedOn:          c.CreatedOn,
		LastActivity:       c.LastActivity,
		LastRobberyAttempt: c.LastRobberyAttempt,
		Evicted:            c.Evicted,
	}
}

func FromRecord(r Record) (*Player, error) {
	if r.PlayerID == "" {
		return nil, fmt.Errorf("player record: missing player_id")
	}
	p := &Player{
		ID:           r.PlayerID,
		HouseID:      r.HouseID,
		Token:        r.Token,
		RegisteredBy: r.RegisteredBy,
		CreatedOn:    r.CreatedOn,
		LastActivity: r.LastActivity,
		Evicted:      r.Evicted,
	}
	if r.LastRobberyAttempt != nil {
		t := *r.LastRobberyAttempt
		p.LastRobberyAttempt = &t
	}
	return p, nil
}
