package tuning

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	House        House        `yaml:"house"`
	Evictions    Evictions    `yaml:"evictions"`
	Robbery      Robbery      `yaml:"robbery"`
	Movement     Movement     `yaml:"movement"`
	Game         Game         `yaml:"game"`
	Registration Registration `yaml:"registration"`
	Shop         Shop         `yaml:"shop"`
	Sweeper      Sweeper      `yaml:"sweeper"`
}

type House struct {
	StartingDollars   int `yaml:"starting_dollars"`
	StartingWoodWalls int `yaml:"starting_wood_walls"`
}

type Evictions struct {
	DisableTimeout          bool `yaml:"disable_timeout"`
	ActivityTimeoutSeconds  int  `yaml:"activity_timeout_seconds"`
	HouseOwnerAccessMinutes int  `yaml:"house_owner_access_minutes"`
	RobberAccessMinutes     int  `yaml:"robber_access_minutes"`
}

type Robbery struct {
	CooldownSeconds int `yaml:"cooldown_seconds"`
}

type Movement struct {
	// RejectNonEmpty refuses any non-Empty cell even when its kind is passable.
	RejectNonEmpty bool `yaml:"reject_non_empty"`
}

type Game struct {
	DisplayLuckyNumbers bool `yaml:"display_lucky_numbers"`
}

type Registration struct {
	// MaxPlayersPerKey caps players per registration key; negative disables
	// the cap.
	MaxPlayersPerKey int `yaml:"max_players_per_key"`
	// SelfRegister lets badges add their own key to the registration list.
	SelfRegister bool `yaml:"self_register"`
}

// Limited reports whether n players already registered under one key
// reach the cap.
func (r Registration) Limited(n int) bool {
	return r.MaxPlayersPerKey >= 0 && n >= r.MaxPlayersPerKey
}

type Shop struct {
	MaxQuantity int `yaml:"max_quantity"`
}

type Sweeper struct {
	Enabled         bool `yaml:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds"`
}

func Defaults() Tuning {
	return Tuning{
		House:        House{StartingDollars: 100, StartingWoodWalls: 10},
		Evictions:    Evictions{ActivityTimeoutSeconds: 45, HouseOwnerAccessMinutes: 8, RobberAccessMinutes: 10},
		Robbery:      Robbery{CooldownSeconds: 45},
		Movement:     Movement{RejectNonEmpty: true},
		Game:         Game{DisplayLuckyNumbers: true},
		Registration: Registration{MaxPlayersPerKey: 10},
		Shop:         Shop{MaxQuantity: 1000},
		Sweeper:      Sweeper{Enabled: true, IntervalSeconds: 5},
	}
}

// Load reads a tuning file over Defaults. An empty path yields the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Normalize replaces zero durations and limits with their defaults.
func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	d := Defaults()
	if t.Evictions.ActivityTimeoutSeconds <= 0 {
		t.Evictions.ActivityTimeoutSeconds = d.Evictions.ActivityTimeoutSeconds
	}
	if t.Evictions.HouseOwnerAccessMinutes <= 0 {
		t.Evictions.HouseOwnerAccessMinutes = d.Evictions.HouseOwnerAccessMinutes
	}
	if t.Evictions.RobberAccessMinutes <= 0 {
		t.Evictions.RobberAccessMinutes = d.Evictions.RobberAccessMinutes
	}
	if t.Shop.MaxQuantity <= 0 {
		t.Shop.MaxQuantity = d.Shop.MaxQuantity
	}
	if t.Sweeper.IntervalSeconds <= 0 {
		t.Sweeper.IntervalSeconds = d.Sweeper.IntervalSeconds
	}
}

func (t Tuning) Validate() error {
	if t.House.StartingDollars < 0 {
		return fmt.Errorf("house.starting_dollars must be >= 0")
	}
	if t.House.StartingWoodWalls < 0 {
		return fmt.Errorf("house.starting_wood_walls must be >= 0")
	}
	if t.Robbery.CooldownSeconds < 0 {
		return fmt.Errorf("robbery.cooldown_seconds must be >= 0")
	}
	if t.Evictions.ActivityTimeoutSeconds <= 0 || t.Evictions.HouseOwnerAccessMinutes <= 0 || t.Evictions.RobberAccessMinutes <= 0 {
		return fmt.Errorf("evictions durations must be > 0")
	}
	if t.Shop.MaxQuantity <= 0 {
		return fmt.Errorf("shop.max_quantity must be > 0")
	}
	if t.Sweeper.IntervalSeconds <= 0 {
		return fmt.Errorf("sweeper.interval_seconds must be > 0")
	}
	return nil
}

func (e Evictions) ActivityTimeout() time.Duration {
	return time.Duration(e.ActivityTimeoutSeconds) * time.Second
}

func (e Evictions) OwnerAccess() time.Duration {
	return time.Duration(e.HouseOwnerAccessMinutes) * time.Minute
}

func (e Evictions) RobberAccess() time.Duration {
	return time.Duration(e.RobberAccessMinutes) * time.Minute
}

func (r Robbery) Cooldown() time.Duration {
	return time.Duration(r.CooldownSeconds) * time.Second
}

func (s Sweeper) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}
