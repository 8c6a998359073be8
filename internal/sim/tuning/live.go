package tuning

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Source hands out the current tuning. Readers take a snapshot per operation.
type Source interface {
	Current() Tuning
}

// Static is a fixed Source.
type Static Tuning

func (s Static) Current() Tuning { return Tuning(s) }

type field struct {
	get func(*Tuning) string
	set func(*Tuning, string) error
}

func intField(p func(*Tuning) *int) field {
	return field{
		get: func(t *Tuning) string { return strconv.Itoa(*p(t)) },
		set: func(t *Tuning, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("expected integer, got %q", v)
			}
			*p(t) = n
			return nil
		},
	}
}

func boolField(p func(*Tuning) *bool) field {
	return field{
		get: func(t *Tuning) string { return strconv.FormatBool(*p(t)) },
		set: func(t *Tuning, v string) error {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("expected boolean, got %q", v)
			}
			*p(t) = b
			return nil
		},
	}
}

var fields = map[string]field{
	"house.starting_dollars":               intField(func(t *Tuning) *int { return &t.House.StartingDollars }),
	"house.starting_wood_walls":            intField(func(t *Tuning) *int { return &t.House.StartingWoodWalls }),
	"evictions.disable_timeout":            boolField(func(t *Tuning) *bool { return &t.Evictions.DisableTimeout }),
	"evictions.activity_timeout_seconds":   intField(func(t *Tuning) *int { return &t.Evictions.ActivityTimeoutSeconds }),
	"evictions.house_owner_access_minutes": intField(func(t *Tuning) *int { return &t.Evictions.HouseOwnerAccessMinutes }),
	"evictions.robber_access_minutes":      intField(func(t *Tuning) *int { return &t.Evictions.RobberAccessMinutes }),
	"robbery.cooldown_seconds":             intField(func(t *Tuning) *int { return &t.Robbery.CooldownSeconds }),
	"movement.reject_non_empty":            boolField(func(t *Tuning) *bool { return &t.Movement.RejectNonEmpty }),
	"game.display_lucky_numbers":           boolField(func(t *Tuning) *bool { return &t.Game.DisplayLuckyNumbers }),
	"registration.max_players_per_key":     intField(func(t *Tuning) *int { return &t.Registration.MaxPlayersPerKey }),
	"registration.self_register":           boolField(func(t *Tuning) *bool { return &t.Registration.SelfRegister }),
	"shop.max_quantity":                    intField(func(t *Tuning) *int { return &t.Shop.MaxQuantity }),
	"sweeper.enabled":                      boolField(func(t *Tuning) *bool { return &t.Sweeper.Enabled }),
	"sweeper.interval_seconds":             intField(func(t *Tuning) *int { return &t.Sweeper.IntervalSeconds }),
}

// Keys lists every settable dotted key.
func Keys() []string {
	out := make([]string, 0, len(fields))
	for k := range fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Live is a Source whose values can be overridden at runtime by dotted key
// (evictions.activity_timeout_seconds=30). Safe for concurrent use.
type Live struct {
	mu  sync.RWMutex
	cur Tuning
}

func NewLive(t Tuning) *Live {
	return &Live{cur: t}
}

func (l *Live) Current() Tuning {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cur
}

func (l *Live) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("unknown config key %q", key)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return f.get(&l.cur), nil
}

// Set applies one override. The result must still validate; otherwise the
// previous value is kept.
func (l *Live) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	next := l.cur
	if err := f.set(&next, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	l.cur = next
	return nil
}

func (l *Live) Dump() map[string]string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]string, len(fields))
	for k, f := range fields {
		out[k] = f.get(&l.cur)
	}
	return out
}
