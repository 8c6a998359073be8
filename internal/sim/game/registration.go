package game

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	persistlog "housevault/internal/persistence/log"
	"housevault/internal/sim/fault"
	"housevault/internal/sim/player"
)

// registrationLock serializes changes to the badge list.
const registrationLock = "registration"

func badgeKey(key string) string { return "badge/" + key }

// SelfRegister adds a badge's own key to the registration list. Each device
// (MAC) may hold one key; a repeat is refused with the key it already has.
func (s *Service) SelfRegister(ctx context.Context, key, mac string) (player.Badge, error) {
	if !s.tuning.Current().Registration.SelfRegister {
		return player.Badge{}, fault.ErrSelfRegisterOff
	}
	key = strings.TrimSpace(key)
	mac = strings.TrimSpace(mac)
	if key == "" || mac == "" {
		return player.Badge{}, fault.ErrBadRequest
	}
	defer s.locks.Lock(registrationLock)()

	if b, err := s.store.BadgeByMAC(ctx, mac); err == nil {
		return player.Badge{}, &fault.MACRegisteredError{Key: b.Key}
	} else if !missing(err) {
		return player.Badge{}, fmt.Errorf("badge by mac: %w", err)
	}
	if _, err := s.store.GetBadge(ctx, key); err == nil {
		return player.Badge{}, fault.ErrBadgeExists
	} else if !missing(err) {
		return player.Badge{}, fmt.Errorf("load badge: %w", err)
	}
	if !player.ValidRegistrationKey(key) {
		return player.Badge{}, fault.ErrBadBadgeKey
	}

	b := player.Badge{Key: key, MAC: mac, Notes: "Self registered badge", CreatedOn: s.now().UTC()}
	if err := s.store.PutBadge(ctx, b); err != nil {
		return player.Badge{}, fmt.Errorf("put badge: %w", err)
	}
	s.auditf(persistlog.AuditEntry{Actor: mac, Action: "SELF_REGISTER"})
	return b, nil
}

// ClearRegistration drops every badge and issues one fresh operator key.
func (s *Service) ClearRegistration(ctx context.Context) (player.Badge, error) {
	defer s.locks.Lock(registrationLock)()
	if err := s.store.ClearBadges(ctx); err != nil {
		return player.Badge{}, fmt.Errorf("clear badges: %w", err)
	}
	b, err := s.issueDefaultBadge(ctx)
	if err != nil {
		return player.Badge{}, err
	}
	s.auditf(persistlog.AuditEntry{Actor: "admin", Action: "CLEAR_REGISTRATION"})
	return b, nil
}

// EnsureRegistrationKey issues an operator key when the list is empty so a
// fresh install can register players. created reports whether it did.
func (s *Service) EnsureRegistrationKey(ctx context.Context) (b player.Badge, created bool, err error) {
	defer s.locks.Lock(registrationLock)()
	badges, err := s.store.ListBadges(ctx)
	if err != nil {
		return player.Badge{}, false, fmt.Errorf("list badges: %w", err)
	}
	if len(badges) > 0 {
		return player.Badge{}, false, nil
	}
	b, err = s.issueDefaultBadge(ctx)
	return b, err == nil, err
}

// issueDefaultBadge requires registrationLock.
func (s *Service) issueDefaultBadge(ctx context.Context) (player.Badge, error) {
	b := player.Badge{
		Key:       player.GenerateRegistrationKey(),
		MAC:       player.DefaultBadgeMAC,
		Notes:     "Default Registration Value",
		CreatedOn: s.now().UTC(),
	}
	if err := s.store.PutBadge(ctx, b); err != nil {
		return player.Badge{}, fmt.Errorf("put badge: %w", err)
	}
	s.logf("issued registration key %s", b.Key)
	return b, nil
}

// SetSelfRegistration opens or closes self-registration.
func (s *Service) SetSelfRegistration(enabled bool) error {
	return s.tuning.Set("registration.self_register", strconv.FormatBool(enabled))
}

func (s *Service) Badges(ctx context.Context) ([]player.Badge, error) {
	return s.store.ListBadges(ctx)
}
