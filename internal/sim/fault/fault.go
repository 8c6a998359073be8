// Package fault holds the error taxonomy shared by the house and occupancy
// code. Every error here is a per-request outcome; none is fatal.
package fault

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// Validation: malformed coordinates, unknown material, bad quantity.
	Validation Kind = iota + 1
	// Invariant: the edit or transition would break a house/session invariant.
	Invariant
	NotFound
	// Conflict: state changed underneath the caller (e.g. evicted mid-move).
	Conflict
	// Denied: ownership, authorization or cooldown rules.
	Denied
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Invariant:
		return "invariant"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

var (
	ErrOutOfBounds     = New(Validation, "can't edit out of bounds")
	ErrUnknownMaterial = New(Validation, "invalid material")
	ErrBadDirection    = New(Validation, "direction must be one of up, down, left, right")
	ErrBadQuantity     = New(Validation, "quantity out of range")
	ErrNotForSale      = New(Validation, "material can't be traded")
	ErrNotPlaceable    = New(Validation, "material can't be placed")
	ErrBadRequest      = New(Validation, "malformed request")
	ErrBadBadgeKey     = New(Validation, "self generated token is not valid")
	ErrPurgeOptions    = New(Validation, "invalid purge options")

	ErrDoorCell       = New(Invariant, "the door must stay clear")
	ErrVaultCell      = New(Invariant, "cannot build over the vault, move the vault first")
	ErrTargetOccupied = New(Invariant, "vault can only move to an empty cell")
	ErrNoPath         = New(Invariant, "no path from door to vault")
	ErrNoMaterial     = New(Invariant, "not enough material")
	ErrNoFunds        = New(Invariant, "not enough money")
	ErrHouseOccupied  = New(Invariant, "house is occupied")
	ErrAlreadyInside  = New(Invariant, "already inside a house")
	ErrBlocked        = New(Invariant, "can't move there")
	ErrAbandoned      = New(Invariant, "house is abandoned")
	ErrHasHouse       = New(Invariant, "player already has a house")

	// ErrNoRecord is what store backends return for a missing key.
	ErrNoRecord       = New(NotFound, "record not found")
	ErrHouseNotFound  = New(NotFound, "house not found")
	ErrPlayerNotFound = New(NotFound, "player doesn't exist")
	ErrNoHouse        = New(NotFound, "player has no house")
	ErrPlayerExists   = New(Conflict, "player already exists")
	ErrBadgeExists    = New(Conflict, "duplicate key found")
	errMACRegistered  = New(Conflict, "this mac address has already been registered")

	ErrNotInHouse = New(Conflict, "not in a house")
	ErrEvicted    = New(Conflict, "you were kicked out of the house")

	ErrOwnVault          = New(Denied, "can't rob your own house")
	ErrNotOwnHouse       = New(Denied, "you must be in your own house")
	ErrUnauthorized      = New(Denied, "unauthorized")
	ErrRegistrationLimit = New(Denied, "registration limit reached")
	ErrSelfRegisterOff   = New(Denied, "self registration disabled")
)

// MACRegisteredError rejects a self-registration from a device that already
// holds a key. Key is handed back so the device can recover it.
type MACRegisteredError struct {
	Key string
}

func (e *MACRegisteredError) Error() string { return errMACRegistered.Reason }

func (e *MACRegisteredError) Unwrap() error { return errMACRegistered }

// CooldownError rejects a robbery attempt made too soon after the last one.
type CooldownError struct {
	Remaining int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("robbery cooldown: %d seconds remaining", e.Remaining)
}

// KindOf reports the taxonomy kind of err, or 0 for errors outside it
// (store failures and the like).
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	var ce *CooldownError
	if errors.As(err, &ce) {
		return Denied
	}
	return 0
}

// Reason returns the caller-facing text for err. Errors outside the taxonomy
// get a generic message so internals never leak.
func Reason(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Reason
	}
	var ce *CooldownError
	if errors.As(err, &ce) {
		return ce.Error()
	}
	return "can't perform action"
}
