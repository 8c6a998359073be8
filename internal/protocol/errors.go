package protocol

import (
	"errors"
	"net/http"

	"housevault/internal/sim/fault"
)

const (
	// Transport validation: bad JSON, schema violations.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	ErrBadRequest   = "E_BAD_REQUEST"
	ErrBlocked      = "E_BLOCKED"
	ErrNotFound     = "E_NOT_FOUND"
	ErrConflict     = "E_CONFLICT"
	ErrNoPermission = "E_NO_PERMISSION"
	ErrUnauthorized = "E_UNAUTHORIZED"
	ErrCooldown     = "E_COOLDOWN"
	ErrNoResource   = "E_NO_RESOURCE"
	ErrInternal     = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrBlocked:         {},
	ErrNotFound:        {},
	ErrConflict:        {},
	ErrNoPermission:    {},
	ErrUnauthorized:    {},
	ErrCooldown:        {},
	ErrNoResource:      {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// CodeFor maps an operation error to its wire code and HTTP status.
func CodeFor(err error) (string, int) {
	if err == nil {
		return "", http.StatusOK
	}
	var cd *fault.CooldownError
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return ErrProtoBadRequest, http.StatusBadRequest
	case errors.As(err, &cd):
		return ErrCooldown, http.StatusTooManyRequests
	case errors.Is(err, fault.ErrUnauthorized):
		return ErrUnauthorized, http.StatusUnauthorized
	case errors.Is(err, fault.ErrNoMaterial), errors.Is(err, fault.ErrNoFunds):
		return ErrNoResource, http.StatusBadRequest
	}
	switch fault.KindOf(err) {
	case fault.Validation:
		return ErrBadRequest, http.StatusBadRequest
	case fault.Invariant:
		return ErrBlocked, http.StatusBadRequest
	case fault.NotFound:
		return ErrNotFound, http.StatusNotFound
	case fault.Conflict:
		return ErrConflict, http.StatusConflict
	case fault.Denied:
		return ErrNoPermission, http.StatusForbidden
	default:
		return ErrInternal, http.StatusInternalServerError
	}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Reason  string `json:"reason"`
	// Remaining is set on E_COOLDOWN.
	Remaining int `json:"remaining_seconds,omitempty"`
	// Evicted tells the client its session was reclaimed.
	Evicted bool `json:"e,omitempty"`
	// RegisterToken is the key a device already registered, on a repeat
	// self-registration.
	RegisterToken string `json:"register_token,omitempty"`
}

// NewErrorResponse builds the failure body for err. Internal errors get a
// generic reason.
func NewErrorResponse(err error) ErrorResponse {
	code, _ := CodeFor(err)
	r := ErrorResponse{Code: code, Reason: fault.Reason(err)}
	var ve *ValidationError
	if errors.As(err, &ve) {
		r.Reason = "malformed request: " + ve.Reason
	}
	var cd *fault.CooldownError
	if errors.As(err, &cd) {
		r.Remaining = cd.Remaining
	}
	if errors.Is(err, fault.ErrEvicted) {
		r.Evicted = true
	}
	var mr *fault.MACRegisteredError
	if errors.As(err, &mr) {
		r.RegisterToken = mr.Key
	}
	return r
}
