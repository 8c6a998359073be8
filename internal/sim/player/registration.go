package player

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"
)

const RegistrationKeyLen = 16

// DefaultBadgeMAC marks the operator-issued key created when the
// registration list is cleared.
const DefaultBadgeMAC = "00:00:00:00:00:00"

// Badge is a registration key players may register under. Keys come from
// event badges (self-registered by MAC) or from an operator.
type Badge struct {
	Key       string    `json:"registration_key"`
	MAC       string    `json:"mac"`
	Notes     string    `json:"notes,omitempty"`
	CreatedOn time.Time `json:"created_on"`
}

// ValidRegistrationKey reports whether key is a 16-digit number passing the
// Luhn check, the format printed on event badges.
func ValidRegistrationKey(key string) bool {
	key = strings.TrimSpace(key)
	if len(key) != RegistrationKeyLen {
		return false
	}
	sum, ok := luhnSum(key, false)
	return ok && sum%10 == 0
}

// GenerateRegistrationKey returns a random key that passes
// ValidRegistrationKey.
func GenerateRegistrationKey() string {
	var b strings.Builder
	for i := 0; i < RegistrationKeyLen-1; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			panic(err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	payload := b.String()
	sum, _ := luhnSum(payload, true)
	return payload + string(rune('0'+(10-sum%10)%10))
}

// luhnSum sums digits right to left, doubling every other one. doubleFirst
// is true when the rightmost digit of s is not the check digit.
func luhnSum(s string, doubleFirst bool) (int, bool) {
	sum := 0
	double := doubleFirst
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum, true
}
