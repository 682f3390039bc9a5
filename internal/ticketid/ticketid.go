// Package ticketid implements ticket identifier allocation: an
// alphabetic prefix followed by a numeric counter, with optional
// counter rotation to a fresh prefix once a ceiling is reached.
//
// Allocation itself is not concurrency-safe: two callers deriving the
// next ID from the same store tail will compute the same value. Stores
// must call Next inside their serialized create path.
package ticketid

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

const rotatedPrefixLen = 6

// Scheme describes an ID format.
type Scheme struct {
	// Prefix is the alphabetic prefix of the initial ID.
	Prefix string
	// Separator sits between prefix and counter ("" or "-").
	Separator string
	// Width zero-pads the counter when > 0.
	Width int
	// Max is the counter ceiling before prefix rotation; 0 disables
	// rotation and the counter grows without bound.
	Max int
}

// DefaultScheme matches the classic TICKET-1, TICKET-2, ... sequence.
var DefaultScheme = Scheme{Prefix: "TICKET", Separator: "-"}

// RotatingScheme matches the two-digit TICKET01..TICKET99 sequence
// that rotates to a random prefix after 99.
var RotatingScheme = Scheme{Prefix: "TICKET", Width: 2, Max: 99}

// Initial returns the first ID of an empty store.
func (s Scheme) Initial() string {
	return s.Format(s.Prefix, 1)
}

// Format renders an ID from its parts.
func (s Scheme) Format(prefix string, n int) string {
	if s.Width > 0 {
		return fmt.Sprintf("%s%s%0*d", prefix, s.Separator, s.Width, n)
	}
	return fmt.Sprintf("%s%s%d", prefix, s.Separator, n)
}

// Parse splits an ID into alphabetic prefix and numeric counter.
// ok is false when the ID does not match the scheme's shape.
func (s Scheme) Parse(id string) (prefix string, n int, ok bool) {
	i := 0
	for i < len(id) && isAlpha(id[i]) {
		i++
	}
	if i == 0 {
		return "", 0, false
	}
	prefix = id[:i]
	rest := id[i:]
	if s.Separator != "" {
		if !strings.HasPrefix(rest, s.Separator) {
			return "", 0, false
		}
		rest = rest[len(s.Separator):]
	}
	if rest == "" {
		return "", 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return "", 0, false
	}
	return prefix, n, true
}

// Next computes the ID following lastID. An empty or unparseable
// lastID yields the initial ID. When the counter has reached Max the
// prefix rotates to a fresh random one, skipping any candidate for
// which prefixInUse returns true, and the counter resets to 1.
func (s Scheme) Next(lastID string, prefixInUse func(string) bool) string {
	prefix, n, ok := s.Parse(lastID)
	if !ok {
		return s.Initial()
	}
	if s.Max > 0 && n >= s.Max {
		return s.Format(s.rotatePrefix(prefixInUse), 1)
	}
	return s.Format(prefix, n+1)
}

func (s Scheme) rotatePrefix(prefixInUse func(string) bool) string {
	for {
		candidate := randomPrefix(rotatedPrefixLen)
		if prefixInUse == nil || !prefixInUse(candidate) {
			return candidate
		}
	}
}

func randomPrefix(length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		b.WriteByte(byte('A' + rand.IntN(26)))
	}
	return b.String()
}

func isAlpha(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
