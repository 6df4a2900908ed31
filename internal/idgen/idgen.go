// Package idgen generates record IDs and short human-entry access codes.
package idgen

import (
	"strings"

	"github.com/google/uuid"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// codeAlphabet is the character set for access codes: uppercase
// alphanumerics only, since codes are read aloud and typed by hand.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// codeLength matches the legacy 5-character access codes already in
// stored snapshots.
const codeLength = 5

// NewID returns a new unique record id.
func NewID() string {
	return uuid.NewString()
}

// NewAccessCode returns a 5-character uppercase alphanumeric code.
// Uniqueness is probabilistic, not enforced; collisions across
// trainings are tolerated by the lookup's linear scan semantics.
func NewAccessCode() string {
	code, err := nanoid.Generate(codeAlphabet, codeLength)
	if err != nil {
		// nanoid only fails when the platform RNG is broken; fall back
		// to a uuid-derived code rather than crashing a write path.
		u := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
		return "C" + u[:codeLength-1]
	}
	return code
}
