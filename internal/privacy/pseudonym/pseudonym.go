// Package pseudonym derives stable pseudonymous identifiers for erased users.
//
// The mapping is deterministic with no per-run salt: every record referencing
// the same source user collapses onto the same pseudonym, across runs and
// across service restarts, which is what preserves referential integrity
// after erasure.
package pseudonym

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

const (
	// Prefix marks pseudonymous identifiers in every collection.
	Prefix = "deleted_user_"
	// EmailDomain is the reserved domain for pseudonymous addresses.
	EmailDomain = "anonymized.invalid"

	hexLen = 8
)

// Pseudonymize maps a user identifier to its pseudonymous identifier and
// email. One-way by construction: SHA-256 digest, truncated to a fixed-length
// hex prefix.
func Pseudonymize(userID string) (pseudoID string, pseudoEmail string) {
	sum := sha256.Sum256([]byte(userID))
	pseudoID = Prefix + hex.EncodeToString(sum[:])[:hexLen]
	pseudoEmail = pseudoID + "@" + EmailDomain
	return pseudoID, pseudoEmail
}

var idPattern = regexp.MustCompile("^" + Prefix + "[0-9a-f]{8}$")

// IsPseudonym reports whether s already carries the pseudonymous ID format.
// Used by the anonymization engine's idempotence check.
func IsPseudonym(s string) bool {
	return idPattern.MatchString(s)
}

// IsPseudonymEmail reports whether s is a pseudonymous email address.
func IsPseudonymEmail(s string) bool {
	local, domain, found := strings.Cut(s, "@")
	return found && domain == EmailDomain && IsPseudonym(local)
}
