package device

import "github.com/google/uuid"

// idNamespace is a fixed namespace UUID used to derive DeviceIds from
// source descriptors. Using a private namespace (rather than one of the
// DNS/URL/OID namespaces in RFC 4122) keeps our ids out of any other
// UUIDv5-style id space that might also be hashing these same strings.
var idNamespace = uuid.MustParse("7c6e8f2e-9d9f-4e3a-8c2b-9b9d9a2c6f10")

// ID is the 128-bit DeviceId of spec §3: deterministically derived from
// a Source's canonical serialization. Two Create requests with the same
// Source yield the same ID — the collision *is* the "already exists"
// signal (I1, §8).
type ID = uuid.UUID

// IDFromSource computes the deterministic id for a source. It is pure:
// calling it twice with equal sources always yields equal ids, and
// calling it with unequal sources yields unequal ids with overwhelming
// probability (SHA-1 namespaced UUID, RFC 4122 §4.3).
func IDFromSource(s Source) ID {
	return uuid.NewSHA1(idNamespace, s.CanonicalBytes())
}
