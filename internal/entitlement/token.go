package entitlement

import (
    "crypto/rand"
    "encoding/hex"
)

// tokenBytes is the entropy of a download token. 32 bytes encode to
// a 64-character hex string, 256 bits of entropy, which makes
// collisions impossible in practice; the unique index on the ledger
// and the TokenExists pre-check are defense in depth only.
const tokenBytes = 32

// newToken generates a fresh download token from a cryptographically
// secure source. The result is hex, fixed length, and carries no
// information about the order, user or file it will be attached to.
func newToken() (string, error) {
    b := make([]byte, tokenBytes)
    if _, err := rand.Read(b); err != nil {
        return "", err
    }
    return hex.EncodeToString(b), nil
}
