package id

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// NewID32 returns a random (v4) UUID as 32 lowercase hex characters, no dashes.
// Used for event ids and guard tokens.
func NewID32() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// NewRequestID is the dashed form, used for X-Request-ID.
func NewRequestID() string { return uuid.NewString() }
