package service

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a 32-char hex id. Random rather than sequential so ids leak
// nothing about row counts.
func NewID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
