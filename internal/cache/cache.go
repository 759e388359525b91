package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for session slot storage
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// SlotKey generates the key for one named slot of a session. The session ID
// is hashed so arbitrary IDs are safe as file names.
func SlotKey(sessionID, slot string) string {
	hash := sha256.Sum256([]byte(sessionID))
	return "framewise-v1-" + hex.EncodeToString(hash[:16]) + "-" + slot
}
