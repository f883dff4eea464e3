package redact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// keyLength is the truncated length of an idempotency key. The key is a
// correlation handle across log lines, not a distributed lock, so collisions
// only cost log-stitching precision.
const keyLength = 16

// IdempotencyKey derives a stable hash over an action name and its
// canonicalized arguments. encoding/json sorts map keys, which gives a
// canonical byte form for free.
func IdempotencyKey(action string, args map[string]any) string {
	h := sha256.New()
	h.Write([]byte(action))
	h.Write([]byte{0})
	if data, err := json.Marshal(args); err == nil {
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil))[:keyLength]
}
