package message

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"time"

	"github.com/google/uuid"
)

const connIDTimeFormat = "20060102150405"

var roomNameClean = regexp.MustCompile(`[^a-z0-9_]+`)

// NewMessageID returns a fresh message id.
func NewMessageID() string {
	return uuid.NewString()
}

// NewConnectionID returns a timestamp-prefixed random connection token,
// e.g., "conn_20260830114205_9f2c4e1a8b3d6f07". The prefix sorts roughly
// by connect time; the suffix guarantees uniqueness.
func NewConnectionID() string {
	return "conn_" + time.Now().UTC().Format(connIDTimeFormat) + "_" + randomHex(8)
}

// NewRoomID derives a room id from a display name, or generates a random
// one when the name is empty.
func NewRoomID(name string) string {
	if name != "" {
		clean := roomNameClean.ReplaceAllString(toLowerASCII(name), "_")
		return "room_" + clean + "_" + time.Now().UTC().Format("20060102")
	}
	return "room_" + time.Now().UTC().Format(connIDTimeFormat) + "_" + randomHex(6)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
