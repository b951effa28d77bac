package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"
)

// ClientSession is a logical client identified by a cookie. It outlives the
// TCP connections that carry it.
type ClientSession struct {
	ID      string
	Created time.Time

	lastSeen atomic.Int64
}

// New creates a session with a fresh identifier stamped at now.
func New(now time.Time) *ClientSession {
	s := &ClientSession{
		ID:      generateID(now),
		Created: now,
	}
	s.lastSeen.Store(now.UnixNano())
	return s
}

// Touch records activity at now.
func (s *ClientSession) Touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// LastSeen returns the time of the most recent Touch.
func (s *ClientSession) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// generateID returns 16 random bytes in hex followed by the creation time in
// milliseconds.
func generateID(now time.Time) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// Never hand out guessable session ids.
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b) + strconv.FormatInt(now.UnixMilli(), 10)
}
