package session

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const refAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewReference generates a payment reference code of the form
// PIXEL-<timestamp base36>-<6 random base36 chars>, uppercased.
// It correlates the off-band token transfer with this session.
func NewReference() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)

	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is in serious trouble,
		// but a reference is not a secret; fall back to the clock.
		return strings.ToUpper(fmt.Sprintf("PIXEL-%s-%06d", ts, time.Now().Nanosecond()%1000000))
	}
	for i, b := range buf {
		buf[i] = refAlphabet[int(b)%len(refAlphabet)]
	}
	return strings.ToUpper(fmt.Sprintf("PIXEL-%s-%s", ts, buf))
}
