// Package harvester contains the worker fleet that farms promo codes from
// the upstream API: per-worker state machine, pacing, and the supervisor
// that binds workers to proxies.
package harvester

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

// NewClientID builds the ephemeral per-login client id in the upstream's
// expected shape: <ms epoch>-<19 decimal digits>. Never persisted.
func NewClientID() string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatInt(time.Now().UnixMilli(), 10))
	sb.WriteByte('-')
	for i := 0; i < 19; i++ {
		sb.WriteByte(byte('0' + rand.IntN(10)))
	}
	return sb.String()
}
