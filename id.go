package ddtracer

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"
)

var fallbackState struct {
	sync.Mutex
	seed uint64
}

// defaultIDGenerator returns uniformly distributed nonzero 63-bit ids. Ids
// stay within 63 bits so that signed consumers of the wire format never see
// them wrap negative. Collision probability within one trace is negligible.
func defaultIDGenerator() uint64 {
	var buf [8]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return fallbackID()
		}
		if id := binary.BigEndian.Uint64(buf[:]) >> 1; id != 0 {
			return id
		}
	}
}

// fallbackID derives an id from the clock when the system's entropy source
// fails, the same escape hatch used when crypto/rand is unavailable.
func fallbackID() uint64 {
	fallbackState.Lock()
	defer fallbackState.Unlock()
	fallbackState.seed = fallbackState.seed*6364136223846793005 + uint64(time.Now().UnixNano()) | 1
	return fallbackState.seed >> 1
}
