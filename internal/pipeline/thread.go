package pipeline

import (
	"bytes"
	"fmt"
	"runtime"
)

// threadIdentity returns a host-defined identifier for the calling flow of
// execution (§3's `thread` field). Go has no named-thread concept, so the
// agent uses the runtime's goroutine id the way a single-threaded host
// would report "main" — a stable-enough label for nested-call ordering
// within one log.
func threadIdentity() string {
	id, ok := goroutineID()
	if !ok {
		return "main"
	}
	return fmt.Sprintf("goroutine-%d", id)
}

func goroutineID() (uint64, bool) {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]

	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return 0, false
	}
	buf = buf[len(prefix):]
	end := bytes.IndexByte(buf, ' ')
	if end < 0 {
		return 0, false
	}
	var id uint64
	for _, c := range buf[:end] {
		if c < '0' || c > '9' {
			return 0, false
		}
		id = id*10 + uint64(c-'0')
	}
	return id, true
}
