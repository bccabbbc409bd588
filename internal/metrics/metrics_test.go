package metrics

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.FatalLevel)
	return l
}

// TestServerStartStopLeavesNoGoroutines guards the one background goroutine
// this package actually spawns (the metrics HTTP server's ListenAndServe
// loop in Start): Stop must leave it exited, not merely unreachable.
func TestServerStartStopLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := NewServer("127.0.0.1:0", testLogger())
	require.NoError(t, s.Start())
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Stop())
	time.Sleep(20 * time.Millisecond)
}
