package sim

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	SetupLogging("error")
	os.Exit(m.Run())
}

func TestAccountChecksum(t *testing.T) {
	a := newAccount(7)
	require.True(t, a.valid())

	a.Balance++ // a field changed without recomputing the checksum
	require.False(t, a.valid())
}

func TestWorldTuningFallback(t *testing.T) {
	w := NewWorld(Workload{Slots: 1})

	require.Equal(t, defaultTuning, w.tuning())

	w.profile.Store(tuning{Generation: 1, LoadShare: 10, WriteBurst: 2, MaxAmount: 5})
	require.Equal(t, uint32(10), w.tuning().LoadShare)

	w.profile.Reset()
	require.Equal(t, defaultTuning, w.tuning())
}

// A short full-throttle run: every reader verifies every snapshot, and the
// audit recounts all committed updates after the workers stop.
func TestWorldShortSoak(t *testing.T) {
	w := NewWorld(Workload{
		Slots:       4,
		Writers:     3,
		Readers:     3,
		RetuneEvery: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, w.Run(ctx))
	require.NotZero(t, w.writes.Load())
	require.NotZero(t, w.reads.Load())
	require.Zero(t, w.torn.Load())
}
