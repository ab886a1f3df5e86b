package logger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quaysystems/fixengine/errs"
)

func timestamps(entries []Entry) []int64 {
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.Timestamp
	}
	return out
}

func onMessage(t *testing.T, l *MessageLogger, ts int64, source Source, payload []byte) []Entry {
	t.Helper()
	entries, err := l.OnMessage(ts, source, payload)
	require.NoError(t, err)
	return entries
}

func TestMessageLogger_ReordersByTimestampAcrossBothFlows(t *testing.T) {
	l := New(Config{CompactionSize: 1 << 20})

	msg := func(n int) []byte { return []byte{byte(n)} }

	require.Empty(t, onMessage(t, l, 2, Inbound, msg(2)))
	require.Empty(t, onMessage(t, l, 3, Inbound, msg(3)))
	require.Empty(t, onMessage(t, l, 4, Inbound, msg(4)))
	require.Empty(t, onMessage(t, l, 1, Outbound, msg(1)))
	require.Empty(t, onMessage(t, l, 5, Outbound, msg(5)))
	require.Empty(t, onMessage(t, l, 7, Outbound, msg(7)))
	require.Empty(t, onMessage(t, l, 6, Inbound, msg(6)))

	released := l.OnWatermark(10)
	require.Equal(t, []int64{1, 2, 3, 4, 5, 6}, timestamps(released))
	require.LessOrEqual(t, l.BufferPosition(), 1<<20)

	released = onMessage(t, l, 8, Inbound, msg(8))
	require.Equal(t, []int64{7}, timestamps(released))

	released = onMessage(t, l, 9, Inbound, msg(9))
	require.Empty(t, released)

	released = onMessage(t, l, 10, Outbound, msg(10))
	require.Equal(t, []int64{8, 9}, timestamps(released))
	require.Zero(t, l.Discontinuities())
}

func TestMessageLogger_WithoutWatermarkNothingReleases(t *testing.T) {
	l := New(Config{CompactionSize: 1 << 20})
	released := onMessage(t, l, 1, Inbound, []byte("a"))
	released = append(released, onMessage(t, l, 1, Outbound, []byte("b"))...)
	require.Empty(t, released)
	require.Equal(t, 2, l.BufferPosition())
}

func TestMessageLogger_LateArrivalBelowLastEmittedIsDroppedAsDiscontinuity(t *testing.T) {
	l := New(Config{CompactionSize: 1 << 20})

	require.Empty(t, onMessage(t, l, 1, Inbound, []byte("a")))
	require.Empty(t, onMessage(t, l, 1, Outbound, []byte("b")))

	released := l.OnWatermark(5)
	require.Equal(t, []int64{1, 1}, timestamps(released))
	require.Equal(t, int64(1), l.lastEmitted)

	// A message timestamped before the last emitted entry is a protocol
	// violation - it must be dropped, not delivered out of order.
	released = onMessage(t, l, 0, Inbound, []byte("late"))
	require.Empty(t, released)
	require.Equal(t, 1, l.Discontinuities())
	require.Zero(t, l.BufferPosition())
}

func TestMessageLogger_CompactionBackpressuresInsteadOfForcingEmission(t *testing.T) {
	l := New(Config{CompactionSize: 4})

	released, err := l.OnMessage(1, Inbound, []byte("aaaa"))
	require.NoError(t, err)
	require.Empty(t, released)

	// Outbound stays silent, so the merge cutoff never advances past 0 and
	// the first entry stays buffered. A second arrival that would push the
	// buffer over budget is backpressured, not forced out early - ordering
	// is never broken by compaction.
	released, err = l.OnMessage(2, Inbound, []byte("bbbb"))
	require.ErrorIs(t, err, errs.BackPressured)
	require.Empty(t, released)
	require.Zero(t, l.Discontinuities())
	require.Equal(t, 4, l.BufferPosition())

	// The watermark alone cannot open the gate while outbound is silent;
	// the first outbound arrival at ts 1 lets the buffered entry drain.
	released = l.OnWatermark(1)
	require.Empty(t, released)
	released, err = l.OnMessage(1, Outbound, nil)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 1}, timestamps(released))
	require.Zero(t, l.BufferPosition())

	released, err = l.OnMessage(2, Inbound, []byte("bbbb"))
	require.NoError(t, err)
	require.Empty(t, released)
	require.Equal(t, 4, l.BufferPosition())
}
