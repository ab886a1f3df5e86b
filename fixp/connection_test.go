package fixp

import (
	"testing"
	"time"

	"github.com/quaysystems/fixengine/clock"
	"github.com/quaysystems/fixengine/idgen"
	"github.com/quaysystems/fixengine/transport"

	"github.com/stretchr/testify/require"
)

func newTestConnection(t *testing.T) (*Connection, *clock.Manual, *transport.RingStream) {
	t.Helper()
	mc := clock.NewManual(0)
	stream := transport.NewRingStream(4096)
	ids, err := idgen.NewConnectionIDs(1)
	require.NoError(t, err)

	conn := New(Config{
		ConnectionID:        1,
		KeepAliveIntervalNs: int64(time.Second),
		Stream:              stream,
		Clock:               mc,
		ConnectionIDs:       ids,
	})
	return conn, mc, stream
}

func drainFrames(t *testing.T, stream *transport.RingStream) []Frame {
	t.Helper()
	var frames []Frame
	stream.Poll(func(_ int64, payload []byte) {
		f, err := DecodeFrame(payload)
		require.NoError(t, err)
		frames = append(frames, f)
	})
	return frames
}

func TestConnection_NegotiateEstablishHandshake(t *testing.T) {
	conn, mc, stream := newTestConnection(t)

	require.NoError(t, conn.Negotiate(mc.NowNanos(), 0))
	require.Equal(t, SentNegotiate, conn.State())
	frames := drainFrames(t, stream)
	require.Len(t, frames, 1)
	require.Equal(t, FrameNegotiate, frames[0].Type)
	require.NotZero(t, conn.UUID())

	require.NoError(t, conn.OnNegotiateResponse(mc.NowNanos()))
	require.Equal(t, Negotiated, conn.State())

	require.NoError(t, conn.Establish(mc.NowNanos(), 1))
	require.Equal(t, SentEstablish, conn.State())
	frames = drainFrames(t, stream)
	require.Len(t, frames, 1)
	require.Equal(t, FrameEstablish, frames[0].Type)

	require.NoError(t, conn.OnEstablishAck(1, mc.NowNanos()))
	require.Equal(t, Established, conn.State())
	require.True(t, conn.CanSendMessage())
}

func TestConnection_KeepaliveRoundTripStaysEstablished(t *testing.T) {
	conn, mc, stream := newTestConnection(t)
	establish(t, conn, mc, stream)

	mc.Advance(time.Second)
	progress, err := conn.Poll(mc.NowNanos())
	require.NoError(t, err)
	require.Equal(t, 1, progress)
	require.Equal(t, AwaitingKeepalive, conn.State())
	drainFrames(t, stream)

	require.NoError(t, conn.OnMessage(Frame{Type: FrameSequence, SeqNo: conn.NextSentSeqNo()}, mc.NowNanos()))
	require.Equal(t, Established, conn.State())
}

func TestConnection_KeepaliveTimeoutDisconnects(t *testing.T) {
	conn, mc, stream := newTestConnection(t)
	establish(t, conn, mc, stream)

	mc.Advance(time.Second)
	_, err := conn.Poll(mc.NowNanos())
	require.NoError(t, err)
	require.Equal(t, AwaitingKeepalive, conn.State())
	drainFrames(t, stream)

	mc.Advance(2 * time.Second)
	_, err = conn.Poll(mc.NowNanos())
	require.Error(t, err)
	require.Equal(t, Unbinding, conn.State())
}

func TestConnection_NotAppliedTriggersRetransmitThenReturnsToEstablished(t *testing.T) {
	conn, mc, stream := newTestConnection(t)
	establish(t, conn, mc, stream)

	err := conn.OnNotApplied(3, 2, mc.NowNanos())
	require.NoError(t, err)
	// the fill (seq 4) lands in the same call, so retransmitting resolves
	// immediately and the connection returns to ESTABLISHED.
	require.Equal(t, Established, conn.State())
	require.Equal(t, NotAwaitingRetransmit, conn.RetransmitFillSeqNo())

	frames := drainFrames(t, stream)
	require.Len(t, frames, 1)
	require.Equal(t, FrameRetransmission, frames[0].Type)
	require.Equal(t, uint64(3), frames[0].FromSeqNo)
	require.Equal(t, uint32(2), frames[0].Count)
}

func TestConnection_TryRetransmitRequestAgainstPriorUUID(t *testing.T) {
	conn, mc, stream := newTestConnection(t)
	establish(t, conn, mc, stream)

	priorUUID := conn.UUID() - 1
	require.NoError(t, conn.TryRetransmitRequest(priorUUID, 10, 5))

	frames := drainFrames(t, stream)
	require.Len(t, frames, 1)
	require.Equal(t, FrameRetransmitRequest, frames[0].Type)
	require.Equal(t, priorUUID, frames[0].UUID)
	require.Equal(t, uint64(10), frames[0].FromSeqNo)
	require.Equal(t, uint32(5), frames[0].Count)
}

func TestConnection_InboundRetransmitRequestRepliesWithoutLeavingEstablished(t *testing.T) {
	conn, mc, stream := newTestConnection(t)
	establish(t, conn, mc, stream)

	require.NoError(t, conn.OnMessage(Frame{Type: FrameRetransmitRequest, FromSeqNo: 3, Count: 2}, mc.NowNanos()))
	require.Equal(t, Established, conn.State())
	require.Equal(t, NotAwaitingRetransmit, conn.RetransmitFillSeqNo())

	frames := drainFrames(t, stream)
	require.Len(t, frames, 1)
	require.Equal(t, FrameRetransmission, frames[0].Type)
	require.Equal(t, uint64(3), frames[0].FromSeqNo)
	require.Equal(t, uint32(2), frames[0].Count)
}

func establish(t *testing.T, conn *Connection, mc *clock.Manual, stream *transport.RingStream) {
	t.Helper()
	require.NoError(t, conn.Negotiate(mc.NowNanos(), 0))
	drainFrames(t, stream)
	require.NoError(t, conn.OnNegotiateResponse(mc.NowNanos()))
	require.NoError(t, conn.Establish(mc.NowNanos(), 1))
	drainFrames(t, stream)
	require.NoError(t, conn.OnEstablishAck(1, mc.NowNanos()))
}
