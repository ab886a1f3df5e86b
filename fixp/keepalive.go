package fixp

import "github.com/quaysystems/fixengine/errs"

// sendSequenceKeepalive emits a bare Sequence frame to prove liveness and
// moves to AWAITING_KEEPALIVE until the counterparty answers with anything
// at all.
func (c *Connection) sendSequenceKeepalive(nowNs int64) error {
	frame := Frame{Type: FrameSequence, UUID: c.uuid, SeqNo: c.nextSentSeqNo}
	if err := c.sendFrame(frame); err != nil {
		if !isBackpressure(err) {
			return err
		}
		c.pending = &pendingFrame{raw: encodeFrame(frame), nextState: AwaitingKeepalive}
		return nil
	}
	c.lastSentTime = nowNs
	c.keepaliveSent = true
	c.transition(AwaitingKeepalive, "KeepaliveSequence", "")
	return nil
}

// Poll drives time-based work: retrying a parked back-pressured frame,
// sending the keepalive Sequence once the interval elapses, and tearing
// down a connection that stays silent through a second interval. It
// mirrors session.Poll's role on the FIX side: called cooperatively by the
// owning worker, never blocking.
func (c *Connection) Poll(nowNs int64) (int, error) {
	if !c.isLeader() {
		return 0, nil
	}

	progress := 0
	if c.pending != nil {
		if err := c.transmit(c.pending.raw); err != nil {
			if isBackpressure(err) {
				return progress, nil
			}
			return progress, err
		}
		next := c.pending.nextState
		c.pending = nil
		progress++
		c.transition(next, "PendingFrameSent", "")
		if next == Unbound {
			return progress, nil
		}
	}

	switch c.state {
	case Established:
		if nowNs-c.lastPeerMessageTime >= c.cfg.KeepAliveIntervalNs {
			if err := c.sendSequenceKeepalive(nowNs); err != nil {
				return progress, err
			}
			progress++
		}
	case AwaitingKeepalive:
		if nowNs-c.lastPeerMessageTime >= 2*c.cfg.KeepAliveIntervalNs {
			_ = c.RequestDisconnect("keepalive timeout")
			progress++
			return progress, errs.HeartbeatTimeout
		}
	}
	return progress, nil
}
