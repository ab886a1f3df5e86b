package fixp

import "github.com/quaysystems/fixengine/errs"

// OnNotApplied handles the counterparty reporting a gap of count messages
// starting at fromSeqNo: this side owes a retransmission. The connection
// moves to RETRANSMITTING, remembering the state to resume, and records the
// last sequence number owed in retransmitFillSeqNo; it goes back to
// NOT_AWAITING_RETRANSMIT once a sent retransmission covers that point, per
// ILink3Connection's retransmit bookkeeping.
func (c *Connection) OnNotApplied(fromSeqNo uint64, count uint32, nowNs int64) error {
	switch c.state {
	case Established, AwaitingKeepalive, Retransmitting:
	default:
		return errs.New(errs.KindUnexpectedMsgType, "NotApplied outside an established state")
	}
	c.lastPeerMessageTime = nowNs

	fill := int64(fromSeqNo) + int64(count) - 1
	if c.state != Retransmitting {
		c.retransmitReturnState = c.state
		c.transition(Retransmitting, "NotApplied", "")
	}
	if fill > c.retransmitFillSeqNo {
		c.retransmitFillSeqNo = fill
	}
	c.nextRetransmitSeqNo = fromSeqNo
	return c.sendRetransmission(fromSeqNo, count)
}

// sendRetransmissionFrame emits a Retransmission frame covering
// [fromSeqNo, fromSeqNo+count-1], parking it as a pendingFrame on
// back-pressure like every other outbound frame. It reports whether the
// frame was actually sent (false on back-pressure), leaving any
// retransmit-recovery bookkeeping to the caller.
func (c *Connection) sendRetransmissionFrame(fromSeqNo uint64, count uint32) (sent bool, err error) {
	last := fromSeqNo + uint64(count) - 1
	frame := Frame{Type: FrameRetransmission, UUID: c.uuid, FromSeqNo: fromSeqNo, Count: count, SeqNo: last}
	if err := c.sendFrame(frame); err != nil {
		if !isBackpressure(err) {
			return false, err
		}
		c.pending = &pendingFrame{raw: encodeFrame(frame), nextState: c.state}
		return false, nil
	}
	return true, nil
}

// sendRetransmission emits the retransmitted range owed by an in-progress
// OnNotApplied recovery cycle and, once the reply covers the outstanding
// fill point, returns to the state retransmitting interrupted. Only ever
// called while retransmitReturnState/retransmitFillSeqNo are live
// bookkeeping for that cycle - never for a one-off reply to an inbound
// RetransmitRequest, which has no such cycle to resume from.
func (c *Connection) sendRetransmission(fromSeqNo uint64, count uint32) error {
	last := fromSeqNo + uint64(count) - 1
	sent, err := c.sendRetransmissionFrame(fromSeqNo, count)
	if err != nil {
		return err
	}
	if sent && int64(last) >= c.retransmitFillSeqNo {
		c.retransmitFillSeqNo = NotAwaitingRetransmit
		c.transition(c.retransmitReturnState, "RetransmissionComplete", "")
	}
	return nil
}

// OnRetransmitRequest replies to a peer's explicit request to resend
// [fromSeqNo, fromSeqNo+count-1]. Unlike OnNotApplied, this is a one-off
// reply, not the start of a recovery cycle this connection needs to resume
// from afterward - it must not touch retransmitReturnState or
// retransmitFillSeqNo, which belong solely to the OnNotApplied flow.
func (c *Connection) OnRetransmitRequest(fromSeqNo uint64, count uint32, nowNs int64) error {
	switch c.state {
	case Established, AwaitingKeepalive, Retransmitting:
	default:
		return errs.New(errs.KindUnexpectedMsgType, "RetransmitRequest outside an established state")
	}
	c.lastPeerMessageTime = nowNs
	_, err := c.sendRetransmissionFrame(fromSeqNo, count)
	return err
}

// TryRetransmitRequest asks the counterparty to resend msgCount messages
// from fromSeqNo, against an explicit uuid that need not be this
// connection's current one - recovering a gap discovered against a prior
// session incarnation after a reconnect, the way a resumed iLink3 session
// can still name its predecessor's uuid in a retransmit request.
func (c *Connection) TryRetransmitRequest(uuid uint64, fromSeqNo uint64, msgCount uint32) error {
	switch c.state {
	case Established, AwaitingKeepalive, Retransmitting:
	default:
		return errs.New(errs.KindProgrammerError, "TryRetransmitRequest outside an established state")
	}
	frame := Frame{Type: FrameRetransmitRequest, UUID: uuid, FromSeqNo: fromSeqNo, Count: msgCount}
	return c.sendFrame(frame)
}

// OnRetransmission absorbs a reply to a retransmit request this side
// issued, advancing the receive sequence through the filled range.
func (c *Connection) OnRetransmission(fromSeqNo uint64, count uint32, nowNs int64) {
	c.lastPeerMessageTime = nowNs
	last := fromSeqNo + uint64(count) - 1
	if last+1 > c.nextRecvSeqNo {
		c.nextRecvSeqNo = last + 1
	}
}
