package fixp

import "github.com/quaysystems/fixengine/errs"

// OnMessage dispatches one decoded inbound frame. Receiving anything at all
// while AWAITING_KEEPALIVE is proof of life and returns the connection to
// ESTABLISHED before the frame's own handling runs, except for Terminate,
// which has its own unbind handling.
func (c *Connection) OnMessage(frame Frame, nowNs int64) error {
	c.lastPeerMessageTime = nowNs
	if c.state == AwaitingKeepalive && frame.Type != FrameTerminate {
		c.transition(Established, "MessageReceived", "")
	}

	switch frame.Type {
	case FrameNegotiateResponse:
		return c.OnNegotiateResponse(nowNs)
	case FrameNegotiateReject:
		c.OnNegotiateReject("counterparty rejected negotiate", nowNs)
		return nil
	case FrameEstablishAck:
		return c.OnEstablishAck(frame.SeqNo, nowNs)
	case FrameEstablishReject:
		c.OnEstablishReject("counterparty rejected establish", nowNs)
		return nil
	case FrameTerminate:
		return c.OnTerminate("peer requested termination", nowNs)
	case FrameSequence:
		c.advanceRecv(frame.SeqNo)
		return nil
	case FrameNotApplied:
		return c.OnNotApplied(frame.FromSeqNo, frame.Count, nowNs)
	case FrameRetransmitRequest:
		return c.OnRetransmitRequest(frame.FromSeqNo, frame.Count, nowNs)
	case FrameRetransmission:
		c.OnRetransmission(frame.FromSeqNo, frame.Count, nowNs)
		return nil
	case FrameApplication:
		if !c.CanSendMessage() && c.state != Retransmitting {
			return errs.New(errs.KindUnexpectedMsgType, "application frame outside an established state")
		}
		c.advanceRecv(frame.SeqNo)
		return nil
	default:
		return errs.New(errs.KindInvalidMessage, "unknown fixp frame type")
	}
}

func (c *Connection) advanceRecv(seqNo uint64) {
	if seqNo+1 > c.nextRecvSeqNo {
		c.nextRecvSeqNo = seqNo + 1
	}
}
