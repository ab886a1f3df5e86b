package fixp

import (
	"errors"

	"github.com/quaysystems/fixengine/errs"
	"github.com/quaysystems/fixengine/transport"
)

// transmit writes raw bytes to the stream, silently discarding the send on
// a non-leader connection - a follower's handshake/keepalive bookkeeping
// advances but nothing crosses the wire, mirroring session.publish's
// leader check on the FIX side.
func (c *Connection) transmit(raw []byte) error {
	if !c.isLeader() {
		return nil
	}
	claim, err := c.cfg.Stream.TryReserve(len(raw))
	if err != nil {
		return err
	}
	copy(claim.Buffer, raw)
	claim.Commit()
	return nil
}

func (c *Connection) sendFrame(f Frame) error {
	return c.transmit(encodeFrame(f))
}

func isBackpressure(err error) bool {
	var bp transport.BackpressureError
	return errors.As(err, &bp)
}

// Negotiate opens a connection: assigns this attempt a fresh uuid (when a
// ConnectionIDs generator is configured), records lastUUID - the previous
// connection's uuid when reconnecting, 0 otherwise - and sends the
// Negotiate frame. A backpressured send parks the frame and
// drops into RETRY_NEGOTIATE rather than failing the caller, per the
// back-pressure retry design.
func (c *Connection) Negotiate(nowNs int64, lastUUID uint64) error {
	if c.state != Connected {
		return errs.New(errs.KindProgrammerError, "Negotiate called outside CONNECTED")
	}
	if c.cfg.ConnectionIDs != nil {
		c.uuid = c.cfg.ConnectionIDs.Next()
	}
	c.lastUUID = lastUUID

	frame := Frame{Type: FrameNegotiate, UUID: c.uuid, LastUUID: lastUUID}
	if err := c.sendFrame(frame); err != nil {
		if !isBackpressure(err) {
			return err
		}
		c.pending = &pendingFrame{raw: encodeFrame(frame), nextState: SentNegotiate}
		c.transition(RetryNegotiate, "Negotiate", "backpressure")
		return nil
	}
	c.lastPeerMessageTime = nowNs
	c.transition(SentNegotiate, "Negotiate", "")
	return nil
}

// OnNegotiateResponse accepts the counterparty's Negotiate acceptance.
func (c *Connection) OnNegotiateResponse(nowNs int64) error {
	if c.state != SentNegotiate && c.state != RetryNegotiate {
		return errs.New(errs.KindUnexpectedMsgType, "NegotiateResponse outside SENT_NEGOTIATE")
	}
	c.lastPeerMessageTime = nowNs
	c.transition(Negotiated, "NegotiateResponse", "")
	return nil
}

// OnNegotiateReject records the counterparty's refusal to negotiate.
func (c *Connection) OnNegotiateReject(reason string, nowNs int64) {
	c.lastPeerMessageTime = nowNs
	c.transition(NegotiateRejected, "NegotiateReject", reason)
}

// Establish follows a successful Negotiate: sends the Establish frame
// naming the sequence number this side intends to start from.
func (c *Connection) Establish(nowNs int64, nextSentSeqNo uint64) error {
	if c.state != Negotiated {
		return errs.New(errs.KindProgrammerError, "Establish called outside NEGOTIATED")
	}
	c.nextSentSeqNo = nextSentSeqNo

	frame := Frame{Type: FrameEstablish, UUID: c.uuid, SeqNo: nextSentSeqNo}
	if err := c.sendFrame(frame); err != nil {
		if !isBackpressure(err) {
			return err
		}
		c.pending = &pendingFrame{raw: encodeFrame(frame), nextState: SentEstablish}
		c.transition(RetryEstablish, "Establish", "backpressure")
		return nil
	}
	c.lastPeerMessageTime = nowNs
	c.transition(SentEstablish, "Establish", "")
	return nil
}

// OnEstablishAck completes the handshake: the connection may now send and
// receive application traffic.
func (c *Connection) OnEstablishAck(nextRecvSeqNo uint64, nowNs int64) error {
	if c.state != SentEstablish && c.state != RetryEstablish {
		return errs.New(errs.KindUnexpectedMsgType, "EstablishAck outside SENT_ESTABLISH")
	}
	c.nextRecvSeqNo = nextRecvSeqNo
	c.lastPeerMessageTime = nowNs
	c.keepaliveSent = false
	c.transition(Established, "EstablishAck", "")
	return nil
}

// OnEstablishReject records the counterparty's refusal to establish.
func (c *Connection) OnEstablishReject(reason string, nowNs int64) {
	c.lastPeerMessageTime = nowNs
	c.transition(EstablishRejected, "EstablishReject", reason)
}

// RequestDisconnect begins a graceful unbind: sends Terminate and waits for
// the counterparty's Terminate in reply before the transport is torn down.
func (c *Connection) RequestDisconnect(reason string) error {
	switch c.state {
	case Established, AwaitingKeepalive, Retransmitting:
	default:
		return errs.New(errs.KindProgrammerError, "RequestDisconnect outside an established state")
	}

	frame := Frame{Type: FrameTerminate, UUID: c.uuid}
	if err := c.sendFrame(frame); err != nil {
		if !isBackpressure(err) {
			return err
		}
		c.pending = &pendingFrame{raw: encodeFrame(frame), nextState: Unbinding}
		c.transition(ResendTerminate, "RequestDisconnect", reason)
		return nil
	}
	c.transition(Unbinding, "RequestDisconnect", reason)
	return nil
}

// OnTerminate handles a Terminate frame from the counterparty: if this side
// already requested disconnect, the round trip is complete and the
// connection unbinds; otherwise this is the counterparty initiating
// teardown, so this side echoes Terminate and unbinds too.
func (c *Connection) OnTerminate(reason string, nowNs int64) error {
	c.lastPeerMessageTime = nowNs
	switch c.state {
	case Unbinding, ResendTerminate, ResendTerminateAck:
		c.transition(Unbound, "Terminate", reason)
		return nil
	default:
		frame := Frame{Type: FrameTerminate, UUID: c.uuid}
		if err := c.sendFrame(frame); err != nil {
			if !isBackpressure(err) {
				return err
			}
			c.pending = &pendingFrame{raw: encodeFrame(frame), nextState: Unbound}
			c.transition(ResendTerminateAck, "Terminate", reason)
			return nil
		}
		c.transition(Unbound, "Terminate", reason)
		return nil
	}
}
