package fixp

import "encoding/binary"

// Frame types. The iLink3 wire protocol encodes these as SBE messages with
// fixed block lengths; generating a full SBE codec from its schema is out
// of scope for this package. Instead it uses a minimal fixed binary framing
// carrying only the fields the state machine itself inspects - uuid,
// sequence numbers, retransmit ranges - sufficient to drive and test the
// state machine without depending on the exact wire schema.
type FrameType byte

const (
	FrameNegotiate FrameType = iota + 1
	FrameNegotiateResponse
	FrameNegotiateReject
	FrameEstablish
	FrameEstablishAck
	FrameEstablishReject
	FrameTerminate
	FrameSequence
	FrameNotApplied
	FrameRetransmitRequest
	FrameRetransmission
	FrameApplication
)

// Frame is the decoded view of an inbound FIXP binary message.
type Frame struct {
	Type      FrameType
	UUID      uint64
	LastUUID  uint64
	SeqNo     uint64
	FromSeqNo uint64
	Count     uint32
}

// encodeFrame builds the minimal binary frame for every outbound message
// type this connection emits; Frame.Type tells them apart.

func encodeFrame(f Frame) []byte {
	buf := make([]byte, 1+8+8+8+8+4)
	buf[0] = byte(f.Type)
	binary.BigEndian.PutUint64(buf[1:], f.UUID)
	binary.BigEndian.PutUint64(buf[9:], f.LastUUID)
	binary.BigEndian.PutUint64(buf[17:], f.SeqNo)
	binary.BigEndian.PutUint64(buf[25:], f.FromSeqNo)
	binary.BigEndian.PutUint32(buf[33:], f.Count)
	return buf
}

// DecodeFrame parses a raw binary frame received from the transport.
func DecodeFrame(raw []byte) (Frame, error) {
	if len(raw) < 1+8+8+8+8+4 {
		return Frame{}, errFrameTooShort
	}
	return Frame{
		Type:      FrameType(raw[0]),
		UUID:      binary.BigEndian.Uint64(raw[1:]),
		LastUUID:  binary.BigEndian.Uint64(raw[9:]),
		SeqNo:     binary.BigEndian.Uint64(raw[17:]),
		FromSeqNo: binary.BigEndian.Uint64(raw[25:]),
		Count:     binary.BigEndian.Uint32(raw[33:]),
	}, nil
}

const frameLen = 1 + 8 + 8 + 8 + 8 + 4

var errFrameTooShort = frameError("fixp: frame shorter than the fixed header")

type frameError string

func (e frameError) Error() string { return string(e) }
