package wire

import (
	"time"

	"github.com/quickfixgo/quickfix"
)

// Message is the tag-value FIX message type this package builds and
// parses; re-exported so callers depend only on wire, not quickfixgo
// directly, for the parts of the API that hand messages back.
type Message = quickfix.Message

// Inbound is the decoded view of a parsed FIX message the session state
// machine inspects. Only the tags the state machine actually reads are
// decoded; everything else stays opaque in Raw for forwarding to
// application consumers.
type Inbound struct {
	MsgType      string
	MsgSeqNum    int
	SendingTime  time.Time
	PossDupFlag  bool
	TestReqID    string
	BeginSeqNo   int
	EndSeqNo     int
	NewSeqNo     int
	GapFillFlag  bool
	ResetSeqNum  bool
	HeartBtInt   int
	Username     string
	Password     string
	SenderCompID string
	TargetCompID string

	Raw *Message
}

// DecodeInbound extracts the header/admin fields the session state machine
// needs from a parsed message, leaving msg itself in Raw so application
// message bodies can still be forwarded on DELIVER.
func DecodeInbound(msg *Message) (Inbound, error) {
	in := Inbound{Raw: msg}

	var err error
	if in.MsgType, err = msg.Header.GetString(TagMsgType); err != nil {
		return in, err
	}
	if in.MsgSeqNum, err = msg.Header.GetInt(TagMsgSeqNum); err != nil {
		return in, err
	}
	if sendingTime, serr := msg.Header.GetString(TagSendingTime); serr == nil {
		if t, perr := time.Parse(fixTimeFormat, sendingTime); perr == nil {
			in.SendingTime = t
		}
	}
	if dup, derr := msg.Header.GetString(TagPossDupFlag); derr == nil {
		in.PossDupFlag = dup == "Y"
	}
	in.SenderCompID, _ = msg.Header.GetString(TagSenderCompID)
	in.TargetCompID, _ = msg.Header.GetString(TagTargetCompID)

	switch in.MsgType {
	case MsgTypeTestRequest:
		in.TestReqID, _ = msg.Body.GetString(TagTestReqID)
	case MsgTypeHeartbeat:
		in.TestReqID, _ = msg.Body.GetString(TagTestReqID)
	case MsgTypeResendRequest:
		in.BeginSeqNo, _ = msg.Body.GetInt(TagBeginSeqNo)
		in.EndSeqNo, _ = msg.Body.GetInt(TagEndSeqNo)
	case MsgTypeSequenceReset:
		in.NewSeqNo, _ = msg.Body.GetInt(TagNewSeqNo)
		if gf, gerr := msg.Body.GetString(TagGapFillFlag); gerr == nil {
			in.GapFillFlag = gf == "Y"
		}
	case MsgTypeLogon:
		in.HeartBtInt, _ = msg.Body.GetInt(TagHeartBtInt)
		if rs, rerr := msg.Body.GetString(TagResetSeqNumFlag); rerr == nil {
			in.ResetSeqNum = rs == "Y"
		}
		in.Username, _ = msg.Body.GetString(TagUsername)
		in.Password, _ = msg.Body.GetString(TagPassword)
	}

	return in, nil
}
