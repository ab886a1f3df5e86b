package wire

import (
	"bytes"
	"sort"
	"strconv"
	"time"

	"github.com/quickfixgo/quickfix"
)

// FieldSetter abstracts setting fields on a FIX message component, letting
// setString be shared between Header and Body without duplicating code per
// message type.
type FieldSetter interface {
	SetField(tag quickfix.Tag, field quickfix.FieldValueWriter) *quickfix.FieldMap
}

func setString(fs FieldSetter, tag quickfix.Tag, value string) {
	fs.SetField(tag, quickfix.FIXString(value))
}

func setInt(fs FieldSetter, tag quickfix.Tag, value int) {
	fs.SetField(tag, quickfix.FIXInt(value))
}

func setBool(fs FieldSetter, tag quickfix.Tag, value bool) {
	v := "N"
	if value {
		v = "Y"
	}
	setString(fs, tag, v)
}

// Header carries the fields every admin message shares. sendingTimeNanos
// comes from an injected clock, never time.Now() directly, so tests can
// produce deterministic wire output.
type Header struct {
	MsgType          string
	SenderCompID     string
	TargetCompID     string
	MsgSeqNum        int
	SendingTimeNanos int64
	PossDupFlag      bool
}

func applyHeader(msg *quickfix.Message, h Header) {
	setString(&msg.Header, TagBeginString, "FIX.4.4")
	setString(&msg.Header, TagMsgType, h.MsgType)
	setString(&msg.Header, TagSenderCompID, h.SenderCompID)
	setString(&msg.Header, TagTargetCompID, h.TargetCompID)
	setInt(&msg.Header, TagMsgSeqNum, h.MsgSeqNum)
	setString(&msg.Header, TagSendingTime, time.Unix(0, h.SendingTimeNanos).UTC().Format(fixTimeFormat))
	if h.PossDupFlag {
		setBool(&msg.Header, TagPossDupFlag, true)
	}
}

// BuildLogon constructs a Logon, optionally carrying ResetSeqNumFlag for a
// sequence-number reset on reconnect.
func BuildLogon(h Header, heartBtInt int, resetSeqNumFlag bool) *quickfix.Message {
	msg := quickfix.NewMessage()
	applyHeader(msg, h)
	setInt(&msg.Body, TagHeartBtInt, heartBtInt)
	setString(&msg.Body, TagEncryptMethod, EncryptMethodNone)
	if resetSeqNumFlag {
		setBool(&msg.Body, TagResetSeqNumFlag, true)
	}
	return msg
}

// BuildHeartbeat constructs a Heartbeat, echoing testReqID when sent in
// response to a TestRequest (empty string otherwise).
func BuildHeartbeat(h Header, testReqID string) *quickfix.Message {
	msg := quickfix.NewMessage()
	applyHeader(msg, h)
	if testReqID != "" {
		setString(&msg.Body, TagTestReqID, testReqID)
	}
	return msg
}

// BuildTestRequest constructs a TestRequest carrying a correlation id the
// sender expects to see echoed back on the resulting Heartbeat.
func BuildTestRequest(h Header, testReqID string) *quickfix.Message {
	msg := quickfix.NewMessage()
	applyHeader(msg, h)
	setString(&msg.Body, TagTestReqID, testReqID)
	return msg
}

// BuildResendRequest constructs a ResendRequest for the inclusive range
// [beginSeqNo, endSeqNo]; endSeqNo of 0 means "to infinity" per FIX
// convention.
func BuildResendRequest(h Header, beginSeqNo, endSeqNo int) *quickfix.Message {
	msg := quickfix.NewMessage()
	applyHeader(msg, h)
	setInt(&msg.Body, TagBeginSeqNo, beginSeqNo)
	setInt(&msg.Body, TagEndSeqNo, endSeqNo)
	return msg
}

// BuildGapFill constructs a SequenceReset in gap-fill mode: newSeqNo is the
// sequence number the sender will use next, and GapFillFlag=Y marks this as
// a gap-fill rather than a hard reset.
func BuildGapFill(h Header, newSeqNo int) *quickfix.Message {
	msg := quickfix.NewMessage()
	applyHeader(msg, h)
	setInt(&msg.Body, TagNewSeqNo, newSeqNo)
	setBool(&msg.Body, TagGapFillFlag, true)
	return msg
}

// BuildLogout constructs a Logout, optionally carrying a SessionStatus and
// free-text reason - used for the reject-unexpected-reset path.
func BuildLogout(h Header, sessionStatus, text string) *quickfix.Message {
	msg := quickfix.NewMessage()
	applyHeader(msg, h)
	if sessionStatus != "" {
		setString(&msg.Body, TagSessionStatus, sessionStatus)
	}
	if text != "" {
		setString(&msg.Body, TagText, text)
	}
	return msg
}

// BuildReject constructs a session-level Reject referencing the offending
// inbound message's MsgSeqNum, tag, and message type.
func BuildReject(h Header, refSeqNum int, refTagID quickfix.Tag, refMsgType, reason, text string) *quickfix.Message {
	msg := quickfix.NewMessage()
	applyHeader(msg, h)
	setInt(&msg.Body, TagRefSeqNum, refSeqNum)
	if refTagID != 0 {
		setString(&msg.Body, TagRefTagID, strconv.Itoa(int(refTagID)))
	}
	if refMsgType != "" {
		setString(&msg.Body, TagRefMsgType, refMsgType)
	}
	if reason != "" {
		setString(&msg.Body, TagSessionRejectReason, reason)
	}
	if text != "" {
		setString(&msg.Body, TagText, text)
	}
	return msg
}

// BuildApplication constructs an application message with the given body
// fields. The session frames application messages but never interprets
// their bodies - field validation beyond the header is out of scope - so
// callers pass the body as an opaque tag/value set.
func BuildApplication(h Header, bodyFields map[quickfix.Tag]string) *quickfix.Message {
	msg := quickfix.NewMessage()
	applyHeader(msg, h)

	tags := make([]int, 0, len(bodyFields))
	for tag := range bodyFields {
		tags = append(tags, int(tag))
	}
	sort.Ints(tags)
	for _, t := range tags {
		tag := quickfix.Tag(t)
		setString(&msg.Body, tag, bodyFields[tag])
	}
	return msg
}

// MsgType reads tag 35 from a parsed message.
func MsgType(msg *quickfix.Message) (string, error) {
	return msg.Header.GetString(TagMsgType)
}

// MsgSeqNum reads tag 34 from a parsed message.
func MsgSeqNum(msg *quickfix.Message) (int, error) {
	return msg.Header.GetInt(TagMsgSeqNum)
}

// Parse parses a raw SOH-delimited tag-value FIX message into a
// *quickfix.Message for field access by the session state machine.
func Parse(raw string) (*quickfix.Message, error) {
	msg := quickfix.NewMessage()
	err := quickfix.ParseMessage(msg, bytes.NewBufferString(raw))
	return msg, err
}
