// Package wire builds and reads the tag-value FIX representation of the
// admin messages the session state machine exchanges: Logon, Heartbeat,
// TestRequest, ResendRequest, SequenceReset-GapFill, Logout, and Reject.
// It uses quickfixgo/quickfix purely as a tag-value container - FieldMap,
// Header, Body; none of quickfix's own session or acceptor/initiator
// machinery is used, since that logic is what this repository reimplements
// with its own state machine.
package wire

import "github.com/quickfixgo/quickfix"

// Admin message types, FIX tag-value "35=" values.
const (
	MsgTypeLogon         = "A"
	MsgTypeLogout        = "5"
	MsgTypeHeartbeat     = "0"
	MsgTypeTestRequest   = "1"
	MsgTypeResendRequest = "2"
	MsgTypeReject        = "3"
	MsgTypeSequenceReset = "4"
)

// Standard header and admin-message tags not already carried by the
// teacher's market-data constants package.
const (
	TagBeginString         = quickfix.Tag(8)
	TagBodyLength          = quickfix.Tag(9)
	TagMsgType             = quickfix.Tag(35)
	TagSenderCompID        = quickfix.Tag(49)
	TagTargetCompID        = quickfix.Tag(56)
	TagMsgSeqNum           = quickfix.Tag(34)
	TagSendingTime         = quickfix.Tag(52)
	TagPossDupFlag         = quickfix.Tag(43)
	TagCheckSum            = quickfix.Tag(10)
	TagEncryptMethod       = quickfix.Tag(98)
	TagHeartBtInt          = quickfix.Tag(108)
	TagResetSeqNumFlag     = quickfix.Tag(141)
	TagTestReqID           = quickfix.Tag(112)
	TagBeginSeqNo          = quickfix.Tag(7)
	TagEndSeqNo            = quickfix.Tag(16)
	TagNewSeqNo            = quickfix.Tag(36)
	TagGapFillFlag         = quickfix.Tag(123)
	TagSessionStatus       = quickfix.Tag(1409)
	TagText                = quickfix.Tag(58)
	TagRefSeqNum           = quickfix.Tag(45)
	TagRefTagID            = quickfix.Tag(371)
	TagRefMsgType          = quickfix.Tag(372)
	TagSessionRejectReason = quickfix.Tag(373)
	TagUsername            = quickfix.Tag(553)
	TagPassword            = quickfix.Tag(554)
)

// SessionStatus values (tag 1409) used by the Logout admin message.
const (
	SessionStatusMsgSeqNumNotValid = "2"
)

// EncryptMethod values (tag 98); the engine only ever negotiates none.
const (
	EncryptMethodNone = "0"
)

const fixTimeFormat = "20060102-15:04:05.000"
