// Package session implements the FIX session state machine: one instance
// owns the lifecycle of a single logical counterparty pair - logon,
// heartbeats, resend, logout, disconnect, and sequence-number agreement.
// It follows the quickfix.Application callback shape for wiring inbound
// messages in, but replaces quickfix's own session machinery entirely with
// the explicit state table below rather than driving a built-in
// initiator/acceptor session.
package session

// State is one of the session's lifecycle states. Exactly one holds at any
// moment.
type State int

const (
	Connected State = iota
	SentLogon
	AwaitingLogon
	Active
	AwaitingResend
	AwaitingLogout
	Disconnected
	Disabled
)

func (s State) String() string {
	switch s {
	case Connected:
		return "CONNECTED"
	case SentLogon:
		return "SENT_LOGON"
	case AwaitingLogon:
		return "AWAITING_LOGON"
	case Active:
		return "ACTIVE"
	case AwaitingResend:
		return "AWAITING_RESEND"
	case AwaitingLogout:
		return "AWAITING_LOGOUT"
	case Disconnected:
		return "DISCONNECTED"
	case Disabled:
		return "DISABLED"
	default:
		return "UNKNOWN"
	}
}

// PersistenceMode governs whether sequence numbers survive a disconnect.
type PersistenceMode int

const (
	Persistent PersistenceMode = iota
	Transient
)

// ActionKind classifies the result of OnMessage.
type ActionKind int

const (
	// Deliver means an application message was accepted in sequence and
	// should be forwarded to the consumer.
	Deliver ActionKind = iota
	// Consume means an admin message was handled internally; nothing is
	// forwarded.
	Consume
	// Disconnect means the session is tearing down; Reason names why.
	Disconnect
	// Queue means an application message arrived during a gap recovery and
	// is held for delivery once the gap closes.
	Queue
)

func (k ActionKind) String() string {
	switch k {
	case Deliver:
		return "DELIVER"
	case Consume:
		return "CONSUME"
	case Disconnect:
		return "DISCONNECT"
	case Queue:
		return "QUEUE"
	default:
		return "UNKNOWN"
	}
}

// Action is the result of feeding one inbound message through OnMessage.
type Action struct {
	Kind    ActionKind
	Reason  error // set when Kind == Disconnect
	Message *InboundMessage

	// Drained holds the messages released from the gap-wait queue once a
	// resend completes and the queued run is delivered in order.
	Drained []*InboundMessage
}

// InboundMessage is handed back to the caller on Deliver/Queue so it can
// forward the application payload downstream.
type InboundMessage struct {
	MsgSeqNum int
	MsgType   string
}
