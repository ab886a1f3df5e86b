package session

import (
	"fmt"

	"github.com/quaysystems/fixengine/clock"
	"github.com/quaysystems/fixengine/errs"
	"github.com/quaysystems/fixengine/transport"
	"github.com/quaysystems/fixengine/wire"

	"go.uber.org/zap"
)

// Role distinguishes which side of the handshake this session plays -
// it decides what CONNECTED means: "user calls connect" for an initiator,
// or "wait for the peer's Logon" for an acceptor.
type Role int

const (
	Initiator Role = iota
	Acceptor
)

// ReplyCode is returned by the ownership rendez-vous operations.
type ReplyCode int

const (
	ReplyOK ReplyCode = iota
	ReplyUnknownSession
	ReplyOtherSessionOwner
	ReplySessionNotLoggedIn
)

// AuditSink records session transitions for post-mortem review. Sessions
// never block on it and never treat a failed write as fatal.
type AuditSink interface {
	SessionTransition(sessionID string, from, to State, event, reason string)
}

type noopAudit struct{}

func (noopAudit) SessionTransition(string, State, State, string, string) {}

// Config assembles the collaborators and identity a Session needs. All
// fields collaborating with the outside world - Stream, Clock,
// LeaderPredicate, Logger, Audit - are injected, never looked up from
// package-level state.
type Config struct {
	SessionID    string
	ConnectionID string
	LibraryID    string
	SenderCompID string
	TargetCompID string
	Username     string
	Password     string

	Role                  Role
	PersistenceMode       PersistenceMode
	AllowLowerSeqNumLogon bool
	HeartbeatIntervalNs   int64

	Stream transport.Stream
	Clock  clock.Clock
	// LeaderPredicate reports whether this process currently owns the
	// cluster leadership slot. Nil means "always leader" (the single-node
	// case). Mirrors ClusterStreams.isLeader()'s atomic-integer check -
	// never a consensus call made from inside the session.
	LeaderPredicate func() bool
	Logger          *zap.Logger
	Audit           AuditSink
}

type sentRecord struct {
	msgType string
	raw     []byte
}

type queuedMsg struct {
	seqNum  int
	msgType string
}

// Session owns one logical FIX counterparty pair's lifecycle. A Session is
// mutated by exactly one worker at a time (spec's single-threaded
// cooperative model) - it carries no internal lock, matching that
// ownership discipline rather than defending against concurrent access
// that, by design, never happens.
type Session struct {
	cfg Config

	state           State
	nextSentSeqNo   uint64
	nextRecvSeqNo   uint64
	sequenceIndex   uint32
	lastSentTime    int64
	lastReceivedTime int64
	testRequestSent bool

	awaitingResendFrom uint64
	awaitingResendTo   uint64
	queue              []queuedMsg

	logoutDeadline int64
	logoutPosition int64

	ownerLibraryID string

	sentHistory map[uint64]sentRecord

	testReqSeq int
}

// New constructs a Session in CONNECTED state with sequence numbers at 1.
func New(cfg Config) *Session {
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Audit == nil {
		cfg.Audit = noopAudit{}
	}
	if cfg.HeartbeatIntervalNs == 0 {
		cfg.HeartbeatIntervalNs = int64(30 * 1e9)
	}

	return &Session{
		cfg:            cfg,
		state:          Connected,
		nextSentSeqNo:  1,
		nextRecvSeqNo:  1,
		sequenceIndex:  0,
		ownerLibraryID: cfg.LibraryID,
		sentHistory:    make(map[uint64]sentRecord),
	}
}

func (s *Session) State() State            { return s.state }
func (s *Session) NextSentSeqNo() uint64   { return s.nextSentSeqNo }
func (s *Session) NextRecvSeqNo() uint64   { return s.nextRecvSeqNo }
func (s *Session) SequenceIndex() uint32   { return s.sequenceIndex }

func (s *Session) transition(to State, event, reason string) {
	from := s.state
	s.state = to
	s.cfg.Audit.SessionTransition(s.cfg.SessionID, from, to, event, reason)
	s.cfg.Logger.Debug("session transition",
		zap.String("session_id", s.cfg.SessionID),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.String("event", event),
	)
}

func (s *Session) isLeader() bool {
	if s.cfg.LeaderPredicate == nil {
		return true
	}
	return s.cfg.LeaderPredicate()
}

// seqOutcome classifies an inbound MsgSeqNum against next_recv_seq_no.
type seqOutcome int

const (
	seqInOrder seqOutcome = iota
	seqGap
	seqTooLowDuplicate
	seqTooLowReject
)

func (s *Session) admitSeq(msgSeqNum int, possDup bool) seqOutcome {
	expected := s.nextRecvSeqNo
	switch {
	case uint64(msgSeqNum) == expected:
		return seqInOrder
	case uint64(msgSeqNum) > expected:
		return seqGap
	case possDup:
		return seqTooLowDuplicate
	default:
		return seqTooLowReject
	}
}

// OnMessage feeds one inbound message through the state machine.
func (s *Session) OnMessage(in wire.Inbound, nowNs int64) (Action, error) {
	if s.state == Disconnected || s.state == Disabled {
		return Action{Kind: Disconnect, Reason: errs.SessionDisabled}, nil
	}

	s.lastReceivedTime = nowNs
	s.testRequestSent = false

	switch s.state {
	case Connected:
		return s.onConnected(in, nowNs)
	case SentLogon:
		return s.onSentLogon(in, nowNs)
	case Active, AwaitingResend:
		return s.onActiveOrResend(in, nowNs)
	case AwaitingLogout:
		return s.onAwaitingLogout(in, nowNs)
	default:
		return Action{}, errs.New(errs.KindProgrammerError, fmt.Sprintf("unhandled state %s", s.state))
	}
}

func (s *Session) onConnected(in wire.Inbound, nowNs int64) (Action, error) {
	if in.MsgType != wire.MsgTypeLogon {
		return s.fatal(errs.UnexpectedMsgType, "expected Logon to open a session"), nil
	}
	return s.acceptLogon(in, nowNs)
}

// acceptLogon handles the acceptor-side CONNECTED->ACTIVE transition.
func (s *Session) acceptLogon(in wire.Inbound, nowNs int64) (Action, error) {
	if in.ResetSeqNum {
		s.sequenceIndex++
		s.nextSentSeqNo = 1
		s.nextRecvSeqNo = 1
	} else if uint64(in.MsgSeqNum) < s.nextRecvSeqNo && !s.cfg.AllowLowerSeqNumLogon {
		s.sendLogout(wire.SessionStatusMsgSeqNumNotValid, "MsgSeqNum lower than expected on Logon", nowNs)
		s.transition(Disconnected, "Logon", fmt.Sprintf("lower seqnum rejected: got %d, expected %d", in.MsgSeqNum, s.nextRecvSeqNo))
		return Action{Kind: Disconnect, Reason: errs.New(errs.KindOutOfSequence, "lower seqnum logon rejected")}, nil
	}

	s.nextRecvSeqNo = uint64(in.MsgSeqNum) + 1
	if _, err := s.sendLogon(in.ResetSeqNum, nowNs); err != nil {
		return Action{}, err
	}
	s.transition(Active, "Logon", "")
	return Action{Kind: Consume}, nil
}

func (s *Session) onSentLogon(in wire.Inbound, nowNs int64) (Action, error) {
	if in.MsgType != wire.MsgTypeLogon {
		return s.fatal(errs.UnexpectedMsgType, "expected Logon reply"), nil
	}

	switch s.admitSeq(in.MsgSeqNum, in.PossDupFlag) {
	case seqInOrder:
		s.nextRecvSeqNo++
		s.transition(Active, "Logon", "")
		return Action{Kind: Consume}, nil
	case seqGap:
		s.startResend(uint64(in.MsgSeqNum), nowNs)
		return Action{Kind: Consume}, nil
	case seqTooLowDuplicate:
		return Action{Kind: Consume}, nil
	default:
		return s.fatal(errs.OutOfSequence, "Logon reply seqnum too low"), nil
	}
}

func (s *Session) onActiveOrResend(in wire.Inbound, nowNs int64) (Action, error) {
	if in.MsgType == wire.MsgTypeSequenceReset && in.GapFillFlag {
		return s.onGapFill(in, nowNs)
	}

	switch s.admitSeq(in.MsgSeqNum, in.PossDupFlag) {
	case seqTooLowReject:
		return s.fatal(errs.OutOfSequence, "MsgSeqNum below expected, no PossDupFlag"), nil
	case seqTooLowDuplicate:
		return Action{Kind: Consume}, nil
	case seqGap:
		if s.state != AwaitingResend {
			s.startResend(uint64(in.MsgSeqNum), nowNs)
		}
		s.queue = append(s.queue, queuedMsg{seqNum: in.MsgSeqNum, msgType: in.MsgType})
		return Action{Kind: Queue, Message: &InboundMessage{MsgSeqNum: in.MsgSeqNum, MsgType: in.MsgType}}, nil
	case seqInOrder:
		s.nextRecvSeqNo++
		action, err := s.dispatchInOrder(in, nowNs)
		if err != nil {
			return action, err
		}
		if s.state == AwaitingResend && s.nextRecvSeqNo > s.awaitingResendTo {
			s.transition(Active, "ResendComplete", "")
			action.Drained = s.drainQueue()
		}
		return action, nil
	}
	return Action{}, errs.New(errs.KindProgrammerError, "unreachable admitSeq outcome")
}

func (s *Session) dispatchInOrder(in wire.Inbound, nowNs int64) (Action, error) {
	switch in.MsgType {
	case wire.MsgTypeTestRequest:
		if _, err := s.sendHeartbeat(in.TestReqID, nowNs); err != nil {
			return Action{}, err
		}
		return Action{Kind: Consume}, nil
	case wire.MsgTypeHeartbeat:
		return Action{Kind: Consume}, nil
	case wire.MsgTypeResendRequest:
		s.replay(in.BeginSeqNo, in.EndSeqNo, nowNs)
		return Action{Kind: Consume}, nil
	case wire.MsgTypeLogout:
		s.sendLogout("", "", nowNs)
		s.transition(AwaitingLogout, "Logout", "peer-initiated")
		s.logoutDeadline = nowNs + 2*s.cfg.HeartbeatIntervalNs
		return Action{Kind: Consume}, nil
	case wire.MsgTypeLogon:
		return s.onUnexpectedLogon(in, nowNs)
	default:
		return Action{Kind: Deliver, Message: &InboundMessage{MsgSeqNum: in.MsgSeqNum, MsgType: in.MsgType}}, nil
	}
}

func (s *Session) onUnexpectedLogon(in wire.Inbound, nowNs int64) (Action, error) {
	if !in.ResetSeqNum {
		return Action{Kind: Consume}, nil
	}
	if s.cfg.PersistenceMode == Persistent {
		s.sendLogout(wire.SessionStatusMsgSeqNumNotValid, "unexpected reset", nowNs)
		s.transition(Disconnected, "Logon", fmt.Sprintf(
			"unexpected reset rejected: sequence_index %d, next_sent %d, next_recv %d",
			s.sequenceIndex, s.nextSentSeqNo, s.nextRecvSeqNo))
		return Action{Kind: Disconnect, Reason: errs.New(errs.KindOutOfSequence, "unexpected reset rejected")}, nil
	}

	s.sequenceIndex++
	s.nextSentSeqNo = 1
	s.nextRecvSeqNo = 1
	if _, err := s.sendLogon(true, nowNs); err != nil {
		return Action{}, err
	}
	s.nextRecvSeqNo = uint64(in.MsgSeqNum) + 1
	return Action{Kind: Consume}, nil
}

func (s *Session) onGapFill(in wire.Inbound, nowNs int64) (Action, error) {
	expected := s.nextRecvSeqNo
	if uint64(in.MsgSeqNum) > expected {
		if s.state != AwaitingResend {
			s.startResend(uint64(in.MsgSeqNum), nowNs)
		}
		s.queue = append(s.queue, queuedMsg{seqNum: in.MsgSeqNum, msgType: in.MsgType})
		return Action{Kind: Queue}, nil
	}
	if uint64(in.MsgSeqNum) < expected {
		return s.fatal(errs.OutOfSequence, "GapFill seqnum below expected"), nil
	}

	s.nextRecvSeqNo = uint64(in.NewSeqNo)
	action := Action{Kind: Consume}
	if s.state == AwaitingResend && s.nextRecvSeqNo > s.awaitingResendTo {
		s.transition(Active, "ResendComplete", "")
		action.Drained = s.drainQueue()
	}
	return action, nil
}

func (s *Session) onAwaitingLogout(in wire.Inbound, nowNs int64) (Action, error) {
	if in.MsgType == wire.MsgTypeLogout {
		s.transition(Disconnected, "Logout", "ack")
		s.resetIfTransient()
		return Action{Kind: Disconnect}, nil
	}
	return Action{Kind: Consume}, nil
}

func (s *Session) startResend(gapSeqNum uint64, nowNs int64) {
	from := s.nextRecvSeqNo
	to := gapSeqNum - 1
	s.awaitingResendFrom = from
	s.awaitingResendTo = to
	s.transition(AwaitingResend, "Gap", fmt.Sprintf("%d-%d", from, to))
	s.sendResendRequest(int(from), int(to), nowNs)
}

func (s *Session) drainQueue() []*InboundMessage {
	if len(s.queue) == 0 {
		return nil
	}
	drained := make([]*InboundMessage, 0, len(s.queue))
	for _, q := range s.queue {
		drained = append(drained, &InboundMessage{MsgSeqNum: q.seqNum, MsgType: q.msgType})
		if uint64(q.seqNum) >= s.nextRecvSeqNo {
			s.nextRecvSeqNo = uint64(q.seqNum) + 1
		}
	}
	s.queue = nil
	return drained
}

func (s *Session) resetIfTransient() {
	if s.cfg.PersistenceMode == Transient {
		s.nextSentSeqNo = 1
		s.nextRecvSeqNo = 1
		s.sequenceIndex++
	}
}

// fatal records a protocol error as a DISCONNECTED transition: only
// programmer errors fail loudly, protocol errors become state transitions.
func (s *Session) fatal(kind *errs.Error, detail string) Action {
	s.transition(Disconnected, "ProtocolError", detail)
	s.resetIfTransient()
	return Action{Kind: Disconnect, Reason: errs.New(kind.Kind, detail)}
}
