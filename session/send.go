package session

import (
	"sort"
	"strconv"

	"github.com/quaysystems/fixengine/errs"
	"github.com/quaysystems/fixengine/wire"

	"github.com/quickfixgo/quickfix"
	"go.uber.org/zap"
)

// publish transmits msg over the transport, recording it in sent history
// for future resend, and returns the reservation position. A non-leader
// session (see Config.LeaderPredicate) never reserves - FollowerSession's
// sequence bookkeeping advances but nothing is written to the wire.
func (s *Session) publish(msg *quickfix.Message, seqNum uint64, msgType string) (int64, error) {
	raw := []byte(msg.String())
	s.sentHistory[seqNum] = sentRecord{msgType: msgType, raw: raw}

	if !s.isLeader() {
		return 0, nil
	}

	claim, err := s.cfg.Stream.TryReserve(len(raw))
	if err != nil {
		return 0, err
	}
	copy(claim.Buffer, raw)
	claim.Commit()
	return claim.Position, nil
}

func (s *Session) header(msgType string, nowNs int64) wire.Header {
	return wire.Header{
		MsgType:          msgType,
		SenderCompID:     s.cfg.SenderCompID,
		TargetCompID:     s.cfg.TargetCompID,
		MsgSeqNum:        int(s.nextSentSeqNo),
		SendingTimeNanos: nowNs,
	}
}

func (s *Session) sendAdmin(msgType string, nowNs int64, build func(wire.Header) *quickfix.Message) (int64, error) {
	h := s.header(msgType, nowNs)
	msg := build(h)
	pos, err := s.publish(msg, s.nextSentSeqNo, msgType)
	if err != nil {
		return 0, err
	}
	s.nextSentSeqNo++
	s.lastSentTime = nowNs
	return pos, nil
}

func (s *Session) sendLogon(resetSeqNumFlag bool, nowNs int64) (int64, error) {
	return s.sendAdmin(wire.MsgTypeLogon, nowNs, func(h wire.Header) *quickfix.Message {
		return wire.BuildLogon(h, int(s.cfg.HeartbeatIntervalNs/1e9), resetSeqNumFlag)
	})
}

func (s *Session) sendHeartbeat(testReqID string, nowNs int64) (int64, error) {
	return s.sendAdmin(wire.MsgTypeHeartbeat, nowNs, func(h wire.Header) *quickfix.Message {
		return wire.BuildHeartbeat(h, testReqID)
	})
}

func (s *Session) sendTestRequest(nowNs int64) (int64, error) {
	s.testReqSeq++
	id := strconv.Itoa(s.testReqSeq)
	return s.sendAdmin(wire.MsgTypeTestRequest, nowNs, func(h wire.Header) *quickfix.Message {
		return wire.BuildTestRequest(h, id)
	})
}

func (s *Session) sendResendRequest(from, to int, nowNs int64) (int64, error) {
	return s.sendAdmin(wire.MsgTypeResendRequest, nowNs, func(h wire.Header) *quickfix.Message {
		return wire.BuildResendRequest(h, from, to)
	})
}

func (s *Session) sendLogout(sessionStatus, text string, nowNs int64) (int64, error) {
	return s.sendAdmin(wire.MsgTypeLogout, nowNs, func(h wire.Header) *quickfix.Message {
		return wire.BuildLogout(h, sessionStatus, text)
	})
}

// Connect opens an initiator session: emits the initial Logon and moves to
// SENT_LOGON. Acceptors never call Connect - they become ACTIVE by
// receiving a Logon instead.
func (s *Session) Connect(nowNs int64, resetSeqNum bool) (int64, error) {
	if s.cfg.Role != Initiator {
		return 0, errs.New(errs.KindProgrammerError, "Connect called on an acceptor session")
	}
	if s.state != Connected {
		return 0, errs.New(errs.KindProgrammerError, "Connect called outside CONNECTED")
	}
	if resetSeqNum {
		s.sequenceIndex++
		s.nextSentSeqNo = 1
		s.nextRecvSeqNo = 1
	}
	pos, err := s.sendLogon(resetSeqNum, nowNs)
	if err != nil {
		return 0, err
	}
	s.transition(SentLogon, "Connect", "")
	return pos, nil
}

// SendApplication assigns the next outbound MsgSeqNum to an application
// message and transmits it. bodyFields are opaque to the session - it does
// not interpret application payloads, only frames them; field validation
// beyond what the state machine inspects is out of scope.
func (s *Session) SendApplication(msgType string, bodyFields map[quickfix.Tag]string, nowNs int64) (int64, error) {
	if s.state != Active && s.state != AwaitingResend {
		return 0, errs.NotConnected
	}

	h := s.header(msgType, nowNs)
	msg := wire.BuildApplication(h, bodyFields)
	pos, err := s.publish(msg, s.nextSentSeqNo, msgType)
	if err != nil {
		return 0, err
	}
	s.nextSentSeqNo++
	s.lastSentTime = nowNs
	return pos, nil
}

// StartLogout begins a graceful teardown. A second call while already
// AWAITING_LOGOUT is a no-op returning the prior position - teardown is
// idempotent.
func (s *Session) StartLogout(nowNs int64) (int64, error) {
	if s.state == AwaitingLogout {
		return s.logoutPosition, nil
	}
	if s.state != Active && s.state != AwaitingResend {
		return 0, errs.NotConnected
	}

	pos, err := s.sendLogout("", "", nowNs)
	if err != nil {
		return 0, err
	}
	s.logoutPosition = pos
	s.logoutDeadline = nowNs + 2*s.cfg.HeartbeatIntervalNs
	s.transition(AwaitingLogout, "StartLogout", "")
	return pos, nil
}

// ReleaseToGateway hands this session back to the gateway-managed pool.
// Ownership changes take effect immediately from this worker's point of
// view; the two-phase command/ack rendez-vous with other workers is the
// caller's responsibility - Session only tracks the current owner.
func (s *Session) ReleaseToGateway() ReplyCode {
	s.ownerLibraryID = ""
	return ReplyOK
}

// Acquire claims ownership for libraryID, or reports OTHER_SESSION_OWNER if
// another worker already holds it.
func (s *Session) Acquire(libraryID string) ReplyCode {
	if s.ownerLibraryID != "" && s.ownerLibraryID != libraryID {
		return ReplyOtherSessionOwner
	}
	s.ownerLibraryID = libraryID
	return ReplyOK
}

func isAdminMsgType(t string) bool {
	switch t {
	case wire.MsgTypeLogon, wire.MsgTypeLogout, wire.MsgTypeHeartbeat,
		wire.MsgTypeTestRequest, wire.MsgTypeResendRequest, wire.MsgTypeSequenceReset:
		return true
	}
	return false
}

// replay answers a peer ResendRequest covering [from, to] (to==0 means
// "through current"), preserving original sequence numbers with
// PossDupFlag=Y and coalescing contiguous admin-message runs into a single
// SequenceReset-GapFill, per the resend policy paragraph.
func (s *Session) replay(from, to int, nowNs int64) {
	if to == 0 {
		to = int(s.nextSentSeqNo) - 1
	}

	seqNums := make([]int, 0, len(s.sentHistory))
	for seq := range s.sentHistory {
		if int(seq) >= from && int(seq) <= to {
			seqNums = append(seqNums, int(seq))
		}
	}
	sort.Ints(seqNums)

	i := 0
	for i < len(seqNums) {
		seq := seqNums[i]
		rec := s.sentHistory[uint64(seq)]
		if !isAdminMsgType(rec.msgType) {
			s.resendApplication(seq, rec, nowNs)
			i++
			continue
		}

		j := i
		for j < len(seqNums) && isAdminMsgType(s.sentHistory[uint64(seqNums[j])].msgType) && seqNums[j] == seq+(j-i) {
			j++
		}
		blockEnd := seqNums[j-1]
		newSeqNo := blockEnd + 1
		if j < len(seqNums) {
			newSeqNo = seqNums[j]
		} else if blockEnd+1 > int(s.nextSentSeqNo)-1 {
			newSeqNo = int(s.nextSentSeqNo)
		}

		h := wire.Header{
			MsgType:          wire.MsgTypeSequenceReset,
			SenderCompID:     s.cfg.SenderCompID,
			TargetCompID:     s.cfg.TargetCompID,
			MsgSeqNum:        seq,
			SendingTimeNanos: nowNs,
		}
		s.rawPublish(wire.BuildGapFill(h, newSeqNo))
		i = j
	}
}

// rawPublish transmits an already-built message without touching sent
// history or next_sent_seq_no - used for resend traffic, which reuses
// original sequence numbers rather than consuming new ones.
func (s *Session) rawPublish(msg *quickfix.Message) {
	if !s.isLeader() {
		return
	}
	raw := []byte(msg.String())
	claim, err := s.cfg.Stream.TryReserve(len(raw))
	if err != nil {
		return
	}
	copy(claim.Buffer, raw)
	claim.Commit()
}

func (s *Session) resendApplication(seq int, rec sentRecord, nowNs int64) {
	parsed, err := wire.Parse(string(rec.raw))
	if err != nil {
		s.cfg.Logger.Warn("replay: failed to reparse stored message", zap.Int("seq", seq))
		return
	}
	parsed.Header.SetField(wire.TagPossDupFlag, quickfix.FIXString("Y"))
	s.rawPublish(parsed)
}
