package session

import "github.com/quaysystems/fixengine/errs"

// Poll is the session's only progress mechanism: non-blocking, driven by
// the caller on every event-loop tick. It emits heartbeats and test
// requests on schedule and disconnects on a stalled peer. Both the
// heartbeat and the test-request conditions are judged against the times
// as they stood when the tick began. Returns the number of actions taken
// this tick, and a non-nil error when this tick caused a disconnect (the
// caller inspects State() to see the result; the error just names why) or
// when sending a heartbeat or test request failed, e.g. on back-pressure.
func (s *Session) Poll(nowNs int64) (int, error) {
	if s.state == Disconnected || s.state == Disabled {
		return 0, nil
	}
	if !s.isLeader() {
		return 0, nil
	}

	if s.state == AwaitingLogout {
		if nowNs >= s.logoutDeadline {
			s.transition(Disconnected, "LogoutTimeout", "")
			s.resetIfTransient()
			return 1, nil
		}
		return 0, nil
	}

	if s.state != Active && s.state != AwaitingResend {
		return 0, nil
	}

	progress := 0
	hb := s.cfg.HeartbeatIntervalNs
	heartbeatDue := nowNs-s.lastSentTime >= hb

	if nowNs-s.lastReceivedTime >= int64(2.4*float64(hb)) {
		s.transition(Disconnected, "HeartbeatTimeout", "")
		s.resetIfTransient()
		return progress + 1, errs.HeartbeatTimeout
	}

	if nowNs-s.lastReceivedTime >= int64(1.2*float64(hb)) && !s.testRequestSent {
		if _, err := s.sendTestRequest(nowNs); err != nil {
			return progress, err
		}
		s.testRequestSent = true
		progress++
	}

	if heartbeatDue {
		if _, err := s.sendHeartbeat("", nowNs); err != nil {
			return progress, err
		}
		progress++
	}

	return progress, nil
}
