package wire

import "testing"

func testHeader() Header {
	return Header{
		MsgType:          MsgTypeLogon,
		SenderCompID:     "CLIENT",
		TargetCompID:     "GATEWAY",
		MsgSeqNum:        1,
		SendingTimeNanos: 1_700_000_000_000_000_000,
	}
}

func TestBuildLogon_RoundTripsThroughParse(t *testing.T) {
	h := testHeader()
	msg := BuildLogon(h, 30, true)

	raw := msg.String()
	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	mt, err := MsgType(parsed)
	if err != nil {
		t.Fatalf("MsgType: %v", err)
	}
	if mt != MsgTypeLogon {
		t.Fatalf("want msg type %q, got %q", MsgTypeLogon, mt)
	}

	seq, err := MsgSeqNum(parsed)
	if err != nil {
		t.Fatalf("MsgSeqNum: %v", err)
	}
	if seq != 1 {
		t.Fatalf("want seq num 1, got %d", seq)
	}

	reset, err := parsed.Body.GetString(TagResetSeqNumFlag)
	if err != nil {
		t.Fatalf("GetString(ResetSeqNumFlag): %v", err)
	}
	if reset != "Y" {
		t.Fatalf("want ResetSeqNumFlag=Y, got %q", reset)
	}
}

func TestBuildHeartbeat_EchoesTestReqID(t *testing.T) {
	h := testHeader()
	h.MsgType = MsgTypeHeartbeat
	msg := BuildHeartbeat(h, "probe-1")

	got, err := msg.Body.GetString(TagTestReqID)
	if err != nil {
		t.Fatalf("GetString(TestReqID): %v", err)
	}
	if got != "probe-1" {
		t.Fatalf("want probe-1, got %q", got)
	}
}

func TestBuildGapFill_SetsNewSeqNoAndFlag(t *testing.T) {
	h := testHeader()
	h.MsgType = MsgTypeSequenceReset
	msg := BuildGapFill(h, 42)

	newSeq, err := msg.Body.GetInt(TagNewSeqNo)
	if err != nil {
		t.Fatalf("GetInt(NewSeqNo): %v", err)
	}
	if newSeq != 42 {
		t.Fatalf("want NewSeqNo 42, got %d", newSeq)
	}

	flag, err := msg.Body.GetString(TagGapFillFlag)
	if err != nil {
		t.Fatalf("GetString(GapFillFlag): %v", err)
	}
	if flag != "Y" {
		t.Fatalf("want GapFillFlag=Y, got %q", flag)
	}
}

func TestBuildLogout_CarriesSessionStatusAndText(t *testing.T) {
	h := testHeader()
	h.MsgType = MsgTypeLogout
	msg := BuildLogout(h, SessionStatusMsgSeqNumNotValid, "unexpected reset")

	status, err := msg.Body.GetString(TagSessionStatus)
	if err != nil {
		t.Fatalf("GetString(SessionStatus): %v", err)
	}
	if status != SessionStatusMsgSeqNumNotValid {
		t.Fatalf("want status %q, got %q", SessionStatusMsgSeqNumNotValid, status)
	}
}

func TestBuildReject_ReferencesOffendingMessage(t *testing.T) {
	h := testHeader()
	h.MsgType = MsgTypeReject
	msg := BuildReject(h, 5, TagMsgSeqNum, MsgTypeLogon, "5", "MsgSeqNum missing")

	refSeq, err := msg.Body.GetInt(TagRefSeqNum)
	if err != nil {
		t.Fatalf("GetInt(RefSeqNum): %v", err)
	}
	if refSeq != 5 {
		t.Fatalf("want RefSeqNum 5, got %d", refSeq)
	}
}
