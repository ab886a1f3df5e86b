// Package sessiontest provides a test double that accumulates every FIX
// tag-value message a session publishes, generalized from
// FakeOtfAcceptor - the reference test suite's in-memory sink for
// asserting on received message sequences, sender, and type without a
// second real counterparty.
package sessiontest

import (
	"sync"

	"github.com/quaysystems/fixengine/wire"
)

// FakeCounterparty collects every message it is fed, in arrival order, for
// assertions in tests exercising a session's outbound traffic.
type FakeCounterparty struct {
	mu       sync.Mutex
	messages []wire.Inbound
}

// NewFakeCounterparty returns an empty collector.
func NewFakeCounterparty() *FakeCounterparty {
	return &FakeCounterparty{}
}

// Handler adapts the collector to transport.Handler so it can be driven
// directly by a Stream's Consumer.Poll.
func (f *FakeCounterparty) Handler() func(position int64, payload []byte) {
	return func(_ int64, payload []byte) {
		msg, err := wire.Parse(string(payload))
		if err != nil {
			return
		}
		in, err := wire.DecodeInbound(msg)
		if err != nil {
			return
		}
		f.Record(in)
	}
}

// Record appends a decoded message directly, for callers that already hold
// a wire.Inbound rather than raw bytes.
func (f *FakeCounterparty) Record(in wire.Inbound) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, in)
}

// Messages returns every message received so far, oldest first.
func (f *FakeCounterparty) Messages() []wire.Inbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]wire.Inbound, len(f.messages))
	copy(out, f.messages)
	return out
}

// LastMessage returns the most recently received message. It panics if
// nothing has been received, since asserting against an empty collector is
// a test-authoring mistake, not a runtime condition to guard.
func (f *FakeCounterparty) LastMessage() wire.Inbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[len(f.messages)-1]
}

// MessagesOfType filters to messages of the given FIX MsgType, preserving
// arrival order.
func (f *FakeCounterparty) MessagesOfType(msgType string) []wire.Inbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []wire.Inbound
	for _, m := range f.messages {
		if m.MsgType == msgType {
			out = append(out, m)
		}
	}
	return out
}

// HasReceivedMessageType reports whether any message of the given type
// arrived.
func (f *FakeCounterparty) HasReceivedMessageType(msgType string) bool {
	return len(f.MessagesOfType(msgType)) > 0
}

// AllHaveSequenceIndex reports whether sequenceIndexOf returns seqIndex for
// every received message - generalized from
// FakeOtfAcceptor.allMessagesHaveSequenceIndex,
// used to assert a logon reset didn't leak stale-epoch traffic into a test.
func (f *FakeCounterparty) AllHaveSequenceIndex(seqIndex int, sequenceIndexOf func(wire.Inbound) int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if sequenceIndexOf(m) != seqIndex {
			return false
		}
	}
	return true
}

// Reset clears all collected messages, for reuse across sub-tests.
func (f *FakeCounterparty) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = nil
}
