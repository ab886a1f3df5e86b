package transport

import (
	"errors"
	"testing"
)

func TestRingStream_CommittedRecordIsDelivered(t *testing.T) {
	s := NewRingStream(64)

	claim, err := s.TryReserve(5)
	if err != nil {
		t.Fatalf("TryReserve: %v", err)
	}
	copy(claim.Buffer, "hello")
	claim.Commit()

	var got []byte
	n := s.Poll(func(position int64, payload []byte) {
		got = append(got, payload...)
	})

	if n != 1 {
		t.Fatalf("expected 1 record delivered, got %d", n)
	}
	if string(got) != "hello" {
		t.Fatalf("expected hello, got %q", got)
	}
}

func TestRingStream_AbortedClaimIsNeverDelivered(t *testing.T) {
	s := NewRingStream(64)

	claim, err := s.TryReserve(5)
	if err != nil {
		t.Fatalf("TryReserve: %v", err)
	}
	copy(claim.Buffer, "nope!")
	claim.Abort()

	n := s.Poll(func(position int64, payload []byte) {
		t.Fatalf("unexpected delivery of aborted record: %q", payload)
	})
	if n != 0 {
		t.Fatalf("expected 0 records delivered, got %d", n)
	}
}

func TestRingStream_BackpressureWhenFull(t *testing.T) {
	s := NewRingStream(8)

	claim, err := s.TryReserve(8)
	if err != nil {
		t.Fatalf("TryReserve: %v", err)
	}
	claim.Commit()

	_, err = s.TryReserve(1)
	if !errors.As(err, new(BackpressureError)) {
		t.Fatalf("expected BackpressureError, got %v", err)
	}
}

func TestRingStream_SpaceIsReclaimedAfterPoll(t *testing.T) {
	s := NewRingStream(8)

	claim, err := s.TryReserve(8)
	if err != nil {
		t.Fatalf("TryReserve: %v", err)
	}
	copy(claim.Buffer, "12345678")
	claim.Commit()

	s.Poll(func(position int64, payload []byte) {})

	if _, err := s.TryReserve(8); err != nil {
		t.Fatalf("expected reclaimed space to admit a new reservation, got %v", err)
	}
}

func TestRingStream_RecordsDeliveredInCommitOrder(t *testing.T) {
	s := NewRingStream(64)

	for _, word := range []string{"one", "two", "three"} {
		claim, err := s.TryReserve(len(word))
		if err != nil {
			t.Fatalf("TryReserve: %v", err)
		}
		copy(claim.Buffer, word)
		claim.Commit()
	}

	var order []string
	s.Poll(func(position int64, payload []byte) {
		order = append(order, string(payload))
	})

	want := []string{"one", "two", "three"}
	for i, w := range want {
		if order[i] != w {
			t.Fatalf("record %d: want %q, got %q", i, w, order[i])
		}
	}
}

func TestRingStream_WraparoundRejectsClaimLargerThanFreedRegion(t *testing.T) {
	s := NewRingStream(12)

	// Commit A and B (4 bytes each): tail=8, live=8, head=0.
	for _, word := range []string{"aaaa", "bbbb"} {
		claim, err := s.TryReserve(len(word))
		if err != nil {
			t.Fatalf("TryReserve: %v", err)
		}
		copy(claim.Buffer, word)
		claim.Commit()
	}

	// While A is being delivered, reentrantly commit C (2 bytes) - the lock
	// is released during the handler callback, so this mirrors a producer
	// committing concurrently while Poll is mid-iteration. C lands in the
	// stream's next pending batch, not this one, so Poll still delivers A
	// and B to completion, advancing head to 8 and leaving C's 2 bytes live
	// and undelivered.
	delivered := 0
	s.Poll(func(position int64, payload []byte) {
		delivered++
		if delivered == 1 {
			claim, err := s.TryReserve(2)
			if err != nil {
				t.Fatalf("reentrant TryReserve: %v", err)
			}
			copy(claim.Buffer, "cc")
			claim.Commit()
		}
	})
	if delivered != 2 {
		t.Fatalf("expected A and B delivered this poll, got %d", delivered)
	}

	// head=8 (end of B), live=2 (C, still undelivered), tail=10. A 9-byte
	// claim can't fit before the buffer end (10+9>12) and exceeds the freed
	// region [0,8) - honoring it would alias C's still-live bytes at index
	// 8-9 instead of backpressuring.
	if _, err := s.TryReserve(9); !errors.As(err, new(BackpressureError)) {
		t.Fatalf("expected BackpressureError guarding against aliasing live data, got %v", err)
	}

	// A claim that fits entirely within the freed region still succeeds.
	claim, err := s.TryReserve(8)
	if err != nil {
		t.Fatalf("TryReserve within freed region: %v", err)
	}
	claim.Abort()
}

func TestRingStream_ConcurrentClaimPanics(t *testing.T) {
	s := NewRingStream(64)
	if _, err := s.TryReserve(4); err != nil {
		t.Fatalf("TryReserve: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on concurrent claim")
		}
	}()
	s.TryReserve(4)
}
