// Package transport abstracts the Aeron-style publication/subscription
// transport the session and fixp state machines sit on top of. The real
// transport (an Aeron publication offering try_reserve and a polling
// subscription) is an external collaborator, out of scope here - only its
// interface is defined. This package defines that interface and ships one
// in-memory implementation used throughout the test suite, generalized from
// a fixed-capacity, zero-alloc-on-eviction ring buffer that stored typed
// Trade values into one that stores raw reserved byte ranges.
package transport

import "sync"

// Claim is a reserved, uncommitted region of a Stream's buffer. The caller
// fills Buffer and must call Commit or Abort before making any other
// reservation on the same stream - claiming without resolving is a
// programmer error.
type Claim struct {
	Position int64
	Buffer   []byte

	stream *RingStream
	start  int
	length int
	done   bool
}

// Commit publishes the claimed bytes, making them visible to a Consumer.
func (c *Claim) Commit() {
	if c.done {
		panic("transport: double-commit of claim")
	}
	c.done = true
	c.stream.commit(c)
}

// Abort releases the claimed region without publishing it.
func (c *Claim) Abort() {
	if c.done {
		panic("transport: abort after commit")
	}
	c.done = true
	c.stream.abort(c)
}

// BackpressureError is returned by TryReserve when the stream has no room.
// It is always caller-visible, never panics.
type BackpressureError struct{}

func (BackpressureError) Error() string { return "transport: backpressure, retry later" }

// Stream is the publication side of the abstracted transport: reserve a
// byte range, fill it, commit or abort.
type Stream interface {
	TryReserve(length int) (*Claim, error)
}

// Handler processes one committed record, given its position and payload.
type Handler func(position int64, payload []byte)

// Consumer polls a Stream's committed records cooperatively - no implicit
// blocking on a suspended consumer.
type Consumer interface {
	Poll(handler Handler) (progress int)
}

// RingStream is a fixed-capacity, single-claim-at-a-time in-memory stream.
// It plays the role of an Aeron publication/subscription pair for tests:
// TryReserve fails with BackpressureError once the live byte range would
// exceed capacity, exactly as a real publication would refuse an offer.
type RingStream struct {
	mu       sync.Mutex
	buf      []byte
	head     int // first unconsumed byte
	tail     int // first free byte
	live     int // bytes currently reserved-or-committed
	nextPos  int64
	pending  []pendingRecord // committed records not yet polled, in commit order
	claimed  bool
}

type pendingRecord struct {
	position int64
	start    int
	length   int
}

// NewRingStream allocates a stream with the given byte capacity.
func NewRingStream(capacity int) *RingStream {
	return &RingStream{buf: make([]byte, capacity)}
}

// TryReserve reserves length bytes for the caller to fill. Only one
// outstanding claim is permitted at a time per stream - the caller must
// commit or abort before making any other reservation.
func (r *RingStream) TryReserve(length int) (*Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.claimed {
		panic("transport: concurrent claim on the same stream")
	}
	if length <= 0 {
		panic("transport: non-positive claim length")
	}
	if r.live+length > len(r.buf) {
		return nil, BackpressureError{}
	}

	start := r.tail
	if start+length > len(r.buf) {
		// A record never straddles the end of the buffer: a claim that does
		// not fit before the end wraps to offset 0 instead, never copying
		// data. Wrapping to the front is only safe once the claim fits
		// entirely within the freed region [0, head); a claim larger than
		// head would alias bytes between head and tail that are still live,
		// committed-but-not-yet-polled data. The unused gap left at the end
		// is not counted in live.
		if r.head == 0 && r.live > 0 {
			return nil, BackpressureError{}
		}
		if length > r.head {
			return nil, BackpressureError{}
		}
		start = 0
	}

	r.claimed = true
	pos := r.nextPos
	r.nextPos++

	return &Claim{
		Position: pos,
		Buffer:   r.buf[start : start+length],
		stream:   r,
		start:    start,
		length:   length,
	}, nil
}

func (r *RingStream) commit(c *Claim) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tail = c.start + c.length
	r.live += c.length
	r.claimed = false
	r.pending = append(r.pending, pendingRecord{position: c.Position, start: c.start, length: c.length})
}

func (r *RingStream) abort(c *Claim) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claimed = false
}

// Poll delivers every committed record not yet delivered, oldest first, and
// frees their space. Returns the number of records delivered.
func (r *RingStream) Poll(handler Handler) int {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	for _, p := range pending {
		handler(p.position, r.buf[p.start:p.start+p.length])
		r.mu.Lock()
		r.head = p.start + p.length
		r.live -= p.length
		if r.head == r.tail {
			r.head, r.tail = 0, 0
		}
		r.mu.Unlock()
	}
	return len(pending)
}
