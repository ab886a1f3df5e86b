// Package logger reorders inbound and outbound session traffic into a
// single timestamp-ordered stream for the audit/replay log. Two producers
// feed it - the inbound and outbound message flows - each internally
// timestamp-ordered but interleaved with each other in arrival order, the
// same shape a reference FIX message logger drives against its onMessage
// calls for an inbound and an outbound publication, merged by a
// replayer-timestamp watermark that gates how far the merge may safely
// emit. Built on a btree-backed buffer (tidwall/btree) standing in for an
// Aeron log buffer.
package logger

import (
	"github.com/tidwall/btree"

	"github.com/quaysystems/fixengine/errs"
)

// Source distinguishes which flow a buffered message arrived on. Only the
// two sides need distinguishing - the merge cutoff tracks one high-water
// timestamp per side.
type Source int

const (
	Inbound Source = iota
	Outbound
)

func (s Source) String() string {
	if s == Outbound {
		return "outbound"
	}
	return "inbound"
}

// Entry is one message released from the reordering buffer in timestamp
// order.
type Entry struct {
	Timestamp int64
	Source    Source
	Payload   []byte
}

type bucket struct {
	entries []Entry
}

// Config configures the reordering buffer's compaction behavior.
type Config struct {
	// CompactionSize caps the buffer's total buffered payload bytes (0
	// means no cap). It never forces an emission and never breaks ordering:
	// space is freed only as entries drain, and a producer that would push
	// the buffer past the cap is backpressured by an error from OnMessage
	// rather than having its data forced out early.
	CompactionSize int
}

// MessageLogger reorders messages from two monotonically-timestamped flows
// into one ascending stream, releasing a message once no earlier message
// can still arrive from either flow.
type MessageLogger struct {
	cfg Config

	buffer *btree.Map[int64, *bucket]

	lastInboundTs  int64
	lastOutboundTs int64
	watermark      int64
	lastEmitted    int64
	haveEmitted    bool

	totalBytes      int
	discontinuities int
}

// New builds an empty reordering buffer. Nothing is released until
// OnWatermark has been called at least once - the watermark is a gate the
// caller must open explicitly, mirroring the replay indexer's role of
// telling the logger it is safe to advance.
func New(cfg Config) *MessageLogger {
	return &MessageLogger{
		cfg:    cfg,
		buffer: btree.NewMap[int64, *bucket](32),
	}
}

// OnMessage buffers a message arriving on source with the given
// application timestamp and returns any entries the arrival unblocked. A
// message whose timestamp falls before the last entry already emitted is a
// protocol violation - it is dropped rather than emitted out of order, and
// counted as a discontinuity.
//
// Backpressured once CompactionSize is exceeded: the caller must stop
// feeding new messages until a drain frees room, rather than have the
// buffer silently grow or force entries out ahead of the merge cutoff.
func (l *MessageLogger) OnMessage(timestamp int64, source Source, payload []byte) ([]Entry, error) {
	if l.haveEmitted && timestamp < l.lastEmitted {
		l.discontinuities++
		return nil, nil
	}
	if l.cfg.CompactionSize > 0 && l.totalBytes+len(payload) > l.cfg.CompactionSize {
		return nil, errs.BackPressured
	}

	b, ok := l.buffer.Get(timestamp)
	if !ok {
		b = &bucket{}
		l.buffer.Set(timestamp, b)
	}
	b.entries = append(b.entries, Entry{Timestamp: timestamp, Source: source, Payload: payload})
	l.totalBytes += len(payload)

	if source == Inbound {
		if timestamp > l.lastInboundTs {
			l.lastInboundTs = timestamp
		}
	} else {
		if timestamp > l.lastOutboundTs {
			l.lastOutboundTs = timestamp
		}
	}

	return l.drain(), nil
}

// OnWatermark raises the watermark gate. A replayer (or any external
// coordinator) calls this to declare that nothing earlier than ts remains
// unseen; the merge cutoff can never exceed it even if both flows have
// individually progressed further.
func (l *MessageLogger) OnWatermark(ts int64) []Entry {
	if ts > l.watermark {
		l.watermark = ts
	}
	return l.drain()
}

// drain releases every buffered entry at or before the current safe
// cutoff, in ascending timestamp order.
func (l *MessageLogger) drain() []Entry {
	cutoff := l.cutoff()
	var out []Entry
	for {
		ts, b, ok := l.first()
		if !ok || ts > cutoff {
			break
		}
		out = append(out, b.entries...)
		l.totalBytes -= bucketBytes(b)
		l.buffer.Delete(ts)
	}
	if len(out) > 0 {
		l.haveEmitted = true
		l.lastEmitted = out[len(out)-1].Timestamp
	}
	return out
}

func (l *MessageLogger) cutoff() int64 {
	cutoff := l.lastInboundTs
	if l.lastOutboundTs < cutoff {
		cutoff = l.lastOutboundTs
	}
	if l.watermark < cutoff {
		cutoff = l.watermark
	}
	return cutoff
}

func (l *MessageLogger) first() (int64, *bucket, bool) {
	var ts int64
	var b *bucket
	found := false
	l.buffer.Scan(func(key int64, value *bucket) bool {
		ts, b, found = key, value, true
		return false
	})
	return ts, b, found
}

func bucketBytes(b *bucket) int {
	n := 0
	for _, e := range b.entries {
		n += len(e.Payload)
	}
	return n
}

// BufferPosition reports the total payload bytes currently buffered,
// unreleased. CompactionSize bounds this from above: OnMessage
// backpressures before it would be exceeded.
func (l *MessageLogger) BufferPosition() int { return l.totalBytes }

// Discontinuities counts messages dropped because they arrived with a
// timestamp earlier than one already emitted.
func (l *MessageLogger) Discontinuities() int { return l.discontinuities }
