package fixp

import (
	"github.com/quaysystems/fixengine/clock"
	"github.com/quaysystems/fixengine/errs"
	"github.com/quaysystems/fixengine/idgen"
	"github.com/quaysystems/fixengine/transport"

	"go.uber.org/zap"
)

// AuditSink records FIXP connection transitions, mirroring session.AuditSink
// for the binary protocol side.
type AuditSink interface {
	ConnectionTransition(connectionID uint64, from, to State, event, reason string)
}

type noopAudit struct{}

func (noopAudit) ConnectionTransition(uint64, State, State, string, string) {}

// Config assembles a Connection's collaborators and identity.
type Config struct {
	ConnectionID       uint64
	KeepAliveIntervalNs int64

	Stream          transport.Stream
	Clock           clock.Clock
	ConnectionIDs   *idgen.ConnectionIDs
	LeaderPredicate func() bool
	Logger          *zap.Logger
	Audit           AuditSink
}

// pendingFrame is the saved-frame struct backing the back-pressure retry
// states: poll inspects it first and re-attempts the send until the
// transport accepts it, transparent to the peer.
type pendingFrame struct {
	raw      []byte
	nextState State
}

// Connection is one FIXP/iLink3 binary connection's lifecycle. Like
// session.Session, it is owned by exactly one worker and carries no
// internal lock.
type Connection struct {
	cfg Config

	state State

	uuid     uint64
	lastUUID uint64

	nextSentSeqNo uint64
	nextRecvSeqNo uint64

	retransmitFillSeqNo  int64
	nextRetransmitSeqNo  uint64
	retransmitReturnState State

	lastPeerMessageTime int64
	lastSentTime         int64
	keepaliveSent        bool

	pending *pendingFrame

	activeClaim *transport.Claim
}

// New constructs a Connection in CONNECTED state.
func New(cfg Config) *Connection {
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Audit == nil {
		cfg.Audit = noopAudit{}
	}
	return &Connection{
		cfg:                  cfg,
		state:                Connected,
		nextSentSeqNo:        1,
		nextRecvSeqNo:        1,
		retransmitFillSeqNo:  NotAwaitingRetransmit,
	}
}

func (c *Connection) State() State                { return c.state }
func (c *Connection) UUID() uint64                { return c.uuid }
func (c *Connection) LastUUID() uint64            { return c.lastUUID }
func (c *Connection) ConnectionID() uint64        { return c.cfg.ConnectionID }
func (c *Connection) NextSentSeqNo() uint64       { return c.nextSentSeqNo }
func (c *Connection) NextRecvSeqNo() uint64       { return c.nextRecvSeqNo }
func (c *Connection) RetransmitFillSeqNo() int64  { return c.retransmitFillSeqNo }
func (c *Connection) NextRetransmitSeqNo() uint64 { return c.nextRetransmitSeqNo }

func (c *Connection) SetNextSentSeqNo(n uint64) { c.nextSentSeqNo = n }
func (c *Connection) SetNextRecvSeqNo(n uint64) { c.nextRecvSeqNo = n }

// CanSendMessage reports whether a reservation would currently succeed -
// only ESTABLISHED and AWAITING_KEEPALIVE accept sends. Supplemented from
// ILink3Connection.canSendMessage() so callers can skip a doomed reserve.
func (c *Connection) CanSendMessage() bool {
	return c.state == Established || c.state == AwaitingKeepalive
}

func (c *Connection) isLeader() bool {
	if c.cfg.LeaderPredicate == nil {
		return true
	}
	return c.cfg.LeaderPredicate()
}

func (c *Connection) transition(to State, event, reason string) {
	from := c.state
	c.state = to
	c.cfg.Audit.ConnectionTransition(c.cfg.ConnectionID, from, to, event, reason)
	c.cfg.Logger.Debug("fixp transition",
		zap.Uint64("connection_id", c.cfg.ConnectionID),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.String("event", event),
	)
}

// Claim is a reserved, uncommitted flyweight region the caller fills and
// must resolve with Commit or Abort before any other send/poll, per the
// try_claim contract. TryClaim takes the message's total length in one
// argument; there is no separate variable-length parameter.
type Claim struct {
	Position int64
	Buffer   []byte
}

// TryClaim reserves a transport slot for a message of the given length.
// Reserving outside {ESTABLISHED, AWAITING_KEEPALIVE} yields NotConnected.
func (c *Connection) TryClaim(length int) (*Claim, error) {
	if !c.CanSendMessage() {
		return nil, errs.NotConnected
	}
	if c.activeClaim != nil {
		panic("fixp: concurrent claim on the same connection")
	}

	reserved, err := c.cfg.Stream.TryReserve(length)
	if err != nil {
		return nil, err
	}
	c.activeClaim = reserved
	return &Claim{Position: reserved.Position, Buffer: reserved.Buffer}, nil
}

// Commit publishes the most recent TryClaim's buffer.
func (c *Connection) Commit() {
	if c.activeClaim == nil {
		panic("fixp: commit without an outstanding claim")
	}
	c.activeClaim.Commit()
	c.activeClaim = nil
}

// Abort discards the most recent TryClaim's buffer without publishing it.
func (c *Connection) Abort() {
	if c.activeClaim == nil {
		panic("fixp: abort without an outstanding claim")
	}
	c.activeClaim.Abort()
	c.activeClaim = nil
}
