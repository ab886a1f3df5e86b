// Package idgen mints the identifiers the session and fixp packages hand
// out: a 64-bit FIXP connection uuid assigned on each Negotiate, and string
// session identities. It uses snowflake/uuid generators rather than a plain counter,
// since a real gateway allocates these ids across multiple processes and
// needs them time-ordered and collision-resistant without coordination.
package idgen

import (
	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// ConnectionIDs mints the 64-bit uuid FIXP assigns to a connection on a
// successful Negotiate. One instance per process: snowflake ids are ordered
// within a node, so sharing the generator across connections on the same
// process preserves that ordering.
type ConnectionIDs struct {
	node *snowflake.Node
}

// NewConnectionIDs builds a generator for the given node id (0-1023),
// distinguishing this process from siblings in the same cluster.
func NewConnectionIDs(nodeID int64) (*ConnectionIDs, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	return &ConnectionIDs{node: node}, nil
}

// Next returns the uuid for a newly negotiated connection.
func (c *ConnectionIDs) Next() uint64 {
	return uint64(c.node.Generate().Int64())
}

// NewSessionID returns a fresh, random session identity string.
func NewSessionID() string {
	return uuid.NewString()
}
