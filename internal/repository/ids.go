package repository

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// IDGenerator hands out ids for records written to the file store.
type IDGenerator interface {
	NextID() string
}

// SnowflakeIDs produces time-derived decimal ids that increase
// monotonically within the process. They never look like the 24-hex
// ObjectIDs the primary store assigns.
type SnowflakeIDs struct {
	node *snowflake.Node
}

func NewSnowflakeIDs(node int64) (*SnowflakeIDs, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", node, err)
	}
	return &SnowflakeIDs{node: n}, nil
}

func (s *SnowflakeIDs) NextID() string {
	return s.node.Generate().String()
}

var DefaultIDs IDGenerator = mustSnowflake(0)

func mustSnowflake(node int64) *SnowflakeIDs {
	ids, err := NewSnowflakeIDs(node)
	if err != nil {
		panic(err)
	}
	return ids
}
