package gen

import (
	"fmt"

	"license-service/pkg/config"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("gen", fx.Provide(ProvideSnowflakeNode))

// IDGenerator hands out string primary keys for every table.
type IDGenerator interface {
	NextID() string
}

type SnowflakeNode struct {
	node *snowflake.Node
}

func NewSnowflakeNode(nodeID int64) (*SnowflakeNode, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("init snowflake node %d: %w", nodeID, err)
	}
	return &SnowflakeNode{node: node}, nil
}

func ProvideSnowflakeNode(cfg *config.Config) (*SnowflakeNode, IDGenerator, error) {
	n, err := NewSnowflakeNode(cfg.Snowflake.Node)
	if err != nil {
		return nil, nil, err
	}
	return n, n, nil
}

func (s *SnowflakeNode) GenerateID() snowflake.ID {
	return s.node.Generate()
}

func (s *SnowflakeNode) NextID() string {
	return s.node.Generate().String()
}
