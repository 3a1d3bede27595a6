package gen

import (
	"dulpton-point/pkg/config"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("gen",
	fx.Provide(NewSnowflakeNode),
	fx.Provide(func(n *SnowflakeNode) IDGenerator { return n }),
)

// IDGenerator hands out unique, time-ordered string ids.
type IDGenerator interface {
	NewID() string
}

type SnowflakeNode struct {
	node *snowflake.Node
}

func NewSnowflakeNode(cfg *config.Config) (*SnowflakeNode, error) {
	return NewNode(cfg.Snowflake.Node)
}

func NewNode(id int64) (*SnowflakeNode, error) {
	node, err := snowflake.NewNode(id)
	if err != nil {
		return nil, err
	}
	return &SnowflakeNode{node: node}, nil
}

func (s *SnowflakeNode) GenerateID() snowflake.ID {
	return s.node.Generate()
}

func (s *SnowflakeNode) NewID() string {
	return s.node.Generate().String()
}
