package events

import (
	"dulpton-point/pkg/task"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type publisherParams struct {
	fx.In

	Broker   *Broker
	Enqueuer task.Enqueuer `optional:"true"`
	Logger   *zap.Logger   `optional:"true"`
}

func newPublisher(p publisherParams) Publisher {
	if p.Enqueuer == nil {
		return p.Broker
	}
	return Fanout{p.Broker, NewAsynqPublisher(p.Enqueuer, p.Logger)}
}

var Module = fx.Module("events",
	fx.Provide(NewBroker, newPublisher),
)
