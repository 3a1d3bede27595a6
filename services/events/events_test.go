package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"dulpton-point/pkg/taskname"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestBroker_DeliversToAccountSubscribers(t *testing.T) {
	b := NewBroker(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alice := b.Subscribe(ctx, "alice")
	bob := b.Subscribe(ctx, "bob")

	require.NoError(t, b.Publish(ctx, Event{Kind: KindLevelUp, AccountID: "alice", Data: LevelUp{Previous: 1, Level: 2}}))

	select {
	case e := <-alice:
		require.Equal(t, KindLevelUp, e.Kind)
		require.Equal(t, LevelUp{Previous: 1, Level: 2}, e.Data)
	case <-time.After(time.Second):
		t.Fatal("alice did not receive the event")
	}
	require.Empty(t, bob)
}

func TestBroker_DropsWhenFull(t *testing.T) {
	b := NewBroker(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := b.Subscribe(ctx, "alice")
	for range DefaultBuffer + 5 {
		require.NoError(t, b.Publish(ctx, Event{Kind: KindSpinResult, AccountID: "alice"}))
	}
	require.Len(t, ch, DefaultBuffer)
}

func TestBroker_UnsubscribesOnCancel(t *testing.T) {
	b := NewBroker(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Subscribe(ctx, "alice")
	require.Equal(t, 1, b.Subscribers("alice"))

	cancel()
	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel was not closed")
	}
	require.Zero(t, b.Subscribers("alice"))
	require.NoError(t, b.Publish(context.Background(), Event{AccountID: "alice"}))
}

type recordingEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	err   error
}

func (r *recordingEnqueuer) Enqueue(_ context.Context, t *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, t)
	return &asynq.TaskInfo{Type: t.Type()}, nil
}

func TestAsynqPublisher_ForwardsWorkerEvents(t *testing.T) {
	q := &recordingEnqueuer{}
	p := NewAsynqPublisher(q, zap.NewNop())

	err := p.Publish(context.Background(),
		Event{Kind: KindBalanceChanged, AccountID: "a1", Data: BalanceChanged{Balance: 10, TotalEarned: 1050}},
		Event{Kind: KindLevelUp, AccountID: "a1", Data: LevelUp{Level: 2}},
		Event{Kind: KindGameScore, AccountID: "a1", Data: GameScore{GameID: "memory-match", Score: 90, BestScore: 120}},
	)
	require.NoError(t, err)
	require.Len(t, q.tasks, 2)

	require.Equal(t, taskname.EventBalance, q.tasks[0].Type())
	var bal BalancePayload
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &bal))
	require.Equal(t, BalancePayload{AccountID: "a1", TotalEarned: 1050}, bal)

	require.Equal(t, taskname.EventGameScore, q.tasks[1].Type())
	var gs GameScorePayload
	require.NoError(t, json.Unmarshal(q.tasks[1].Payload(), &gs))
	require.Equal(t, GameScorePayload{AccountID: "a1", GameID: "memory-match", BestScore: 120}, gs)
}

func TestFanout_PublishesToAllAndReportsFirstError(t *testing.T) {
	b := NewBroker(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := b.Subscribe(ctx, "a1")

	failing := NewAsynqPublisher(&recordingEnqueuer{err: errors.New("redis down")}, zap.NewNop())
	err := Fanout{failing, b}.Publish(ctx, Event{Kind: KindBalanceChanged, AccountID: "a1", Data: BalanceChanged{}})
	require.Error(t, err)
	require.Len(t, ch, 1)
}
