package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/betting-exchange-poc/pkg/contracts/events"
)

type fakeCache struct {
	err  error
	sets []uint64
}

func (c *fakeCache) SetCurrent(_ context.Context, e events.BookSnapshot) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	c.sets = append(c.sets, e.Version)
	return true, nil
}

type fakeRepo struct {
	current   map[uint64]uint64 // selection -> version
	history   int
	upsertErr error
}

func (r *fakeRepo) UpsertCurrent(_ context.Context, e events.BookSnapshot) (bool, error) {
	if r.upsertErr != nil {
		return false, r.upsertErr
	}
	if v, ok := r.current[e.SelectionID]; ok && v >= e.Version {
		return false, nil
	}
	r.current[e.SelectionID] = e.Version
	return true, nil
}

func (r *fakeRepo) InsertHistory(context.Context, events.BookSnapshot) error {
	r.history++
	return nil
}

// sliceReader entrega as mensagens e depois cancela o contexto
type sliceReader struct {
	msgs   [][]byte
	cancel context.CancelFunc
}

func (s *sliceReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(s.msgs) == 0 {
		s.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	v := s.msgs[0]
	s.msgs = s.msgs[1:]
	return kafka.Message{Value: v}, nil
}

func snapshot(t *testing.T, sel, version uint64) []byte {
	t.Helper()
	b, err := json.Marshal(events.BookSnapshot{MarketID: 1, SelectionID: sel, Version: version})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestProcessorRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := &fakeRepo{current: map[uint64]uint64{}}
	cache := &fakeCache{}
	var consumed, persisted, stale int
	var phases []string
	var broadcast []uint64

	p := &Processor{
		Log: zap.NewNop(),
		Reader: &sliceReader{cancel: cancel, msgs: [][]byte{
			snapshot(t, 1, 3),
			[]byte("{not json"),
			snapshot(t, 1, 2), // fora de ordem
			snapshot(t, 2, 1),
		}},
		Repo:       repo,
		Cache:      cache,
		OnConsumed: func() { consumed++ },
		OnPersist:  func() { persisted++ },
		OnStale:    func() { stale++ },
		OnError:    func(phase string) { phases = append(phases, phase) },
		OnAfterPersist: func(_ context.Context, e events.BookSnapshot) {
			broadcast = append(broadcast, e.Version)
		},
	}

	if err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	if consumed != 4 || persisted != 3 || stale != 1 {
		t.Errorf("consumed=%d persisted=%d stale=%d", consumed, persisted, stale)
	}
	if len(phases) != 1 || phases[0] != "decode" {
		t.Errorf("error phases = %v", phases)
	}
	if len(broadcast) != 2 || broadcast[0] != 3 || broadcast[1] != 1 {
		t.Errorf("broadcast = %v", broadcast)
	}
	if repo.history != 3 {
		t.Errorf("history rows = %d", repo.history)
	}
}

func TestHandleCacheFailureStillPersists(t *testing.T) {
	repo := &fakeRepo{current: map[uint64]uint64{}}
	var phases []string
	p := &Processor{
		Log:     zap.NewNop(),
		Repo:    repo,
		Cache:   &fakeCache{err: errors.New("redis down")},
		OnError: func(phase string) { phases = append(phases, phase) },
	}
	p.Handle(context.Background(), snapshot(t, 1, 1))

	if repo.current[1] != 1 {
		t.Error("snapshot not persisted")
	}
	if len(phases) != 1 || phases[0] != "cache" {
		t.Errorf("phases = %v", phases)
	}
}

func TestHandleUpsertFailureSkipsBroadcast(t *testing.T) {
	called := false
	p := &Processor{
		Log:            zap.NewNop(),
		Repo:           &fakeRepo{upsertErr: errors.New("db down")},
		Cache:          &fakeCache{},
		OnAfterPersist: func(context.Context, events.BookSnapshot) { called = true },
	}
	p.Handle(context.Background(), snapshot(t, 1, 1))
	if called {
		t.Error("broadcast after failed upsert")
	}
}
