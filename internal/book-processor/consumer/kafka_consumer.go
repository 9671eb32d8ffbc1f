package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/betting-exchange-poc/pkg/contracts/events"
)

// MessageReader é a parte do *kafka.Reader usada pelo processor
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type SnapshotCache interface {
	SetCurrent(ctx context.Context, e events.BookSnapshot) (bool, error)
}

type SnapshotRepo interface {
	UpsertCurrent(ctx context.Context, e events.BookSnapshot) (bool, error)
	InsertHistory(ctx context.Context, e events.BookSnapshot) error
}

// Processor consome snapshots de book do Kafka, faz cache e persiste no banco
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Processor struct {
	Log    *zap.Logger
	Reader MessageReader
	Repo   SnapshotRepo
	Cache  SnapshotCache

	OnConsumed func()       // métricas (counter++)
	OnCached   func()       // métricas
	OnPersist  func()       // métricas
	OnStale    func()       // snapshot mais velho que o persistido
	OnError    func(string) // métricas por fase

	// OnAfterPersist roda depois que o snapshot virou o corrente (ex.: broadcast WS)
	OnAfterPersist func(ctx context.Context, e events.BookSnapshot)
}

// Run inicia o loop principal de consumo e processamento das mensagens Kafka
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed()
		}
		p.Handle(ctx, m.Value)
	}
}

// Handle processa um snapshot já lido. Erros são logados e contabilizados, nunca bloqueiam o loop.
func (p *Processor) Handle(ctx context.Context, value []byte) {
	var ev events.BookSnapshot
	if err := json.Unmarshal(value, &ev); err != nil {
		p.Log.Warn("invalid message", zap.Error(err))
		p.fail("decode")
		return
	}
	log := p.Log.With(zap.Uint64("market_id", ev.MarketID), zap.Uint64("selection_id", ev.SelectionID), zap.Uint64("version", ev.Version))

	// não bloqueia persistência se falhar o cache
	if _, err := p.Cache.SetCurrent(ctx, ev); err != nil {
		log.Warn("redis set failed", zap.Error(err))
		p.fail("cache")
	} else if p.OnCached != nil {
		p.OnCached()
	}

	fresh, err := p.Repo.UpsertCurrent(ctx, ev)
	if err != nil {
		log.Warn("db upsert failed", zap.Error(err))
		p.fail("db_upsert")
		return
	}
	if err := p.Repo.InsertHistory(ctx, ev); err != nil {
		log.Warn("db insert history failed", zap.Error(err))
		p.fail("db_history")
		return
	}
	if p.OnPersist != nil {
		p.OnPersist()
	}

	if !fresh {
		log.Debug("stale snapshot ignored")
		if p.OnStale != nil {
			p.OnStale()
		}
		return
	}
	if p.OnAfterPersist != nil {
		p.OnAfterPersist(ctx, ev)
	}
}

func (p *Processor) fail(phase string) {
	if p.OnError != nil {
		p.OnError(phase)
	}
}
