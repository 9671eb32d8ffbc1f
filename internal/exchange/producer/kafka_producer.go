package producer

import (
	"context"
	"encoding/json"

	"github.com/radieske/betting-exchange-poc/internal/shared/kafka"
	"github.com/radieske/betting-exchange-poc/pkg/contracts/events"
	"github.com/radieske/betting-exchange-poc/pkg/contracts/keys"
)

type Topics struct {
	OrderPlaced    string
	OrderCanceled  string
	CounterUpdated string
	BookSnapshots  string
}

// KafkaPublisher envia os eventos da bolsa. A chave é "market:selection",
// então tudo de um mesmo book cai na mesma partição e mantém a ordem.
type KafkaPublisher struct {
	Writer kafka.MessageWriter
	Topics Topics
}

func NewKafkaPublisher(w kafka.MessageWriter, t Topics) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, Topics: t}
}

func (p *KafkaPublisher) OrderPlaced(ctx context.Context, e events.OrderPlaced) error {
	return p.send(ctx, p.Topics.OrderPlaced, e.MarketID, e.SelectionID, e)
}

func (p *KafkaPublisher) OrderCanceled(ctx context.Context, e events.OrderCanceled) error {
	return p.send(ctx, p.Topics.OrderCanceled, e.MarketID, e.SelectionID, e)
}

func (p *KafkaPublisher) CounterUpdated(ctx context.Context, e events.CounterUpdated) error {
	return p.send(ctx, p.Topics.CounterUpdated, e.MarketID, e.SelectionID, e)
}

func (p *KafkaPublisher) BookSnapshot(ctx context.Context, e events.BookSnapshot) error {
	return p.send(ctx, p.Topics.BookSnapshots, e.MarketID, e.SelectionID, e)
}

func (p *KafkaPublisher) send(ctx context.Context, topic string, marketID, selectionID uint64, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return kafka.WriteJSON(ctx, p.Writer, topic, keys.Book(marketID, selectionID), b)
}
