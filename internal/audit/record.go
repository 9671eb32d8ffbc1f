package audit

import (
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/betting-exchange-poc/pkg/contracts/events"
)

// tipos gravados em order_audit.event_type
const (
	TypePlaced   = "ORDER_PLACED"
	TypeCanceled = "ORDER_CANCELED"
	TypeCounter  = "COUNTER_UPDATED"
)

// Topics mapeia os tópicos consumidos para o tipo de evento
type Topics struct {
	OrderPlaced    string
	OrderCanceled  string
	CounterUpdated string
}

func (t Topics) List() []string {
	return []string{t.OrderPlaced, t.OrderCanceled, t.CounterUpdated}
}

// Record é uma linha de order_audit. (Topic, Partition, Offset) identifica a mensagem.
type Record struct {
	Topic       string
	Partition   int
	Offset      int64
	ReceiptID   string
	MarketID    uint64
	SelectionID uint64
	EventType   string
	OldStatus   string
	NewStatus   string
	Payload     []byte
}

// FromMessage decodifica a mensagem conforme o tópico
func (t Topics) FromMessage(m kafka.Message) (Record, error) {
	r := Record{Topic: m.Topic, Partition: m.Partition, Offset: m.Offset, Payload: m.Value}

	switch m.Topic {
	case t.OrderPlaced:
		var e events.OrderPlaced
		if err := json.Unmarshal(m.Value, &e); err != nil {
			return r, fmt.Errorf("decode %s: %w", m.Topic, err)
		}
		r.EventType = TypePlaced
		r.ReceiptID, r.MarketID, r.SelectionID = e.ReceiptID, e.MarketID, e.SelectionID
		r.NewStatus = e.Status
	case t.OrderCanceled:
		var e events.OrderCanceled
		if err := json.Unmarshal(m.Value, &e); err != nil {
			return r, fmt.Errorf("decode %s: %w", m.Topic, err)
		}
		r.EventType = TypeCanceled
		r.ReceiptID, r.MarketID, r.SelectionID = e.ReceiptID, e.MarketID, e.SelectionID
		r.OldStatus, r.NewStatus = e.PrevStatus, "CANCELED"
	case t.CounterUpdated:
		var e events.CounterUpdated
		if err := json.Unmarshal(m.Value, &e); err != nil {
			return r, fmt.Errorf("decode %s: %w", m.Topic, err)
		}
		r.EventType = TypeCounter
		r.ReceiptID, r.MarketID, r.SelectionID = e.ReceiptID, e.MarketID, e.SelectionID
		r.OldStatus, r.NewStatus = e.From, e.To
	default:
		return r, fmt.Errorf("unexpected topic %q", m.Topic)
	}

	if r.ReceiptID == "" {
		return r, fmt.Errorf("decode %s: missing receipt_id", m.Topic)
	}
	return r, nil
}
