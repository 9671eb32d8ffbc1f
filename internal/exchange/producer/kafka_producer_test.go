package producer

import (
	"context"
	"encoding/json"
	"testing"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/radieske/betting-exchange-poc/pkg/contracts/events"
)

type captureWriter struct{ msgs []kafkago.Message }

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func TestPublisherRoutesByTopic(t *testing.T) {
	w := &captureWriter{}
	p := NewKafkaPublisher(w, Topics{
		OrderPlaced:    "order_placed",
		OrderCanceled:  "order_canceled",
		CounterUpdated: "order_counter_updated",
		BookSnapshots:  "book_snapshots",
	})
	ctx := context.Background()

	_ = p.OrderPlaced(ctx, events.OrderPlaced{ReceiptID: "r1", MarketID: 7, SelectionID: 2, Stake: "100"})
	_ = p.OrderCanceled(ctx, events.OrderCanceled{ReceiptID: "r1", MarketID: 7, SelectionID: 2})
	_ = p.CounterUpdated(ctx, events.CounterUpdated{ReceiptID: "r1", MarketID: 7, SelectionID: 2})
	_ = p.BookSnapshot(ctx, events.BookSnapshot{MarketID: 7, SelectionID: 2})

	want := []string{"order_placed", "order_canceled", "order_counter_updated", "book_snapshots"}
	if len(w.msgs) != len(want) {
		t.Fatalf("got %d messages", len(w.msgs))
	}
	for i, m := range w.msgs {
		if m.Topic != want[i] || string(m.Key) != "7:2" {
			t.Errorf("msg %d topic=%s key=%s", i, m.Topic, m.Key)
		}
	}

	var placed events.OrderPlaced
	if err := json.Unmarshal(w.msgs[0].Value, &placed); err != nil {
		t.Fatal(err)
	}
	if placed.ReceiptID != "r1" || placed.Stake != "100" {
		t.Errorf("payload = %+v", placed)
	}
}
