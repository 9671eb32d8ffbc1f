package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
)

type captureWriter struct{ msgs []kafka.Message }

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func TestBrokers(t *testing.T) {
	got := Brokers(" a:9092, b:9092 ,,")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Errorf("brokers = %v", got)
	}
	if len(Brokers("")) != 0 {
		t.Error("empty list should have no brokers")
	}
}

func TestWriteJSONSetsTopicAndKey(t *testing.T) {
	w := &captureWriter{}
	if err := WriteJSON(context.Background(), w, "book_snapshots", "1:2", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	if len(w.msgs) != 1 || w.msgs[0].Topic != "book_snapshots" || string(w.msgs[0].Key) != "1:2" {
		t.Errorf("message = %+v", w.msgs)
	}
	if w.msgs[0].Time.IsZero() {
		t.Error("message time not set")
	}
}
