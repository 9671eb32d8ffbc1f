package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedkafka "github.com/radieske/betting-exchange-poc/internal/shared/kafka"
)

// MessageReader busca sem commit automático; o offset só anda depois que a
// mensagem foi gravada ou foi para a DLQ.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Store interface {
	Insert(ctx context.Context, r Record) error
}

// DeadLetter é o que vai para o tópico de DLQ quando a mensagem não pôde ser auditada
type DeadLetter struct {
	Topic     string `json:"topic"`
	Partition int    `json:"partition"`
	Offset    int64  `json:"offset"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Error     string `json:"error"`
	TsUnixMs  int64  `json:"ts_unix_ms"`
}

// Worker consome os eventos de ordem e grava a trilha de auditoria
type Worker struct {
	Log      *zap.Logger
	Reader   MessageReader
	Store    Store
	Topics   Topics
	DLQ      sharedkafka.MessageWriter // nil = sem DLQ
	DLQTopic string

	Retries int // tentativas extras após a primeira falha
	Backoff func(attempt int) time.Duration

	OnConsumed func()
	OnAudited  func(eventType string)
	OnDLQ      func()
	OnError    func(string)
}

func linearBackoff(attempt int) time.Duration {
	return time.Duration(300*(attempt+1)) * time.Millisecond
}

// Run: loop principal até o contexto ser cancelado
func (w *Worker) Run(ctx context.Context) error {
	for {
		m, err := w.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Log.Warn("kafka read", zap.Error(err))
			w.fail("read")
			time.Sleep(time.Second)
			continue
		}
		if w.OnConsumed != nil {
			w.OnConsumed()
		}
		// interrompida no meio: sem commit, a mensagem volta no próximo start
		if err := w.Handle(ctx, m); err != nil {
			return err
		}
		if err := w.Reader.CommitMessages(ctx, m); err != nil {
			w.Log.Warn("kafka commit", zap.Int64("offset", m.Offset), zap.Error(err))
			w.fail("commit")
		}
	}
}

// Handle audita uma mensagem. Payload inválido vai direto para a DLQ;
// falha de banco é retentada antes. Só devolve erro quando o contexto acabou
// antes de a mensagem ser resolvida.
func (w *Worker) Handle(ctx context.Context, m kafka.Message) error {
	rec, err := w.Topics.FromMessage(m)
	if err != nil {
		w.Log.Error("invalid order event", zap.String("topic", m.Topic), zap.Int64("offset", m.Offset), zap.Error(err))
		w.fail("decode")
		w.deadLetter(ctx, m, err)
		return nil
	}

	if err = w.Store.Insert(ctx, rec); err != nil {
		backoff := w.Backoff
		if backoff == nil {
			backoff = linearBackoff
		}
		for i := 0; i < w.Retries; i++ {
			select {
			case <-ctx.Done():
				w.Log.Warn("audit interrupted", zap.String("receipt_id", rec.ReceiptID), zap.Int64("offset", m.Offset))
				return ctx.Err()
			case <-time.After(backoff(i)):
			}
			if err = w.Store.Insert(ctx, rec); err == nil {
				break
			}
		}
	}
	if err != nil {
		w.Log.Error("audit insert", zap.String("receipt_id", rec.ReceiptID), zap.Error(err))
		w.fail("db")
		w.deadLetter(ctx, m, err)
		return nil
	}

	if w.OnAudited != nil {
		w.OnAudited(rec.EventType)
	}
	return nil
}

func (w *Worker) deadLetter(ctx context.Context, m kafka.Message, cause error) {
	if w.DLQ == nil {
		return
	}
	b, err := json.Marshal(DeadLetter{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       string(m.Key),
		Value:     string(m.Value),
		Error:     cause.Error(),
		TsUnixMs:  time.Now().UnixMilli(),
	})
	if err != nil {
		w.Log.Error("dlq marshal", zap.Error(err))
		return
	}
	if err := sharedkafka.WriteJSON(ctx, w.DLQ, w.DLQTopic, string(m.Key), b); err != nil {
		w.Log.Error("dlq write", zap.Error(err))
		w.fail("dlq")
		return
	}
	if w.OnDLQ != nil {
		w.OnDLQ()
	}
}

func (w *Worker) fail(phase string) {
	if w.OnError != nil {
		w.OnError(phase)
	}
}
