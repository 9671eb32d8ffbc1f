package audit

import (
	"context"
	"database/sql"
)

type PostgresStore struct {
	DB *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

// Insert grava a linha de auditoria. Reentregas do Kafka caem no ON CONFLICT.
func (s *PostgresStore) Insert(ctx context.Context, r Record) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO order_audit
		  (topic, kafka_partition, kafka_offset, receipt_id, market_id, selection_id,
		   event_type, old_status, new_status, payload, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''),NULLIF($9,''),$10,NOW())
		ON CONFLICT (topic, kafka_partition, kafka_offset) DO NOTHING`,
		r.Topic, r.Partition, r.Offset, r.ReceiptID, r.MarketID, r.SelectionID,
		r.EventType, r.OldStatus, r.NewStatus, r.Payload)
	return err
}
