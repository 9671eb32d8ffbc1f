package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/radieske/betting-exchange-poc/pkg/contracts/events"
)

// PostgresRepo implementa a persistência dos snapshots de book em um banco Postgres
// DB: conexão com o banco de dados
type PostgresRepo struct {
	DB *sql.DB
}

// NewPostgresRepo retorna uma instância de repositório Postgres
func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// UpsertCurrent grava o snapshot corrente do book em book_snapshots_current.
// Só sobrescreve versões mais antigas; retorna false quando o snapshot já estava superado.
func (r *PostgresRepo) UpsertCurrent(ctx context.Context, e events.BookSnapshot) (bool, error) {
	const q = `
		INSERT INTO book_snapshots_current
		  (market_id, selection_id, version, payload, updated_at)
		VALUES
		  ($1,$2,$3,$4,$5)
		ON CONFLICT (market_id, selection_id) DO UPDATE SET
		  version    = EXCLUDED.version,
		  payload    = EXCLUDED.payload,
		  updated_at = EXCLUDED.updated_at
		WHERE book_snapshots_current.version < EXCLUDED.version
	`
	payload, err := json.Marshal(e)
	if err != nil {
		return false, err
	}
	res, err := r.DB.ExecContext(ctx, q,
		e.MarketID, e.SelectionID, e.Version, payload, snapshotTime(e),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertHistory insere o snapshot no histórico (book_snapshots_history)
func (r *PostgresRepo) InsertHistory(ctx context.Context, e events.BookSnapshot) error {
	const q = `
		INSERT INTO book_snapshots_history
		  (market_id, selection_id, version, payload, created_at)
		VALUES
		  ($1,$2,$3,$4,$5)
	`
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, q, e.MarketID, e.SelectionID, e.Version, payload, snapshotTime(e))
	return err
}

func snapshotTime(e events.BookSnapshot) time.Time {
	if e.TsUnixMs == 0 {
		return time.Now().UTC()
	}
	return time.UnixMilli(e.TsUnixMs).UTC()
}
