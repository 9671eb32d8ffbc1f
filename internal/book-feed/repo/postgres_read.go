package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/radieske/betting-exchange-poc/pkg/contracts/events"
)

var ErrNotFound = errors.New("book not found")

type ReadRepo struct {
	DB *sql.DB
}

// Book retorna o snapshot corrente de uma seleção
func (r *ReadRepo) Book(ctx context.Context, marketID, selectionID uint64) (events.BookSnapshot, error) {
	const q = `
		SELECT payload
		FROM book_snapshots_current
		WHERE market_id = $1 AND selection_id = $2;
	`
	var raw []byte
	err := r.DB.QueryRowContext(ctx, q, marketID, selectionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return events.BookSnapshot{}, ErrNotFound
	}
	if err != nil {
		return events.BookSnapshot{}, err
	}
	var e events.BookSnapshot
	return e, json.Unmarshal(raw, &e)
}

// MarketBooks retorna os snapshots correntes de todas as seleções de um mercado
func (r *ReadRepo) MarketBooks(ctx context.Context, marketID uint64) ([]events.BookSnapshot, error) {
	const q = `
		SELECT payload
		FROM book_snapshots_current
		WHERE market_id = $1
		ORDER BY selection_id;
	`
	rows, err := r.DB.QueryContext(ctx, q, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []events.BookSnapshot
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var e events.BookSnapshot
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// History retorna as últimas versões do book, da mais nova para a mais antiga
func (r *ReadRepo) History(ctx context.Context, marketID, selectionID uint64, limit int) ([]events.BookSnapshot, error) {
	const q = `
		SELECT payload
		FROM book_snapshots_history
		WHERE market_id = $1 AND selection_id = $2
		ORDER BY version DESC
		LIMIT $3;
	`
	rows, err := r.DB.QueryContext(ctx, q, marketID, selectionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []events.BookSnapshot
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var e events.BookSnapshot
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
