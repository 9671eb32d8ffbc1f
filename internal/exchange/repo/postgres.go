package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/radieske/betting-exchange-poc/internal/exchange/book"
	"github.com/radieske/betting-exchange-poc/internal/exchange/market"
	"github.com/radieske/betting-exchange-poc/internal/exchange/placement"
)

// Postgres guarda mercados, books e ordens
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório da bolsa
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Market carrega o mercado com as seleções em ordem de id
func (p *Postgres) Market(ctx context.Context, id uint64) (market.Market, error) {
	var (
		m      market.Market
		status string
		total  string
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT id, event_id, description, status, close_at, total_matched::text, created_at
		FROM markets WHERE id=$1`, id).
		Scan(&m.ID, &m.EventID, &m.Description, &status, &m.CloseAt, &total, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return market.Market{}, market.ErrNotFound
	}
	if err != nil {
		return market.Market{}, err
	}
	m.Status = market.Status(status)
	if err := m.TotalMatched.SetFromDecimal(total); err != nil {
		return market.Market{}, fmt.Errorf("market %d total_matched: %w", id, err)
	}

	rows, err := p.db.QueryContext(ctx, `SELECT id, description FROM selections WHERE market_id=$1 ORDER BY id`, id)
	if err != nil {
		return market.Market{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var s market.Selection
		if err := rows.Scan(&s.ID, &s.Description); err != nil {
			return market.Market{}, err
		}
		m.Selections = append(m.Selections, s)
	}
	return m, rows.Err()
}

// CreateMarket insere mercado e seleções na mesma transação e preenche m.ID
func (p *Postgres) CreateMarket(ctx context.Context, m *market.Market) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err = tx.QueryRowContext(ctx, `
		INSERT INTO markets (event_id, description, status, close_at, created_at)
		VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		m.EventID, m.Description, string(m.Status), m.CloseAt, m.CreatedAt).Scan(&m.ID); err != nil {
		return err
	}
	for _, s := range m.Selections {
		if _, err = tx.ExecContext(ctx, `INSERT INTO selections (market_id, id, description) VALUES ($1,$2,$3)`,
			m.ID, s.ID, s.Description); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *Postgres) CloseMarket(ctx context.Context, id uint64) error {
	res, err := p.db.ExecContext(ctx, `UPDATE markets SET status=$2 WHERE id=$1`, id, string(market.Closed))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return market.ErrNotFound
	}
	return nil
}

// WithBook trava a linha do mercado e a do book, roda fn e grava book, ordens
// e volume do mercado na mesma transação. A linha do book é criada na primeira ordem.
//
// O lock do mercado vem antes do book para que CloseMarket espere a ordem
// em curso, e a ordem seguinte já enxergue CLOSED.
func (p *Postgres) WithBook(ctx context.Context, marketID, selectionID uint64, fn func(*book.Tracker, placement.MarketState) (placement.Changes, error)) error {
	empty, err := json.Marshal(book.New())
	if err != nil {
		return err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var (
		st     placement.MarketState
		status string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT status, close_at FROM markets WHERE id=$1 FOR NO KEY UPDATE`, marketID).
		Scan(&status, &st.CloseAt)
	if errors.Is(err, sql.ErrNoRows) {
		return market.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock market: %w", err)
	}
	st.Status = market.Status(status)

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO selection_books (market_id, selection_id, tracker)
		VALUES ($1,$2,$3) ON CONFLICT (market_id, selection_id) DO NOTHING`,
		marketID, selectionID, empty); err != nil {
		return fmt.Errorf("create book: %w", err)
	}

	var raw []byte
	if err = tx.QueryRowContext(ctx, `
		SELECT tracker FROM selection_books
		WHERE market_id=$1 AND selection_id=$2 FOR UPDATE`, marketID, selectionID).Scan(&raw); err != nil {
		return fmt.Errorf("lock book: %w", err)
	}
	tr, err := decodeTracker(raw)
	if err != nil {
		return err
	}

	ch, err := fn(tr, st)
	if err != nil {
		return err
	}
	if err := tr.Verify(); err != nil {
		panic(fmt.Sprintf("book %d:%d broken after update: %v", marketID, selectionID, err))
	}

	if raw, err = json.Marshal(tr); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `
		UPDATE selection_books SET tracker=$3, updated_at=NOW()
		WHERE market_id=$1 AND selection_id=$2`, marketID, selectionID, raw); err != nil {
		return fmt.Errorf("save book: %w", err)
	}

	for i := range ch.Orders {
		if err = upsertOrder(ctx, tx, &ch.Orders[i]); err != nil {
			return fmt.Errorf("save order %s: %w", ch.Orders[i].ReceiptID, err)
		}
	}

	if !ch.MatchedVolume.IsZero() {
		if _, err = tx.ExecContext(ctx, `UPDATE markets SET total_matched = total_matched + $2::numeric WHERE id=$1`,
			marketID, ch.MatchedVolume.Dec()); err != nil {
			return fmt.Errorf("market volume: %w", err)
		}
	}

	return tx.Commit()
}

func upsertOrder(ctx context.Context, tx *sql.Tx, o *book.Order) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders
		  (receipt_id, owner, market_id, selection_id, side, odds, stake, liability, exposure,
		   potential_profit, matched, unmatched, status, created_at_ms, seq)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7::numeric,$8::numeric,$9::numeric,$10::numeric,$11::numeric,$12::numeric,$13,$14,$15)
		ON CONFLICT (receipt_id) DO UPDATE SET
		  exposure   = EXCLUDED.exposure,
		  matched    = EXCLUDED.matched,
		  unmatched  = EXCLUDED.unmatched,
		  status     = EXCLUDED.status,
		  seq        = EXCLUDED.seq,
		  updated_at = NOW()`,
		o.ReceiptID, o.Owner, o.MarketID, o.SelectionID, o.Side.String(), o.Odds,
		o.Stake.Dec(), o.Liability.Dec(), o.Exposure.Dec(), o.PotentialProfit.Dec(),
		o.Matched.Dec(), o.Unmatched.Dec(), o.Status.String(), o.CreatedAt, o.Seq,
	)
	return err
}

const orderColumns = `receipt_id, owner, market_id, selection_id, side, odds,
	stake::text, liability::text, exposure::text, potential_profit::text, matched::text, unmatched::text,
	status, created_at_ms, seq`

func scanOrder(sc interface{ Scan(...any) error }) (book.Order, error) {
	var r orderRow
	if err := sc.Scan(&r.ReceiptID, &r.Owner, &r.MarketID, &r.SelectionID, &r.Side, &r.Odds,
		&r.Stake, &r.Liability, &r.Exposure, &r.PotentialProfit, &r.Matched, &r.Unmatched,
		&r.Status, &r.CreatedAtMs, &r.Seq); err != nil {
		return book.Order{}, err
	}
	return r.toOrder()
}

// Order busca a ordem pelo receipt
func (p *Postgres) Order(ctx context.Context, id string) (book.Order, error) {
	o, err := scanOrder(p.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE receipt_id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return book.Order{}, placement.ErrOrderNotFound
	}
	return o, err
}

// OrdersByOwner lista as ordens de um usuário, mais recentes primeiro
func (p *Postgres) OrdersByOwner(ctx context.Context, owner string, limit int) ([]book.Order, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE owner=$1
		ORDER BY created_at_ms DESC, seq DESC LIMIT $2`, owner, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []book.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Tracker lê o book sem travar. Seleção sem ordens devolve book vazio.
func (p *Postgres) Tracker(ctx context.Context, marketID, selectionID uint64) (*book.Tracker, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx, `SELECT tracker FROM selection_books WHERE market_id=$1 AND selection_id=$2`,
		marketID, selectionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return book.New(), nil
	}
	if err != nil {
		return nil, err
	}
	return decodeTracker(raw)
}

// TotalMatched é o volume casado acumulado do mercado
func (p *Postgres) TotalMatched(ctx context.Context, marketID uint64) (*uint256.Int, error) {
	var s string
	err := p.db.QueryRowContext(ctx, `SELECT total_matched::text FROM markets WHERE id=$1`, marketID).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, market.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return uint256.FromDecimal(s)
}
