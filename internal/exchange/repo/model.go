package repo

import (
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/radieske/betting-exchange-poc/internal/exchange/book"
)

// orderRow é a ordem como está na tabela orders. Valores NUMERIC vêm como texto.
type orderRow struct {
	ReceiptID       string
	Owner           string
	MarketID        uint64
	SelectionID     uint64
	Side            string
	Odds            uint64
	Stake           string
	Liability       string
	Exposure        string
	PotentialProfit string
	Matched         string
	Unmatched       string
	Status          string
	CreatedAtMs     int64
	Seq             uint64
}

func (r *orderRow) toOrder() (book.Order, error) {
	side, err := book.ParseSide(r.Side)
	if err != nil {
		return book.Order{}, err
	}
	var st book.Status
	if err := st.UnmarshalText([]byte(r.Status)); err != nil {
		return book.Order{}, err
	}
	o := book.Order{
		ReceiptID:   r.ReceiptID,
		Owner:       r.Owner,
		MarketID:    r.MarketID,
		SelectionID: r.SelectionID,
		Side:        side,
		Odds:        r.Odds,
		Status:      st,
		CreatedAt:   r.CreatedAtMs,
		Seq:         r.Seq,
	}
	amounts := []struct {
		dst *uint256.Int
		src string
	}{
		{&o.Stake, r.Stake},
		{&o.Liability, r.Liability},
		{&o.Exposure, r.Exposure},
		{&o.PotentialProfit, r.PotentialProfit},
		{&o.Matched, r.Matched},
		{&o.Unmatched, r.Unmatched},
	}
	for _, a := range amounts {
		if err := a.dst.SetFromDecimal(a.src); err != nil {
			return book.Order{}, fmt.Errorf("order %s: amount %q: %w", r.ReceiptID, a.src, err)
		}
	}
	return o, nil
}

// decodeTracker lê o JSON do book e confere os invariantes
func decodeTracker(raw []byte) (*book.Tracker, error) {
	tr := book.New()
	if err := json.Unmarshal(raw, tr); err != nil {
		return nil, fmt.Errorf("decode book: %w", err)
	}
	if err := tr.Verify(); err != nil {
		return nil, fmt.Errorf("stored book is inconsistent: %w", err)
	}
	return tr, nil
}
