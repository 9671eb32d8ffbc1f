package book

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/radieske/betting-exchange-poc/internal/exchange/odds"
)

// Side identifica o lado da ordem: BACK aposta que o resultado acontece, LAY que não acontece.
type Side uint8

const (
	Back Side = iota
	Lay
)

func (s Side) String() string {
	switch s {
	case Back:
		return "BACK"
	case Lay:
		return "LAY"
	}
	return fmt.Sprintf("Side(%d)", uint8(s))
}

// Opposite retorna o lado contra o qual a ordem casa
func (s Side) Opposite() Side {
	if s == Back {
		return Lay
	}
	return Back
}

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSide aceita "BACK" ou "LAY"
func ParseSide(v string) (Side, error) {
	switch v {
	case "BACK", "back":
		return Back, nil
	case "LAY", "lay":
		return Lay, nil
	}
	return 0, fmt.Errorf("invalid side %q", v)
}

// Order é uma aposta na bolsa.
//
// Para BACK o total casável é o Stake; para LAY é o Liability reservado.
// Matched + Unmatched sempre soma o total casável.
type Order struct {
	ReceiptID   string `json:"receipt_id"`
	Owner       string `json:"owner"`
	MarketID    uint64 `json:"market_id"`
	SelectionID uint64 `json:"selection_id"`
	Side        Side   `json:"side"`
	Odds        uint64 `json:"odds"`

	Stake           uint256.Int `json:"stake"`
	Liability       uint256.Int `json:"liability"`
	Exposure        uint256.Int `json:"exposure"` // liability da parte já casada (só LAY)
	PotentialProfit uint256.Int `json:"potential_profit"`
	Matched         uint256.Int `json:"matched"`
	Unmatched       uint256.Int `json:"unmatched"`

	Status    Status `json:"status"`
	CreatedAt int64  `json:"created_at"` // unix ms
	Seq       uint64 `json:"seq"`        // ordem de chegada no book, desempate final
}

// NewOrder monta uma ordem UNMATCHED com todo o total casável em aberto.
// stake e liability já devem ter sido validados pelo chamador.
func NewOrder(receiptID, owner string, marketID, selectionID uint64, side Side, o uint64, stake, liability *uint256.Int, createdAt int64) Order {
	ord := Order{
		ReceiptID:   receiptID,
		Owner:       owner,
		MarketID:    marketID,
		SelectionID: selectionID,
		Side:        side,
		Odds:        o,
		Status:      Unmatched,
		CreatedAt:   createdAt,
	}
	ord.Stake.Set(stake)
	if side == Lay {
		ord.Liability.Set(liability)
		ord.PotentialProfit.Set(stake)
	} else {
		ord.PotentialProfit.Set(odds.BackProfit(stake, o))
	}
	ord.Unmatched.Set(ord.MatchableTotal())
	return ord
}

// MatchableTotal é a base de progresso do casamento: stake para BACK, liability para LAY
func (o *Order) MatchableTotal() *uint256.Int {
	if o.Side == Lay {
		return &o.Liability
	}
	return &o.Stake
}

// fill aplica uma parcela casada. Falha de contabilidade é invariante quebrado.
func (o *Order) fill(amount *uint256.Int) {
	if _, overflow := o.Unmatched.SubOverflow(&o.Unmatched, amount); overflow {
		panic(fmt.Sprintf("book: order %s filled beyond its unmatched amount", o.ReceiptID))
	}
	o.Matched.Add(&o.Matched, amount)
	if o.Side == Lay {
		o.Exposure.Set(odds.LayLiability(&o.Matched, o.Odds))
	}
}

// Resting informa se a ordem ainda pode estar numa fila do book
func (o *Order) Resting() bool {
	return o.Status == Unmatched || o.Status == PartiallyMatched
}
