package odds

import (
	"errors"
	"math"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Odds são inteiros de ponto fixo com escala 100: 250 representa 2.50x.
const (
	Scale   uint64 = 100
	MinOdds uint64 = 101    // 1.01x
	MaxOdds uint64 = 100000 // 1000.00x
)

var (
	ErrInvalidFormat = errors.New("invalid odds format")
	ErrInvalidAmount = errors.New("invalid amount")
)

var scale = uint256.NewInt(Scale)

// MaxAmount é o maior valor aceito em funds/liability: 2^128 - 1. Com odds até
// MaxOdds nenhuma conta do book passa de 256 bits.
var MaxAmount = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 128), 1)

// ValidAmount informa se o valor cabe nas contas do book
func ValidAmount(a *uint256.Int) bool { return !a.Gt(MaxAmount) }

// Valid informa se a odd está dentro da faixa aceita pela bolsa
func Valid(o uint64) bool { return o >= MinOdds && o <= MaxOdds }

// StakeFromTotal separa o stake de um depósito total de lay: total * 100 / odds
func StakeFromTotal(total *uint256.Int, o uint64) *uint256.Int {
	return mulDiv(total, scale, uint256.NewInt(o))
}

// LayLiability é o valor que um lay precisa reservar: stake * (odds - 100) / 100
func LayLiability(stake *uint256.Int, o uint64) *uint256.Int {
	return mulDiv(stake, margin(o), scale)
}

// BackProfit é o ganho potencial de um back: stake * (odds - 100) / 100
func BackProfit(stake *uint256.Int, o uint64) *uint256.Int {
	return mulDiv(stake, margin(o), scale)
}

// SplitLayFunds reconstrói o stake de um lay a partir de (funds, liability, odds).
// Só aceita quando StakeFromTotal(funds) + liability reproduz funds exatamente.
func SplitLayFunds(funds, liability *uint256.Int, o uint64) (*uint256.Int, bool) {
	if !Valid(o) || !ValidAmount(funds) || !ValidAmount(liability) {
		return nil, false
	}
	stake := StakeFromTotal(funds, o)
	sum, overflow := new(uint256.Int).AddOverflow(stake, liability)
	if overflow || !sum.Eq(funds) {
		return nil, false
	}
	return stake, true
}

// Format renderiza a odd com duas casas, ex: 250 -> "2.50"
func Format(o uint64) string {
	return decimal.New(int64(o), -2).StringFixed(2)
}

// Parse converte "2.50" em 250. Rejeita mais de duas casas decimais.
func Parse(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidFormat
	}
	scaled := d.Shift(2)
	if !scaled.IsInteger() || scaled.Sign() <= 0 {
		return 0, ErrInvalidFormat
	}
	if scaled.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, ErrInvalidFormat
	}
	return uint64(scaled.IntPart()), nil
}

// FormatAmount serializa um valor em unidades mínimas como string decimal
func FormatAmount(a *uint256.Int) string { return a.Dec() }

// ParseAmount lê um valor em unidades mínimas (string decimal, sem sinal)
func ParseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	a, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, ErrInvalidAmount
	}
	return a, nil
}

func margin(o uint64) *uint256.Int {
	if o < Scale {
		panic("odds: below 1.00x")
	}
	return uint256.NewInt(o - Scale)
}

func mulDiv(x, y, d *uint256.Int) *uint256.Int {
	if d.IsZero() {
		panic("odds: division by zero")
	}
	// produto intermediário em 512 bits; só o resultado precisa caber
	q, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		panic("odds: result overflow")
	}
	return q
}
