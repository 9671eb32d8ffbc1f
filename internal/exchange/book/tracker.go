package book

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

var ErrOrderNotResting = errors.New("order is not resting in this book")

// Tracker é o book de uma seleção de um mercado: duas filas ordenadas
// por preço/tempo, liquidez agregada, melhor odd de cada lado e contadores.
//
// Não tem lock: quem carrega o Tracker garante exclusividade até salvá-lo.
type Tracker struct {
	Back []Order `json:"back"` // odd maior primeiro
	Lay  []Order `json:"lay"`  // odd menor primeiro

	BestBackOdds  uint64      `json:"best_back_odds"`
	BestLayOdds   uint64      `json:"best_lay_odds"`
	BackLiquidity uint256.Int `json:"back_liquidity"`
	LayLiquidity  uint256.Int `json:"lay_liquidity"`

	Counters Counters `json:"counters"`
	LastSeq  uint64   `json:"last_seq"`
	Version  uint64   `json:"version"` // sobe a cada Match e Cancel
}

// New cria um book vazio
func New() *Tracker {
	return &Tracker{Back: []Order{}, Lay: []Order{}}
}

// Insert coloca a ordem na posição de prioridade do seu lado (busca linear).
func (t *Tracker) Insert(o Order) {
	if o.Unmatched.IsZero() {
		panic(fmt.Sprintf("book: order %s has nothing left to rest", o.ReceiptID))
	}
	if o.Seq == 0 {
		t.LastSeq++
		o.Seq = t.LastSeq
	}

	q := t.queue(o.Side)
	at := len(*q)
	for i := range *q {
		if before(&o, &(*q)[i]) {
			at = i
			break
		}
	}
	*q = append(*q, Order{})
	copy((*q)[at+1:], (*q)[at:])
	(*q)[at] = o

	liq := t.liquidity(o.Side)
	liq.Add(liq, &o.Stake)
	t.refreshBest(o.Side)
}

// Remove retira a ordem pela identidade (receipt), nunca por igualdade de valores.
func (t *Tracker) Remove(side Side, receiptID string) (Order, bool) {
	q := t.queue(side)
	for i := range *q {
		if (*q)[i].ReceiptID != receiptID {
			continue
		}
		o := (*q)[i]
		*q = append((*q)[:i], (*q)[i+1:]...)

		liq := t.liquidity(side)
		if _, overflow := liq.SubOverflow(liq, &o.Stake); overflow {
			panic(fmt.Sprintf("book: %s liquidity underflow removing %s", side, receiptID))
		}
		t.refreshBest(side)
		return o, true
	}
	return Order{}, false
}

// Find procura uma ordem em repouso nos dois lados
func (t *Tracker) Find(receiptID string) (Order, bool) {
	for _, q := range [][]Order{t.Back, t.Lay} {
		for _, o := range q {
			if o.ReceiptID == receiptID {
				return o, true
			}
		}
	}
	return Order{}, false
}

// Cancel retira uma ordem em repouso e move o status para CANCELED
func (t *Tracker) Cancel(receiptID string) (Order, Transition, error) {
	found, ok := t.Find(receiptID)
	if !ok {
		return Order{}, Transition{}, ErrOrderNotResting
	}
	o, _ := t.Remove(found.Side, receiptID)
	t.Version++
	from := o.Status
	o.Status = Canceled
	t.Counters.Move(from, Canceled)
	return o, Transition{ReceiptID: receiptID, From: from, To: Canceled, Counters: t.Counters}, nil
}

// Inspection é a visão de diagnóstico do book
type Inspection struct {
	BackCount     int         `json:"back_count"`
	LayCount      int         `json:"lay_count"`
	BackLiquidity uint256.Int `json:"back_liquidity"`
	LayLiquidity  uint256.Int `json:"lay_liquidity"`
	BestBackOdds  uint64      `json:"best_back_odds"`
	BestLayOdds   uint64      `json:"best_lay_odds"`
	BackOdds      []uint64    `json:"back_odds"`
	LayOdds       []uint64    `json:"lay_odds"`
	Counters      Counters    `json:"counters"`
}

func (t *Tracker) Inspect() Inspection {
	in := Inspection{
		BackCount:    len(t.Back),
		LayCount:     len(t.Lay),
		BestBackOdds: t.BestBackOdds,
		BestLayOdds:  t.BestLayOdds,
		BackOdds:     make([]uint64, 0, len(t.Back)),
		LayOdds:      make([]uint64, 0, len(t.Lay)),
		Counters:     t.Counters,
	}
	in.BackLiquidity.Set(&t.BackLiquidity)
	in.LayLiquidity.Set(&t.LayLiquidity)
	for _, o := range t.Back {
		in.BackOdds = append(in.BackOdds, o.Odds)
	}
	for _, o := range t.Lay {
		in.LayOdds = append(in.LayOdds, o.Odds)
	}
	return in
}

// Clone faz cópia profunda; usada por quem precisa descartar uma mutação.
func (t *Tracker) Clone() *Tracker {
	c := *t
	c.Back = append([]Order{}, t.Back...)
	c.Lay = append([]Order{}, t.Lay...)
	return &c
}

// Verify confere os invariantes do book. Erro aqui é estado corrompido.
func (t *Tracker) Verify() error {
	seen := make(map[string]struct{}, len(t.Back)+len(t.Lay))
	for _, side := range []Side{Back, Lay} {
		q := *t.queue(side)
		var sum uint256.Int
		for i := range q {
			o := &q[i]
			if o.Side != side {
				return fmt.Errorf("order %s: %s order in %s queue", o.ReceiptID, o.Side, side)
			}
			if _, dup := seen[o.ReceiptID]; dup {
				return fmt.Errorf("order %s: present twice", o.ReceiptID)
			}
			seen[o.ReceiptID] = struct{}{}
			if o.Unmatched.IsZero() {
				return fmt.Errorf("order %s: resting with nothing unmatched", o.ReceiptID)
			}
			var total uint256.Int
			total.Add(&o.Matched, &o.Unmatched)
			if !total.Eq(o.MatchableTotal()) {
				return fmt.Errorf("order %s: matched+unmatched %s != total %s", o.ReceiptID, total.Dec(), o.MatchableTotal().Dec())
			}
			if i > 0 && before(o, &q[i-1]) {
				return fmt.Errorf("%s queue out of order at %d", side, i)
			}
			sum.Add(&sum, &o.Stake)
		}
		if !sum.Eq(t.liquidity(side)) {
			return fmt.Errorf("%s liquidity %s != sum of stakes %s", side, t.liquidity(side).Dec(), sum.Dec())
		}
		if best := t.best(side); best != headOdds(q) {
			return fmt.Errorf("%s best odds %d != head %d", side, best, headOdds(q))
		}
	}
	return nil
}

// before define a prioridade: BACK odd maior, LAY odd menor; empate por created_at e chegada.
func before(a, b *Order) bool {
	if a.Odds != b.Odds {
		if a.Side == Back {
			return a.Odds > b.Odds
		}
		return a.Odds < b.Odds
	}
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt < b.CreatedAt
	}
	return a.Seq < b.Seq
}

func (t *Tracker) queue(s Side) *[]Order {
	if s == Back {
		return &t.Back
	}
	return &t.Lay
}

func (t *Tracker) liquidity(s Side) *uint256.Int {
	if s == Back {
		return &t.BackLiquidity
	}
	return &t.LayLiquidity
}

func (t *Tracker) best(s Side) uint64 {
	if s == Back {
		return t.BestBackOdds
	}
	return t.BestLayOdds
}

func (t *Tracker) refreshBest(s Side) {
	if s == Back {
		t.BestBackOdds = headOdds(t.Back)
		return
	}
	t.BestLayOdds = headOdds(t.Lay)
}

func headOdds(q []Order) uint64 {
	if len(q) == 0 {
		return 0
	}
	return q[0].Odds
}
