package book

import (
	"fmt"

	"github.com/holiman/uint256"
)

// MatchResult é o que um casamento produziu no book.
type MatchResult struct {
	Matched     uint256.Int  // total casado pela ordem de entrada
	Remaining   uint256.Int  // o que ficou em aberto e foi para a fila
	Affected    []Order      // ordens em repouso tocadas, já atualizadas
	Transitions []Transition // mudanças de status contadas, na ordem em que ocorreram
}

// Match casa a ordem de entrada contra a fila oposta, melhor preço primeiro,
// e deixa o restante em repouso na própria fila. Muta o book e a ordem.
//
// A ordem em repouso sempre executa na própria odd; a de entrada nunca recebe
// odd pior do que pediu.
func (t *Tracker) Match(in *Order) MatchResult {
	if !in.Matched.IsZero() || in.Status != Unmatched || !in.Unmatched.Eq(in.MatchableTotal()) {
		panic(fmt.Sprintf("book: order %s is not fresh", in.ReceiptID))
	}

	t.Version++
	var res MatchResult
	opp := t.queue(in.Side.Opposite())

	for i := 0; i < len(*opp) && !in.Unmatched.IsZero(); {
		rest := (*opp)[i]
		// fila ordenada: a primeira inelegível encerra a varredura
		if !eligible(in, &rest) {
			break
		}

		amount := minAmount(&in.Unmatched, &rest.Unmatched)
		if amount.IsZero() {
			i++
			continue
		}

		in.fill(amount)
		t.Remove(rest.Side, rest.ReceiptID)
		rest.fill(amount)

		from := rest.Status
		rest.Status = StatusFor(&rest)
		if t.Counters.Move(from, rest.Status) {
			res.Transitions = append(res.Transitions, Transition{
				ReceiptID: rest.ReceiptID, From: from, To: rest.Status, Counters: t.Counters,
			})
		}

		// mesma odd, created_at e seq: volta para a mesma posição
		if !rest.Unmatched.IsZero() {
			t.Insert(rest)
			i++
		}

		res.Matched.Add(&res.Matched, amount)
		res.Affected = append(res.Affected, rest)
	}

	in.Status = StatusFor(in)
	t.Counters.Admit(in.Status)
	res.Transitions = append(res.Transitions, Transition{
		ReceiptID: in.ReceiptID, From: Unmatched, To: in.Status, Counters: t.Counters,
	})

	if !in.Unmatched.IsZero() {
		t.LastSeq++
		in.Seq = t.LastSeq
		t.Insert(*in)
	}
	res.Remaining.Set(&in.Unmatched)
	return res
}

// eligible: BACK aceita lay com odd <= a sua; LAY aceita back com odd >= a sua.
func eligible(in, rest *Order) bool {
	if rest.Unmatched.IsZero() {
		return false
	}
	if in.Side == Back {
		return in.Odds >= rest.Odds
	}
	return in.Odds <= rest.Odds
}

func minAmount(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int).Set(a)
	}
	return new(uint256.Int).Set(b)
}
