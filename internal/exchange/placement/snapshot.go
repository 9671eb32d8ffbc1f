package placement

import (
	"time"

	"github.com/holiman/uint256"

	"github.com/radieske/betting-exchange-poc/internal/exchange/book"
	"github.com/radieske/betting-exchange-poc/internal/exchange/odds"
	"github.com/radieske/betting-exchange-poc/pkg/contracts/events"
)

// Snapshot agrega as filas do book por odd, mantendo a ordem de prioridade.
// A versão é a do book, que muda a cada Match e Cancel.
func Snapshot(marketID, selectionID uint64, tr *book.Tracker, matched *uint256.Int, now time.Time) events.BookSnapshot {
	return events.BookSnapshot{
		MarketID:      marketID,
		SelectionID:   selectionID,
		BestBackOdds:  tr.BestBackOdds,
		BestLayOdds:   tr.BestLayOdds,
		BackLiquidity: odds.FormatAmount(&tr.BackLiquidity),
		LayLiquidity:  odds.FormatAmount(&tr.LayLiquidity),
		Back:          levels(tr.Back),
		Lay:           levels(tr.Lay),
		Counters:      events.Counters(tr.Counters),
		MatchedDelta:  odds.FormatAmount(matched),
		Version:       tr.Version,
		TsUnixMs:      now.UnixMilli(),
	}
}

func levels(q []book.Order) []events.BookLevel {
	out := []events.BookLevel{}
	var liq uint256.Int
	for i := range q {
		if i == 0 || q[i].Odds != q[i-1].Odds {
			if i > 0 {
				out[len(out)-1].Liquidity = liq.Dec()
			}
			liq.Clear()
			out = append(out, events.BookLevel{Odds: q[i].Odds, OddsText: odds.Format(q[i].Odds)})
		}
		liq.Add(&liq, &q[i].Stake)
		out[len(out)-1].Orders++
	}
	if len(out) > 0 {
		out[len(out)-1].Liquidity = liq.Dec()
	}
	return out
}

func placedEvent(r *PlaceOrderResult, now time.Time) events.OrderPlaced {
	o := &r.Order
	return events.OrderPlaced{
		ReceiptID:   o.ReceiptID,
		Owner:       o.Owner,
		MarketID:    o.MarketID,
		SelectionID: o.SelectionID,
		Side:        o.Side.String(),
		Odds:        o.Odds,
		OddsText:    odds.Format(o.Odds),
		Stake:       o.Stake.Dec(),
		Liability:   o.Liability.Dec(),
		Matched:     o.Matched.Dec(),
		Unmatched:   o.Unmatched.Dec(),
		Reserved:    r.Reserved.Dec(),
		ReservedRef: r.ReservationID,
		Status:      o.Status.String(),
		TsUnixMs:    now.UnixMilli(),
	}
}

func canceledEvent(r *CancelOrderResult, from book.Status, now time.Time) events.OrderCanceled {
	o := &r.Order
	return events.OrderCanceled{
		ReceiptID:   o.ReceiptID,
		Owner:       o.Owner,
		MarketID:    o.MarketID,
		SelectionID: o.SelectionID,
		Side:        o.Side.String(),
		Matched:     o.Matched.Dec(),
		Released:    r.Released.Dec(),
		PrevStatus:  from.String(),
		TsUnixMs:    now.UnixMilli(),
	}
}
