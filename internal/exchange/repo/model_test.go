package repo

import (
	"encoding/json"
	"testing"

	"github.com/holiman/uint256"

	"github.com/radieske/betting-exchange-poc/internal/exchange/book"
)

func TestOrderRowToOrder(t *testing.T) {
	r := orderRow{
		ReceiptID: "r1", Owner: "bob", MarketID: 3, SelectionID: 2, Side: "LAY", Odds: 300,
		Stake: "50", Liability: "100", Exposure: "40", PotentialProfit: "50",
		Matched: "20", Unmatched: "80", Status: "PARTIALLY_MATCHED", CreatedAtMs: 1700000000000, Seq: 9,
	}
	o, err := r.toOrder()
	if err != nil {
		t.Fatal(err)
	}
	if o.Side != book.Lay || o.Status != book.PartiallyMatched || o.Seq != 9 {
		t.Errorf("order = %+v", o)
	}
	if !o.Liability.Eq(uint256.NewInt(100)) || !o.Unmatched.Eq(uint256.NewInt(80)) || !o.Exposure.Eq(uint256.NewInt(40)) {
		t.Errorf("amounts: liability=%s unmatched=%s exposure=%s", o.Liability.Dec(), o.Unmatched.Dec(), o.Exposure.Dec())
	}

	r.Matched = "1x"
	if _, err := r.toOrder(); err == nil {
		t.Error("malformed amount should fail")
	}
	r.Matched, r.Side = "20", "SIDEWAYS"
	if _, err := r.toOrder(); err == nil {
		t.Error("unknown side should fail")
	}
}

func TestDecodeTracker(t *testing.T) {
	tr := book.New()
	in := book.NewOrder("r1", "alice", 1, 1, book.Back, 200, uint256.NewInt(100), new(uint256.Int), 1)
	tr.Match(&in)

	raw, err := json.Marshal(tr)
	if err != nil {
		t.Fatal(err)
	}
	got, err := decodeTracker(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Back) != 1 || got.BestBackOdds != 200 || got.Counters.Unmatched != 1 {
		t.Errorf("decoded = %+v", got.Inspect())
	}

	// liquidez adulterada
	got.BackLiquidity.SetUint64(7)
	raw, _ = json.Marshal(got)
	if _, err := decodeTracker(raw); err == nil {
		t.Error("inconsistent book should be rejected")
	}

	if _, err := decodeTracker([]byte(`{"back":[],"lay":[]}`)); err != nil {
		t.Errorf("empty book: %v", err)
	}
}
