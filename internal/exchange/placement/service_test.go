package placement

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/radieske/betting-exchange-poc/internal/exchange/book"
	"github.com/radieske/betting-exchange-poc/internal/exchange/market"
	"github.com/radieske/betting-exchange-poc/internal/shared/clock"
	"github.com/radieske/betting-exchange-poc/pkg/contracts/events"
)

var t0 = time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)

// --- fakes ---

type memMarkets struct {
	markets map[uint64]market.Market
	nextID  uint64
}

func (m *memMarkets) Market(_ context.Context, id uint64) (market.Market, error) {
	mk, ok := m.markets[id]
	if !ok {
		return market.Market{}, market.ErrNotFound
	}
	return mk, nil
}

func (m *memMarkets) CreateMarket(_ context.Context, mk *market.Market) error {
	m.nextID++
	mk.ID = m.nextID
	m.markets[mk.ID] = *mk
	return nil
}

func (m *memMarkets) CloseMarket(_ context.Context, id uint64) error {
	mk, ok := m.markets[id]
	if !ok {
		return market.ErrNotFound
	}
	mk.Status = market.Closed
	m.markets[id] = mk
	return nil
}

type memStore struct {
	markets    *memMarkets
	books      map[[2]uint64]*book.Tracker
	orders     map[string]book.Order
	volume     map[uint64]*uint256.Int
	failCommit error
}

func newMemStore(markets *memMarkets) *memStore {
	return &memStore{
		markets: markets,
		books:   map[[2]uint64]*book.Tracker{},
		orders:  map[string]book.Order{},
		volume:  map[uint64]*uint256.Int{},
	}
}

// WithBook trabalha numa cópia e só troca no fim, como um rollback de transação
func (m *memStore) WithBook(_ context.Context, marketID, selectionID uint64, fn func(*book.Tracker, MarketState) (Changes, error)) error {
	mk, ok := m.markets.markets[marketID]
	if !ok {
		return market.ErrNotFound
	}
	key := [2]uint64{marketID, selectionID}
	tr, ok := m.books[key]
	if !ok {
		tr = book.New()
	}
	work := tr.Clone()
	ch, err := fn(work, MarketState{Status: mk.Status, CloseAt: mk.CloseAt})
	if err != nil {
		return err
	}
	if m.failCommit != nil {
		return m.failCommit
	}
	if err := work.Verify(); err != nil {
		return err
	}
	m.books[key] = work
	for _, o := range ch.Orders {
		m.orders[o.ReceiptID] = o
	}
	v, ok := m.volume[marketID]
	if !ok {
		v = new(uint256.Int)
		m.volume[marketID] = v
	}
	v.Add(v, &ch.MatchedVolume)
	return nil
}

func (m *memStore) Order(_ context.Context, id string) (book.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return book.Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (m *memStore) Tracker(_ context.Context, marketID, selectionID uint64) (*book.Tracker, error) {
	tr, ok := m.books[[2]uint64{marketID, selectionID}]
	if !ok {
		return book.New(), nil
	}
	return tr.Clone(), nil
}

type custodyCall struct {
	owner  string
	amount string
	ref    string
}

type fakeCustody struct {
	reserves    []custodyCall
	refunds     []custodyCall
	failReserve error
}

func (c *fakeCustody) Reserve(_ context.Context, owner string, amount *uint256.Int, ref string) (string, error) {
	if c.failReserve != nil {
		return "", c.failReserve
	}
	c.reserves = append(c.reserves, custodyCall{owner, amount.Dec(), ref})
	return "res-" + ref, nil
}

func (c *fakeCustody) Refund(_ context.Context, owner string, amount *uint256.Int, ref string) error {
	c.refunds = append(c.refunds, custodyCall{owner, amount.Dec(), ref})
	return nil
}

type seqReceipts struct{ n int }

func (r *seqReceipts) Issue(context.Context, *book.Order) (string, error) {
	r.n++
	return fmt.Sprintf("r%d", r.n), nil
}

type recNotifier struct {
	placed    []events.OrderPlaced
	canceled  []events.OrderCanceled
	counters  []events.CounterUpdated
	snapshots []events.BookSnapshot
	err       error
}

func (n *recNotifier) OrderPlaced(_ context.Context, e events.OrderPlaced) error {
	n.placed = append(n.placed, e)
	return n.err
}

func (n *recNotifier) OrderCanceled(_ context.Context, e events.OrderCanceled) error {
	n.canceled = append(n.canceled, e)
	return n.err
}

func (n *recNotifier) CounterUpdated(_ context.Context, e events.CounterUpdated) error {
	n.counters = append(n.counters, e)
	return n.err
}

func (n *recNotifier) BookSnapshot(_ context.Context, e events.BookSnapshot) error {
	n.snapshots = append(n.snapshots, e)
	return n.err
}

type recMetrics struct {
	placed   []string
	rejected []string
	matched  uint256.Int
}

func (m *recMetrics) OnPlaced(side book.Side, st book.Status) {
	m.placed = append(m.placed, side.String()+"/"+st.String())
}
func (m *recMetrics) OnRejected(reason string)      { m.rejected = append(m.rejected, reason) }
func (m *recMetrics) OnMatched(amount *uint256.Int) { m.matched.Add(&m.matched, amount) }

type fixture struct {
	svc     *Service
	markets *memMarkets
	store   *memStore
	custody *fakeCustody
	notify  *recNotifier
	metrics *recMetrics
}

func newFixture() *fixture {
	mkts := &memMarkets{markets: map[uint64]market.Market{}, nextID: 10}
	f := &fixture{
		markets: mkts,
		store:   newMemStore(mkts),
		custody: &fakeCustody{},
		notify:  &recNotifier{},
		metrics: &recMetrics{},
	}
	sels := []market.Selection{{ID: 1, Description: "home"}, {ID: 2, Description: "away"}}
	f.markets.markets[1] = market.Market{ID: 1, Status: market.Open, CloseAt: t0.Add(time.Hour), Selections: sels}
	f.markets.markets[2] = market.Market{ID: 2, Status: market.Closed, CloseAt: t0.Add(time.Hour), Selections: sels}
	f.markets.markets[3] = market.Market{ID: 3, Status: market.Open, CloseAt: t0, Selections: sels}

	f.svc = NewService(zap.NewNop(), Deps{
		Clock:    clock.NewFixed(t0),
		Markets:  f.markets,
		Admin:    f.markets,
		Store:    f.store,
		Custody:  f.custody,
		Receipts: &seqReceipts{},
		Notifier: f.notify,
		Metrics:  f.metrics,
	})
	return f
}

func back(o, funds uint64) PlaceOrderRequest {
	r := PlaceOrderRequest{Owner: "alice", MarketID: 1, SelectionID: 1, Odds: o, Side: book.Back}
	r.Funds.SetUint64(funds)
	return r
}

func lay(o, funds, liability uint64) PlaceOrderRequest {
	r := PlaceOrderRequest{Owner: "bob", MarketID: 1, SelectionID: 1, Odds: o, Side: book.Lay}
	r.Funds.SetUint64(funds)
	r.Liability.SetUint64(liability)
	return r
}

func (f *fixture) mustPlace(t *testing.T, req PlaceOrderRequest) PlaceOrderResult {
	t.Helper()
	res, err := f.svc.PlaceOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("place %s: %v", req.Side, err)
	}
	return res
}

// --- testes ---

func TestPlaceOrderRejections(t *testing.T) {
	tests := []struct {
		name string
		req  func() PlaceOrderRequest
		want error
	}{
		{"unknown market", func() PlaceOrderRequest { r := back(200, 100); r.MarketID = 99; return r }, ErrInvalidMarket},
		{"market not open", func() PlaceOrderRequest { r := back(200, 100); r.MarketID = 2; return r }, ErrMarketNotOpen},
		{"market past close", func() PlaceOrderRequest { r := back(200, 100); r.MarketID = 3; return r }, ErrMarketClosed},
		{"odds too low", func() PlaceOrderRequest { return back(100, 100) }, ErrInvalidOdds},
		{"odds too high", func() PlaceOrderRequest { return back(100001, 100) }, ErrInvalidOdds},
		{"unknown selection", func() PlaceOrderRequest { r := back(200, 100); r.SelectionID = 3; return r }, ErrSelectionNotFound},
		{"zero funds", func() PlaceOrderRequest { return back(200, 0) }, ErrInvalidAmount},
		{"back with liability", func() PlaceOrderRequest { r := back(200, 100); r.Liability.SetUint64(1); return r }, ErrInvalidLiabilityForBack},
		{"lay without liability", func() PlaceOrderRequest { return lay(200, 100, 0) }, ErrLiabilityRequiredForLay},
		{"lay funds mismatch", func() PlaceOrderRequest { return lay(200, 100, 40) }, ErrAmountMismatch},
		{"lay rounding not accepted", func() PlaceOrderRequest { return lay(300, 100, 66) }, ErrAmountMismatch},
		{"funds beyond max amount", func() PlaceOrderRequest { r := back(200, 1); r.Funds.Lsh(uint256.NewInt(1), 250); return r }, ErrInvalidAmount},
		{"liability beyond max amount", func() PlaceOrderRequest { r := lay(200, 100, 50); r.Liability.Lsh(uint256.NewInt(1), 200); return r }, ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.PlaceOrder(context.Background(), tt.req())
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if len(f.store.orders) != 0 || len(f.store.books) != 0 {
				t.Error("rejected placement mutated the store")
			}
			if len(f.custody.reserves) != 0 || len(f.notify.placed) != 0 {
				t.Error("rejected placement reached collaborators")
			}
			if len(f.metrics.rejected) != 1 || f.metrics.rejected[0] != Reason(tt.want) {
				t.Errorf("rejected metrics = %v", f.metrics.rejected)
			}
		})
	}
}

func TestPlaceBackOnEmptyBook(t *testing.T) {
	f := newFixture()
	res := f.mustPlace(t, back(200, 100))

	if res.OrderID != "r1" || res.Order.Status != book.Unmatched || res.Odds != 200 {
		t.Fatalf("result = %+v", res)
	}
	if res.Stake.Uint64() != 100 || res.Reserved.Uint64() != 100 {
		t.Errorf("stake=%s reserved=%s", res.Stake.Dec(), res.Reserved.Dec())
	}
	tr, _ := f.store.Tracker(context.Background(), 1, 1)
	if tr.BestBackOdds != 200 || tr.BackLiquidity.Uint64() != 100 || len(tr.Back) != 1 {
		t.Errorf("book = %+v", tr.Inspect())
	}
	if len(f.custody.reserves) != 1 || f.custody.reserves[0] != (custodyCall{"alice", "100", "r1"}) {
		t.Errorf("reserves = %+v", f.custody.reserves)
	}
	if len(f.notify.placed) != 1 || len(f.notify.counters) != 1 || len(f.notify.snapshots) != 1 {
		t.Fatalf("notifications: %d placed, %d counters, %d snapshots",
			len(f.notify.placed), len(f.notify.counters), len(f.notify.snapshots))
	}
	if c := f.notify.counters[0]; c.From != "UNMATCHED" || c.To != "UNMATCHED" || c.Counters.Unmatched != 1 {
		t.Errorf("counter event = %+v", c)
	}
	snap := f.notify.snapshots[0]
	if len(snap.Back) != 1 || snap.Back[0].OddsText != "2.00" || snap.Back[0].Liquidity != "100" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestPlaceLayFullyMatchesRestingBack(t *testing.T) {
	f := newFixture()
	f.mustPlace(t, back(200, 100))
	res := f.mustPlace(t, lay(200, 200, 100))

	if res.Order.Status != book.Matched || res.Matched.Uint64() != 100 {
		t.Fatalf("lay status=%s matched=%s", res.Order.Status, res.Matched.Dec())
	}
	// LAY bloqueia toda a liability mesmo casada
	if res.Reserved.Uint64() != 100 {
		t.Errorf("reserved = %s, want 100", res.Reserved.Dec())
	}
	if o := f.store.orders["r1"]; o.Status != book.Matched || o.Matched.Uint64() != 100 {
		t.Errorf("resting back = %s matched=%s", o.Status, o.Matched.Dec())
	}
	tr, _ := f.store.Tracker(context.Background(), 1, 1)
	if len(tr.Back) != 0 || !tr.BackLiquidity.IsZero() || tr.Counters.Matched != 2 || tr.Counters.Unmatched != 0 {
		t.Errorf("book after match = %+v", tr.Inspect())
	}
	if f.store.volume[1].Uint64() != 100 {
		t.Errorf("market volume = %s", f.store.volume[1].Dec())
	}
	// 1 da primeira ordem + resting e incoming da segunda
	if len(f.notify.counters) != 3 {
		t.Errorf("counter events = %d, want 3", len(f.notify.counters))
	}
	if f.metrics.matched.Uint64() != 100 {
		t.Errorf("matched metric = %s", f.metrics.matched.Dec())
	}
	if f.notify.placed[1].Matched != "100" || f.notify.placed[1].Unmatched != "0" {
		t.Errorf("placed event = %+v", f.notify.placed[1])
	}
}

func TestPlaceLayReconcilesFunds(t *testing.T) {
	f := newFixture()
	res := f.mustPlace(t, lay(200, 100, 50))

	if res.Stake.Uint64() != 50 || res.Reserved.Uint64() != 50 {
		t.Fatalf("stake=%s reserved=%s", res.Stake.Dec(), res.Reserved.Dec())
	}
	if res.Order.Status != book.Unmatched || res.Order.Unmatched.Uint64() != 50 {
		t.Errorf("order = %+v", res.Order)
	}
}

// funds não divisível pela odd: vale StakeFromTotal(funds) + liability == funds
func TestPlaceLayWithTruncatedStake(t *testing.T) {
	tests := []struct {
		odds, funds, liability uint64
		wantStake              uint64
	}{
		{300, 1000, 667, 333},
		{150, 1000, 334, 666},
		{333, 1000, 700, 300},
		{101, 500, 5, 495},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d@%d", tt.funds, tt.liability, tt.odds), func(t *testing.T) {
			f := newFixture()
			res := f.mustPlace(t, lay(tt.odds, tt.funds, tt.liability))
			if res.Stake.Uint64() != tt.wantStake {
				t.Errorf("stake = %s, want %d", res.Stake.Dec(), tt.wantStake)
			}
			if res.Reserved.Uint64() != tt.liability || res.Order.Unmatched.Uint64() != tt.liability {
				t.Errorf("reserved=%s unmatched=%s", res.Reserved.Dec(), res.Order.Unmatched.Dec())
			}
		})
	}
}

func TestPlaceBackPartialReservesRemainder(t *testing.T) {
	f := newFixture()
	f.mustPlace(t, lay(200, 200, 100))
	res := f.mustPlace(t, back(250, 150))

	if res.Order.Status != book.PartiallyMatched {
		t.Fatalf("status = %s", res.Order.Status)
	}
	if res.Matched.Uint64() != 100 || res.Order.Unmatched.Uint64() != 50 || res.Reserved.Uint64() != 50 {
		t.Errorf("matched=%s unmatched=%s reserved=%s", res.Matched.Dec(), res.Order.Unmatched.Dec(), res.Reserved.Dec())
	}
	if res.Odds != 250 {
		t.Errorf("effective odds = %d", res.Odds)
	}
	tr, _ := f.store.Tracker(context.Background(), 1, 1)
	if len(tr.Lay) != 0 || len(tr.Back) != 1 || tr.Back[0].Unmatched.Uint64() != 50 {
		t.Errorf("book = %+v", tr.Inspect())
	}
}

func TestPlaceOrderRollsBackWhenReserveFails(t *testing.T) {
	f := newFixture()
	f.mustPlace(t, back(200, 100))
	f.custody.failReserve = errors.New("insufficient funds")

	_, err := f.svc.PlaceOrder(context.Background(), lay(200, 200, 100))
	if !errors.Is(err, ErrReserveFailed) {
		t.Fatalf("err = %v, want ErrReserveFailed", err)
	}
	tr, _ := f.store.Tracker(context.Background(), 1, 1)
	if len(tr.Back) != 1 || tr.Back[0].Matched.Uint64() != 0 || tr.Counters.Unmatched != 1 {
		t.Errorf("book changed after rollback: %+v", tr.Inspect())
	}
	if _, ok := f.store.orders["r2"]; ok {
		t.Error("rejected order persisted")
	}
	if len(f.notify.placed) != 1 {
		t.Errorf("placed events = %d, want 1", len(f.notify.placed))
	}
}

func TestPlaceOrderRefundsWhenCommitFails(t *testing.T) {
	f := newFixture()
	f.store.failCommit = errors.New("db down")

	if _, err := f.svc.PlaceOrder(context.Background(), back(200, 100)); err == nil {
		t.Fatal("expected error")
	}
	if len(f.custody.refunds) != 1 || f.custody.refunds[0] != (custodyCall{"alice", "100", "r1"}) {
		t.Errorf("refunds = %+v", f.custody.refunds)
	}
	if len(f.notify.placed) != 0 {
		t.Error("notified an order that was never stored")
	}
}

func TestPublishFailureDoesNotFailPlacement(t *testing.T) {
	f := newFixture()
	f.notify.err = errors.New("broker down")

	if _, err := f.svc.PlaceOrder(context.Background(), back(200, 100)); err != nil {
		t.Fatalf("err = %v", err)
	}
	if _, ok := f.store.orders["r1"]; !ok {
		t.Error("order not stored")
	}
}

func TestCancelOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.mustPlace(t, back(200, 100))
	f.mustPlace(t, lay(200, 120, 60))

	if _, err := f.svc.CancelOrder(ctx, "mallory", "r1"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}
	if _, err := f.svc.CancelOrder(ctx, "alice", "nope"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}

	res, err := f.svc.CancelOrder(ctx, "alice", "r1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if res.Order.Status != book.Canceled || res.Released.Uint64() != 40 {
		t.Errorf("status=%s released=%s", res.Order.Status, res.Released.Dec())
	}
	if len(f.custody.refunds) != 1 || f.custody.refunds[0] != (custodyCall{"alice", "40", "r1"}) {
		t.Errorf("refunds = %+v", f.custody.refunds)
	}
	tr, _ := f.store.Tracker(ctx, 1, 1)
	if len(tr.Back) != 0 || tr.Counters.Canceled != 1 || tr.Counters.PartiallyMatched != 0 {
		t.Errorf("book after cancel = %+v", tr.Inspect())
	}
	if len(f.notify.canceled) != 1 || f.notify.canceled[0].PrevStatus != "PARTIALLY_MATCHED" {
		t.Errorf("canceled events = %+v", f.notify.canceled)
	}

	if _, err := f.svc.CancelOrder(ctx, "alice", "r1"); !errors.Is(err, ErrNotCancelable) {
		t.Errorf("second cancel err = %v, want ErrNotCancelable", err)
	}
	// r2 casou tudo
	if _, err := f.svc.CancelOrder(ctx, "bob", "r2"); !errors.Is(err, ErrNotCancelable) {
		t.Errorf("cancel matched err = %v, want ErrNotCancelable", err)
	}
}

// cada snapshot publicado precisa de versão nova, ou o consumidor descarta
func TestBookSnapshotVersionAdvancesOnEveryChange(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.mustPlace(t, back(200, 100))    // entra na fila
	f.mustPlace(t, lay(200, 140, 70)) // casa parte do back, nada entra
	f.mustPlace(t, lay(200, 60, 30))  // casa o resto, fila vazia
	f.mustPlace(t, back(250, 40))
	if _, err := f.svc.CancelOrder(ctx, "alice", "r4"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	snaps := f.notify.snapshots
	if len(snaps) != 5 {
		t.Fatalf("snapshots = %d, want 5", len(snaps))
	}
	for i := 1; i < len(snaps); i++ {
		if snaps[i].Version <= snaps[i-1].Version {
			t.Errorf("snapshot %d version %d not after %d", i, snaps[i].Version, snaps[i-1].Version)
		}
	}
	if last := snaps[4]; len(last.Back) != 0 || len(last.Lay) != 0 {
		t.Errorf("final snapshot still shows orders: %+v", last)
	}
}

// staleDirectory devolve o mercado como estava antes de fechar
type staleDirectory struct{ m market.Market }

func (d staleDirectory) Market(context.Context, uint64) (market.Market, error) { return d.m, nil }

func TestPlaceOrderRechecksMarketUnderLock(t *testing.T) {
	f := newFixture()
	f.svc.Markets = staleDirectory{m: f.markets.markets[1]}
	if err := f.markets.CloseMarket(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.PlaceOrder(context.Background(), back(200, 100))
	if !errors.Is(err, ErrMarketNotOpen) {
		t.Fatalf("err = %v, want ErrMarketNotOpen", err)
	}
	if len(f.custody.reserves) != 0 || len(f.store.orders) != 0 || len(f.notify.placed) != 0 {
		t.Error("order on closed market reached the book")
	}
}

func TestInspect(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.mustPlace(t, back(200, 100))
	f.mustPlace(t, back(250, 30))

	in, err := f.svc.Inspect(ctx, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if in.BackCount != 2 || in.BestBackOdds != 250 || in.BackLiquidity.Uint64() != 130 {
		t.Errorf("inspection = %+v", in)
	}
	if _, err := f.svc.Inspect(ctx, 99, 1); !errors.Is(err, ErrInvalidMarket) {
		t.Errorf("err = %v", err)
	}
	if _, err := f.svc.Inspect(ctx, 1, 7); !errors.Is(err, ErrSelectionNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestCreateAndCloseMarket(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	m, err := f.svc.CreateMarket(ctx, "evt-9", "Winner", []string{"a", "b", "c"}, t0.Add(2*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if m.ID != 11 || len(m.Selections) != 3 {
		t.Fatalf("market = %+v", m)
	}
	if _, err := f.svc.CreateMarket(ctx, "evt-9", "Winner", []string{"a"}, t0.Add(-time.Hour)); !errors.Is(err, market.ErrCloseInPast) {
		t.Errorf("err = %v", err)
	}

	if err := f.svc.CloseMarket(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	req := back(200, 100)
	req.MarketID = m.ID
	if _, err := f.svc.PlaceOrder(ctx, req); !errors.Is(err, ErrMarketNotOpen) {
		t.Errorf("err = %v, want ErrMarketNotOpen", err)
	}
	if err := f.svc.CloseMarket(ctx, 404); !errors.Is(err, ErrInvalidMarket) {
		t.Errorf("err = %v", err)
	}
}
