package placement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/radieske/betting-exchange-poc/internal/exchange/book"
	"github.com/radieske/betting-exchange-poc/internal/exchange/market"
	"github.com/radieske/betting-exchange-poc/internal/exchange/odds"
	"github.com/radieske/betting-exchange-poc/pkg/contracts/events"
)

// PlaceOrderRequest chega já com valores numéricos. Funds é o total comprometido:
// stake para BACK, stake + liability para LAY.
type PlaceOrderRequest struct {
	Owner       string
	MarketID    uint64
	SelectionID uint64
	Odds        uint64
	Side        book.Side
	Liability   uint256.Int
	Funds       uint256.Int
}

type PlaceOrderResult struct {
	OrderID       string
	Odds          uint64
	Stake         uint256.Int
	Order         book.Order
	Reserved      uint256.Int // valor que a carteira deve manter bloqueado
	ReservationID string
	Matched       uint256.Int
}

type CancelOrderResult struct {
	Order    book.Order
	Released uint256.Int
}

type Deps struct {
	Clock    Clock
	Markets  Directory
	Admin    MarketAdmin
	Store    Store
	Custody  Custody
	Receipts Receipts
	Notifier Notifier
	Metrics  Metrics
}

// Service orquestra validação, casamento, reserva de saldo e notificações.
type Service struct {
	log *zap.Logger
	Deps
}

func NewService(log *zap.Logger, d Deps) *Service {
	if d.Metrics == nil {
		d.Metrics = nopMetrics{}
	}
	return &Service{log: log, Deps: d}
}

// PlaceOrder valida, casa e grava a ordem. Nada é gravado se qualquer passo falhar.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResult, error) {
	res, err := s.placeOrder(ctx, req)
	if err != nil {
		s.Metrics.OnRejected(Reason(err))
		return PlaceOrderResult{}, err
	}
	s.Metrics.OnPlaced(res.Order.Side, res.Order.Status)
	if !res.Matched.IsZero() {
		s.Metrics.OnMatched(&res.Matched)
	}
	return res, nil
}

func (s *Service) placeOrder(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResult, error) {
	now := s.Clock.Now()
	stake, liability, err := s.validate(ctx, &req, now)
	if err != nil {
		return PlaceOrderResult{}, err
	}

	ord := book.NewOrder("", req.Owner, req.MarketID, req.SelectionID, req.Side, req.Odds, stake, liability, now.UnixMilli())
	id, err := s.Receipts.Issue(ctx, &ord)
	if err != nil {
		return PlaceOrderResult{}, fmt.Errorf("issue receipt: %w", err)
	}
	ord.ReceiptID = id

	var (
		res      PlaceOrderResult
		snapshot events.BookSnapshot
		moves    []book.Transition
		reserved bool
	)
	err = s.Store.WithBook(ctx, req.MarketID, req.SelectionID, func(tr *book.Tracker, st MarketState) (Changes, error) {
		// o mercado pode ter fechado entre validate e o lock
		if st.Status != market.Open {
			return Changes{}, ErrMarketNotOpen
		}
		if !now.Before(st.CloseAt) {
			return Changes{}, ErrMarketClosed
		}

		m := tr.Match(&ord)

		amount := reservedAmount(&ord)
		var resID string
		if !amount.IsZero() {
			var rerr error
			resID, rerr = s.Custody.Reserve(ctx, ord.Owner, amount, ord.ReceiptID)
			if rerr != nil {
				return Changes{}, fmt.Errorf("%w: %v", ErrReserveFailed, rerr)
			}
			reserved = true
		}

		res = PlaceOrderResult{
			OrderID:       ord.ReceiptID,
			Odds:          ord.Odds,
			Order:         ord,
			ReservationID: resID,
		}
		res.Stake.Set(&ord.Stake)
		res.Reserved.Set(amount)
		res.Matched.Set(&m.Matched)
		moves = m.Transitions
		snapshot = Snapshot(req.MarketID, req.SelectionID, tr, &m.Matched, now)

		ch := Changes{Orders: append([]book.Order{ord}, m.Affected...)}
		ch.MatchedVolume.Set(&m.Matched)
		return ch, nil
	})
	if err != nil {
		if reserved {
			// reserva feita mas o book não foi gravado: devolve
			if rerr := s.Custody.Refund(ctx, ord.Owner, &res.Reserved, ord.ReceiptID); rerr != nil {
				s.log.Error("refund after failed commit", zap.String("receipt_id", ord.ReceiptID), zap.Error(rerr))
			}
		}
		return PlaceOrderResult{}, err
	}

	s.log.Info("order placed",
		zap.String("receipt_id", res.OrderID),
		zap.String("side", ord.Side.String()),
		zap.String("status", res.Order.Status.String()),
		zap.String("matched", res.Matched.Dec()),
		zap.String("reserved", res.Reserved.Dec()),
	)

	s.publish(ctx, "order_placed", func() error {
		return s.Notifier.OrderPlaced(ctx, placedEvent(&res, now))
	})
	s.publishTransitions(ctx, req.MarketID, req.SelectionID, moves, now)
	s.publish(ctx, "book_snapshot", func() error {
		return s.Notifier.BookSnapshot(ctx, snapshot)
	})
	return res, nil
}

// validate checa tudo antes de qualquer mutação e devolve (stake, liability)
func (s *Service) validate(ctx context.Context, req *PlaceOrderRequest, now time.Time) (*uint256.Int, *uint256.Int, error) {
	m, err := s.Markets.Market(ctx, req.MarketID)
	if errors.Is(err, market.ErrNotFound) {
		return nil, nil, ErrInvalidMarket
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load market: %w", err)
	}
	if m.Status != market.Open {
		return nil, nil, ErrMarketNotOpen
	}
	if !now.Before(m.CloseAt) {
		return nil, nil, ErrMarketClosed
	}
	if !odds.Valid(req.Odds) {
		return nil, nil, ErrInvalidOdds
	}
	if _, ok := m.Selection(req.SelectionID); !ok {
		return nil, nil, ErrSelectionNotFound
	}
	if req.Funds.IsZero() || !odds.ValidAmount(&req.Funds) || !odds.ValidAmount(&req.Liability) {
		return nil, nil, ErrInvalidAmount
	}

	switch req.Side {
	case book.Back:
		if !req.Liability.IsZero() {
			return nil, nil, ErrInvalidLiabilityForBack
		}
		return new(uint256.Int).Set(&req.Funds), new(uint256.Int), nil
	case book.Lay:
		if req.Liability.IsZero() {
			return nil, nil, ErrLiabilityRequiredForLay
		}
		stake, ok := odds.SplitLayFunds(&req.Funds, &req.Liability, req.Odds)
		if !ok || stake.IsZero() {
			return nil, nil, ErrAmountMismatch
		}
		return stake, new(uint256.Int).Set(&req.Liability), nil
	}
	return nil, nil, fmt.Errorf("unknown side %d", req.Side)
}

// reservedAmount: BACK bloqueia o que ficou em aberto, LAY bloqueia toda a liability
func reservedAmount(o *book.Order) *uint256.Int {
	if o.Side == book.Lay {
		return new(uint256.Int).Set(&o.Liability)
	}
	return new(uint256.Int).Set(&o.Unmatched)
}

// CancelOrder retira uma ordem em repouso do book e devolve o saldo ainda não casado.
func (s *Service) CancelOrder(ctx context.Context, owner, orderID string) (CancelOrderResult, error) {
	o, err := s.Order(ctx, orderID)
	if err != nil {
		return CancelOrderResult{}, err
	}
	if o.Owner != owner {
		return CancelOrderResult{}, ErrNotOwner
	}
	if !o.Resting() {
		return CancelOrderResult{}, ErrNotCancelable
	}

	now := s.Clock.Now()
	var (
		res      CancelOrderResult
		move     book.Transition
		snapshot events.BookSnapshot
	)
	err = s.Store.WithBook(ctx, o.MarketID, o.SelectionID, func(tr *book.Tracker, _ MarketState) (Changes, error) {
		canceled, tn, cerr := tr.Cancel(orderID)
		if errors.Is(cerr, book.ErrOrderNotResting) {
			return Changes{}, ErrNotCancelable
		}
		if cerr != nil {
			return Changes{}, cerr
		}

		if !canceled.Unmatched.IsZero() {
			if rerr := s.Custody.Refund(ctx, canceled.Owner, &canceled.Unmatched, canceled.ReceiptID); rerr != nil {
				return Changes{}, fmt.Errorf("%w: %v", ErrRefundFailed, rerr)
			}
		}

		res.Order = canceled
		res.Released.Set(&canceled.Unmatched)
		move = tn
		snapshot = Snapshot(o.MarketID, o.SelectionID, tr, new(uint256.Int), now)
		return Changes{Orders: []book.Order{canceled}}, nil
	})
	if err != nil {
		return CancelOrderResult{}, err
	}

	s.log.Info("order canceled",
		zap.String("receipt_id", orderID),
		zap.String("released", res.Released.Dec()),
	)

	s.publish(ctx, "order_canceled", func() error {
		return s.Notifier.OrderCanceled(ctx, canceledEvent(&res, move.From, now))
	})
	s.publishTransitions(ctx, o.MarketID, o.SelectionID, []book.Transition{move}, now)
	s.publish(ctx, "book_snapshot", func() error {
		return s.Notifier.BookSnapshot(ctx, snapshot)
	})
	return res, nil
}

func (s *Service) Order(ctx context.Context, id string) (book.Order, error) {
	o, err := s.Store.Order(ctx, id)
	if errors.Is(err, ErrOrderNotFound) {
		return book.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return book.Order{}, fmt.Errorf("load order: %w", err)
	}
	return o, nil
}

// Inspect devolve a visão de diagnóstico do book de uma seleção
func (s *Service) Inspect(ctx context.Context, marketID, selectionID uint64) (book.Inspection, error) {
	m, err := s.Markets.Market(ctx, marketID)
	if errors.Is(err, market.ErrNotFound) {
		return book.Inspection{}, ErrInvalidMarket
	}
	if err != nil {
		return book.Inspection{}, fmt.Errorf("load market: %w", err)
	}
	if _, ok := m.Selection(selectionID); !ok {
		return book.Inspection{}, ErrSelectionNotFound
	}
	tr, err := s.Store.Tracker(ctx, marketID, selectionID)
	if err != nil {
		return book.Inspection{}, fmt.Errorf("load book: %w", err)
	}
	return tr.Inspect(), nil
}

func (s *Service) Market(ctx context.Context, id uint64) (market.Market, error) {
	m, err := s.Markets.Market(ctx, id)
	if errors.Is(err, market.ErrNotFound) {
		return market.Market{}, ErrInvalidMarket
	}
	return m, err
}

// CreateMarket valida e grava um mercado novo, já aberto
func (s *Service) CreateMarket(ctx context.Context, eventID, description string, selections []string, closeAt time.Time) (market.Market, error) {
	m, err := market.New(eventID, description, selections, closeAt, s.Clock.Now())
	if err != nil {
		return market.Market{}, err
	}
	if err := s.Admin.CreateMarket(ctx, &m); err != nil {
		return market.Market{}, fmt.Errorf("create market: %w", err)
	}
	s.log.Info("market created", zap.Uint64("market_id", m.ID), zap.Int("selections", len(m.Selections)))
	return m, nil
}

func (s *Service) CloseMarket(ctx context.Context, id uint64) error {
	err := s.Admin.CloseMarket(ctx, id)
	if errors.Is(err, market.ErrNotFound) {
		return ErrInvalidMarket
	}
	if err != nil {
		return fmt.Errorf("close market: %w", err)
	}
	s.log.Info("market closed", zap.Uint64("market_id", id))
	return nil
}

func (s *Service) publishTransitions(ctx context.Context, marketID, selectionID uint64, moves []book.Transition, now time.Time) {
	for _, tn := range moves {
		e := events.CounterUpdated{
			MarketID:    marketID,
			SelectionID: selectionID,
			ReceiptID:   tn.ReceiptID,
			From:        tn.From.String(),
			To:          tn.To.String(),
			Counters:    events.Counters(tn.Counters),
			TsUnixMs:    now.UnixMilli(),
		}
		s.publish(ctx, "counter_updated", func() error {
			return s.Notifier.CounterUpdated(ctx, e)
		})
	}
}

// publish: depois do commit a ordem já existe, falha de envio só vai para o log
func (s *Service) publish(ctx context.Context, kind string, fn func() error) {
	if err := fn(); err != nil {
		s.log.Warn("publish failed", zap.String("event", kind), zap.Error(err))
	}
}
