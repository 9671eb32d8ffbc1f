package placement

import (
	"context"
	"time"

	"github.com/holiman/uint256"

	"github.com/radieske/betting-exchange-poc/internal/exchange/book"
	"github.com/radieske/betting-exchange-poc/internal/exchange/market"
	"github.com/radieske/betting-exchange-poc/pkg/contracts/events"
)

type Clock interface {
	Now() time.Time
}

// Directory resolve mercados. ErrNotFound do pacote market quando não existe.
type Directory interface {
	Market(ctx context.Context, id uint64) (market.Market, error)
}

// MarketAdmin cria e fecha mercados
type MarketAdmin interface {
	CreateMarket(ctx context.Context, m *market.Market) error
	CloseMarket(ctx context.Context, id uint64) error
}

// Changes é o que fn devolve para o Store gravar junto com o book
type Changes struct {
	Orders        []book.Order // ordens novas ou alteradas
	MatchedVolume uint256.Int  // somado ao total casado do mercado
}

// MarketState é o status do mercado lido sob o mesmo lock do book
type MarketState struct {
	Status  market.Status
	CloseAt time.Time
}

// Store serializa o acesso a cada book. fn roda com o book e a linha do
// mercado travados; erro em fn ou na gravação descarta tudo.
type Store interface {
	WithBook(ctx context.Context, marketID, selectionID uint64, fn func(*book.Tracker, MarketState) (Changes, error)) error
	Order(ctx context.Context, id string) (book.Order, error)
	Tracker(ctx context.Context, marketID, selectionID uint64) (*book.Tracker, error)
}

// Custody bloqueia e devolve saldo. ref é o receipt da ordem.
type Custody interface {
	Reserve(ctx context.Context, owner string, amount *uint256.Int, ref string) (string, error)
	Refund(ctx context.Context, owner string, amount *uint256.Int, ref string) error
}

type Receipts interface {
	Issue(ctx context.Context, o *book.Order) (string, error)
}

type Notifier interface {
	OrderPlaced(ctx context.Context, e events.OrderPlaced) error
	OrderCanceled(ctx context.Context, e events.OrderCanceled) error
	CounterUpdated(ctx context.Context, e events.CounterUpdated) error
	BookSnapshot(ctx context.Context, e events.BookSnapshot) error
}

// Metrics recebe os ganchos de instrumentação
type Metrics interface {
	OnPlaced(side book.Side, status book.Status)
	OnRejected(reason string)
	OnMatched(amount *uint256.Int)
}

type nopMetrics struct{}

func (nopMetrics) OnPlaced(book.Side, book.Status) {}
func (nopMetrics) OnRejected(string)               {}
func (nopMetrics) OnMatched(*uint256.Int)          {}
