package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/betting-exchange-poc/internal/exchange/dto"
	"github.com/radieske/betting-exchange-poc/internal/exchange/odds"
	"github.com/radieske/betting-exchange-poc/internal/exchange/placement"
)

// Exchange é o que o simulador usa da API
type Exchange interface {
	CreateMarket(ctx context.Context, req dto.CreateMarketRequest) (dto.MarketResponse, error)
	PlaceOrder(ctx context.Context, req dto.PlaceOrderRequest) (dto.PlaceOrderResponse, error)
}

// Config do gerador de fluxo de ordens
type Config struct {
	Interval  time.Duration
	Users     []string
	MinOdds   uint64 // escala 100
	MaxOdds   uint64
	MaxUnits  uint64 // stake máximo em blocos de 100
	MarketTTL time.Duration
}

// Simulator cria um mercado de teste e coloca ordens aleatórias nos dois lados
type Simulator struct {
	log  *zap.Logger
	ex   Exchange
	cfg  Config
	rnd  *rand.Rand
	now  func() time.Time
	sent *prometheus.CounterVec // labels side, result
}

func New(log *zap.Logger, ex Exchange, cfg Config, reg prometheus.Registerer, seed int64) *Simulator {
	sent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simulator_orders_sent_total",
		Help: "ordens enviadas ao exchange por lado e resultado",
	}, []string{"side", "result"})
	reg.MustRegister(sent)

	return &Simulator{
		log:  log,
		ex:   ex,
		cfg:  cfg,
		rnd:  rand.New(rand.NewSource(seed)),
		now:  time.Now,
		sent: sent,
	}
}

// catálogo fixo de partidas simuladas
var matches = []struct{ event, home, away string }{
	{"MATCH_001", "Flamengo", "Palmeiras"},
	{"MATCH_002", "Grêmio", "Internacional"},
	{"MATCH_003", "Corinthians", "Santos"},
	{"MATCH_004", "São Paulo", "Vasco"},
}

// OpenMarket cria um mercado 1x2 para uma partida do catálogo
func (s *Simulator) OpenMarket(ctx context.Context) (dto.MarketResponse, error) {
	m := matches[s.rnd.Intn(len(matches))]
	return s.ex.CreateMarket(ctx, dto.CreateMarketRequest{
		EventID:     m.event,
		Description: fmt.Sprintf("%s x %s - Match Odds", m.home, m.away),
		Selections:  []string{m.home, "Empate", m.away},
		CloseAt:     s.now().Add(s.cfg.MarketTTL).UTC(),
	})
}

// NextOrder sorteia uma ordem válida. Stakes são múltiplos de 100 para
// que a responsabilidade do LAY feche sem arredondamento.
func (s *Simulator) NextOrder(m dto.MarketResponse) dto.PlaceOrderRequest {
	sel := m.Selections[s.rnd.Intn(len(m.Selections))]
	ticks := (s.cfg.MaxOdds - s.cfg.MinOdds) / 5
	o := s.cfg.MinOdds + 5*uint64(s.rnd.Int63n(int64(ticks)+1))
	stake := uint256.NewInt(100 * (1 + uint64(s.rnd.Int63n(int64(s.cfg.MaxUnits)))))

	req := dto.PlaceOrderRequest{
		UserID:      s.cfg.Users[s.rnd.Intn(len(s.cfg.Users))],
		MarketID:    m.ID,
		SelectionID: sel.ID,
		Odds:        odds.Format(o),
	}
	if s.rnd.Intn(2) == 0 {
		req.Side = "BACK"
		req.Funds = stake.Dec()
		return req
	}
	liability := odds.LayLiability(stake, o)
	req.Side = "LAY"
	req.Liability = liability.Dec()
	req.Funds = new(uint256.Int).Add(stake, liability).Dec()
	return req
}

// Run abre um mercado e envia uma ordem por intervalo até o contexto acabar.
// Quando o mercado fecha, abre outro.
func (s *Simulator) Run(ctx context.Context) error {
	m, err := s.OpenMarket(ctx)
	if err != nil {
		return fmt.Errorf("open market: %w", err)
	}
	s.log.Info("market opened", zap.Uint64("market_id", m.ID), zap.String("description", m.Description))

	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}

		req := s.NextOrder(m)
		res, err := s.ex.PlaceOrder(ctx, req)
		if err != nil {
			s.sent.WithLabelValues(req.Side, "error").Inc()
			var se *StatusError
			if errors.As(err, &se) && se.Code == http.StatusConflict && se.Msg == placement.ErrMarketClosed.Error() {
				if m, err = s.OpenMarket(ctx); err != nil {
					return fmt.Errorf("reopen market: %w", err)
				}
				s.log.Info("market rolled", zap.Uint64("market_id", m.ID))
				continue
			}
			s.log.Warn("place order failed", zap.String("side", req.Side), zap.Error(err))
			continue
		}
		s.sent.WithLabelValues(req.Side, res.Status).Inc()
		s.log.Debug("order placed",
			zap.String("order_id", res.OrderID),
			zap.String("side", req.Side),
			zap.String("odds", req.Odds),
			zap.String("status", res.Status),
		)
	}
}
