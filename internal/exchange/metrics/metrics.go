package metrics

import (
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/radieske/betting-exchange-poc/internal/exchange/book"
)

// Exchange implementa os ganchos de métricas da colocação de ordens
type Exchange struct {
	placed   *prometheus.CounterVec
	rejected *prometheus.CounterVec
	matched  prometheus.Counter
}

func NewExchange(reg prometheus.Registerer) *Exchange {
	m := &Exchange{
		placed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_orders_placed_total", Help: "ordens aceitas por lado e status final",
		}, []string{"side", "status"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_orders_rejected_total", Help: "ordens rejeitadas por motivo",
		}, []string{"reason"}),
		matched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exchange_matched_volume_total", Help: "volume casado (unidades mínimas)",
		}),
	}
	reg.MustRegister(m.placed, m.rejected, m.matched)
	return m
}

func (m *Exchange) OnPlaced(side book.Side, st book.Status) {
	m.placed.WithLabelValues(side.String(), st.String()).Inc()
}

func (m *Exchange) OnRejected(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}

// OnMatched: o contador é float64, valores enormes perdem precisão
func (m *Exchange) OnMatched(amount *uint256.Int) {
	m.matched.Add(amount.Float64())
}
