package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline são os contadores padrão dos workers Kafka: consumo, etapas concluídas e erros por fase
type Pipeline struct {
	Consumed prometheus.Counter
	Steps    *prometheus.CounterVec // label "step"
	Errors   *prometheus.CounterVec // label "stage"
}

func NewPipeline(reg prometheus.Registerer, prefix string) *Pipeline {
	p := &Pipeline{
		Consumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_messages_consumed_total",
			Help: "mensagens consumidas",
		}),
		Steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_steps_total",
			Help: "etapas concluídas por tipo",
		}, []string{"step"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_errors_total",
			Help: "erros por estágio",
		}, []string{"stage"}),
	}
	reg.MustRegister(p.Consumed, p.Steps, p.Errors)
	return p
}

func (p *Pipeline) Step(name string) func() {
	c := p.Steps.WithLabelValues(name)
	return func() { c.Inc() }
}

func (p *Pipeline) Error(stage string) { p.Errors.WithLabelValues(stage).Inc() }
