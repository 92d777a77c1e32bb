package cart

import "github.com/prometheus/client_golang/prometheus"

// Metrics is optional; a nil *Metrics records nothing.
type Metrics struct {
	Mutations *prometheus.CounterVec
	Saves     *prometheus.CounterVec
	Items     prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cart_mutations_total",
				Help: "Cart mutations that changed the cart, by operation",
			},
			[]string{"op"},
		),
		Saves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cart_saves_total",
				Help: "Cart persistence attempts by result",
			},
			[]string{"result"},
		),
		Items: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cart_items",
				Help: "Distinct products currently in the cart",
			},
		),
	}

	reg.MustRegister(m.Mutations, m.Saves, m.Items)
	return m
}

func (m *Metrics) mutation(op string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(op).Inc()
}

func (m *Metrics) save(result string) {
	if m == nil {
		return
	}
	m.Saves.WithLabelValues(result).Inc()
}

func (m *Metrics) setItems(n int) {
	if m == nil {
		return
	}
	m.Items.Set(float64(n))
}
