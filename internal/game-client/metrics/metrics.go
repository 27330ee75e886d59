package metrics

import "github.com/prometheus/client_golang/prometheus"

// Set agrupa as métricas Prometheus do núcleo de sincronização.
// Implementa core.Metrics.
type Set struct {
	eventsProcessed *prometheus.CounterVec
	eventsDropped   *prometheus.CounterVec
	betsPlaced      *prometheus.CounterVec
	betsConfirmed   prometheus.Counter
	betsRolledBack  *prometheus.CounterVec
}

// New registra e devolve o conjunto de métricas do cliente.
func New(reg prometheus.Registerer) *Set {
	s := &Set{
		eventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "game_client_events_processed_total",
			Help: "Eventos do feed aplicados ao estado, por tipo",
		}, []string{"type"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "game_client_events_dropped_total",
			Help: "Eventos descartados na ingestão, por motivo",
		}, []string{"reason"}),
		betsPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "game_client_bets_placed_total",
			Help: "Apostas otimistas colocadas, por lado",
		}, []string{"side"}),
		betsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "game_client_bets_confirmed_total",
			Help: "Apostas confirmadas pelo servidor",
		}),
		betsRolledBack: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "game_client_bets_rolled_back_total",
			Help: "Apostas desfeitas, por motivo",
		}, []string{"reason"}),
	}
	reg.MustRegister(s.eventsProcessed, s.eventsDropped, s.betsPlaced, s.betsConfirmed, s.betsRolledBack)
	return s
}

func (s *Set) EventProcessed(eventType string) {
	s.eventsProcessed.WithLabelValues(eventType).Inc()
}

func (s *Set) EventDropped(reason string) {
	s.eventsDropped.WithLabelValues(reason).Inc()
}

func (s *Set) BetPlaced(side string) {
	s.betsPlaced.WithLabelValues(side).Inc()
}

func (s *Set) BetConfirmed() {
	s.betsConfirmed.Inc()
}

func (s *Set) BetRolledBack(reason string) {
	s.betsRolledBack.WithLabelValues(reason).Inc()
}
