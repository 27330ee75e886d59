package history

import (
	"sync"

	"github.com/Razorrag/Reddy-anna-games-sub001/internal/game-client/core"
)

// Log guarda as últimas rodadas encerradas em memória, com limite fixo.
// Implementa core.HistorySink.
type Log struct {
	mu   sync.Mutex
	max  int
	recs []core.RoundRecord
}

func New(max int) *Log {
	if max <= 0 {
		max = 50
	}
	return &Log{max: max}
}

// RoundFinished recebe o registro da rodada descartada pelo núcleo.
func (l *Log) RoundFinished(rec core.RoundRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recs = append(l.recs, rec)
	if len(l.recs) > l.max {
		l.recs = l.recs[len(l.recs)-l.max:]
	}
}

// Recent devolve cópias das últimas n rodadas, da mais nova para a mais
// antiga.
func (l *Log) Recent(n int) []core.RoundRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.recs) {
		n = len(l.recs)
	}
	out := make([]core.RoundRecord, 0, n)
	for i := len(l.recs) - 1; i >= len(l.recs)-n; i-- {
		out = append(out, l.recs[i])
	}
	return out
}
