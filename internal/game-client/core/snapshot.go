package core

import "github.com/Razorrag/Reddy-anna-games-sub001/pkg/contracts/events"

// SessionSnapshot agrega as apostas da rodada ativa por lado.
type SessionSnapshot struct {
	Andar      SideTotals
	Bahar      SideTotals
	TotalCents int64
}

// Snapshot é a projeção somente leitura exposta à apresentação.
// Tudo aqui é cópia; mutar um Snapshot não afeta o núcleo.
type Snapshot struct {
	Round        *Round // nil antes da primeira rodada
	Session      SessionSnapshot
	Bets         []Bet // apostas da rodada ativa, em ordem de colocação
	BalanceCents int64 // saldo exibido (derivado)
	CountdownSec int
}

// Snapshot devolve o estado corrente para leitura.
func (c *Core) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		BalanceCents: c.displayedBalanceLocked(),
		CountdownSec: c.countdown.Remaining(),
	}
	if c.round != nil {
		r := *c.round
		r.AndarCards = append([]string(nil), c.round.AndarCards...)
		r.BaharCards = append([]string(nil), c.round.BaharCards...)
		s.Round = &r

		for _, id := range c.order {
			if b, ok := c.bets[id]; ok && b.RoundID == c.round.RoundID {
				s.Bets = append(s.Bets, *b)
			}
		}
		s.Session = SessionSnapshot{
			Andar: c.sideTotalsLocked(events.SideAndar),
			Bahar: c.sideTotalsLocked(events.SideBahar),
		}
		s.Session.TotalCents = s.Session.Andar.TotalCents + s.Session.Bahar.TotalCents
	}
	return s
}
