package core

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/Razorrag/Reddy-anna-games-sub001/pkg/contracts/events"
)

// Motivos de descarte reportados nas métricas de ingestão.
const (
	dropMalformed = "malformed"
	dropStale     = "stale"
	dropDuplicate = "duplicate"
	dropMismatch  = "round_mismatch"
	dropPhase     = "wrong_phase"
)

// Ingest recebe um frame cru do transporte e o aplica ao estado.
//
// Três filtros na ordem: validação de schema (eventos malformados são
// descartados e logados, nunca aplicados pela metade), filtro de
// obsolescência (round_number menor que o atual) e deduplicação por
// event_id dentro da rodada atual. Não há rebuffer/reordenação: o
// transporte entrega em ordem de envio e só duplicatas e mensagens
// velhas são tratadas defensivamente.
func (c *Core) Ingest(raw []byte) {
	var env events.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.dropEvent(dropMalformed, "", zap.Error(err))
		return
	}
	if env.EventID == "" || env.Type == "" || env.RoundID == "" || env.RoundNumber <= 0 {
		c.dropEvent(dropMalformed, env.Type, zap.String("event_id", env.EventID))
		return
	}

	c.mu.Lock()
	if c.round != nil && env.RoundNumber < c.round.RoundNumber {
		c.mu.Unlock()
		c.dropEvent(dropStale, env.Type,
			zap.Int64("round_number", env.RoundNumber),
			zap.String("event_id", env.EventID),
		)
		return
	}
	if c.round != nil && env.RoundNumber == c.round.RoundNumber {
		if _, dup := c.seen[env.EventID]; dup {
			c.mu.Unlock()
			c.dropEvent(dropDuplicate, env.Type, zap.String("event_id", env.EventID))
			return
		}
	}

	var (
		err      error
		finished *RoundRecord
		notice   string
	)
	switch env.Type {
	case events.TypeRoundStarted:
		finished, err = c.applyRoundStartedLocked(&env)
	case events.TypeTimerTick:
		err = c.applyTimerTickLocked(&env)
	case events.TypeBettingClosed:
		err = c.applyBettingClosedLocked(&env)
	case events.TypeCardDealt:
		err = c.applyCardDealtLocked(&env)
	case events.TypeRoundCompleted:
		notice, err = c.applyRoundCompletedLocked(&env)
	default:
		c.mu.Unlock()
		c.dropEvent(dropMalformed, env.Type, zap.String("event_id", env.EventID))
		return
	}
	if err != nil {
		c.mu.Unlock()
		c.dropEvent(reasonOf(err), env.Type,
			zap.String("event_id", env.EventID),
			zap.Error(err),
		)
		return
	}
	c.seen[env.EventID] = struct{}{}
	c.mu.Unlock()

	c.metrics.EventProcessed(env.Type)
	if finished != nil && c.history != nil {
		c.history.RoundFinished(*finished)
	}
	if notice != "" {
		c.notify(notice)
	}
	if env.Type == events.TypeRoundCompleted {
		c.invalidateBalance()
	}
}

// ingestErr carrega o motivo de descarte junto do erro.
type ingestErr struct {
	reason string
	err    error
}

func (e *ingestErr) Error() string { return e.err.Error() }

func reasonOf(err error) string {
	if ie, ok := err.(*ingestErr); ok {
		return ie.reason
	}
	return dropMalformed
}

func malformed(format string, args ...any) error {
	return &ingestErr{reason: dropMalformed, err: fmt.Errorf(format, args...)}
}

func mismatch(format string, args ...any) error {
	return &ingestErr{reason: dropMismatch, err: fmt.Errorf(format, args...)}
}

func wrongPhase(format string, args ...any) error {
	return &ingestErr{reason: dropPhase, err: fmt.Errorf(format, args...)}
}

// applyRoundStartedLocked cria a rodada nova e descarta a anterior,
// entregando o registro ao colaborador de histórico. A sessão de apostas
// zera; apostas ainda pendentes da rodada anterior permanecem no ledger,
// desvinculadas, até a própria resposta chegar.
func (c *Core) applyRoundStartedLocked(env *events.Envelope) (*RoundRecord, error) {
	var p events.RoundStarted
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, malformed("round_started payload: %w", err)
	}
	if p.OpeningCard == "" || p.BettingSeconds <= 0 {
		return nil, malformed("round_started payload incomplete")
	}
	if c.round != nil && env.RoundNumber == c.round.RoundNumber {
		return nil, &ingestErr{reason: dropDuplicate, err: fmt.Errorf("round %d already started", env.RoundNumber)}
	}

	var finished *RoundRecord
	if c.round != nil {
		rec := RoundRecord{
			Round:       *c.round,
			CompletedAt: c.clock.Now(),
		}
		c.prevIntents = c.prevIntents[:0]
		for _, id := range c.order {
			b, ok := c.bets[id]
			if !ok || b.RoundID != c.round.RoundID {
				continue
			}
			rec.Bets = append(rec.Bets, *b)
			c.prevIntents = append(c.prevIntents, BetIntent{Side: b.Side, StakeCents: b.StakeCents})
		}
		finished = &rec
	}

	c.round = &Round{
		RoundID:     env.RoundID,
		RoundNumber: env.RoundNumber,
		Phase:       PhaseBetting,
		OpeningCard: p.OpeningCard,
	}
	c.seen = make(map[string]struct{})
	c.countdown.Resync(p.BettingSeconds)

	c.log.Info("round started",
		zap.Int64("round_number", env.RoundNumber),
		zap.String("round_id", env.RoundID),
		zap.String("opening_card", p.OpeningCard),
		zap.Int("betting_seconds", p.BettingSeconds),
	)
	return finished, nil
}

func (c *Core) applyTimerTickLocked(env *events.Envelope) error {
	var p events.TimerTick
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return malformed("timer_tick payload: %w", err)
	}
	if err := c.requireRoundLocked(env); err != nil {
		return err
	}
	if c.round.Phase != PhaseBetting {
		return wrongPhase("timer_tick in phase %s", c.round.Phase)
	}
	if p.SecondsRemaining < 0 {
		return malformed("timer_tick negative remaining")
	}
	c.countdown.Resync(p.SecondsRemaining)
	return nil
}

// applyBettingClosedLocked fecha a janela de apostas. Apostas pendentes
// NÃO sofrem rollback aqui: cada uma é resolvida apenas pela própria
// resposta, porque o servidor pode já tê-la aceitado.
func (c *Core) applyBettingClosedLocked(env *events.Envelope) error {
	if err := c.requireRoundLocked(env); err != nil {
		return err
	}
	if c.round.Phase != PhaseBetting {
		return wrongPhase("betting_closed in phase %s", c.round.Phase)
	}
	c.round.Phase = PhaseDealing
	c.countdown.Stop()
	c.log.Info("betting closed", zap.Int64("round_number", c.round.RoundNumber))
	return nil
}

func (c *Core) applyCardDealtLocked(env *events.Envelope) error {
	var p events.CardDealt
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return malformed("card_dealt payload: %w", err)
	}
	if p.Card == "" || !events.ValidSide(p.Side) {
		return malformed("card_dealt payload incomplete")
	}
	if err := c.requireRoundLocked(env); err != nil {
		return err
	}
	if c.round.Phase != PhaseDealing {
		return wrongPhase("card_dealt in phase %s", c.round.Phase)
	}
	if p.Side == events.SideAndar {
		c.round.AndarCards = append(c.round.AndarCards, p.Card)
	} else {
		c.round.BaharCards = append(c.round.BaharCards, p.Card)
	}
	return nil
}

// applyRoundCompletedLocked marca a rodada como somente leitura e credita
// as liquidações das minhas apostas no termo de créditos pendentes, até a
// próxima leitura autoritativa de saldo.
func (c *Core) applyRoundCompletedLocked(env *events.Envelope) (string, error) {
	var p events.RoundCompleted
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return "", malformed("round_completed payload: %w", err)
	}
	if !events.ValidSide(p.WinningSide) {
		return "", malformed("round_completed payload incomplete")
	}
	if err := c.requireRoundLocked(env); err != nil {
		return "", err
	}
	if c.round.Phase != PhaseDealing {
		return "", wrongPhase("round_completed in phase %s", c.round.Phase)
	}

	c.round.Phase = PhaseCompleted
	c.round.WinningSide = p.WinningSide
	c.round.MatchedCard = p.MatchedCard
	c.countdown.Stop()

	var won int64
	for _, st := range p.Settlements {
		b, ok := c.bets[st.BetID]
		if !ok || b.Status != BetConfirmed {
			continue
		}
		if st.Status == events.SettlementWon && st.PayoutCents > 0 {
			c.pendingCreditCents += st.PayoutCents
			won += st.PayoutCents
		}
	}

	c.log.Info("round completed",
		zap.Int64("round_number", c.round.RoundNumber),
		zap.String("winning_side", p.WinningSide),
		zap.Int64("won_cents", won),
	)
	if won > 0 {
		return fmt.Sprintf("%s won, you received %d", p.WinningSide, won), nil
	}
	return "", nil
}

// requireRoundLocked garante que o evento se refere à rodada ativa.
func (c *Core) requireRoundLocked(env *events.Envelope) error {
	if c.round == nil {
		return mismatch("no active round for %s", env.Type)
	}
	if env.RoundID != c.round.RoundID {
		return mismatch("event for round %s, current is %s", env.RoundID, c.round.RoundID)
	}
	return nil
}

func (c *Core) dropEvent(reason, eventType string, fields ...zap.Field) {
	c.metrics.EventDropped(reason)
	fields = append(fields, zap.String("reason", reason), zap.String("event_type", eventType))
	c.log.Debug("event dropped", fields...)
}
