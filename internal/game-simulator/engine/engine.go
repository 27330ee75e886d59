package engine

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/Razorrag/Reddy-anna-games-sub001/internal/game-simulator/wallet"
	"github.com/Razorrag/Reddy-anna-games-sub001/pkg/contracts/events"
)

var (
	ErrBettingClosed = errors.New("betting window closed")
	ErrInvalidBet    = errors.New("invalid bet")
)

// Broadcaster envia um evento serializável a todos os clientes do feed.
type Broadcaster interface {
	Broadcast(v any)
}

// Config controla o ritmo das rodadas simuladas.
type Config struct {
	BettingSeconds   int
	RoundGapSeconds  int
	TimerTickSeconds int
	DealInterval     time.Duration
	CompletedHold    time.Duration
	RejectPercent    int // % de apostas recusadas aleatoriamente (mock de risco)
}

type acceptedBet struct {
	betID      string
	userID     string
	side       string
	stakeCents int64
}

// Engine é o lado autoritativo da mesa simulada: gera o ciclo de rodadas,
// aceita apostas durante a janela e liquida no encerramento.
type Engine struct {
	mu sync.Mutex

	log    *zap.Logger
	clock  clockwork.Clock
	cfg    Config
	bc     Broadcaster
	wallet *wallet.Memory
	rng    *rand.Rand

	roundID     string
	roundNumber int64
	phase       string // "betting" | "dealing" | "completed" | ""
	openingCard string
	book        []acceptedBet
}

func New(log *zap.Logger, clock clockwork.Clock, cfg Config, bc Broadcaster, w *wallet.Memory, rng *rand.Rand) *Engine {
	if cfg.BettingSeconds <= 0 {
		cfg.BettingSeconds = 25
	}
	if cfg.TimerTickSeconds <= 0 {
		cfg.TimerTickSeconds = 5
	}
	if cfg.DealInterval <= 0 {
		cfg.DealInterval = 800 * time.Millisecond
	}
	return &Engine{
		log:    log,
		clock:  clock,
		cfg:    cfg,
		bc:     bc,
		wallet: w,
		rng:    rng,
	}
}

// Run executa rodadas em sequência até o contexto encerrar.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			e.runRound(ctx)
		}
	}
}

func (e *Engine) runRound(ctx context.Context) {
	deck := ShuffledDeck(e.rng)
	opening, rest := deck[0], deck[1:]

	e.mu.Lock()
	e.roundNumber++
	e.roundID = uuid.NewString()
	e.phase = "betting"
	e.openingCard = opening
	e.book = e.book[:0]
	roundNumber := e.roundNumber
	e.mu.Unlock()

	e.log.Info("round started",
		zap.Int64("round_number", roundNumber),
		zap.String("opening_card", opening),
	)
	e.emit(events.TypeRoundStarted, events.RoundStarted{
		OpeningCard:    opening,
		BettingSeconds: e.cfg.BettingSeconds,
	})

	// janela de apostas, com reamostragens periódicas do countdown
	remaining := e.cfg.BettingSeconds
	for remaining > 0 {
		step := e.cfg.TimerTickSeconds
		if step > remaining {
			step = remaining
		}
		if !e.sleep(ctx, time.Duration(step)*time.Second) {
			return
		}
		remaining -= step
		if remaining > 0 {
			e.emit(events.TypeTimerTick, events.TimerTick{SecondsRemaining: remaining})
		}
	}

	e.setPhase("dealing")
	e.emit(events.TypeBettingClosed, nil)

	seq, winner, matched := DealSequence(rest, opening)
	for _, dealt := range seq {
		if !e.sleep(ctx, e.cfg.DealInterval) {
			return
		}
		e.emit(events.TypeCardDealt, dealt)
	}

	settlements := e.settle(winner)
	e.setPhase("completed")
	e.emit(events.TypeRoundCompleted, events.RoundCompleted{
		WinningSide: winner,
		MatchedCard: matched,
		Settlements: settlements,
	})
	e.log.Info("round completed",
		zap.Int64("round_number", roundNumber),
		zap.String("winning_side", winner),
		zap.Int("bets", len(settlements)),
	)

	hold := e.cfg.CompletedHold + time.Duration(e.cfg.RoundGapSeconds)*time.Second
	if hold > 0 && !e.sleep(ctx, hold) {
		return
	}
}

// BetOutcome é a resposta canônica do servidor para uma aposta aceita
// para processamento: confirmada ou recusada pelo motor de risco.
type BetOutcome struct {
	BetID  string
	Status string // events.BetStatusConfirmed | events.BetStatusRejected
	Reason string
}

// PlaceBet é a ponta autoritativa de apostas. Valida a janela, debita a
// carteira via reserva+commit e registra a aposta no livro da rodada.
// Uma fração configurável é recusada aleatoriamente, como um motor de
// risco faria.
func (e *Engine) PlaceBet(userID, roundID, side string, stakeCents int64) (BetOutcome, error) {
	if !events.ValidSide(side) || stakeCents <= 0 || userID == "" {
		return BetOutcome{}, ErrInvalidBet
	}

	e.mu.Lock()
	if e.phase != "betting" || roundID != e.roundID {
		e.mu.Unlock()
		return BetOutcome{}, ErrBettingClosed
	}
	betID := uuid.NewString()
	reject := e.rng.Intn(100) < e.cfg.RejectPercent
	e.mu.Unlock()

	if _, err := e.wallet.Reserve(userID, stakeCents, betID); err != nil {
		return BetOutcome{}, err
	}
	if reject {
		_ = e.wallet.Refund(betID)
		return BetOutcome{BetID: betID, Status: events.BetStatusRejected, Reason: "risk_reject_mock"}, nil
	}
	if err := e.wallet.Commit(betID); err != nil {
		return BetOutcome{}, err
	}

	e.mu.Lock()
	// a janela pode ter fechado durante a reserva; o servidor honra a
	// aposta mesmo assim, pois o débito já foi efetivado
	e.book = append(e.book, acceptedBet{betID: betID, userID: userID, side: side, stakeCents: stakeCents})
	e.mu.Unlock()
	return BetOutcome{BetID: betID, Status: events.BetStatusConfirmed}, nil
}

// settle paga as apostas vencedoras e devolve as liquidações da rodada.
func (e *Engine) settle(winner string) []events.Settlement {
	e.mu.Lock()
	book := append([]acceptedBet(nil), e.book...)
	e.mu.Unlock()

	out := make([]events.Settlement, 0, len(book))
	for _, b := range book {
		st := events.Settlement{BetID: b.betID, UserID: b.userID, Status: events.SettlementLost}
		if b.side == winner {
			st.Status = events.SettlementWon
			st.PayoutCents = payoutFor(b.side, b.stakeCents)
			e.wallet.Credit(b.userID, st.PayoutCents)
		}
		out = append(out, st)
	}
	return out
}

func (e *Engine) setPhase(p string) {
	e.mu.Lock()
	e.phase = p
	e.mu.Unlock()
}

// emit publica um evento com envelope completo no feed.
func (e *Engine) emit(eventType string, payload any) {
	e.mu.Lock()
	env := events.Envelope{
		EventID:     uuid.NewString(),
		Type:        eventType,
		RoundID:     e.roundID,
		RoundNumber: e.roundNumber,
		Ts:          e.clock.Now(),
	}
	e.mu.Unlock()

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			e.log.Error("marshal event payload", zap.Error(err))
			return
		}
		env.Payload = raw
	}
	e.bc.Broadcast(env)
}

// Round expõe o estado corrente para os handlers HTTP.
func (e *Engine) Round() (roundID string, roundNumber int64, phase string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.roundID, e.roundNumber, e.phase
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-e.clock.After(d):
		return true
	}
}
