package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/Razorrag/Reddy-anna-games-sub001/pkg/contracts/events"
)

// BetResult é a resposta canônica do servidor para uma solicitação de aposta.
type BetResult struct {
	BetID  string
	Status string // events.BetStatusConfirmed | events.BetStatusRejected
	Reason string
}

// BetPlacer envia a solicitação de aposta ao servidor e devolve o resultado.
// Implementado pelo cliente HTTP da API (internal/game-client/api).
type BetPlacer interface {
	PlaceBet(ctx context.Context, roundID, side string, stakeCents int64) (BetResult, error)
}

// Metrics recebe os contadores de atividade do núcleo. A implementação
// prometheus vive em internal/game-client/metrics; o default é no-op.
type Metrics interface {
	EventProcessed(eventType string)
	EventDropped(reason string)
	BetPlaced(side string)
	BetConfirmed()
	BetRolledBack(reason string)
}

type noopMetrics struct{}

func (noopMetrics) EventProcessed(string) {}
func (noopMetrics) EventDropped(string)   {}
func (noopMetrics) BetPlaced(string)      {}
func (noopMetrics) BetConfirmed()         {}
func (noopMetrics) BetRolledBack(string)  {}

// HistorySink recebe o registro de uma rodada encerrada antes do descarte.
type HistorySink interface {
	RoundFinished(rec RoundRecord)
}

// RoundRecord é o que sobra de uma rodada quando a próxima começa.
type RoundRecord struct {
	Round       Round
	Bets        []Bet
	CompletedAt time.Time
}

// Options configura o núcleo. Logger e Placer são obrigatórios na prática;
// os demais têm defaults utilizáveis em teste.
type Options struct {
	Logger  *zap.Logger
	Clock   clockwork.Clock
	Placer  BetPlacer
	Metrics Metrics
	History HistorySink

	// OnNotice recebe feedback transitório para a camada de apresentação
	// (rollbacks, liquidações). Nunca é chamado segurando o lock interno.
	OnNotice func(text string)

	// OnBalanceInvalidated dispara após cada liquidação ou rollback para
	// que o saldo autoritativo seja rebuscado em vez de confiado
	// indefinidamente.
	OnBalanceInvalidated func()

	RequestTimeout time.Duration
}

// Core é o contêiner único de estado do cliente: fase da rodada, ledger
// otimista, countdown e insumos do saldo exibido.
//
// Todo o estado fica atrás de um mutex; as mutações otimistas e a captura
// do snapshot de rollback acontecem na mesma seção crítica, antes de
// qualquer chamada de rede. Leitores recebem apenas cópias via Snapshot.
type Core struct {
	mu sync.Mutex

	log            *zap.Logger
	clock          clockwork.Clock
	placer         BetPlacer
	metrics        Metrics
	history        HistorySink
	onNotice       func(string)
	onInvalidate   func()
	requestTimeout time.Duration

	round     *Round
	countdown *Countdown
	seen      map[string]struct{} // event_ids já processados na rodada atual

	bets      map[string]*Bet // chaveado pelo id corrente (local ou canônico)
	order     []string        // ids em ordem de colocação
	snapshots map[string]rollbackSnapshot

	confirmedBalanceCents int64 // última leitura autoritativa do servidor
	pendingCreditCents    int64 // liquidações ainda não refletidas no servidor

	prevIntents []BetIntent // apostas da rodada anterior, para rebet
}

func New(opts Options) *Core {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	return &Core{
		log:            opts.Logger,
		clock:          opts.Clock,
		placer:         opts.Placer,
		metrics:        opts.Metrics,
		history:        opts.History,
		onNotice:       opts.OnNotice,
		onInvalidate:   opts.OnBalanceInvalidated,
		requestTimeout: opts.RequestTimeout,
		countdown:      NewCountdown(opts.Clock),
		seen:           make(map[string]struct{}),
		bets:           make(map[string]*Bet),
		snapshots:      make(map[string]rollbackSnapshot),
	}
}

// SetConfirmedBalance aplica uma leitura autoritativa de saldo vinda do
// servidor. Débitos de apostas já confirmadas e créditos de liquidação
// passam a estar refletidos e deixam de ser descontados/somados localmente.
func (c *Core) SetConfirmedBalance(cents int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.confirmedBalanceCents = cents
	c.pendingCreditCents = 0
	for id, b := range c.bets {
		if b.Status != BetConfirmed {
			continue
		}
		b.reflected = true
		// apostas confirmadas de rodadas já encerradas não interessam mais
		if c.round == nil || b.RoundID != c.round.RoundID {
			delete(c.bets, id)
			c.removeFromOrderLocked(id)
		}
	}
}

// RequestBet aplica a aposta otimista e dispara a confirmação assíncrona.
// Devolve o id local da aposta.
//
// Guardas síncronas: fase em betting e saldo exibido suficiente. A mutação
// otimista, o snapshot de rollback e o início da requisição acontecem antes
// de qualquer ponto de suspensão, então nenhuma outra tarefa observa uma
// mutação pela metade.
func (c *Core) RequestBet(ctx context.Context, side string, stakeCents int64) (string, error) {
	if !events.ValidSide(side) {
		return "", ErrUnknownSide
	}

	c.mu.Lock()
	if c.round == nil || c.round.Phase != PhaseBetting {
		c.mu.Unlock()
		return "", ErrPhaseClosed
	}
	if stakeCents <= 0 || c.displayedBalanceLocked() < stakeCents {
		c.mu.Unlock()
		return "", ErrInsufficientFunds
	}

	bet := &Bet{
		BetID:      uuid.NewString(),
		RoundID:    c.round.RoundID,
		Side:       side,
		StakeCents: stakeCents,
		Status:     BetPending,
		CreatedAt:  c.clock.Now(),
	}
	c.snapshots[bet.BetID] = rollbackSnapshot{
		betID:             bet.BetID,
		side:              side,
		stakeCents:        stakeCents,
		displayedBefore:   c.displayedBalanceLocked(),
		pendingSideBefore: c.sideTotalsLocked(side).PendingCents,
		capturedAt:        c.clock.Now(),
	}
	c.bets[bet.BetID] = bet
	c.order = append(c.order, bet.BetID)
	roundID := c.round.RoundID
	localID := bet.BetID
	c.mu.Unlock()

	c.metrics.BetPlaced(side)
	c.log.Debug("bet placed optimistically",
		zap.String("bet_id", localID),
		zap.String("side", side),
		zap.Int64("stake_cents", stakeCents),
	)

	go c.confirm(ctx, localID, roundID, side, stakeCents)
	return localID, nil
}

// confirm executa a viagem de confirmação. O protocolo sempre espera uma
// resposta (sucesso, rejeição ou falha por timeout); não existe
// cancelamento de requisição em voo.
func (c *Core) confirm(ctx context.Context, localID, roundID, side string, stakeCents int64) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	res, err := c.placer.PlaceBet(ctx, roundID, side, stakeCents)
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("%w: %v", ErrRequestTimedOut, err)
	}
	c.Resolve(localID, res, err)
}

// Resolve aplica a resposta de confirmação de uma aposta pendente.
//
// Idempotente: se a aposta não existe mais (já resolvida ou desfeita) a
// chamada é um no-op, então respostas duplicadas ou tardias são inócuas.
func (c *Core) Resolve(localID string, res BetResult, err error) {
	c.mu.Lock()
	bet, ok := c.bets[localID]
	if !ok || bet.Status != BetPending {
		c.mu.Unlock()
		return
	}

	if err != nil || res.Status == events.BetStatusRejected {
		c.rollbackLocked(localID)
		c.mu.Unlock()

		reason := classifyFailure(err)
		c.metrics.BetRolledBack(reason)
		c.log.Warn("bet rolled back",
			zap.String("bet_id", localID),
			zap.String("reason", reason),
			zap.Error(err),
		)
		c.notify(fmt.Sprintf("bet of %d on %s was not accepted (%s)", bet.StakeCents, bet.Side, reason))
		c.invalidateBalance()
		return
	}

	// promoção: pendente -> confirmada; o id local dá lugar ao canônico
	bet.Status = BetConfirmed
	delete(c.snapshots, localID)
	if res.BetID != "" && res.BetID != localID {
		delete(c.bets, localID)
		c.bets[res.BetID] = bet
		bet.BetID = res.BetID
		c.replaceInOrderLocked(localID, res.BetID)
	}
	c.mu.Unlock()

	c.metrics.BetConfirmed()
	c.log.Debug("bet confirmed",
		zap.String("bet_id", bet.BetID),
		zap.String("side", bet.Side),
	)
	c.invalidateBalance()
}

// UndoLastBet desfaz localmente a última aposta pendente da rodada atual.
// Uma confirmação tardia para ela será ignorada pela idempotência de
// Resolve — o cliente confia no rollback, não no estado otimista.
func (c *Core) UndoLastBet() error {
	c.mu.Lock()
	if c.round == nil || c.round.Phase != PhaseBetting {
		c.mu.Unlock()
		return ErrPhaseClosed
	}
	var target string
	for i := len(c.order) - 1; i >= 0; i-- {
		b, ok := c.bets[c.order[i]]
		if ok && b.RoundID == c.round.RoundID && b.Status == BetPending {
			target = c.order[i]
			break
		}
	}
	if target == "" {
		c.mu.Unlock()
		return ErrNoPendingBet
	}
	bet := *c.bets[target]
	c.rollbackLocked(target)
	c.mu.Unlock()

	c.metrics.BetRolledBack("undo")
	c.log.Info("bet undone", zap.String("bet_id", bet.BetID), zap.String("side", bet.Side))
	c.invalidateBalance()
	return nil
}

// ClearAllBets desfaz todas as apostas pendentes da rodada atual.
func (c *Core) ClearAllBets() error {
	c.mu.Lock()
	if c.round == nil || c.round.Phase != PhaseBetting {
		c.mu.Unlock()
		return ErrPhaseClosed
	}
	var cleared []string
	for _, id := range append([]string(nil), c.order...) {
		b, ok := c.bets[id]
		if ok && b.RoundID == c.round.RoundID && b.Status == BetPending {
			c.rollbackLocked(id)
			cleared = append(cleared, id)
		}
	}
	c.mu.Unlock()

	for range cleared {
		c.metrics.BetRolledBack("clear")
	}
	if len(cleared) > 0 {
		c.log.Info("pending bets cleared", zap.Int("count", len(cleared)))
		c.invalidateBalance()
	}
	return nil
}

// RebetPreviousRound repete as apostas da rodada anterior, uma a uma,
// pelo mesmo contrato otimista de RequestBet.
func (c *Core) RebetPreviousRound(ctx context.Context) error {
	c.mu.Lock()
	if c.round == nil || c.round.Phase != PhaseBetting {
		c.mu.Unlock()
		return ErrPhaseClosed
	}
	intents := append([]BetIntent(nil), c.prevIntents...)
	c.mu.Unlock()

	if len(intents) == 0 {
		return ErrNothingToRebet
	}
	for _, in := range intents {
		if _, err := c.RequestBet(ctx, in.Side, in.StakeCents); err != nil {
			return err
		}
	}
	return nil
}

// DoubleAllBets solicita, para cada aposta da rodada atual, uma nova
// aposta de mesmo lado e valor. Apostas com 200 e 300 pendentes viram
// 400 e 600 após as confirmações dos dobros.
func (c *Core) DoubleAllBets(ctx context.Context) error {
	c.mu.Lock()
	if c.round == nil || c.round.Phase != PhaseBetting {
		c.mu.Unlock()
		return ErrPhaseClosed
	}
	var intents []BetIntent
	for _, id := range c.order {
		b, ok := c.bets[id]
		if ok && b.RoundID == c.round.RoundID && b.Status != BetRejected {
			intents = append(intents, BetIntent{Side: b.Side, StakeCents: b.StakeCents})
		}
	}
	c.mu.Unlock()

	if len(intents) == 0 {
		return ErrNoPendingBet
	}
	for _, in := range intents {
		if _, err := c.RequestBet(ctx, in.Side, in.StakeCents); err != nil {
			return err
		}
	}
	return nil
}

// rollbackLocked é o único ponto do núcleo que desfaz uma aposta otimista.
// Remove a aposta e descarta seu snapshot; como os agregados e o saldo
// exibido são derivados do ledger, o estado volta bit a bit à pré-imagem
// capturada na colocação.
func (c *Core) rollbackLocked(localID string) {
	delete(c.bets, localID)
	delete(c.snapshots, localID)
	c.removeFromOrderLocked(localID)
}

func (c *Core) removeFromOrderLocked(id string) {
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *Core) replaceInOrderLocked(oldID, newID string) {
	for i, v := range c.order {
		if v == oldID {
			c.order[i] = newID
			return
		}
	}
}

// displayedBalanceLocked deriva o saldo exibido:
// saldo autoritativo - débitos ainda não refletidos + créditos pendentes.
func (c *Core) displayedBalanceLocked() int64 {
	bal := c.confirmedBalanceCents + c.pendingCreditCents
	for _, b := range c.bets {
		if b.Status == BetPending || (b.Status == BetConfirmed && !b.reflected) {
			bal -= b.StakeCents
		}
	}
	return bal
}

// sideTotalsLocked recomputa os agregados de um lado para a rodada atual.
func (c *Core) sideTotalsLocked(side string) SideTotals {
	var t SideTotals
	if c.round == nil {
		return t
	}
	for _, b := range c.bets {
		if b.RoundID != c.round.RoundID || b.Side != side {
			continue
		}
		switch b.Status {
		case BetPending:
			t.PendingCents += b.StakeCents
		case BetConfirmed:
			t.ConfirmedCents += b.StakeCents
		}
	}
	t.TotalCents = t.PendingCents + t.ConfirmedCents
	return t
}

func (c *Core) notify(text string) {
	if c.onNotice != nil {
		c.onNotice(text)
	}
}

func (c *Core) invalidateBalance() {
	if c.onInvalidate != nil {
		c.onInvalidate()
	}
}

func classifyFailure(err error) string {
	switch {
	case err == nil:
		return "rejected"
	case errors.Is(err, ErrRequestTimedOut):
		return "timeout"
	case errors.Is(err, ErrRequestRejected):
		return "rejected"
	default:
		return "network"
	}
}
