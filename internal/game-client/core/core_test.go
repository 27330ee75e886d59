package core_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Razorrag/Reddy-anna-games-sub001/internal/game-client/core"
	"github.com/Razorrag/Reddy-anna-games-sub001/pkg/contracts/events"
)

// blockingPlacer segura a requisição até o contexto expirar, de modo que
// as apostas fiquem pendentes e os testes resolvam via Resolve.
type blockingPlacer struct{}

func (blockingPlacer) PlaceBet(ctx context.Context, roundID, side string, stakeCents int64) (core.BetResult, error) {
	<-ctx.Done()
	return core.BetResult{}, ctx.Err()
}

// recMetrics acumula contadores em memória para as asserções.
type recMetrics struct {
	mu        sync.Mutex
	processed map[string]int
	dropped   map[string]int
	placed    map[string]int
	confirmed int
	rolled    map[string]int
}

func newRecMetrics() *recMetrics {
	return &recMetrics{
		processed: map[string]int{},
		dropped:   map[string]int{},
		placed:    map[string]int{},
		rolled:    map[string]int{},
	}
}

func (m *recMetrics) EventProcessed(t string) { m.mu.Lock(); m.processed[t]++; m.mu.Unlock() }
func (m *recMetrics) EventDropped(r string)   { m.mu.Lock(); m.dropped[r]++; m.mu.Unlock() }
func (m *recMetrics) BetPlaced(s string)      { m.mu.Lock(); m.placed[s]++; m.mu.Unlock() }
func (m *recMetrics) BetConfirmed()           { m.mu.Lock(); m.confirmed++; m.mu.Unlock() }
func (m *recMetrics) BetRolledBack(r string)  { m.mu.Lock(); m.rolled[r]++; m.mu.Unlock() }

func (m *recMetrics) droppedCount(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped[reason]
}

func (m *recMetrics) rolledCount(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rolled[reason]
}

type testEnv struct {
	core    *core.Core
	clock   *clockwork.FakeClock
	metrics *recMetrics

	mu          sync.Mutex
	notices     []string
	invalidated int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		clock:   clockwork.NewFakeClock(),
		metrics: newRecMetrics(),
	}
	e.core = core.New(core.Options{
		Clock:   e.clock,
		Placer:  blockingPlacer{},
		Metrics: e.metrics,
		OnNotice: func(text string) {
			e.mu.Lock()
			e.notices = append(e.notices, text)
			e.mu.Unlock()
		},
		OnBalanceInvalidated: func() {
			e.mu.Lock()
			e.invalidated++
			e.mu.Unlock()
		},
		RequestTimeout: time.Hour,
	})
	return e
}

func (e *testEnv) invalidations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.invalidated
}

func (e *testEnv) lastNotice() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.notices) == 0 {
		return ""
	}
	return e.notices[len(e.notices)-1]
}

func envelope(t *testing.T, typ, roundID string, num int64, eventID string, payload any) []byte {
	t.Helper()
	env := events.Envelope{
		EventID:     eventID,
		Type:        typ,
		RoundID:     roundID,
		RoundNumber: num,
		Ts:          time.Now(),
	}
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		env.Payload = b
	}
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return b
}

func startRound(t *testing.T, c *core.Core, roundID string, num int64) {
	t.Helper()
	c.Ingest(envelope(t, events.TypeRoundStarted, roundID, num,
		fmt.Sprintf("ev-start-%d", num),
		events.RoundStarted{OpeningCard: "7H", BettingSeconds: 25}))
	snap := c.Snapshot()
	require.NotNil(t, snap.Round)
	require.Equal(t, core.PhaseBetting, snap.Round.Phase)
}

func closeBetting(t *testing.T, c *core.Core, roundID string, num int64) {
	t.Helper()
	c.Ingest(envelope(t, events.TypeBettingClosed, roundID, num,
		fmt.Sprintf("ev-close-%d", num), nil))
	require.Equal(t, core.PhaseDealing, c.Snapshot().Round.Phase)
}

func TestRequestBetOptimisticDebitAndAnchor(t *testing.T) {
	e := newTestEnv(t)
	e.core.SetConfirmedBalance(50000)
	startRound(t, e.core, "r1", 1)

	id, err := e.core.RequestBet(context.Background(), events.SideAndar, 10000)
	require.NoError(t, err)

	snap := e.core.Snapshot()
	assert.Equal(t, int64(40000), snap.BalanceCents)
	assert.Equal(t, int64(10000), snap.Session.Andar.PendingCents)
	assert.Equal(t, int64(10000), snap.Session.TotalCents)
	require.Len(t, snap.Bets, 1)
	assert.Equal(t, core.BetPending, snap.Bets[0].Status)

	// confirmação: o débito permanece até a próxima leitura autoritativa
	e.core.Resolve(id, core.BetResult{BetID: "srv-1", Status: events.BetStatusConfirmed}, nil)
	snap = e.core.Snapshot()
	assert.Equal(t, int64(40000), snap.BalanceCents)
	assert.Equal(t, int64(10000), snap.Session.Andar.ConfirmedCents)
	assert.Equal(t, int64(0), snap.Session.Andar.PendingCents)
	require.Len(t, snap.Bets, 1)
	assert.Equal(t, "srv-1", snap.Bets[0].BetID)
	assert.Equal(t, core.BetConfirmed, snap.Bets[0].Status)
	assert.GreaterOrEqual(t, e.invalidations(), 1)

	// a leitura do servidor já inclui o débito; não pode descontar de novo
	e.core.SetConfirmedBalance(40000)
	snap = e.core.Snapshot()
	assert.Equal(t, int64(40000), snap.BalanceCents)
	assert.Equal(t, int64(10000), snap.Session.Andar.ConfirmedCents)
}

func TestRequestBetGuards(t *testing.T) {
	e := newTestEnv(t)
	e.core.SetConfirmedBalance(1000)

	_, err := e.core.RequestBet(context.Background(), "tie", 100)
	assert.ErrorIs(t, err, core.ErrUnknownSide)

	// sem rodada ativa não há janela de apostas
	_, err = e.core.RequestBet(context.Background(), events.SideAndar, 100)
	assert.ErrorIs(t, err, core.ErrPhaseClosed)

	startRound(t, e.core, "r1", 1)

	_, err = e.core.RequestBet(context.Background(), events.SideAndar, 0)
	assert.ErrorIs(t, err, core.ErrInsufficientFunds)
	_, err = e.core.RequestBet(context.Background(), events.SideAndar, 1001)
	assert.ErrorIs(t, err, core.ErrInsufficientFunds)

	closeBetting(t, e.core, "r1", 1)
	_, err = e.core.RequestBet(context.Background(), events.SideAndar, 100)
	assert.ErrorIs(t, err, core.ErrPhaseClosed)

	assert.Empty(t, e.core.Snapshot().Bets)
	assert.Equal(t, int64(1000), e.core.Snapshot().BalanceCents)
}

func TestRejectionRestoresExactSnapshot(t *testing.T) {
	e := newTestEnv(t)
	e.core.SetConfirmedBalance(50000)
	startRound(t, e.core, "r1", 1)

	before := e.core.Snapshot()

	id, err := e.core.RequestBet(context.Background(), events.SideBahar, 7000)
	require.NoError(t, err)
	e.core.Resolve(id, core.BetResult{Status: events.BetStatusRejected, Reason: "risk"}, nil)

	after := e.core.Snapshot()
	assert.Equal(t, before, after)
	assert.Equal(t, 1, e.metrics.rolledCount("rejected"))
	assert.Contains(t, e.lastNotice(), "not accepted")
	assert.GreaterOrEqual(t, e.invalidations(), 1)
}

func TestTimeoutRollsBack(t *testing.T) {
	e := newTestEnv(t)
	e.core.SetConfirmedBalance(20000)
	startRound(t, e.core, "r1", 1)

	id, err := e.core.RequestBet(context.Background(), events.SideAndar, 5000)
	require.NoError(t, err)
	e.core.Resolve(id, core.BetResult{}, fmt.Errorf("%w: no response", core.ErrRequestTimedOut))

	snap := e.core.Snapshot()
	assert.Equal(t, int64(20000), snap.BalanceCents)
	assert.Empty(t, snap.Bets)
	assert.Equal(t, 1, e.metrics.rolledCount("timeout"))
}

func TestNetworkFailureRollsBack(t *testing.T) {
	e := newTestEnv(t)
	e.core.SetConfirmedBalance(20000)
	startRound(t, e.core, "r1", 1)

	id, err := e.core.RequestBet(context.Background(), events.SideAndar, 5000)
	require.NoError(t, err)
	e.core.Resolve(id, core.BetResult{}, fmt.Errorf("%w: conn reset", core.ErrNetworkFailure))

	assert.Equal(t, int64(20000), e.core.Snapshot().BalanceCents)
	assert.Equal(t, 1, e.metrics.rolledCount("network"))
}

func TestResolveIsIdempotent(t *testing.T) {
	e := newTestEnv(t)
	e.core.SetConfirmedBalance(10000)
	startRound(t, e.core, "r1", 1)

	id, err := e.core.RequestBet(context.Background(), events.SideAndar, 2000)
	require.NoError(t, err)

	e.core.Resolve(id, core.BetResult{BetID: "srv-9", Status: events.BetStatusConfirmed}, nil)
	snap := e.core.Snapshot()

	// respostas duplicadas ou tardias não mudam nada
	e.core.Resolve(id, core.BetResult{Status: events.BetStatusRejected}, nil)
	e.core.Resolve(id, core.BetResult{BetID: "srv-9", Status: events.BetStatusConfirmed}, nil)
	assert.Equal(t, snap, e.core.Snapshot())
	assert.Equal(t, 0, e.metrics.rolledCount("rejected"))
}

func TestUndoLastBet(t *testing.T) {
	e := newTestEnv(t)
	e.core.SetConfirmedBalance(10000)

	assert.ErrorIs(t, e.core.UndoLastBet(), core.ErrPhaseClosed)

	startRound(t, e.core, "r1", 1)
	assert.ErrorIs(t, e.core.UndoLastBet(), core.ErrNoPendingBet)

	_, err := e.core.RequestBet(context.Background(), events.SideAndar, 1000)
	require.NoError(t, err)
	undone, err := e.core.RequestBet(context.Background(), events.SideBahar, 2000)
	require.NoError(t, err)

	require.NoError(t, e.core.UndoLastBet())
	snap := e.core.Snapshot()
	require.Len(t, snap.Bets, 1)
	assert.Equal(t, events.SideAndar, snap.Bets[0].Side)
	assert.Equal(t, int64(9000), snap.BalanceCents)
	assert.Equal(t, 1, e.metrics.rolledCount("undo"))

	// confirmação tardia da aposta desfeita é ignorada
	e.core.Resolve(undone, core.BetResult{BetID: "srv-9", Status: events.BetStatusConfirmed}, nil)
	snap = e.core.Snapshot()
	require.Len(t, snap.Bets, 1)
	assert.Equal(t, int64(9000), snap.BalanceCents)
}

func TestClearAllBetsKeepsConfirmed(t *testing.T) {
	e := newTestEnv(t)
	e.core.SetConfirmedBalance(10000)
	startRound(t, e.core, "r1", 1)

	id1, err := e.core.RequestBet(context.Background(), events.SideAndar, 1000)
	require.NoError(t, err)
	_, err = e.core.RequestBet(context.Background(), events.SideBahar, 2000)
	require.NoError(t, err)
	_, err = e.core.RequestBet(context.Background(), events.SideBahar, 500)
	require.NoError(t, err)

	e.core.Resolve(id1, core.BetResult{BetID: "srv-1", Status: events.BetStatusConfirmed}, nil)

	require.NoError(t, e.core.ClearAllBets())
	snap := e.core.Snapshot()
	require.Len(t, snap.Bets, 1)
	assert.Equal(t, core.BetConfirmed, snap.Bets[0].Status)
	assert.Equal(t, int64(9000), snap.BalanceCents)
	assert.Equal(t, 2, e.metrics.rolledCount("clear"))
}

func TestDoubleAllBets(t *testing.T) {
	e := newTestEnv(t)
	e.core.SetConfirmedBalance(10000)
	startRound(t, e.core, "r1", 1)

	assert.ErrorIs(t, e.core.DoubleAllBets(context.Background()), core.ErrNoPendingBet)

	_, err := e.core.RequestBet(context.Background(), events.SideAndar, 200)
	require.NoError(t, err)
	_, err = e.core.RequestBet(context.Background(), events.SideBahar, 300)
	require.NoError(t, err)

	require.NoError(t, e.core.DoubleAllBets(context.Background()))
	snap := e.core.Snapshot()
	assert.Len(t, snap.Bets, 4)
	assert.Equal(t, int64(400), snap.Session.Andar.TotalCents)
	assert.Equal(t, int64(600), snap.Session.Bahar.TotalCents)
	assert.Equal(t, int64(9000), snap.BalanceCents)
}

func TestRebetPreviousRound(t *testing.T) {
	e := newTestEnv(t)
	e.core.SetConfirmedBalance(10000)
	startRound(t, e.core, "r1", 1)

	assert.ErrorIs(t, e.core.RebetPreviousRound(context.Background()), core.ErrNothingToRebet)

	id, err := e.core.RequestBet(context.Background(), events.SideAndar, 1500)
	require.NoError(t, err)
	e.core.Resolve(id, core.BetResult{BetID: "srv-1", Status: events.BetStatusConfirmed}, nil)

	startRound(t, e.core, "r2", 2)
	require.NoError(t, e.core.RebetPreviousRound(context.Background()))

	snap := e.core.Snapshot()
	require.Len(t, snap.Bets, 1)
	assert.Equal(t, events.SideAndar, snap.Bets[0].Side)
	assert.Equal(t, int64(1500), snap.Bets[0].StakeCents)
}

func TestBettingClosedDoesNotRollBackPending(t *testing.T) {
	e := newTestEnv(t)
	e.core.SetConfirmedBalance(10000)
	startRound(t, e.core, "r1", 1)

	id, err := e.core.RequestBet(context.Background(), events.SideAndar, 3000)
	require.NoError(t, err)
	closeBetting(t, e.core, "r1", 1)

	// a aposta segue pendente, aguardando a própria resposta
	snap := e.core.Snapshot()
	require.Len(t, snap.Bets, 1)
	assert.Equal(t, core.BetPending, snap.Bets[0].Status)
	assert.Equal(t, int64(7000), snap.BalanceCents)

	// e a resposta ainda pode confirmá-la normalmente
	e.core.Resolve(id, core.BetResult{BetID: "srv-1", Status: events.BetStatusConfirmed}, nil)
	assert.Equal(t, core.BetConfirmed, e.core.Snapshot().Bets[0].Status)
}

func TestRoundCompletedCreditsSettlements(t *testing.T) {
	e := newTestEnv(t)
	e.core.SetConfirmedBalance(10000)
	startRound(t, e.core, "r1", 1)

	id, err := e.core.RequestBet(context.Background(), events.SideAndar, 5000)
	require.NoError(t, err)
	e.core.Resolve(id, core.BetResult{BetID: "srv-1", Status: events.BetStatusConfirmed}, nil)
	closeBetting(t, e.core, "r1", 1)

	e.core.Ingest(envelope(t, events.TypeRoundCompleted, "r1", 1, "ev-done-1", events.RoundCompleted{
		WinningSide: events.SideAndar,
		MatchedCard: "7S",
		Settlements: []events.Settlement{
			{BetID: "srv-1", Status: events.SettlementWon, PayoutCents: 9500},
			{BetID: "someone-else", Status: events.SettlementWon, PayoutCents: 400},
		},
	}))

	snap := e.core.Snapshot()
	assert.Equal(t, core.PhaseCompleted, snap.Round.Phase)
	assert.Equal(t, events.SideAndar, snap.Round.WinningSide)
	// 10000 - 5000 (débito não refletido) + 9500 (crédito pendente)
	assert.Equal(t, int64(14500), snap.BalanceCents)
	assert.Contains(t, e.lastNotice(), "andar won")

	// a leitura autoritativa seguinte já traz débito e crédito aplicados
	e.core.SetConfirmedBalance(14500)
	assert.Equal(t, int64(14500), e.core.Snapshot().BalanceCents)
}

func TestPendingBetSurvivesRoundHandoff(t *testing.T) {
	e := newTestEnv(t)
	e.core.SetConfirmedBalance(10000)
	startRound(t, e.core, "r1", 1)

	id, err := e.core.RequestBet(context.Background(), events.SideBahar, 4000)
	require.NoError(t, err)

	startRound(t, e.core, "r2", 2)

	// a sessão nova zera, mas o débito da pendente continua valendo
	snap := e.core.Snapshot()
	assert.Empty(t, snap.Bets)
	assert.Equal(t, int64(0), snap.Session.TotalCents)
	assert.Equal(t, int64(6000), snap.BalanceCents)

	// a resposta chega atrasada: confirmada, desvinculada da rodada ativa
	e.core.Resolve(id, core.BetResult{BetID: "srv-old", Status: events.BetStatusConfirmed}, nil)
	snap = e.core.Snapshot()
	assert.Empty(t, snap.Bets)
	assert.Equal(t, int64(6000), snap.BalanceCents)

	// a próxima âncora de saldo descarta a confirmada de rodada passada
	e.core.SetConfirmedBalance(6000)
	assert.Equal(t, int64(6000), e.core.Snapshot().BalanceCents)
}

func TestRoundHandoffDeliversHistory(t *testing.T) {
	var (
		mu   sync.Mutex
		recs []core.RoundRecord
	)
	c := core.New(core.Options{
		Clock:  clockwork.NewFakeClock(),
		Placer: blockingPlacer{},
		History: historyFunc(func(rec core.RoundRecord) {
			mu.Lock()
			recs = append(recs, rec)
			mu.Unlock()
		}),
		RequestTimeout: time.Hour,
	})
	c.SetConfirmedBalance(10000)
	startRound(t, c, "r1", 1)

	id, err := c.RequestBet(context.Background(), events.SideAndar, 1000)
	require.NoError(t, err)
	c.Resolve(id, core.BetResult{BetID: "srv-1", Status: events.BetStatusConfirmed}, nil)

	closeBetting(t, c, "r1", 1)
	c.Ingest(envelope(t, events.TypeRoundCompleted, "r1", 1, "ev-done-1", events.RoundCompleted{
		WinningSide: events.SideBahar,
	}))
	startRound(t, c, "r2", 2)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, recs, 1)
	assert.Equal(t, "r1", recs[0].Round.RoundID)
	assert.Equal(t, core.PhaseCompleted, recs[0].Round.Phase)
	require.Len(t, recs[0].Bets, 1)
	assert.Equal(t, int64(1000), recs[0].Bets[0].StakeCents)
}

type historyFunc func(core.RoundRecord)

func (f historyFunc) RoundFinished(rec core.RoundRecord) { f(rec) }

func TestSnapshotIsACopy(t *testing.T) {
	e := newTestEnv(t)
	e.core.SetConfirmedBalance(10000)
	startRound(t, e.core, "r1", 1)
	closeBetting(t, e.core, "r1", 1)

	e.core.Ingest(envelope(t, events.TypeCardDealt, "r1", 1, "ev-card-1",
		events.CardDealt{Side: events.SideAndar, Card: "KD", Position: 1}))

	snap := e.core.Snapshot()
	require.Len(t, snap.Round.AndarCards, 1)
	snap.Round.AndarCards[0] = "mutated"
	snap.Round.Phase = core.PhaseIdle

	again := e.core.Snapshot()
	assert.Equal(t, "KD", again.Round.AndarCards[0])
	assert.Equal(t, core.PhaseDealing, again.Round.Phase)
}
