package wallet

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
)

// Status possíveis de uma reserva de saldo.
const (
	statusPending   = "PENDING"
	statusCommitted = "COMMITTED"
	statusRefunded  = "REFUNDED"
)

type reservation struct {
	id          string
	userID      string
	amountCents int64
	status      string
}

// Memory implementa a carteira do simulador em memória, com a mesma
// semântica reserve/commit/refund de um wallet-service real: a reserva
// debita o saldo (bloqueio), commit efetiva e refund devolve.
// Idempotente por external_ref.
type Memory struct {
	mu           sync.Mutex
	startingBal  int64
	balances     map[string]int64
	reservations map[string]*reservation // por external_ref
}

func NewMemory(startingBalanceCents int64) *Memory {
	return &Memory{
		startingBal:  startingBalanceCents,
		balances:     make(map[string]int64),
		reservations: make(map[string]*reservation),
	}
}

// Balance retorna o saldo do usuário, criando a carteira com o saldo
// inicial se não existir.
func (m *Memory) Balance(userID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureLocked(userID)
}

// Deposit incrementa o saldo da carteira.
func (m *Memory) Deposit(userID string, amountCents int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLocked(userID)
	m.balances[userID] += amountCents
	return m.balances[userID]
}

// Reserve debita o saldo e cria uma reserva PENDING. Se já existe reserva
// para o mesmo external_ref, devolve a existente sem debitar de novo.
func (m *Memory) Reserve(userID string, amountCents int64, externalRef string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.reservations[externalRef]; ok {
		return r.id, nil // idempotência
	}
	bal := m.ensureLocked(userID)
	if bal < amountCents {
		return "", ErrInsufficientFunds
	}
	m.balances[userID] = bal - amountCents
	r := &reservation{
		id:          uuid.NewString(),
		userID:      userID,
		amountCents: amountCents,
		status:      statusPending,
	}
	m.reservations[externalRef] = r
	return r.id, nil
}

// Commit efetiva uma reserva PENDING. Idempotente: reservas já tratadas
// não mudam nada.
func (m *Memory) Commit(externalRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[externalRef]
	if !ok {
		return ErrNotFound
	}
	if r.status != statusPending {
		return nil
	}
	r.status = statusCommitted
	return nil
}

// Refund desfaz uma reserva PENDING, devolvendo o saldo. Idempotente.
func (m *Memory) Refund(externalRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[externalRef]
	if !ok {
		return ErrNotFound
	}
	if r.status != statusPending {
		return nil
	}
	r.status = statusRefunded
	m.balances[r.userID] += r.amountCents
	return nil
}

// Credit paga um prêmio diretamente no saldo (liquidação de rodada).
func (m *Memory) Credit(userID string, amountCents int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLocked(userID)
	m.balances[userID] += amountCents
}

func (m *Memory) ensureLocked(userID string) int64 {
	if _, ok := m.balances[userID]; !ok {
		m.balances[userID] = m.startingBal
	}
	return m.balances[userID]
}
