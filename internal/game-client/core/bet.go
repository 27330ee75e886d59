package core

import "time"

// BetStatus é o estado de confirmação de uma aposta otimista.
type BetStatus string

const (
	BetPending   BetStatus = "pending"
	BetConfirmed BetStatus = "confirmed"
	BetRejected  BetStatus = "rejected"
)

// Bet é uma aposta individual no ledger otimista.
//
// BetID nasce local (uuid) e é substituído pelo id canônico do servidor
// na confirmação. Uma aposta confirmada ou rejeitada é imutável; apenas
// apostas pendentes podem sofrer rollback.
type Bet struct {
	BetID      string
	RoundID    string
	Side       string
	StakeCents int64
	Status     BetStatus
	CreatedAt  time.Time

	// reflected indica que o débito desta aposta já apareceu na última
	// leitura autoritativa de saldo e não deve mais ser descontado
	// localmente.
	reflected bool
}

// BetIntent é o par (lado, valor) usado para repetir apostas da rodada
// anterior (rebet) e para dobrar as apostas atuais.
type BetIntent struct {
	Side       string
	StakeCents int64
}

// SideTotals agrega os valores apostados num lado da mesa.
// Os três campos são sempre recomputados a partir do ledger, nunca
// mantidos à mão, para não haver deriva entre eles.
type SideTotals struct {
	PendingCents   int64
	ConfirmedCents int64
	TotalCents     int64
}

// rollbackSnapshot guarda os insumos pré-mutação de uma aposta otimista,
// chaveado pelo id local. O rollback restaura exatamente esta pré-imagem:
// como os agregados da sessão são derivados do ledger, remover a aposta
// equivale a restaurar o snapshot por inteiro.
type rollbackSnapshot struct {
	betID              string
	side               string
	stakeCents         int64
	displayedBefore    int64
	pendingSideBefore  int64
	capturedAt         time.Time
}
