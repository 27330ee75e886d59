package core

// Phase é a fase atual da rodada conhecida pelo cliente.
// Transições acontecem exclusivamente por eventos ingeridos do feed,
// nunca por palpite local (o countdown é apenas informativo).
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseBetting   Phase = "betting"
	PhaseDealing   Phase = "dealing"
	PhaseCompleted Phase = "completed"
)

// Round é o estado da rodada ativa como conhecido pelo cliente.
// RoundNumber nunca regride: eventos com número menor são descartados.
type Round struct {
	RoundID     string
	RoundNumber int64
	Phase       Phase
	OpeningCard string
	AndarCards  []string
	BaharCards  []string
	WinningSide string // preenchido em PhaseCompleted
	MatchedCard string
}
