package events

import (
	"encoding/json"
	"time"
)

// Tipos de evento publicados no feed de rodadas do servidor de jogo.
const (
	TypeRoundStarted   = "round_started"
	TypeTimerTick      = "timer_tick"
	TypeBettingClosed  = "betting_closed"
	TypeCardDealt      = "card_dealt"
	TypeRoundCompleted = "round_completed"
)

// Envelope é o envelope comum a todos os eventos do feed.
// RoundNumber é monotônico por mesa; o cliente descarta números menores.
type Envelope struct {
	EventID     string          `json:"event_id"`
	Type        string          `json:"type"`
	RoundID     string          `json:"round_id"`
	RoundNumber int64           `json:"round_number"`
	Ts          time.Time       `json:"ts"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// RoundStarted anuncia uma nova rodada com a carta de abertura revelada
// e a duração da janela de apostas.
type RoundStarted struct {
	OpeningCard    string `json:"opening_card"`
	BettingSeconds int    `json:"betting_seconds"`
}

// TimerTick é uma reamostragem autoritativa do tempo restante da janela
// de apostas. O cliente sobrescreve o countdown local a cada amostra.
type TimerTick struct {
	SecondsRemaining int `json:"seconds_remaining"`
}

// CardDealt informa uma carta distribuída para um dos lados.
type CardDealt struct {
	Side     string `json:"side"` // "andar" | "bahar"
	Card     string `json:"card"`
	Position int    `json:"position"` // 1-based, por lado
}

// Settlement é o resultado de uma aposta individual na rodada encerrada.
type Settlement struct {
	BetID       string `json:"bet_id"`
	UserID      string `json:"user_id"`
	Status      string `json:"status"` // "WON" | "LOST"
	PayoutCents int64  `json:"payout_cents"`
}

// RoundCompleted encerra a rodada com o lado vencedor e as liquidações.
type RoundCompleted struct {
	WinningSide string       `json:"winning_side"`
	MatchedCard string       `json:"matched_card"`
	Settlements []Settlement `json:"settlements,omitempty"`
}
