package engine

import (
	"math/rand"

	"github.com/Razorrag/Reddy-anna-games-sub001/pkg/contracts/events"
)

var (
	ranks = []string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}
	suits = []string{"S", "H", "D", "C"}
)

// ShuffledDeck gera um baralho de 52 cartas embaralhado.
func ShuffledDeck(rng *rand.Rand) []string {
	deck := make([]string, 0, 52)
	for _, r := range ranks {
		for _, s := range suits {
			deck = append(deck, r+s)
		}
	}
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	return deck
}

// DealSequence distribui cartas alternando os lados, começando por andar,
// até sair uma carta do mesmo valor da carta de abertura. O lado que
// recebe a carta casada vence.
//
// Com um baralho de onde a abertura já saiu, restam três cartas do mesmo
// valor, então a sequência sempre termina.
func DealSequence(deck []string, openingCard string) (seq []events.CardDealt, winner, matched string) {
	side := events.SideAndar
	pos := map[string]int{events.SideAndar: 0, events.SideBahar: 0}
	for _, card := range deck {
		pos[side]++
		seq = append(seq, events.CardDealt{Side: side, Card: card, Position: pos[side]})
		if events.SameRank(card, openingCard) {
			return seq, side, card
		}
		if side == events.SideAndar {
			side = events.SideBahar
		} else {
			side = events.SideAndar
		}
	}
	return seq, "", ""
}

// payoutFor calcula o retorno total de uma aposta vencedora.
// Andar paga 1.9x e bahar 2.0x a stake, como nas mesas reais.
func payoutFor(side string, stakeCents int64) int64 {
	if side == events.SideAndar {
		return stakeCents * 19 / 10
	}
	return stakeCents * 2
}
