package events

// Lados possíveis de uma aposta em Andar Bahar.
const (
	SideAndar = "andar"
	SideBahar = "bahar"
)

// ValidSide informa se o lado é um dos dois aceitos.
func ValidSide(side string) bool {
	return side == SideAndar || side == SideBahar
}

// Status de liquidação usados em Settlement.
const (
	SettlementWon  = "WON"
	SettlementLost = "LOST"
)

// Status de confirmação de aposta devolvidos pela API do servidor.
const (
	BetStatusConfirmed = "CONFIRMED"
	BetStatusRejected  = "REJECTED"
)
