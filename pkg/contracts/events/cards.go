package events

// Cartas trafegam como códigos compactos: valor + naipe, ex: "7H", "10S", "KD".

// CardRank extrai o valor da carta ("10S" -> "10", "KD" -> "K").
// Retorna vazio para códigos malformados.
func CardRank(card string) string {
	if len(card) < 2 {
		return ""
	}
	return card[:len(card)-1]
}

// SameRank compara o valor de duas cartas; é o critério de encerramento
// da rodada em Andar Bahar.
func SameRank(a, b string) bool {
	ra, rb := CardRank(a), CardRank(b)
	return ra != "" && ra == rb
}
