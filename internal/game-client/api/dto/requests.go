package dto

type PlaceBetRequest struct {
	UserID     string `json:"userId"`
	RoundID    string `json:"roundId"`
	Side       string `json:"side"` // "andar" | "bahar"
	StakeCents int64  `json:"stake_cents"`
}
