package dto

type PlaceBetRequest struct {
	UserID     string `json:"userId"`
	RoundID    string `json:"roundId"`
	Side       string `json:"side"`
	StakeCents int64  `json:"stake_cents"`
}

type PlaceBetResponse struct {
	BetID  string `json:"betId"`
	Status string `json:"status"` // CONFIRMED | REJECTED
	Reason string `json:"reason,omitempty"`
}

type WalletResponse struct {
	UserID       string `json:"userId"`
	BalanceCents int64  `json:"balance_cents"`
}

type DepositRequest struct {
	UserID      string `json:"userId"`
	AmountCents int64  `json:"amount_cents"`
}
