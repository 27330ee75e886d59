package dto

type PlaceBetResponse struct {
	BetID   string `json:"betId"`
	Status  string `json:"status"` // CONFIRMED | REJECTED
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

type WalletResponse struct {
	UserID       string `json:"userId"`
	BalanceCents int64  `json:"balance_cents"`
}
