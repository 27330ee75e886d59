package core

import "errors"

// Taxonomia de erros do núcleo de sincronização.
//
// ErrPhaseClosed e ErrInsufficientFunds são recusas síncronas: a aposta
// nunca entra no ledger. Os demais chegam da reconciliação assíncrona e
// provocam rollback integral do snapshot da aposta.
var (
	ErrPhaseClosed       = errors.New("betting phase closed")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownSide       = errors.New("unknown bet side")

	ErrRequestRejected = errors.New("bet rejected by server")
	ErrRequestTimedOut = errors.New("bet confirmation timed out")
	ErrNetworkFailure  = errors.New("network failure")

	ErrNoPendingBet   = errors.New("no pending bet to undo")
	ErrNothingToRebet = errors.New("no previous round bets to replay")
)
