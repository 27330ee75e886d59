package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Razorrag/Reddy-anna-games-sub001/internal/game-client/api/dto"
	"github.com/Razorrag/Reddy-anna-games-sub001/internal/game-client/core"
)

// Client fala com a API REST do servidor de jogo (apostas e carteira).
// Falhas de transporte são traduzidas para a taxonomia do núcleo, que
// decide o rollback.
type Client struct {
	BaseURL string
	UserID  string
	HTTP    *http.Client
}

func New(base, userID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		BaseURL: base,
		UserID:  userID,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// PlaceBet envia a solicitação de aposta e devolve o resultado canônico.
//
// Mapeamento de erros: 4xx vira ErrRequestRejected (o servidor recusou,
// ex: rodada já fechada do lado dele); deadline vira ErrRequestTimedOut;
// o resto vira ErrNetworkFailure. O chamador não distingue "provavelmente
// entrou" de "com certeza recusada": qualquer falha resolve em rollback.
func (c *Client) PlaceBet(ctx context.Context, roundID, side string, stakeCents int64) (core.BetResult, error) {
	body, _ := json.Marshal(dto.PlaceBetRequest{
		UserID:     c.UserID,
		RoundID:    roundID,
		Side:       side,
		StakeCents: stakeCents,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/bets", bytes.NewReader(body))
	if err != nil {
		return core.BetResult{}, fmt.Errorf("%w: %v", core.ErrNetworkFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return core.BetResult{}, fmt.Errorf("%w: %v", core.ErrRequestTimedOut, err)
		}
		return core.BetResult{}, fmt.Errorf("%w: %v", core.ErrNetworkFailure, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode >= 500:
		return core.BetResult{}, fmt.Errorf("%w: http %d", core.ErrNetworkFailure, res.StatusCode)
	case res.StatusCode >= 400:
		return core.BetResult{}, fmt.Errorf("%w: http %d", core.ErrRequestRejected, res.StatusCode)
	}

	var out dto.PlaceBetResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return core.BetResult{}, fmt.Errorf("%w: decode response: %v", core.ErrNetworkFailure, err)
	}
	return core.BetResult{BetID: out.BetID, Status: out.Status, Reason: out.Reason}, nil
}

// Balance rebusca o saldo autoritativo do usuário. Usado pelo sinal de
// invalidação após liquidações e rollbacks.
func (c *Client) Balance(ctx context.Context) (int64, error) {
	u := c.BaseURL + "/wallet?userId=" + url.QueryEscape(c.UserID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return 0, fmt.Errorf("wallet http %d", res.StatusCode)
	}
	var out dto.WalletResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.BalanceCents, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
