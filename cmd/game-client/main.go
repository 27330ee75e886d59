package main

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Razorrag/Reddy-anna-games-sub001/internal/game-client/api"
	"github.com/Razorrag/Reddy-anna-games-sub001/internal/game-client/core"
	"github.com/Razorrag/Reddy-anna-games-sub001/internal/game-client/history"
	clientmetrics "github.com/Razorrag/Reddy-anna-games-sub001/internal/game-client/metrics"
	"github.com/Razorrag/Reddy-anna-games-sub001/internal/game-client/transport"
	"github.com/Razorrag/Reddy-anna-games-sub001/internal/shared/config"
	"github.com/Razorrag/Reddy-anna-games-sub001/internal/shared/logger"
	"github.com/Razorrag/Reddy-anna-games-sub001/internal/shared/metrics"
	"github.com/Razorrag/Reddy-anna-games-sub001/pkg/contracts/events"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	apiClient := api.New(cfg.GameAPIURL, cfg.UserID, cfg.BetRequestTimeout)
	hist := history.New(50)
	mset := clientmetrics.New(prometheus.DefaultRegisterer)

	// Após liquidações e rollbacks o saldo local deixa de ser confiável;
	// rebusca do servidor e reancora.
	var c *core.Core
	refetchBalance := func() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			bal, err := apiClient.Balance(ctx)
			if err != nil {
				log.Warn("balance refetch failed", zap.Error(err))
				return
			}
			c.SetConfirmedBalance(bal)
		}()
	}

	c = core.New(core.Options{
		Logger:  log,
		Placer:  apiClient,
		Metrics: mset,
		History: hist,
		OnNotice: func(text string) {
			log.Info("notice", zap.String("text", text))
		},
		OnBalanceInvalidated: refetchBalance,
		RequestTimeout:       cfg.BetRequestTimeout,
	})

	// Saldo inicial
	if bal, err := apiClient.Balance(context.Background()); err == nil {
		c.SetConfirmedBalance(bal)
	} else {
		log.Warn("initial balance fetch failed", zap.Error(err))
	}

	metrics.StartMetricsServer(cfg.MetricsPort, nil)
	log.Info("metrics/health", zap.String("addr", ":"+cfg.MetricsPort))

	ctx := context.Background()

	feed := &transport.FeedClient{
		URL:           cfg.GameWSURL,
		Log:           log,
		Handler:       c,
		ReconnectWait: cfg.ReconnectWait,
	}
	go feed.Start(ctx)

	go demoBettor(ctx, log, c)

	log.Info("game client running",
		zap.String("ws", cfg.GameWSURL),
		zap.String("api", cfg.GameAPIURL),
		zap.String("user", cfg.UserID),
	)

	// Loop de apresentação: imprime o estado sincronizado a cada segundo.
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		snap := c.Snapshot()
		if snap.Round == nil {
			continue
		}
		log.Info("table state",
			zap.Int64("round", snap.Round.RoundNumber),
			zap.String("phase", string(snap.Round.Phase)),
			zap.Int("countdown", snap.CountdownSec),
			zap.Int64("balance_cents", snap.BalanceCents),
			zap.Int64("andar_cents", snap.Session.Andar.TotalCents),
			zap.Int64("bahar_cents", snap.Session.Bahar.TotalCents),
			zap.Int("bets", len(snap.Bets)),
		)
	}
}

// demoBettor aposta automaticamente a cada janela de apostas para
// exercitar o fluxo completo em desenvolvimento local.
func demoBettor(ctx context.Context, log *zap.Logger, c *core.Core) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var lastRound int64

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snap := c.Snapshot()
		if snap.Round == nil || snap.Round.Phase != core.PhaseBetting {
			continue
		}
		if snap.Round.RoundNumber == lastRound {
			continue
		}
		lastRound = snap.Round.RoundNumber

		side := events.SideAndar
		if rng.Intn(2) == 1 {
			side = events.SideBahar
		}
		stake := int64((rng.Intn(5) + 1) * 1000)

		if _, err := c.RequestBet(ctx, side, stake); err != nil {
			log.Warn("demo bet refused",
				zap.String("side", side),
				zap.Int64("stake_cents", stake),
				zap.Error(err),
			)
			continue
		}
		log.Info("demo bet placed", zap.String("side", side), zap.Int64("stake_cents", stake))

		// de vez em quando exercita dobrar ou repetir a rodada anterior
		switch rng.Intn(6) {
		case 0:
			if err := c.DoubleAllBets(ctx); err != nil && !errors.Is(err, core.ErrNoPendingBet) {
				log.Warn("demo double refused", zap.Error(err))
			}
		case 1:
			if err := c.RebetPreviousRound(ctx); err != nil && !errors.Is(err, core.ErrNothingToRebet) {
				log.Warn("demo rebet refused", zap.Error(err))
			}
		}
	}
}
