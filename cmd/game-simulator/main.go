package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Razorrag/Reddy-anna-games-sub001/internal/game-simulator/dto"
	"github.com/Razorrag/Reddy-anna-games-sub001/internal/game-simulator/engine"
	"github.com/Razorrag/Reddy-anna-games-sub001/internal/game-simulator/wallet"
	"github.com/Razorrag/Reddy-anna-games-sub001/internal/shared/config"
	"github.com/Razorrag/Reddy-anna-games-sub001/internal/shared/logger"
	"github.com/Razorrag/Reddy-anna-games-sub001/internal/shared/metrics"
)

var (
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	// Métricas Prometheus para monitoramento de conexões e mensagens
	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "game_simulator_ws_connections",
		Help: "Clientes WebSocket conectados ao feed",
	})
	wsMessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "game_simulator_ws_messages_sent_total",
		Help: "Total de eventos enviados pelo feed",
	})
	betsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "game_simulator_bets_received_total",
		Help: "Apostas recebidas pela API, por resultado",
	}, []string{"result"})
)

// clientConn representa uma conexão de cliente do feed.
type clientConn struct {
	id   string
	conn *websocket.Conn
}

// hub gerencia os clientes conectados ao feed e faz broadcast dos
// eventos de rodada para todos eles.
type hub struct {
	mu      sync.RWMutex
	clients map[string]*clientConn
	log     *zap.Logger
}

func newHub(log *zap.Logger) *hub {
	return &hub{
		clients: make(map[string]*clientConn),
		log:     log,
	}
}

func (h *hub) add(c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	wsConnections.Inc()
	h.log.Info("ws client connected", zap.String("client_id", c.id))
}

func (h *hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		wsConnections.Dec()
		h.log.Info("ws client disconnected", zap.String("client_id", id))
	}
}

// Broadcast envia um evento para todos os clientes conectados.
// Implementa engine.Broadcaster.
func (h *hub) Broadcast(v any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	msg, _ := json.Marshal(v)
	for id, c := range h.clients {
		_ = c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Warn("ws write failed", zap.String("client_id", id), zap.Error(err))
			_ = c.conn.Close()
		} else {
			wsMessagesSent.Inc()
		}
	}
}

// server agrupa as dependências dos handlers HTTP.
type server struct {
	log    *zap.Logger
	eng    *engine.Engine
	wallet *wallet.Memory
}

// placeBet trata POST /bets: valida, debita a carteira e responde com o
// resultado canônico da aposta.
func (s *server) placeBet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	out, err := s.eng.PlaceBet(req.UserID, req.RoundID, req.Side, req.StakeCents)
	switch {
	case errors.Is(err, engine.ErrInvalidBet):
		betsReceived.WithLabelValues("invalid").Inc()
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	case errors.Is(err, engine.ErrBettingClosed):
		betsReceived.WithLabelValues("closed").Inc()
		http.Error(w, "betting window closed", http.StatusConflict)
		return
	case errors.Is(err, wallet.ErrInsufficientFunds):
		betsReceived.WithLabelValues("no_funds").Inc()
		http.Error(w, "insufficient funds", http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if out.Status == "REJECTED" {
		betsReceived.WithLabelValues("rejected").Inc()
	} else {
		betsReceived.WithLabelValues("confirmed").Inc()
	}
	writeJSON(w, dto.PlaceBetResponse{BetID: out.BetID, Status: out.Status, Reason: out.Reason})
}

// getWallet trata GET /wallet?userId=...
func (s *server) getWallet(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}
	writeJSON(w, dto.WalletResponse{UserID: userID, BalanceCents: s.wallet.Balance(userID)})
}

// deposit trata POST /wallet/deposit (conveniência de desenvolvimento).
func (s *server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.AmountCents <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	bal := s.wallet.Deposit(req.UserID, req.AmountCents)
	writeJSON(w, dto.WalletResponse{UserID: req.UserID, BalanceCents: bal})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(wsConnections, wsMessagesSent, betsReceived)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	h := newHub(log)
	w := wallet.NewMemory(cfg.StartingBalanceCents)
	eng := engine.New(log, clockwork.NewRealClock(), engine.Config{
		BettingSeconds:   cfg.BettingSeconds,
		RoundGapSeconds:  cfg.RoundGapSeconds,
		TimerTickSeconds: cfg.TimerTickSeconds,
		DealInterval:     time.Duration(cfg.DealIntervalMillis) * time.Millisecond,
		CompletedHold:    time.Duration(cfg.CompletedHoldSeconds) * time.Second,
		RejectPercent:    cfg.RejectPercent,
	}, h, w, rng)

	go eng.Run(context.Background())

	s := &server{log: log, eng: eng, wallet: w}

	appMux := http.NewServeMux()
	appMux.HandleFunc("/ws", func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			log.Warn("ws upgrade failed", zap.Error(err))
			return
		}
		id := fmt.Sprintf("%d", time.Now().UnixNano())
		c := &clientConn{id: id, conn: conn}
		h.add(c)

		// mantém a conexão viva e remove o cliente ao desconectar
		go func() {
			defer func() {
				h.remove(id)
				_ = conn.Close()
			}()
			for {
				// lê e descarta mensagens do cliente
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})
	appMux.HandleFunc("/bets", s.placeBet)
	appMux.HandleFunc("/wallet", s.getWallet)
	appMux.HandleFunc("/wallet/deposit", s.deposit)

	metrics.StartMetricsServer(cfg.MetricsPort, nil)
	log.Info("metrics/health", zap.String("addr", ":"+cfg.MetricsPort))

	publicAddr := ":" + cfg.HTTPPort
	log.Info("game simulator running",
		zap.String("addr", publicAddr),
		zap.String("paths", "/ws,/bets,/wallet"),
	)
	if err := http.ListenAndServe(publicAddr, appMux); err != nil {
		log.Fatal("public server error", zap.Error(err))
	}
}
