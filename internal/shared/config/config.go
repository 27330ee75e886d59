package config

import (
	"os"
	"strconv"
	"time"
)

// Config centraliza variáveis de ambiente e parâmetros de execução dos binários.
// Inclui URLs do servidor de jogo, identidade do usuário, portas e timeouts.
type Config struct {
	Env         string // "local", "dev", "prod"
	ServiceName string // "game-client" | "game-simulator"

	// Endereços do servidor de jogo (ou do simulador em desenvolvimento)
	GameWSURL  string // feed de eventos de rodada
	GameAPIURL string // API REST de apostas e carteira

	// Identidade do cliente
	UserID string

	// Portas do serviço atual
	HTTPPort    string // porta pública (simulador)
	MetricsPort string // porta exclusiva para /metrics e /healthz

	// Parâmetros de sincronização
	BetRequestTimeout time.Duration // janela máxima de confirmação de aposta
	ReconnectWait     time.Duration // espera entre reconexões do feed

	// Parâmetros do simulador
	BettingSeconds       int   // duração da janela de apostas
	RoundGapSeconds      int   // pausa entre rodadas
	StartingBalanceCents int64 // saldo inicial de carteiras novas
	RejectPercent        int   // % de apostas rejeitadas aleatoriamente
	TimerTickSeconds     int   // intervalo entre reamostragens do countdown
	DealIntervalMillis   int   // intervalo entre cartas na fase de distribuição
	CompletedHoldSeconds int   // tempo exibindo o resultado antes da próxima rodada
}

// Load carrega variáveis de ambiente e define defaults para cada serviço.
// Resolve portas conforme o SERVICE_NAME.
func Load() Config {
	svc := getEnv("SERVICE_NAME", "")
	env := getEnv("ENV", "local")

	cfg := Config{
		Env:         env,
		ServiceName: svc,

		GameWSURL:  getEnv("GAME_WS_URL", "ws://localhost:8080/ws"),
		GameAPIURL: getEnv("GAME_API_URL", "http://localhost:8080"),

		UserID: getEnv("USER_ID", "player-local"),

		BetRequestTimeout: getEnvAsDuration("BET_REQUEST_TIMEOUT", 5*time.Second),
		ReconnectWait:     getEnvAsDuration("RECONNECT_WAIT", 3*time.Second),

		BettingSeconds:       getEnvAsInt("BETTING_SECONDS", 25),
		RoundGapSeconds:      getEnvAsInt("ROUND_GAP_SECONDS", 3),
		StartingBalanceCents: getEnvAsInt64("STARTING_BALANCE_CENTS", 100000),
		RejectPercent:        getEnvAsInt("REJECT_PERCENT", 15),
		TimerTickSeconds:     getEnvAsInt("TIMER_TICK_SECONDS", 5),
		DealIntervalMillis:   getEnvAsInt("DEAL_INTERVAL_MILLIS", 800),
		CompletedHoldSeconds: getEnvAsInt("COMPLETED_HOLD_SECONDS", 4),
	}

	// Define portas padrão para cada serviço
	switch svc {
	case "game-client":
		cfg.HTTPPort = getEnv("HTTP_PORT_CLIENT", "") // cliente não expõe HTTP público
		cfg.MetricsPort = getEnv("METRICS_PORT_CLIENT", "9091")
	case "game-simulator":
		cfg.HTTPPort = getEnv("HTTP_PORT_SIMULATOR", "8080")
		cfg.MetricsPort = getEnv("METRICS_PORT_SIMULATOR", "9090")
	default:
		cfg.HTTPPort = getEnv("HTTP_PORT", "8080")
		cfg.MetricsPort = getEnv("METRICS_PORT", "9095")
	}

	return cfg
}

// getEnv retorna o valor da variável de ambiente ou o default.
func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvAsInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
