package transport

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler recebe os frames crus do feed, na ordem de entrega.
// A validação, o filtro de obsolescência e a deduplicação são
// responsabilidade de quem ingere (internal/game-client/core).
type Handler interface {
	Ingest(raw []byte)
}

// FeedClient consome o feed de eventos de rodada do servidor de jogo
// via WebSocket. Em caso de desconexão, reconecta automaticamente.
type FeedClient struct {
	URL           string
	Log           *zap.Logger
	Handler       Handler
	ReconnectWait time.Duration
}

// Start inicia o loop de conexão e escuta. Retorna quando o contexto
// é cancelado.
func (c *FeedClient) Start(ctx context.Context) {
	wait := c.ReconnectWait
	if wait <= 0 {
		wait = 3 * time.Second
	}
	for {
		select {
		case <-ctx.Done():
			c.Log.Info("context canceled, stopping feed client")
			return
		default:
			if err := c.connectAndListen(ctx); err != nil {
				c.Log.Warn("feed connection closed", zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait): // aguarda antes de tentar reconectar
				}
			}
		}
	}
}

// connectAndListen estabelece a conexão e entrega cada mensagem recebida
// ao Handler, sem nenhum rebuffer ou reordenação.
func (c *FeedClient) connectAndListen(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	c.Log.Info("connected to game feed", zap.String("url", c.URL))

	go func() {
		// derruba a leitura bloqueante quando o contexto morre
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		c.Handler.Ingest(message)
	}
}
