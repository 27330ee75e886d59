package core

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Countdown deriva a contagem regressiva exibida a partir da última
// amostra autoritativa do servidor.
//
// Cada amostra nova sobrescreve os dois campos de uma vez (sem média ou
// suavização), então a deriva do relógio local nunca se acumula entre
// amostras. O valor exibido é sempre informativo: chegar a zero não
// fecha a janela de apostas — só o evento betting_closed fecha.
type Countdown struct {
	clock     clockwork.Clock
	remaining int
	sampledAt time.Time
	active    bool
}

func NewCountdown(clock clockwork.Clock) *Countdown {
	return &Countdown{clock: clock}
}

// Resync sobrescreve a amostra autoritativa e o instante local em que
// ela foi recebida.
func (c *Countdown) Resync(seconds int) {
	c.remaining = seconds
	c.sampledAt = c.clock.Now()
	c.active = true
}

// Stop desativa o countdown (fora da janela de apostas).
func (c *Countdown) Stop() {
	c.remaining = 0
	c.active = false
}

// Remaining recalcula os segundos restantes a partir da amostra,
// com piso em zero.
func (c *Countdown) Remaining() int {
	if !c.active {
		return 0
	}
	elapsed := int(c.clock.Since(c.sampledAt).Seconds())
	left := c.remaining - elapsed
	if left < 0 {
		return 0
	}
	return left
}
