package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/midnightgrind/race-wager-platform/internal/wager-service/engine"
	"github.com/midnightgrind/race-wager-platform/pkg/contracts/events"
)

// SettledFeed consome wager_settled e devolve os desfechos de corrida ao
// histórico em memória do serviço, para o /v1/wagers/recent mostrar também
// liquidações e disputas, não só recusas e cancelamentos
type SettledFeed struct {
	Log     *zap.Logger
	Reader  *kafka.Reader
	History *engine.History

	OnApplied func() // métricas (counter++)
}

// Run inicia o loop de consumo dos desfechos
func (f *SettledFeed) Run(ctx context.Context) error {
	for {
		m, err := f.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.Log.Warn("kafka read failed", zap.Error(err))
			time.Sleep(500 * time.Millisecond)
			continue
		}

		var ev events.WagerSettled
		if err := json.Unmarshal(m.Value, &ev); err != nil || ev.WagerID == "" {
			f.Log.Warn("invalid wager_settled message", zap.Error(err))
			continue
		}
		f.Apply(ev)
	}
}

// Apply converte um desfecho no registro do feed rápido
func (f *SettledFeed) Apply(ev events.WagerSettled) {
	f.History.Push(engine.HistoryEntry{
		WagerID:    ev.WagerID,
		State:      engine.State(ev.Status),
		ProposerID: ev.ProposerID,
		TargetID:   ev.TargetID,
		WinnerID:   ev.WinnerID,
		ValueCR:    ev.ValueCR,
		PinkSlip:   ev.PinkSlip,
		ClosedAt:   ev.Ts,
	})
	if f.OnApplied != nil {
		f.OnApplied()
	}
}
