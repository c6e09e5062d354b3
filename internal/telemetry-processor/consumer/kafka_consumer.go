package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/midnightgrind/race-wager-platform/internal/telemetry-processor/cache"
	"github.com/midnightgrind/race-wager-platform/internal/telemetry-processor/repository"
	"github.com/midnightgrind/race-wager-platform/pkg/contracts/events"
)

// Processor consome ticks de telemetria do Kafka, faz cache e persiste no banco
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Processor struct {
	Log    *zap.Logger
	Reader *kafka.Reader
	Repo   *repository.PostgresRepo
	Cache  *cache.RedisCache

	OnConsumed func()       // métricas (counter++)
	OnCached   func()       // métricas
	OnPersist  func()       // métricas
	OnError    func(string) // métricas por fase

	OnAfterPersist func(events.RaceTelemetry) // broadcast para o feed ao vivo
}

// Run inicia o loop principal de consumo e processamento dos ticks
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			if p.OnError != nil {
				p.OnError("read")
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		var ev events.RaceTelemetry
		if err := json.Unmarshal(m.Value, &ev); err != nil || ev.RaceID == "" {
			p.Log.Warn("invalid message", zap.Error(err))
			if p.OnError != nil {
				p.OnError("decode")
			}
			continue
		}

		// Atualiza o cache Redis com a classificação corrente
		if err := p.Cache.SetCurrent(ctx, ev); err != nil {
			p.Log.Warn("redis set failed", zap.Error(err))
			if p.OnError != nil {
				p.OnError("cache")
			}
			// não bloqueia persistência se falhar o cache
		} else if p.OnCached != nil {
			p.OnCached()
		}

		// Persiste classificação corrente e histórico no Postgres
		if err := p.Repo.UpsertCurrent(ctx, ev); err != nil {
			p.Log.Warn("db upsert failed", zap.Error(err))
			if p.OnError != nil {
				p.OnError("db_upsert")
			}
			continue
		}
		if err := p.Repo.InsertHistory(ctx, ev); err != nil {
			p.Log.Warn("db insert history failed", zap.Error(err))
			if p.OnError != nil {
				p.OnError("db_history")
			}
			continue
		}
		if p.OnPersist != nil {
			p.OnPersist()
		}

		if p.OnAfterPersist != nil {
			p.OnAfterPersist(ev)
		}
	}
}
