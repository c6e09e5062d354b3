package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/midnightgrind/race-wager-platform/internal/race-ingest/publisher"
)

// WSClient consome o feed WebSocket do simulador de corridas e publica
// cada mensagem no tópico Kafka correspondente.
type WSClient struct {
	URL       string                    // URL do endpoint WebSocket do simulador
	Log       *zap.Logger               // Logger estruturado
	Publisher *publisher.KafkaPublisher // Publisher Kafka de telemetria e resultados
}

// probe extrai só o necessário para rotear a mensagem: resultado final
// carrega reported_winner/stages, tick de telemetria carrega standings
type probe struct {
	RaceID         string          `json:"race_id"`
	ReportedWinner string          `json:"reported_winner"`
	Stages         json.RawMessage `json:"stages"`
	Standings      json.RawMessage `json:"standings"`
}

// Start inicia o loop de conexão e escuta do WebSocket.
// Em caso de desconexão, tenta reconectar automaticamente com backoff.
func (c *WSClient) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.Log.Info("context canceled, stopping WS client")
			return
		default:
			if err := c.connectAndListen(ctx); err != nil {
				c.Log.Warn("connection closed", zap.Error(err))
				time.Sleep(3 * time.Second) // Aguarda antes de tentar reconectar
			}
		}
	}
}

// connectAndListen estabelece a conexão WebSocket e roteia as mensagens
// recebidas para o tópico de telemetria ou o de corridas encerradas.
func (c *WSClient) connectAndListen(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	c.Log.Info("connected to simulator WS", zap.String("url", c.URL))

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, context.Canceled) {
				return nil
			}
			c.Log.Error("read message failed", zap.Error(err))
			return err
		}

		var p probe
		if err := json.Unmarshal(message, &p); err != nil || p.RaceID == "" {
			c.Log.Warn("invalid message", zap.Error(err))
			continue
		}

		if len(p.Stages) > 0 {
			if err := c.Publisher.PublishFinished(ctx, p.RaceID, message); err != nil {
				c.Log.Error("failed to publish race_finished", zap.Error(err))
			}
			continue
		}
		if err := c.Publisher.PublishTelemetry(ctx, p.RaceID, message); err != nil {
			c.Log.Error("failed to publish race_telemetry", zap.Error(err))
		}
	}
}
