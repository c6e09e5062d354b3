package publisher

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaPublisher envia telemetria e resultados de corrida para seus tópicos.
type KafkaPublisher struct {
	telemetry *kafka.Writer
	finished  *kafka.Writer
	log       *zap.Logger
}

// NewKafkaPublisher monta os writers dos dois tópicos de corrida.
// Em ambiente local/dev os tópicos são criados via controller do cluster
func NewKafkaPublisher(brokers []string, telemetryTopic, finishedTopic string, log *zap.Logger) *KafkaPublisher {
	if len(brokers) == 0 {
		log.Fatal("kafka brokers not provided")
	}

	if env := os.Getenv("APP_ENV"); env == "local" || env == "dev" {
		ensureTopics(brokers, []string{telemetryTopic, finishedTopic}, log)
	}

	return &KafkaPublisher{
		telemetry: newWriter(brokers, telemetryTopic),
		finished:  newWriter(brokers, finishedTopic),
		log:       log,
	}
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
	}
}

func ensureTopics(brokers []string, topics []string, log *zap.Logger) {
	ctrlCtx, ctrlCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ctrlCancel()

	conn, err := kafka.DialContext(ctrlCtx, "tcp", brokers[0])
	if err != nil {
		log.Fatal("failed to connect to kafka", zap.Error(err))
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		log.Fatal("failed to get kafka controller", zap.Error(err))
	}

	controllerAddr := fmt.Sprintf("%s:%d", controller.Host, controller.Port)
	cconn, err := kafka.DialContext(ctrlCtx, "tcp", controllerAddr)
	if err != nil {
		log.Fatal("failed to dial controller", zap.Error(err))
	}
	defer cconn.Close()

	for _, topic := range topics {
		cfg := kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
		if err := cconn.CreateTopics(cfg); err != nil && !strings.Contains(err.Error(), "already exists") {
			log.Warn("failed to create kafka topic", zap.String("topic", topic), zap.Error(err))
		} else if err == nil {
			log.Info("kafka topic created", zap.String("topic", topic))
		}
	}
}

// PublishTelemetry envia um tick de posição; a chave é o raceId
// para manter a ordem dos ticks de cada corrida na mesma partição
func (p *KafkaPublisher) PublishTelemetry(ctx context.Context, raceID string, payload []byte) error {
	return p.publish(ctx, p.telemetry, raceID, payload)
}

// PublishFinished envia o resultado final de uma corrida
func (p *KafkaPublisher) PublishFinished(ctx context.Context, raceID string, payload []byte) error {
	return p.publish(ctx, p.finished, raceID, payload)
}

func (p *KafkaPublisher) publish(ctx context.Context, w *kafka.Writer, key string, payload []byte) error {
	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now(),
	}
	if err := w.WriteMessages(ctx, msg); err != nil {
		p.log.Error("failed to publish race message", zap.String("topic", w.Topic), zap.Error(err))
		return err
	}
	p.log.Debug("published race message", zap.String("topic", w.Topic), zap.String("race_id", key))
	return nil
}

// Close finaliza os writers e libera recursos associados.
func (p *KafkaPublisher) Close() error {
	terr := p.telemetry.Close()
	ferr := p.finished.Close()
	if terr != nil {
		return terr
	}
	return ferr
}
