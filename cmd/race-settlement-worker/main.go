package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	gdto "github.com/midnightgrind/race-wager-platform/internal/garage-service/dto"
	sdto "github.com/midnightgrind/race-wager-platform/internal/settlement/dto"
	"github.com/midnightgrind/race-wager-platform/internal/settlement/handlers"
	"github.com/midnightgrind/race-wager-platform/internal/shared/config"
	"github.com/midnightgrind/race-wager-platform/internal/shared/db"
	"github.com/midnightgrind/race-wager-platform/internal/shared/garageclient"
	"github.com/midnightgrind/race-wager-platform/internal/shared/kafka"
	"github.com/midnightgrind/race-wager-platform/internal/shared/logger"
	"github.com/midnightgrind/race-wager-platform/internal/shared/metrics"
	"github.com/midnightgrind/race-wager-platform/internal/wager-service/engine"
	wrepo "github.com/midnightgrind/race-wager-platform/internal/wager-service/repo"
	ev "github.com/midnightgrind/race-wager-platform/pkg/contracts/events"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Postgres para carregar e fechar os wagers ligados às corridas
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()
	wagers := wrepo.NewPostgres(pg)

	garage := garageclient.New(cfg.GarageURL)

	// Kafka consumer: corridas encerradas pelo simulador
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  strings.Split(cfg.KafkaBrokers, ","),
		GroupID:  "race-settlement",
		Topic:    cfg.TopicRaceFinished,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	// Kafka producers: liquidações, transferências de posse e DLQ
	settledWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerSettled)
	defer settledWriter.Close()
	pinkSlipWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPinkSlip)
	defer pinkSlipWriter.Close()

	var dlqWriter *kafkago.Writer
	if cfg.TopicRaceFinishedDLQ != "" {
		dlqWriter = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRaceFinishedDLQ)
		defer dlqWriter.Close()
	}

	// Métricas Prometheus e healthcheck
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})
	log.Info("metrics/health", zap.String("addr", ":"+cfg.MetricsPort))

	log.Info("race-settlement-worker started",
		zap.String("consume", cfg.TopicRaceFinished),
		zap.String("publish", cfg.TopicWagerSettled),
	)

	ctx := context.Background()
	w := worker{
		log:       log,
		cfg:       cfg,
		wagers:    wagers,
		garage:    garage,
		settled:   kafkaSink{settledWriter},
		pinkSlips: kafkaSink{pinkSlipWriter},
	}
	if dlqWriter != nil {
		w.dlq = kafkaSink{dlqWriter}
	}

	// Loop principal: consome race_finished, decide e liquida. O offset
	// só é commitado depois da mensagem tratada: se o processo cair no
	// meio da liquidação, o Kafka reentrega a corrida no restart
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			log.Warn("kafka fetch", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if w.consumeOne(ctx, msg.Key, msg.Value) {
			if cerr := reader.CommitMessages(ctx, msg); cerr != nil {
				log.Warn("kafka commit", zap.Error(cerr))
			}
		} else {
			// Backoff simples para evitar flood em caso de erro
			time.Sleep(500 * time.Millisecond)
		}
	}
}

// wagerStore é o recorte do repo que a liquidação usa
type wagerStore interface {
	GetByRace(ctx context.Context, raceID string) (*engine.Wager, error)
	Save(ctx context.Context, w *engine.Wager) error
	InsertTransition(ctx context.Context, wagerID string, from, to engine.State, reason string) error
}

// garageAPI move as apostas no fechamento (commit, refund, transferência)
type garageAPI interface {
	Transfer(ctx context.Context, req gdto.TransferRequest) (string, error)
	CommitStake(ctx context.Context, playerID string, stake gdto.Stake, externalRef, beneficiaryID string) error
	RefundStake(ctx context.Context, playerID string, stake gdto.Stake, externalRef string) error
}

type eventSink interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

type kafkaSink struct{ w *kafkago.Writer }

func (s kafkaSink) Publish(ctx context.Context, key string, payload []byte) error {
	return kafka.WriteJSON(ctx, s.w, key, payload)
}

type worker struct {
	log       *zap.Logger
	cfg       config.Config
	wagers    wagerStore
	garage    garageAPI
	settled   eventSink
	pinkSlips eventSink
	dlq       eventSink
}

// consumeOne trata uma mensagem de race_finished e responde se o offset
// pode ser commitado. Payload inválido vai para a DLQ e é descartado;
// erro de liquidação segura o offset para reentrega
func (w *worker) consumeOne(ctx context.Context, key, value []byte) bool {
	var race ev.RaceFinished
	if jerr := json.Unmarshal(value, &race); jerr != nil {
		w.log.Error("unmarshal race_finished", zap.Error(jerr))
		if w.dlq != nil {
			_ = w.dlq.Publish(ctx, string(key), value)
		}
		return true
	}
	if err := w.processOne(ctx, &race); err != nil {
		w.log.Error("settle race", zap.String("raceId", race.RaceID), zap.Error(err))
		return false
	}
	return true
}

// processOne liquida o wager de uma corrida encerrada:
// 1. Carrega o wager pelo raceId (corrida ambiente não tem wager: ignora)
// 2. Handler da disciplina decide vencedor ou disputa
// 3. Confere o resultado com o simulador, com retry e DLQ
// 4. Fecha as apostas no garage (commit/refund, ou transferência pink slip)
// 5. Publica wager_settled e, se for o caso, pinkslip_transferred
func (w *worker) processOne(ctx context.Context, race *ev.RaceFinished) error {
	wg, err := w.wagers.GetByRace(ctx, race.RaceID)
	if err != nil {
		if errors.Is(err, wrepo.ErrNotFound) {
			return nil // corrida ambiente, sem wager
		}
		return err
	}
	if wg.State != engine.StateActive {
		// Reentrega do Kafka depois de já liquidado
		w.log.Info("wager not active, skipping", zap.String("wagerId", wg.ID), zap.String("state", string(wg.State)))
		return nil
	}

	outcome, err := w.decide(wg, race)
	if err != nil {
		return err
	}

	// Conferência com o simulador antes de mexer em stake
	if outcome.Decided && !outcome.Disputed {
		vresp, verr := w.verifyWithRetry(ctx, race.RaceID, outcome)
		if verr != nil {
			// Simulador fora do ar mesmo após retry: a corrida vai pra
			// DLQ e o offset avança; sem DLQ o offset fica preso
			if w.dlq != nil {
				if derr := w.dlq.Publish(ctx, race.RaceID, mustJSON(race)); derr == nil {
					w.log.Warn("race sent to dlq", zap.String("raceId", race.RaceID), zap.Error(verr))
					return nil
				}
			}
			return verr
		}
		if strings.ToLower(vresp.Status) != "confirmed" {
			outcome = handlers.Outcome{Decided: true, Disputed: true, Note: "simulator rejected result: " + vresp.Reason}
		} else if vresp.Witnesses > race.Witnesses {
			race.Witnesses = vresp.Witnesses
		}
	}

	now := time.Now().UTC()
	if outcome.Disputed || !outcome.Decided {
		return w.dispute(ctx, wg, race, outcome, now)
	}
	return w.complete(ctx, wg, race, outcome, now)
}

func (w *worker) decide(wg *engine.Wager, race *ev.RaceFinished) (handlers.Outcome, error) {
	raceType := wg.Conditions.RaceType
	if raceType == "" {
		raceType = race.RaceType
	}
	if wg.PinkSlip {
		h, err := handlers.ForPinkSlip(raceType)
		if err != nil {
			return handlers.Outcome{}, err
		}
		return handlers.Settle(h, *race), nil
	}
	h, err := handlers.ForRaceType(raceType)
	if err != nil {
		return handlers.Outcome{}, err
	}
	return handlers.Settle(h, *race), nil
}

// dispute trava o wager em DISPUTED; as apostas ficam presas até revisão manual
func (w *worker) dispute(ctx context.Context, wg *engine.Wager, race *ev.RaceFinished, out handlers.Outcome, now time.Time) error {
	if err := wg.Dispute(now); err != nil {
		return err
	}
	if err := w.wagers.Save(ctx, wg); err != nil {
		return err
	}
	_ = w.wagers.InsertTransition(ctx, wg.ID, engine.StateActive, engine.StateDisputed, out.Note)
	w.log.Warn("wager disputed",
		zap.String("wagerId", wg.ID),
		zap.String("raceId", race.RaceID),
		zap.String("reason", out.Note),
	)

	return w.settled.Publish(ctx, wg.ID, mustJSON(ev.WagerSettled{
		WagerID:    wg.ID,
		RaceID:     race.RaceID,
		ProposerID: wg.Proposer.PlayerID,
		TargetID:   wg.Target.PlayerID,
		Status:     string(engine.StateDisputed),
		Reason:     out.Note,
		ValueCR:    wg.Proposer.Stake.EffectiveValue(),
		PinkSlip:   wg.PinkSlip,
		Ts:         now,
	}))
}

// complete fecha o wager: o stake do perdedor vai ao vencedor, o do vencedor
// volta para ele. Pink slip troca a posse do veículo do perdedor
func (w *worker) complete(ctx context.Context, wg *engine.Wager, race *ev.RaceFinished, out handlers.Outcome, now time.Time) error {
	winner, loser := w.sides(wg, out)
	if winner == nil || loser == nil {
		return w.dispute(ctx, wg, race, handlers.Outcome{Decided: true, Disputed: true, Note: "winner is not a wager participant"}, now)
	}

	var transferID string
	if wg.PinkSlip {
		// A posse do veículo do perdedor muda em definitivo; o do vencedor destrava
		id, err := w.garage.Transfer(ctx, gdto.TransferRequest{
			WagerID:   wg.ID,
			RaceID:    race.RaceID,
			WinnerID:  winner.PlayerID,
			LoserID:   loser.PlayerID,
			VehicleID: loser.Stake.ItemID,
			TrackID:   wg.Conditions.TrackID,
			MarginMS:  out.MarginMS,
			Witnesses: race.Witnesses,
		})
		if err != nil {
			return err
		}
		transferID = id
		if err := w.garage.RefundStake(ctx, winner.PlayerID, toGarageStake(winner.Stake), wg.ID); err != nil {
			w.log.Error("release winner vehicle", zap.String("wagerId", wg.ID), zap.Error(err))
		}
	} else {
		if err := w.garage.CommitStake(ctx, loser.PlayerID, toGarageStake(loser.Stake), wg.ID, winner.PlayerID); err != nil {
			return err
		}
		if err := w.garage.RefundStake(ctx, winner.PlayerID, toGarageStake(winner.Stake), wg.ID); err != nil {
			w.log.Error("refund winner stake", zap.String("wagerId", wg.ID), zap.Error(err))
		}
	}

	if err := wg.Complete(now); err != nil {
		return err
	}
	if err := w.wagers.Save(ctx, wg); err != nil {
		return err
	}
	_ = w.wagers.InsertTransition(ctx, wg.ID, engine.StateActive, engine.StateCompleted, out.Note)
	w.log.Info("wager settled",
		zap.String("wagerId", wg.ID),
		zap.String("winnerId", winner.PlayerID),
		zap.Int64("marginMs", out.MarginMS),
		zap.Bool("pinkSlip", wg.PinkSlip),
	)

	if wg.PinkSlip {
		_ = w.pinkSlips.Publish(ctx, wg.ID, mustJSON(ev.PinkSlipTransferred{
			TransferID:    transferID,
			WagerID:       wg.ID,
			RaceID:        race.RaceID,
			WinnerID:      winner.PlayerID,
			LoserID:       loser.PlayerID,
			VehicleID:     loser.Stake.ItemID,
			VehicleValue:  loser.Stake.EffectiveValue(),
			TrackID:       wg.Conditions.TrackID,
			MarginMS:      out.MarginMS,
			Witnesses:     race.Witnesses,
			TradeLockDays: 7,
			Ts:            now,
		}))
	}

	return w.settled.Publish(ctx, wg.ID, mustJSON(ev.WagerSettled{
		WagerID:    wg.ID,
		RaceID:     race.RaceID,
		ProposerID: wg.Proposer.PlayerID,
		TargetID:   wg.Target.PlayerID,
		WinnerID:   winner.PlayerID,
		LoserID:    loser.PlayerID,
		Status:     string(engine.StateCompleted),
		Reason:     out.Note,
		MarginMS:   out.MarginMS,
		ValueCR:    wg.Proposer.Stake.EffectiveValue(),
		PinkSlip:   wg.PinkSlip,
		Ts:         now,
	}))
}

func (w *worker) sides(wg *engine.Wager, out handlers.Outcome) (winner, loser *engine.Participant) {
	switch out.WinnerID {
	case wg.Proposer.PlayerID:
		return &wg.Proposer, &wg.Target
	case wg.Target.PlayerID:
		return &wg.Target, &wg.Proposer
	}
	return nil, nil
}

// verifyWithRetry confere o resultado no simulador, até 3 tentativas
func (w *worker) verifyWithRetry(ctx context.Context, raceID string, out handlers.Outcome) (*sdto.VerifyResponse, error) {
	resp, err := w.callVerify(ctx, raceID, out)
	if err == nil {
		return resp, nil
	}
	const retries = 3
	for i := 0; i < retries; i++ {
		time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
		if resp, err = w.callVerify(ctx, raceID, out); err == nil {
			return resp, nil
		}
	}
	return nil, err
}

func (w *worker) callVerify(ctx context.Context, raceID string, out handlers.Outcome) (*sdto.VerifyResponse, error) {
	body, _ := json.Marshal(sdto.VerifyRequest{
		RaceID:   raceID,
		WinnerID: out.WinnerID,
		MarginMS: out.MarginMS,
	})
	url := strings.TrimSuffix(w.cfg.SimulatorHTTPURL, "/") + "/races/verify"

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, errors.New("simulator http " + resp.Status)
	}
	var vr sdto.VerifyResponse
	if jerr := json.NewDecoder(resp.Body).Decode(&vr); jerr != nil {
		return nil, jerr
	}
	return &vr, nil
}

func toGarageStake(s engine.Stake) gdto.Stake {
	return gdto.Stake{
		Type:       string(s.Type),
		CurrencyCR: s.CurrencyCR,
		ItemID:     s.ItemID,
		XPAmount:   s.XPAmount,
	}
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
