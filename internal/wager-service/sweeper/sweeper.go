package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	gdto "github.com/midnightgrind/race-wager-platform/internal/garage-service/dto"
	"github.com/midnightgrind/race-wager-platform/internal/wager-service/engine"
)

// Interval é a cadência da varredura de propostas vencidas
const Interval = 60 * time.Second

const batchSize = 100

type Repo interface {
	ListStaleProposals(ctx context.Context, now time.Time, limit int) ([]*engine.Wager, error)
	Save(ctx context.Context, w *engine.Wager) error
	InsertTransition(ctx context.Context, wagerID string, from, to engine.State, reason string) error
}

type Garage interface {
	RefundStake(ctx context.Context, playerID string, stake gdto.Stake, externalRef string) error
}

// Sweeper expira propostas paradas e devolve o stake do proponente.
type Sweeper struct {
	log     *zap.Logger
	repo    Repo
	garage  Garage
	history *engine.History
}

func New(log *zap.Logger, repo Repo, garage Garage, history *engine.History) *Sweeper {
	return &Sweeper{log: log, repo: repo, garage: garage, history: history}
}

// Run varre a cada Interval até o contexto encerrar
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	now := time.Now().UTC()
	stale, err := s.repo.ListStaleProposals(ctx, now, batchSize)
	if err != nil {
		s.log.Error("list stale proposals", zap.Error(err))
		return
	}

	for _, w := range stale {
		if err := w.Expire(now); err != nil {
			// Outra instância pode ter fechado no meio da varredura
			s.log.Warn("expire wager", zap.String("wagerId", w.ID), zap.Error(err))
			continue
		}

		if err := s.garage.RefundStake(ctx, w.Proposer.PlayerID, gdto.Stake{
			Type:       string(w.Proposer.Stake.Type),
			CurrencyCR: w.Proposer.Stake.CurrencyCR,
			ItemID:     w.Proposer.Stake.ItemID,
			XPAmount:   w.Proposer.Stake.XPAmount,
		}, w.ID); err != nil {
			// Não salva EXPIRED com stake preso; a próxima varredura tenta de novo
			s.log.Error("refund expired stake", zap.String("wagerId", w.ID), zap.Error(err))
			continue
		}

		if err := s.repo.Save(ctx, w); err != nil {
			s.log.Error("save expired wager", zap.String("wagerId", w.ID), zap.Error(err))
			continue
		}
		_ = s.repo.InsertTransition(ctx, w.ID, engine.StateProposed, engine.StateExpired, "proposal ttl elapsed")

		s.history.Push(engine.HistoryEntry{
			WagerID:    w.ID,
			State:      w.State,
			ProposerID: w.Proposer.PlayerID,
			TargetID:   w.Target.PlayerID,
			ValueCR:    w.Proposer.Stake.EffectiveValue(),
			PinkSlip:   w.PinkSlip,
			ClosedAt:   now,
		})
		s.log.Info("wager expired", zap.String("wagerId", w.ID))
	}
}
