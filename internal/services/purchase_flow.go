// internal/services/purchase_flow.go
package services

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yusukekikuta0509/projectKAIKA/internal/machine"
	"github.com/yusukekikuta0509/projectKAIKA/internal/models"
)

// Purchase starts buying feelingID. Only one purchase runs per session; the
// returned outcome carries the progress task id when accepted.
func (s *Session) Purchase(feelingID string) (machine.Outcome, error) {
	if err := s.lockOpen(); err != nil {
		return machine.Outcome{}, err
	}
	defer s.mu.Unlock()

	var feeling *models.Feeling
	if f, ok := s.ledger.Feeling(feelingID); ok {
		feeling = &f
	}
	out := machine.CheckPurchase(machine.PurchaseRequest{
		Feeling:      feeling,
		PurchasingID: s.purchasingID,
		LoadingID:    s.playback.LoadingID,
		Wallet:       s.wallet,
		Balance:      s.ledger.Balances().USDC,
	})
	if !out.Accepted {
		if out.Notice != "" {
			s.setNoticeLocked(out.Notice, s.tuning.Notices.Precondition.Std())
		}
		s.ignored("purchase", out)
		return out, nil
	}

	f := *feeling
	tracker, err := s.progress.CreateTracker(newTaskID("purchase"), "purchase", s.ID)
	if err != nil {
		return machine.Outcome{}, err
	}
	s.purchasingID = f.ID
	out.TaskID = tracker.TaskID

	phases := machine.PurchasePhases(f.Name)
	s.setNoticeLocked(phases[0], 0)
	tracker.UpdateProgress(10, phases[0])

	ctx, cancel := s.child()
	s.purchaseCancel = cancel
	s.logger.Info("purchase started", map[string]interface{}{
		"session_id": s.ID,
		"feeling_id": f.ID,
		"task_id":    tracker.TaskID,
	})

	pt := s.tuning.Purchase
	steps := []struct {
		delay    time.Duration
		message  string
		progress int
	}{
		{pt.PrepareDelay.Std(), phases[1], 35},
		{pt.SignDelay.Std(), phases[2], 60},
		{machine.Jitter(s.src, pt.ConfirmDelay.Std(), pt.ConfirmJitter.Std()), "", 90},
	}
	started := s.clock.Now()

	s.spawn(func() {
		defer cancel()
		for _, step := range steps {
			if !s.sleep(ctx, step.delay) {
				s.abortPurchase(f.ID, tracker)
				return
			}
			if step.message == "" {
				continue
			}
			s.mu.Lock()
			if ctx.Err() != nil {
				s.mu.Unlock()
				s.abortPurchase(f.ID, tracker)
				return
			}
			s.setNoticeLocked(step.message, 0)
			s.mu.Unlock()
			tracker.UpdateProgress(step.progress, step.message)
		}

		s.mu.Lock()
		if ctx.Err() != nil {
			s.mu.Unlock()
			s.abortPurchase(f.ID, tracker)
			return
		}
		success := machine.Chance(s.src, pt.SuccessProbability)
		now := s.clock.Now()
		tx := models.Transaction{
			ID:        "tx_" + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
			FeelingID: f.ID,
			Amount:    f.Price,
			Timestamp: now,
			Status:    models.TxFailed,
			TxHash:    machine.TxHash(s.src),
		}

		var message string
		var reward int64
		if success {
			reward = machine.PurchaseReward(f.Price, pt.RewardFraction)
			s.ledger.SetBalances(machine.SettlePurchase(s.ledger.Balances(), f.Price, pt.RewardFraction))
			_ = s.ledger.MarkOwned(f.ID)
			tx.Status = models.TxConfirmed
			message = machine.PurchaseSucceeded(f.Name, tx.TxHash)
		} else {
			message = machine.NoticePurchaseFailed
		}
		s.ledger.Record(tx)
		s.purchasingID = ""
		s.purchaseCancel = nil
		s.setNoticeLocked(message, s.tuning.Notices.PurchaseResult.Std())
		s.emitLocked(models.EventTransaction, map[string]any{"transaction": tx})
		s.emitLocked(models.EventBalances, map[string]any{"balances": s.ledger.Balances()})
		s.logger.Info("purchase settled", map[string]interface{}{
			"session_id": s.ID,
			"feeling_id": f.ID,
			"status":     string(tx.Status),
			"tx_hash":    tx.TxHash,
		})
		s.mu.Unlock()

		s.metrics.RecordPurchase(string(tx.Status), reward)
		s.metrics.ObserveFlow("purchase", s.clock.Since(started))
		if success {
			tracker.Complete(message)
		} else {
			tracker.Fail(message)
		}
	})

	return out, nil
}

func (s *Session) abortPurchase(feelingID string, tracker *ProgressTracker) {
	s.mu.Lock()
	if s.purchasingID == feelingID {
		s.purchasingID = ""
		s.purchaseCancel = nil
	}
	s.mu.Unlock()
	tracker.Fail("cancelled")
	s.metrics.RecordPurchase("cancelled", 0)
}
