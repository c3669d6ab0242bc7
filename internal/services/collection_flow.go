// internal/services/collection_flow.go
package services

import (
	"context"
	"time"

	"github.com/yusukekikuta0509/projectKAIKA/internal/machine"
	"github.com/yusukekikuta0509/projectKAIKA/internal/models"
)

func (s *Session) walkParams() machine.WalkParams {
	c := s.tuning.Collection
	return machine.WalkParams{
		TurnProbability:  c.TurnProbability,
		MaxTurn:          c.MaxTurn,
		BaseSpeed:        c.BaseSpeed,
		SpeedJitter:      c.SpeedJitter,
		DistanceScale:    c.DistanceScale,
		MaxDataIncrement: c.MaxDataIncrement,
		LandmarkRadius:   c.LandmarkRadius,
	}
}

func (s *Session) rewardParams() machine.RewardParams {
	c := s.tuning.Collection
	return machine.RewardParams{
		PerSecond:   c.RewardPerSecond,
		PerDistance: c.RewardPerDistance,
		Min:         c.MinReward,
	}
}

// SelectTerrain picks the terrain the next collection records.
func (s *Session) SelectTerrain(terrainID string) (machine.Outcome, error) {
	if err := s.lockOpen(); err != nil {
		return machine.Outcome{}, err
	}
	defer s.mu.Unlock()

	collection, out := s.collection.SelectTerrain(terrainID)
	if !out.Accepted {
		s.ignored("collection.terrain", out)
		return out, nil
	}
	s.collection = collection
	s.emitCollectionLocked()
	return out, nil
}

// StartCollection begins walking and recording. Movement and the duration
// display run on separate tickers until the collection stops or resets.
func (s *Session) StartCollection() (machine.Outcome, error) {
	if err := s.lockOpen(); err != nil {
		return machine.Outcome{}, err
	}
	defer s.mu.Unlock()

	collection, out := s.collection.Start(s.wallet.Connected, s.clock.Now())
	if !out.Accepted {
		s.ignored("collection.start", out)
		return out, nil
	}

	s.collection = collection
	s.runSeq++
	stop(&s.submitCancel)
	ctx, cancel := s.child()
	s.collectCancel = cancel
	s.emitCollectionLocked()
	s.logger.Info("collection started", map[string]interface{}{
		"session_id": s.ID,
		"terrain":    collection.Terrain,
	})

	ct := s.tuning.Collection
	s.spawn(func() {
		defer cancel()
		movement := s.clock.Ticker(ct.MovementInterval.Std())
		defer movement.Stop()
		duration := s.clock.Ticker(ct.DurationInterval.Std())
		defer duration.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-movement.C:
				if !s.walk(ctx) {
					return
				}
			case <-duration.C:
				if !s.tick(ctx) {
					return
				}
			}
		}
	})
	return out, nil
}

func (s *Session) walk(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil || s.collection.State != models.CollectionCollecting {
		return false
	}
	p := s.walkParams()
	step := machine.NextStep(s.collection.Heading, s.src, p)
	s.collection = s.collection.Advance(step, p)
	v := s.collection.View()
	s.emitLocked(models.EventCollectionStep, map[string]any{
		"position":      v.Position,
		"last_step":     v.LastStep,
		"distance":      v.Distance,
		"data_kb":       v.DataKB,
		"location_name": v.LocationName,
	})
	return true
}

func (s *Session) tick(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil || s.collection.State != models.CollectionCollecting {
		return false
	}
	s.collection = s.collection.Tick(s.clock.Now())
	s.emitLocked(models.EventCollectionDuration, map[string]any{"duration_seconds": s.collection.Duration})
	return true
}

// StopCollection ends recording and computes the reward.
func (s *Session) StopCollection() (machine.Outcome, error) {
	if err := s.lockOpen(); err != nil {
		return machine.Outcome{}, err
	}
	defer s.mu.Unlock()

	collection, out := s.collection.Stop(s.clock.Now(), s.rewardParams())
	if !out.Accepted {
		s.ignored("collection.stop", out)
		return out, nil
	}
	s.collection = collection
	stop(&s.collectCancel)
	s.emitCollectionLocked()
	s.logger.Info("collection stopped", map[string]interface{}{
		"session_id":       s.ID,
		"duration_seconds": collection.Duration,
		"distance":         collection.Distance,
		"earned":           *collection.Earned,
	})
	return out, nil
}

// SubmitCollection uploads the recorded data and credits the reward once the
// upload chain completes.
func (s *Session) SubmitCollection() (machine.Outcome, error) {
	if err := s.lockOpen(); err != nil {
		return machine.Outcome{}, err
	}
	defer s.mu.Unlock()

	collection, out := s.collection.BeginSubmit(s.wallet.Connected)
	if !out.Accepted {
		s.ignored("collection.submit", out)
		return out, nil
	}

	tracker, err := s.progress.CreateTracker(newTaskID("submit"), "submit", s.ID)
	if err != nil {
		return machine.Outcome{}, err
	}
	s.collection = collection
	run := s.runSeq
	out.TaskID = tracker.TaskID
	tracker.UpdateProgress(10, machine.SubmitPhases[0])
	s.emitSubmissionLocked()

	ctx, cancel := s.child()
	s.submitCancel = cancel
	ct := s.tuning.Collection
	steps := []struct {
		delay    time.Duration
		message  string
		progress int
	}{
		{ct.PackageDelay.Std(), machine.SubmitPhases[1], 40},
		{ct.UploadDelay.Std(), machine.SubmitPhases[2], 75},
		{machine.Jitter(s.src, ct.ConfirmDelay.Std(), ct.ConfirmJitter.Std()), "", 100},
	}
	started := s.clock.Now()

	s.spawn(func() {
		defer cancel()
		for _, step := range steps {
			if !s.sleep(ctx, step.delay) {
				tracker.Fail("cancelled")
				return
			}
			if step.message == "" {
				continue
			}
			s.mu.Lock()
			if ctx.Err() != nil || s.runSeq != run {
				s.mu.Unlock()
				tracker.Fail("cancelled")
				return
			}
			s.collection.Status = step.message
			s.emitSubmissionLocked()
			s.mu.Unlock()
			tracker.UpdateProgress(step.progress, step.message)
		}

		s.mu.Lock()
		if ctx.Err() != nil || s.runSeq != run {
			s.mu.Unlock()
			tracker.Fail("cancelled")
			return
		}
		collection, reward, ok := s.collection.CompleteSubmit()
		if !ok {
			s.mu.Unlock()
			tracker.Fail("cancelled")
			return
		}
		s.collection = collection
		s.submitCancel = nil
		balances := s.ledger.Balances()
		balances.KAIKA += reward
		s.ledger.SetBalances(balances)
		s.emitSubmissionLocked()
		s.emitCollectionLocked()
		s.emitLocked(models.EventBalances, map[string]any{"balances": balances})
		s.logger.Info("collection submitted", map[string]interface{}{
			"session_id": s.ID,
			"reward":     reward,
		})
		message := collection.Status
		s.scheduleClearLocked(run)
		s.mu.Unlock()

		s.metrics.RecordSubmission(reward)
		s.metrics.ObserveFlow("submit", s.clock.Since(started))
		tracker.Complete(message)
	})

	s.spawn(func() {
		if !s.sleep(s.ctx, ct.TransferFallback.Std()) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.ctx.Err() != nil || s.runSeq != run || !s.collection.Transferring {
			return
		}
		s.collection.Transferring = false
		s.emitSubmissionLocked()
	})
	return out, nil
}

// scheduleClearLocked drops the post-submission stats after the display delay,
// unless another run has started by then.
func (s *Session) scheduleClearLocked(run uint64) {
	s.spawn(func() {
		if !s.sleep(s.ctx, s.tuning.Collection.ClearDelay.Std()) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.ctx.Err() != nil || s.runSeq != run {
			return
		}
		s.collection = s.collection.ClearResults()
		s.emitCollectionLocked()
	})
}

// ResetCollection abandons the current collection from any state.
func (s *Session) ResetCollection() error {
	if err := s.lockOpen(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	s.resetCollectionLocked("reset")
	return nil
}

func (s *Session) resetCollectionLocked(reason string) {
	stop(&s.collectCancel)
	stop(&s.submitCancel)
	s.runSeq++
	s.collection = s.collection.Reset()
	s.emitCollectionLocked()
	s.logger.Info("collection reset", map[string]interface{}{
		"session_id": s.ID,
		"reason":     reason,
	})
}

func (s *Session) emitCollectionLocked() {
	s.emitLocked(models.EventCollectionState, map[string]any{"collection": s.collection.View()})
}

func (s *Session) emitSubmissionLocked() {
	s.emitLocked(models.EventSubmissionStatus, map[string]any{
		"status":       s.collection.Status,
		"transferring": s.collection.Transferring,
	})
}
