// internal/services/device_flow.go
package services

import (
	"context"

	"github.com/yusukekikuta0509/projectKAIKA/internal/machine"
	"github.com/yusukekikuta0509/projectKAIKA/internal/models"
)

// ConnectResult reports how a pairing request ended.
type ConnectResult struct {
	machine.Outcome
	Connected bool                    `json:"connected"`
	Status    models.ConnectionStatus `json:"status"`
}

// ConnectDevice runs a simulated pairing attempt and waits for it. The attempt
// belongs to the session, so ctx only bounds how long the caller waits.
func (s *Session) ConnectDevice(ctx context.Context) (ConnectResult, error) {
	if err := s.lockOpen(); err != nil {
		return ConnectResult{}, err
	}

	conn, gen, out := s.conn.Begin()
	if !out.Accepted {
		result := ConnectResult{Outcome: out, Connected: s.conn.Connected(), Status: s.conn.Status}
		s.mu.Unlock()
		s.ignored("device.connect", out)
		return result, nil
	}

	s.conn = conn
	attemptCtx, cancel := s.child()
	s.connectCancel = cancel
	delay := machine.Jitter(s.src, s.tuning.Device.ConnectBase.Std(), s.tuning.Device.ConnectJitter.Std())
	success := machine.Chance(s.src, s.tuning.Device.SuccessProbability)
	s.emitLocked(models.EventDeviceStatus, map[string]any{"status": string(s.conn.Status)})
	s.logger.Info("device pairing started", map[string]interface{}{
		"session_id": s.ID,
		"generation": gen,
		"delay_ms":   delay.Milliseconds(),
	})
	s.mu.Unlock()

	started := s.clock.Now()
	done := make(chan ConnectResult, 1)
	s.spawn(func() {
		defer cancel()
		woke := s.sleep(attemptCtx, delay)

		s.mu.Lock()
		defer s.mu.Unlock()

		result := ConnectResult{Outcome: machine.Accept()}
		if !woke || attemptCtx.Err() != nil {
			result.Reason = machine.ReasonConnectCancelled
			result.Status = s.conn.Status
			s.metrics.RecordConnect("cancelled")
			done <- result
			return
		}

		conn, applied := s.conn.Resolve(gen, success)
		if !applied {
			result.Reason = machine.ReasonConnectCancelled
			result.Status = s.conn.Status
			done <- result
			return
		}
		s.conn = conn
		s.connectCancel = nil
		result.Connected = conn.Connected()
		result.Status = conn.Status
		s.emitLocked(models.EventDeviceStatus, map[string]any{"status": string(conn.Status), "haptic_on": conn.HapticOn})
		s.metrics.RecordConnect(string(conn.Status))
		s.metrics.ObserveFlow("device.connect", s.clock.Since(started))
		s.logger.Info("device pairing resolved", map[string]interface{}{
			"session_id": s.ID,
			"generation": gen,
			"status":     string(conn.Status),
		})
		if conn.Connected() {
			s.scheduleModalCloseLocked(gen)
		}
		done <- result
	})

	select {
	case result := <-done:
		return result, nil
	case <-ctx.Done():
		return ConnectResult{Outcome: machine.Accept(), Status: models.StatusConnecting}, ctx.Err()
	}
}

func (s *Session) scheduleModalCloseLocked(gen uint64) {
	s.spawn(func() {
		if !s.sleep(s.ctx, s.tuning.Device.ModalCloseDelay.Std()) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.ctx.Err() != nil || s.conn.Generation != gen || !s.conn.ModalOpen {
			return
		}
		s.conn = s.conn.WithModal(false)
		s.emitLocked(models.EventDeviceModal, map[string]any{"open": false})
	})
}

// DisconnectDevice drops the device, abandons any pairing attempt in flight and
// stops playback, clearing the selection.
func (s *Session) DisconnectDevice() error {
	if err := s.lockOpen(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	s.conn = s.conn.Disconnect()
	stop(&s.connectCancel)
	stop(&s.loadCancel)
	stop(&s.zonesCancel)
	s.playback = s.playback.Clear()

	s.emitLocked(models.EventDeviceStatus, map[string]any{"status": string(s.conn.Status), "haptic_on": false})
	s.emitLocked(models.EventPlaybackState, map[string]any{"playing": false, "selected_feeling_id": ""})
	s.logger.Info("device disconnected", map[string]interface{}{"session_id": s.ID, "generation": s.conn.Generation})
	return nil
}

// SetModal opens or closes the pairing dialog.
func (s *Session) SetModal(open bool) error {
	if err := s.lockOpen(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	s.conn = s.conn.WithModal(open)
	s.emitLocked(models.EventDeviceModal, map[string]any{"open": open})
	return nil
}
