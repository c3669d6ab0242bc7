// internal/services/playback_flow.go
package services

import (
	"github.com/yusukekikuta0509/projectKAIKA/internal/machine"
	"github.com/yusukekikuta0509/projectKAIKA/internal/models"
)

// SelectFeeling loads an owned feeling onto the device. The load finishes after
// the configured delay unless the device is disconnected first.
func (s *Session) SelectFeeling(feelingID string) (machine.Outcome, error) {
	if err := s.lockOpen(); err != nil {
		return machine.Outcome{}, err
	}
	defer s.mu.Unlock()

	var feeling *models.Feeling
	if f, ok := s.ledger.Feeling(feelingID); ok {
		feeling = &f
	}
	playback, out := s.playback.BeginSelect(feeling, s.conn.Connected(), s.purchasingID)
	if !out.Accepted {
		if out.Notice != "" {
			s.setNoticeLocked(out.Notice, s.tuning.Notices.DeviceRequired.Std())
		}
		s.ignored("playback.select", out)
		return out, nil
	}

	s.playback = playback
	s.setNoticeLocked("", 0)
	s.emitLocked(models.EventPlaybackSelected, map[string]any{"loading_feeling_id": feelingID})

	ctx, cancel := s.child()
	s.loadCancel = cancel
	s.spawn(func() {
		defer cancel()
		if !s.sleep(ctx, s.tuning.Playback.LoadDelay.Std()) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		playback, ok := s.playback.FinishSelect(feelingID)
		if !ok {
			return
		}
		stop(&s.zonesCancel)
		s.playback = playback
		s.loadCancel = nil
		s.emitLocked(models.EventPlaybackSelected, map[string]any{"selected_feeling_id": feelingID})
		s.emitLocked(models.EventPlaybackState, map[string]any{"playing": false, "selected_feeling_id": feelingID})
	})
	return out, nil
}

// TogglePlayback starts or stops the selected feeling. Without a device it
// opens the pairing modal instead.
func (s *Session) TogglePlayback() (machine.Outcome, error) {
	if err := s.lockOpen(); err != nil {
		return machine.Outcome{}, err
	}
	defer s.mu.Unlock()

	playback, out, openModal := s.playback.Toggle(s.conn.Connected())
	if openModal {
		s.conn = s.conn.WithModal(true)
		s.emitLocked(models.EventDeviceModal, map[string]any{"open": true})
	}
	if !out.Accepted {
		s.ignored("playback.toggle", out)
		return out, nil
	}

	s.playback = playback
	stop(&s.zonesCancel)
	if playback.Playing {
		s.startZonesLocked()
	}
	s.emitLocked(models.EventPlaybackState, map[string]any{
		"playing":             playback.Playing,
		"selected_feeling_id": playback.SelectedID,
	})
	return out, nil
}

// startZonesLocked lights a random insole zone every interval while playing.
func (s *Session) startZonesLocked() {
	ctx, cancel := s.child()
	s.zonesCancel = cancel

	s.spawn(func() {
		defer cancel()
		ticker := s.clock.Ticker(s.tuning.Playback.ZoneInterval.Std())
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			s.mu.Lock()
			if ctx.Err() != nil || !s.playback.Playing {
				s.mu.Unlock()
				return
			}
			idx := int(s.src.Float64() * float64(len(models.HapticZones)))
			if idx >= len(models.HapticZones) {
				idx = len(models.HapticZones) - 1
			}
			zone := models.HapticZones[idx]
			s.playback = s.playback.Light(zone)
			s.zoneSeq++
			seq := s.zoneSeq
			s.emitLocked(models.EventPlaybackZone, map[string]any{"zone": zone})
			s.mu.Unlock()

			s.spawn(func() {
				if !s.sleep(ctx, s.tuning.Playback.ZonePulse.Std()) {
					return
				}
				s.mu.Lock()
				defer s.mu.Unlock()
				if ctx.Err() != nil || s.zoneSeq != seq {
					return
				}
				s.playback = s.playback.Dim()
				s.emitLocked(models.EventPlaybackZone, map[string]any{"zone": ""})
			})
		}
	})
}

// SetIntensity sets the playback strength, 0 to 100.
func (s *Session) SetIntensity(v int) (machine.Outcome, error) {
	if err := s.lockOpen(); err != nil {
		return machine.Outcome{}, err
	}
	defer s.mu.Unlock()

	playback, out := s.playback.SetIntensity(v)
	if !out.Accepted {
		s.ignored("playback.intensity", out)
		return out, nil
	}
	s.playback = playback
	s.emitLocked(models.EventPlaybackState, map[string]any{
		"playing":             playback.Playing,
		"selected_feeling_id": playback.SelectedID,
		"intensity":           v,
	})
	return out, nil
}
