// internal/machine/playback.go
package machine

import "github.com/yusukekikuta0509/projectKAIKA/internal/models"

const NoticeDeviceFirst = "Please connect your KAIKA device first."

// Playback tracks the selected feeling and whether it is playing on the insole.
type Playback struct {
	SelectedID string
	LoadingID  string
	Playing    bool
	ActiveZone string
	Intensity  int
}

func NewPlayback(intensity int) Playback {
	return Playback{Intensity: intensity}
}

// BeginSelect starts loading an owned feeling onto a connected device.
func (p Playback) BeginSelect(f *models.Feeling, deviceConnected bool, purchasingID string) (Playback, Outcome) {
	if !deviceConnected {
		return p, Ignore(ReasonDeviceNotConnected, NoticeDeviceFirst)
	}
	switch {
	case f == nil:
		return p, Ignore(ReasonUnknownFeeling, "")
	case !f.Owned:
		return p, Ignore(ReasonNotOwned, "")
	case p.LoadingID != "" || purchasingID != "":
		return p, Ignore(ReasonBusy, "")
	}
	p.LoadingID = f.ID
	return p, Accept()
}

// FinishSelect completes the load of id; false when the load was abandoned.
func (p Playback) FinishSelect(id string) (Playback, bool) {
	if p.LoadingID != id {
		return p, false
	}
	p.SelectedID = id
	p.LoadingID = ""
	p.Playing = false
	p.ActiveZone = ""
	return p, true
}

// Toggle flips playback. The bool asks the caller to open the pairing modal.
func (p Playback) Toggle(deviceConnected bool) (Playback, Outcome, bool) {
	if !deviceConnected {
		return p, Ignore(ReasonDeviceNotConnected, ""), true
	}
	if p.SelectedID == "" {
		return p, Ignore(ReasonNoSelection, ""), false
	}
	p.Playing = !p.Playing
	p.ActiveZone = ""
	return p, Accept(), false
}

func (p Playback) SetIntensity(v int) (Playback, Outcome) {
	if v < 0 || v > 100 {
		return p, Ignore(ReasonInvalidIntensity, "")
	}
	p.Intensity = v
	return p, Accept()
}

func (p Playback) Light(zone string) Playback {
	if p.Playing {
		p.ActiveZone = zone
	}
	return p
}

func (p Playback) Dim() Playback {
	p.ActiveZone = ""
	return p
}

// Clear stops playback and forgets the selection and any pending load.
func (p Playback) Clear() Playback {
	p.SelectedID = ""
	p.LoadingID = ""
	p.Playing = false
	p.ActiveZone = ""
	return p
}

func (p Playback) View() models.PlaybackView {
	return models.PlaybackView{
		SelectedID: p.SelectedID,
		LoadingID:  p.LoadingID,
		Playing:    p.Playing,
		ActiveZone: p.ActiveZone,
		Intensity:  p.Intensity,
	}
}
