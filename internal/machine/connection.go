// internal/machine/connection.go
package machine

import "github.com/yusukekikuta0509/projectKAIKA/internal/models"

// Connection is the device pairing state. Generation increases on every attempt
// and every disconnect, so a resolution carrying an older generation is stale.
type Connection struct {
	Status     models.ConnectionStatus
	HapticOn   bool
	ModalOpen  bool
	Generation uint64
}

func NewConnection() Connection {
	return Connection{Status: models.StatusDisconnected}
}

// Begin starts a pairing attempt and returns its generation.
func (c Connection) Begin() (Connection, uint64, Outcome) {
	switch c.Status {
	case models.StatusConnected:
		return c, 0, Ignore(ReasonAlreadyConnected, "")
	case models.StatusConnecting:
		return c, 0, Ignore(ReasonConnectInFlight, "")
	}
	c.Status = models.StatusConnecting
	c.Generation++
	return c, c.Generation, Accept()
}

// Resolve applies the outcome of attempt gen. It reports false for stale attempts.
func (c Connection) Resolve(gen uint64, success bool) (Connection, bool) {
	if gen != c.Generation || c.Status != models.StatusConnecting {
		return c, false
	}
	if success {
		c.Status = models.StatusConnected
		c.HapticOn = true
	} else {
		c.Status = models.StatusFailed
		c.HapticOn = false
	}
	return c, true
}

// Disconnect always succeeds and invalidates any pending attempt.
func (c Connection) Disconnect() Connection {
	c.Status = models.StatusDisconnected
	c.HapticOn = false
	c.Generation++
	return c
}

func (c Connection) WithModal(open bool) Connection {
	c.ModalOpen = open
	return c
}

func (c Connection) Connected() bool {
	return c.Status == models.StatusConnected
}

func (c Connection) View() models.DeviceView {
	return models.DeviceView{Status: c.Status, HapticOn: c.HapticOn, ModalOpen: c.ModalOpen}
}
