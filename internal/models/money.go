// internal/models/money.go
package models

import (
	"fmt"
	"math"
	"strconv"
)

// Cents is a USDC amount in hundredths so balance arithmetic stays exact.
type Cents int64

// USDC converts a decimal amount to Cents, rounding to the nearest cent.
func USDC(amount float64) Cents {
	return Cents(math.Round(amount * 100))
}

func (c Cents) Float() float64 { return float64(c) / 100 }

func (c Cents) String() string { return fmt.Sprintf("%.2f", c.Float()) }

func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(c.Float(), 'f', 2, 64)), nil
}

func (c *Cents) UnmarshalJSON(data []byte) error {
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid USDC amount %s: %w", data, err)
	}
	*c = USDC(f)
	return nil
}

// Balances is the simulated wallet holding of the session.
type Balances struct {
	USDC  Cents `json:"usdc"`
	KAIKA int64 `json:"kaika"`
}

// WalletState is reported by the client; the simulation only reads it.
type WalletState struct {
	Connected bool   `json:"connected"`
	PublicKey string `json:"public_key,omitempty"`
}

// Ready reports whether purchases may be signed.
func (w WalletState) Ready() bool {
	return w.Connected && w.PublicKey != ""
}
