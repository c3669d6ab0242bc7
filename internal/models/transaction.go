// internal/models/transaction.go
package models

import "time"

type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxConfirmed TransactionStatus = "confirmed"
	TxFailed    TransactionStatus = "failed"
)

// Transaction is one entry in the simulated purchase history.
type Transaction struct {
	ID        string            `json:"id"`
	FeelingID string            `json:"feeling_id"`
	Amount    Cents             `json:"amount"`
	Timestamp time.Time         `json:"timestamp"`
	Status    TransactionStatus `json:"status"`
	TxHash    string            `json:"tx_hash"`
}

// SeedTransactions is the starting history, newest first, relative to now.
func SeedTransactions(now time.Time) []Transaction {
	return []Transaction{
		{ID: "tx4", FeelingID: "forest_floor", Amount: USDC(6.0), Timestamp: now.Add(-time.Hour), Status: TxFailed, TxHash: "2sAqZxCvBnMjKlPoRtY6uI2oPzXe9pLoKiJuHyGtFrDe"},
		{ID: "tx1", FeelingID: "beach_sand", Amount: USDC(5.0), Timestamp: now.Add(-72 * time.Hour), Status: TxConfirmed, TxHash: "5kFbQzX3bTfGqR8kL7nJpW1tZvY9xV6c2sA4hJdGfEwB"},
		{ID: "tx2", FeelingID: "athens_cobblestone", Amount: USDC(7.5), Timestamp: now.Add(-7 * 24 * time.Hour), Status: TxConfirmed, TxHash: "3mJhGtFvCbXnZq8wL9kRpT1yV7xW6dGfEwBqS9dLkPnM"},
		{ID: "tx3", FeelingID: "grassy_field", Amount: USDC(4.5), Timestamp: now.Add(-10 * 24 * time.Hour), Status: TxConfirmed, TxHash: "9pLoKiJuHyGtFrDeWsAqZxCvBnMjKlPoRtY6uI2oPzXe"},
	}
}

// TruncateHash shortens a hash to "abcd...wxyz" for status lines.
func TruncateHash(hash string) string {
	const keep = 4
	if len(hash) <= keep*2 {
		return hash
	}
	return hash[:keep] + "..." + hash[len(hash)-keep:]
}
