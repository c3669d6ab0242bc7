// internal/models/export.go
package models

import (
	"time"
)

// ExportResult is a rendered session report.
type ExportResult struct {
	SessionID   string       `json:"session_id"`
	Title       string       `json:"title"`
	Format      string       `json:"format"`
	Content     string       `json:"content"`
	GeneratedAt time.Time    `json:"generated_at"`
	FilePath    string       `json:"file_path,omitempty"`
	FileSize    int64        `json:"file_size,omitempty"`
	Stats       *ExportStats `json:"stats"`
}

// ExportStats summarises a session's ledger.
type ExportStats struct {
	Balances      Balances                  `json:"balances"`
	OwnedFeelings []string                  `json:"owned_feelings"`
	Transactions  int                       `json:"transactions"`
	ByStatus      map[TransactionStatus]int `json:"by_status"`
	SpentUSDC     Cents                     `json:"spent_usdc"`
	DateRange     *DateRange                `json:"date_range,omitempty"`
}

type DateRange struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}
