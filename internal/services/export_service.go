// internal/services/export_service.go
package services

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/benbjohnson/clock"

	apperrors "github.com/yusukekikuta0509/projectKAIKA/internal/errors"
	"github.com/yusukekikuta0509/projectKAIKA/internal/models"
	"github.com/yusukekikuta0509/projectKAIKA/internal/storage"
)

var supportedExportFormats = []string{"json", "markdown", "txt"}

// ExportService renders a session's ledger as a report and optionally files it under exports/.
type ExportService struct {
	store *storage.FileStorage
	clock clock.Clock
}

func NewExportService(store *storage.FileStorage, clk clock.Clock) *ExportService {
	if clk == nil {
		clk = clock.New()
	}
	return &ExportService{store: store, clock: clk}
}

// ExportSession builds the report for session in format. With save the report
// is also written to the data directory.
func (s *ExportService) ExportSession(session *Session, format string, save bool) (*models.ExportResult, error) {
	format = strings.ToLower(format)
	if !contains(supportedExportFormats, format) {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("unsupported export format %q, expected one of %v", format, supportedExportFormats), nil)
	}
	if save && s.store == nil {
		return nil, apperrors.NewValidationError("export storage is not configured", nil)
	}

	snapshot := session.Snapshot()
	transactions := session.Transactions()
	owned := session.Owned(models.CategoryAll)
	stats := analyzeLedger(snapshot.Balances, transactions, owned)

	result := &models.ExportResult{
		SessionID:   snapshot.ID,
		Title:       fmt.Sprintf("KAIKA session %s", shortID(snapshot.ID)),
		Format:      format,
		GeneratedAt: s.clock.Now(),
		Stats:       stats,
	}

	var err error
	switch format {
	case "json":
		result.Content, err = formatExportJSON(result, transactions)
	case "markdown":
		result.Content = formatExportMarkdown(result, transactions)
	case "txt":
		result.Content, err = formatExportText(result, transactions)
	}
	if err != nil {
		return nil, fmt.Errorf("format export: %w", err)
	}

	if save {
		if err := s.saveExport(result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func analyzeLedger(balances models.Balances, transactions []models.Transaction, owned []models.Feeling) *models.ExportStats {
	stats := &models.ExportStats{
		Balances:      balances,
		OwnedFeelings: make([]string, 0, len(owned)),
		Transactions:  len(transactions),
		ByStatus:      make(map[models.TransactionStatus]int),
	}
	for _, f := range owned {
		stats.OwnedFeelings = append(stats.OwnedFeelings, f.ID)
	}
	for _, tx := range transactions {
		stats.ByStatus[tx.Status]++
		if tx.Status == models.TxConfirmed {
			stats.SpentUSDC += tx.Amount
		}
		if stats.DateRange == nil {
			stats.DateRange = &models.DateRange{StartDate: tx.Timestamp, EndDate: tx.Timestamp}
			continue
		}
		if tx.Timestamp.Before(stats.DateRange.StartDate) {
			stats.DateRange.StartDate = tx.Timestamp
		}
		if tx.Timestamp.After(stats.DateRange.EndDate) {
			stats.DateRange.EndDate = tx.Timestamp
		}
	}
	return stats
}

func formatExportJSON(result *models.ExportResult, transactions []models.Transaction) (string, error) {
	data, err := json.MarshalIndent(map[string]interface{}{
		"session_id":   result.SessionID,
		"statistics":   result.Stats,
		"transactions": transactions,
		"export_info": map[string]interface{}{
			"generated_at": result.GeneratedAt.Format(time.RFC3339),
			"format":       "json",
			"version":      "1.0",
		},
	}, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func formatExportMarkdown(result *models.ExportResult, transactions []models.Transaction) string {
	var b strings.Builder
	stats := result.Stats

	fmt.Fprintf(&b, "# %s\n\n", result.Title)
	fmt.Fprintf(&b, "Generated %s\n\n", result.GeneratedAt.Format("2006-01-02 15:04:05"))

	b.WriteString("## Balances\n\n")
	fmt.Fprintf(&b, "- **USDC**: %s\n", stats.Balances.USDC)
	fmt.Fprintf(&b, "- **KAIKA**: %d\n", stats.Balances.KAIKA)
	fmt.Fprintf(&b, "- **Spent**: %s USDC\n\n", stats.SpentUSDC)

	b.WriteString("## Owned feelings\n\n")
	if len(stats.OwnedFeelings) == 0 {
		b.WriteString("_none_\n\n")
	}
	for _, id := range stats.OwnedFeelings {
		fmt.Fprintf(&b, "- %s\n", id)
	}
	if len(stats.OwnedFeelings) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("## Transactions\n\n")
	b.WriteString("| Date | Feeling | Amount (USDC) | Status | Tx |\n")
	b.WriteString("|------|---------|---------------|--------|----|\n")
	for _, tx := range transactions {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | `%s` |\n",
			tx.Timestamp.Format("2006-01-02 15:04"), tx.FeelingID, tx.Amount, tx.Status, models.TruncateHash(tx.TxHash))
	}
	return b.String()
}

func formatExportText(result *models.ExportResult, transactions []models.Transaction) (string, error) {
	var b strings.Builder
	stats := result.Stats

	fmt.Fprintf(&b, "%s\n%s\n\n", result.Title, strings.Repeat("=", len(result.Title)))
	fmt.Fprintf(&b, "USDC:  %s\nKAIKA: %d\nOwned: %s\n\n", stats.Balances.USDC, stats.Balances.KAIKA, strings.Join(stats.OwnedFeelings, ", "))

	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tFEELING\tAMOUNT\tSTATUS\tTX")
	for _, tx := range transactions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			tx.Timestamp.Format("2006-01-02 15:04"), tx.FeelingID, tx.Amount, tx.Status, models.TruncateHash(tx.TxHash))
	}
	if err := tw.Flush(); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (s *ExportService) saveExport(result *models.ExportResult) error {
	ext := result.Format
	if ext == "markdown" {
		ext = "md"
	}
	rel := path.Join("exports", fmt.Sprintf("%s_ledger_%s.%s",
		result.SessionID, result.GeneratedAt.Format("20060102_150405"), ext))
	if err := s.store.SaveFile(rel, []byte(result.Content)); err != nil {
		return fmt.Errorf("save export: %w", err)
	}
	result.FilePath = rel
	result.FileSize = int64(len(result.Content))
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
