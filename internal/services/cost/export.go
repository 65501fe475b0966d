package cost

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/j-veylop/tokenwatch/internal/models"
)

var ledgerHeader = []string{
	"timestamp", "model", "context", "inputTokens", "outputTokens", "totalTokens", "cost",
}

// ExportUsage renders the ledger as pretty-printed JSON or as CSV with a
// fixed header row.
func (a *Analyzer) ExportUsage(format models.ExportFormat) ([]byte, error) {
	records := a.Records()

	switch format {
	case models.FormatJSON:
		if records == nil {
			records = []models.TokenUsageRecord{}
		}
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode ledger: %w", err)
		}
		return data, nil

	case models.FormatCSV:
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err := w.Write(ledgerHeader); err != nil {
			return nil, err
		}
		for _, r := range records {
			row := []string{
				r.Timestamp.UTC().Format(time.RFC3339),
				r.Model,
				r.Context,
				strconv.Itoa(r.InputTokens),
				strconv.Itoa(r.OutputTokens),
				strconv.Itoa(r.TotalTokens),
				strconv.FormatFloat(r.Cost, 'f', 6, 64),
			}
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, fmt.Errorf("failed to encode ledger: %w", err)
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
