package benchmark

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/j-veylop/tokenwatch/internal/models"
)

var resultHeader = []string{
	"scenario", "duration", "averageResponseTime", "p95ResponseTime", "p99ResponseTime",
	"totalCost", "costPerRequest", "tokenProcessingRate", "errorCount", "successRate",
	"throughput", "memoryUsage", "contextProcessingTime", "timestamp",
}

// ExportResults renders a suite as pretty-printed JSON or as CSV with a
// fixed header row and one row per scenario result.
func ExportResults(suite *models.BenchmarkSuite, format models.ExportFormat) ([]byte, error) {
	if suite == nil {
		return nil, errors.New("no benchmark suite to export")
	}

	switch format {
	case models.FormatJSON:
		data, err := json.MarshalIndent(suite, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode benchmark suite: %w", err)
		}
		return data, nil

	case models.FormatCSV:
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err := w.Write(resultHeader); err != nil {
			return nil, err
		}
		for _, r := range suite.Results {
			row := []string{
				r.Scenario,
				formatFloat(r.Duration),
				formatFloat(r.AverageResponseTime),
				formatFloat(r.P95ResponseTime),
				formatFloat(r.P99ResponseTime),
				formatFloat(r.TotalCost),
				formatFloat(r.CostPerRequest),
				formatFloat(r.TokenProcessingRate),
				strconv.Itoa(r.ErrorCount),
				formatFloat(r.SuccessRate),
				formatFloat(r.Throughput),
				formatFloat(r.MemoryUsage),
				formatFloat(r.ContextProcessingTime),
				r.Timestamp.UTC().Format(time.RFC3339),
			}
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, fmt.Errorf("failed to encode benchmark results: %w", err)
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
