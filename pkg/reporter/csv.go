package reporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// GenerateCSV writes the report as CSV
func GenerateCSV(report *Report, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{
		"namespace", "name", "min_available", "max_unavailable",
		"pods_matched", "current_healthy", "desired_healthy",
		"disruptions_allowed", "age",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, status := range report.Statuses {
		row := []string{
			status.Namespace,
			status.Name,
			status.MinAvailable,
			status.MaxUnavailable,
			strconv.Itoa(status.Result.TotalMatched),
			strconv.Itoa(status.Result.CurrentHealthy),
			strconv.Itoa(status.Result.DesiredHealthy),
			strconv.Itoa(status.Result.DisruptionsAllowed),
			FormatAge(status.Age),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	return nil
}
