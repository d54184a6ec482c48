package reporter

import (
	"fmt"
	"io"
	"sort"
)

// GenerateMarkdown writes the report as a Markdown document
func GenerateMarkdown(report *Report, w io.Writer) error {
	namespace := report.Namespace
	if namespace == "" {
		namespace = "all namespaces"
	}

	fmt.Fprintf(w, "# Disruption Budget Report\n\n")
	fmt.Fprintf(w, "- Cluster: %s\n", report.ClusterName)
	fmt.Fprintf(w, "- Scope: %s\n", namespace)
	fmt.Fprintf(w, "- Generated: %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05"))

	fmt.Fprintf(w, "## Summary\n\n")
	fmt.Fprintf(w, "| Budgets | Blocked | Total allowed disruptions |\n")
	fmt.Fprintf(w, "|---|---|---|\n")
	fmt.Fprintf(w, "| %d | %d | %d |\n\n", report.BudgetCount, report.BlockedCount, report.TotalAllowed)

	fmt.Fprintf(w, "## Budgets\n\n")
	fmt.Fprintf(w, "| Namespace | Name | Min available | Max unavailable | Matched | Healthy | Desired | Allowed | Age |\n")
	fmt.Fprintf(w, "|---|---|---|---|---|---|---|---|---|\n")
	for _, status := range report.Statuses {
		fmt.Fprintf(w, "| %s | %s | %s | %s | %d | %d | %d | %d | %s |\n",
			status.Namespace, status.Name,
			status.MinAvailable, status.MaxUnavailable,
			status.Result.TotalMatched, status.Result.CurrentHealthy,
			status.Result.DesiredHealthy, status.Result.DisruptionsAllowed,
			FormatAge(status.Age))
	}
	fmt.Fprintln(w)

	if len(report.NamespaceStats) > 1 {
		namespaces := make([]string, 0, len(report.NamespaceStats))
		for ns := range report.NamespaceStats {
			namespaces = append(namespaces, ns)
		}
		sort.Strings(namespaces)

		fmt.Fprintf(w, "## Per namespace\n\n")
		fmt.Fprintf(w, "| Namespace | Budgets | Blocked | Total allowed |\n")
		fmt.Fprintf(w, "|---|---|---|---|\n")
		for _, ns := range namespaces {
			stat := report.NamespaceStats[ns]
			fmt.Fprintf(w, "| %s | %d | %d | %d |\n",
				stat.Namespace, stat.BudgetCount, stat.BlockedCount, stat.TotalAllowed)
		}
		fmt.Fprintln(w)
	}

	return nil
}
