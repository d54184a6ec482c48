package reporter

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/opscart/k8s-pdb-guard/pkg/models"
)

func sampleStatuses() []models.BudgetStatus {
	return []models.BudgetStatus{
		{
			Name: "web-pdb", Namespace: "default",
			MinAvailable: "3", MaxUnavailable: "N/A",
			Result: models.EvaluationResult{
				TotalMatched: 10, CurrentHealthy: 10, DesiredHealthy: 3, DisruptionsAllowed: 7,
			},
			Age: 36 * time.Hour,
		},
		{
			Name: "cache-pdb", Namespace: "prod",
			MinAvailable: "N/A", MaxUnavailable: "30%",
			Result: models.EvaluationResult{
				TotalMatched: 5, CurrentHealthy: 4, DesiredHealthy: 4, DisruptionsAllowed: 0,
			},
			Age: 20 * time.Minute,
		},
	}
}

func TestGenerateStats(t *testing.T) {
	rep := New(FormatCSV)
	report, err := rep.Generate(sampleStatuses(), "test-cluster", "")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if report.BudgetCount != 2 {
		t.Errorf("Expected 2 budgets, got %d", report.BudgetCount)
	}
	if report.BlockedCount != 1 {
		t.Errorf("Expected 1 blocked budget, got %d", report.BlockedCount)
	}
	if report.TotalAllowed != 7 {
		t.Errorf("Expected total allowed 7, got %d", report.TotalAllowed)
	}
	if len(report.NamespaceStats) != 2 {
		t.Errorf("Expected stats for 2 namespaces, got %d", len(report.NamespaceStats))
	}
	if report.NamespaceStats["prod"].BlockedCount != 1 {
		t.Errorf("Expected prod blocked count 1, got %d", report.NamespaceStats["prod"].BlockedCount)
	}
}

func TestGenerateCSV(t *testing.T) {
	rep := New(FormatCSV)
	report, err := rep.Generate(sampleStatuses(), "test-cluster", "")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var buf bytes.Buffer
	if err := GenerateCSV(report, &buf); err != nil {
		t.Fatalf("GenerateCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "namespace,name,") {
		t.Errorf("Unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "default,web-pdb,3,N/A,10,10,3,7,1d") {
		t.Errorf("Unexpected first row: %s", lines[1])
	}
	if !strings.Contains(lines[2], "prod,cache-pdb,N/A,30%,5,4,4,0,20m") {
		t.Errorf("Unexpected second row: %s", lines[2])
	}
}

func TestGenerateMarkdown(t *testing.T) {
	rep := New(FormatMarkdown)
	report, err := rep.Generate(sampleStatuses(), "test-cluster", "")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var buf bytes.Buffer
	if err := GenerateMarkdown(report, &buf); err != nil {
		t.Fatalf("GenerateMarkdown failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "# Disruption Budget Report") {
		t.Error("Expected report title")
	}
	if !strings.Contains(out, "| default | web-pdb | 3 | N/A | 10 | 10 | 3 | 7 | 1d |") {
		t.Errorf("Expected web-pdb row, got:\n%s", out)
	}
	if !strings.Contains(out, "## Per namespace") {
		t.Error("Expected per-namespace section for multi-namespace report")
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m"},
		{45 * time.Minute, "45m"},
		{12 * time.Hour, "12h"},
		{3 * 24 * time.Hour, "3d"},
	}

	for _, tt := range tests {
		if got := FormatAge(tt.age); got != tt.want {
			t.Errorf("FormatAge(%v): expected %s, got %s", tt.age, tt.want, got)
		}
	}
}
