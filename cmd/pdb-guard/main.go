package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/opscart/k8s-pdb-guard/pkg/admission"
	"github.com/opscart/k8s-pdb-guard/pkg/budget"
	"github.com/opscart/k8s-pdb-guard/pkg/config"
	"github.com/opscart/k8s-pdb-guard/pkg/datasource"
	"github.com/opscart/k8s-pdb-guard/pkg/drain"
	"github.com/opscart/k8s-pdb-guard/pkg/evaluator"
	"github.com/opscart/k8s-pdb-guard/pkg/executor"
	"github.com/opscart/k8s-pdb-guard/pkg/metrics"
	"github.com/opscart/k8s-pdb-guard/pkg/models"
	"github.com/opscart/k8s-pdb-guard/pkg/reporter"
	"github.com/opscart/k8s-pdb-guard/pkg/scanner"
	"github.com/opscart/k8s-pdb-guard/pkg/storage"
	"github.com/spf13/cobra"
)

var (
	// Shared flags
	namespace     string
	allNamespaces bool
	outputFormat  string
	saveResults   bool
	clusterID     string
	verbose       bool

	// Status flags
	generateReport bool
	reportFormat   string
	reportOutput   string

	// Evaluate flags
	budgetFile string
	podsFile   string
	evictPod   string

	// Drain flags
	dryRun       bool
	drainRetries int
	drainBackoff int

	// History flags
	historyLimit  int
	historyBudget string

	// Global config
	cfg   *config.Config
	store storage.Store
)

func logVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Printf("[DEBUG] "+format+"\n", args...)
	}
}

func main() {
	cfg = config.NewConfig()

	var rootCmd = &cobra.Command{
		Use:   "pdb-guard",
		Short: "Pod disruption budget evaluator",
		Long:  `Evaluate Kubernetes pod disruption budgets, gate voluntary evictions, and track disruption headroom over time.`,
	}

	rootCmd.PersistentFlags().StringVarP(&namespace, "namespace", "n", "", "Namespace to inspect")
	rootCmd.PersistentFlags().BoolVarP(&allNamespaces, "all-namespaces", "A", false, "Inspect all namespaces")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, csv")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&clusterID, "cluster-id", "default", "Cluster identifier")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show evaluated budget statuses",
		Run:   runStatus,
	}
	statusCmd.Flags().BoolVar(&saveResults, "save", false, "Save evaluation snapshots to database")
	statusCmd.Flags().BoolVar(&generateReport, "generate-report", false, "Generate a budget report file")
	statusCmd.Flags().StringVar(&reportFormat, "report-format", "markdown", "Report format: markdown, csv")
	statusCmd.Flags().StringVar(&reportOutput, "report-output", "", "Output file for report")

	evaluateCmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate budgets against pod manifests offline",
		Run:   runEvaluate,
	}
	evaluateCmd.Flags().StringVar(&budgetFile, "budgets", "", "PodDisruptionBudget manifest file (required)")
	evaluateCmd.Flags().StringVar(&podsFile, "pods", "", "Pod manifest file (required)")
	evaluateCmd.Flags().StringVar(&evictPod, "evict", "", "Also decide a voluntary eviction for this pod name")
	evaluateCmd.MarkFlagRequired("budgets")
	evaluateCmd.MarkFlagRequired("pods")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Continuously re-evaluate budgets and export metrics",
		Run:   runWatch,
	}

	drainCmd := &cobra.Command{
		Use:   "drain <node>",
		Short: "Request eviction for every pod on a node, honoring budgets",
		Args:  cobra.ExactArgs(1),
		Run:   runDrain,
	}
	drainCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print eviction commands without deciding")
	drainCmd.Flags().BoolVar(&saveResults, "save", false, "Save eviction decisions to database")
	drainCmd.Flags().IntVar(&drainRetries, "max-retries", 3, "Eviction retries per pod on rejection")
	drainCmd.Flags().IntVar(&drainBackoff, "backoff", 2, "Seconds between eviction retries")

	driftCmd := &cobra.Command{
		Use:   "drift",
		Short: "Compare local evaluations against cluster-published figures",
		Run:   runDrift,
	}

	historyCmd := &cobra.Command{
		Use:   "history <namespace>",
		Short: "View past eviction decisions",
		Args:  cobra.ExactArgs(1),
		Run:   runHistory,
	}
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Number of entries to show")
	historyCmd.Flags().StringVar(&historyBudget, "budget", "", "Show evaluation history for a budget name instead")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(drainCmd)
	rootCmd.AddCommand(driftCmd)
	rootCmd.AddCommand(historyCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initStorage() error {
	if !cfg.StorageEnabled || !saveResults {
		return nil
	}

	var err error
	store, err = storage.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	return nil
}

func initStorageForced() error {
	var err error
	store, err = storage.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	return nil
}

func targetNamespace() string {
	if allNamespaces {
		return ""
	}
	if namespace == "" {
		fmt.Fprintln(os.Stderr, "Error: either --namespace or --all-namespaces must be specified")
		os.Exit(1)
	}
	return namespace
}

func runStatus(cmd *cobra.Command, args []string) {
	ns := targetNamespace()

	if outputFormat != "text" && outputFormat != "json" && outputFormat != "csv" {
		fmt.Fprintln(os.Stderr, "Error: output must be text, json, or csv")
		os.Exit(1)
	}

	if err := initStorage(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if store != nil {
		defer store.Close()
	}

	scan, err := scanner.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing scanner: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	statuses, err := scan.Statuses(ctx, ns)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading budgets: %v\n", err)
		os.Exit(1)
	}

	if len(statuses) == 0 {
		fmt.Println("[INFO] No disruption budgets found")
		return
	}

	if saveResults && store != nil {
		for _, status := range statuses {
			record := &models.EvaluationRecord{
				BudgetName:      status.Name,
				BudgetNamespace: status.Namespace,
				Result:          status.Result,
			}
			if err := store.SaveEvaluation(ctx, record); err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] Failed to save evaluation: %v\n", err)
			} else {
				logVerbose("Saved evaluation for %s/%s (ID: %s)", status.Namespace, status.Name, record.ID)
			}
		}
	}

	switch outputFormat {
	case "json":
		outputJSON(statuses)
	case "csv":
		outputCSV(statuses)
	default:
		outputText(statuses)
	}

	if generateReport {
		if err := generateBudgetReport(statuses, ns); err != nil {
			fmt.Fprintf(os.Stderr, "[ERROR] Failed to generate report: %v\n", err)
		}
	}
}

func runEvaluate(cmd *cobra.Command, args []string) {
	budgets, err := budget.LoadFile(budgetFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	pods, err := budget.LoadPodFile(podsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("[INFO] Loaded %d budget(s) and %d pod(s)\n", len(budgets), len(pods))

	gate := admission.NewGate(cfg.AdmitMaxRetries)
	now := time.Now()

	var statuses []models.BudgetStatus
	for _, b := range budgets {
		result, err := evaluator.Evaluate(b, pods)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error evaluating %s: %v\n", b.Key(), err)
			os.Exit(1)
		}
		gate.SetBudget(b, result)

		minStr, maxStr := budget.SpecStrings(b)
		statuses = append(statuses, models.BudgetStatus{
			Name:           b.Name,
			Namespace:      b.Namespace,
			MinAvailable:   minStr,
			MaxUnavailable: maxStr,
			Result:         result,
			Age:            b.Age(now),
		})
	}

	if outputFormat == "json" {
		outputJSON(statuses)
	} else {
		outputText(statuses)
	}

	if evictPod == "" {
		return
	}

	for _, pod := range pods {
		if pod.Name != evictPod {
			continue
		}
		decision := gate.RequestEviction(pod)
		fmt.Printf("\nEviction decision for %s/%s: %s\n", pod.Namespace, pod.Name, decision.Verdict)
		fmt.Printf("  Reason: %s\n", decision.Reason)
		for _, outcome := range decision.Budgets {
			fmt.Printf("  Budget %s/%s: %d allowed\n", outcome.Namespace, outcome.Name, outcome.DisruptionsAllowed)
		}
		if decision.Admitted() {
			fmt.Printf("  Command: %s\n", executor.GenerateCommand(decision))
		}
		return
	}

	fmt.Fprintf(os.Stderr, "Error: pod %s not found in %s\n", evictPod, podsFile)
	os.Exit(1)
}

func runWatch(cmd *cobra.Command, args []string) {
	ns := ""
	if !allNamespaces {
		ns = namespace
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	scan, err := scanner.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing scanner: %v\n", err)
		os.Exit(1)
	}

	gate := admission.NewGate(cfg.AdmitMaxRetries)
	exporter := metrics.NewExporter()

	go func() {
		fmt.Printf("[INFO] Serving metrics on %s\n", cfg.MetricsListenAddr)
		if err := exporter.Serve(cfg.MetricsListenAddr); err != nil {
			fmt.Fprintf(os.Stderr, "[ERROR] Metrics server failed: %v\n", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scope := ns
	if scope == "" {
		scope = "all namespaces"
	}
	fmt.Printf("[INFO] Watching disruption budgets in %s (interval: %s)\n", scope, cfg.WatchInterval)

	watcher := scanner.NewWatcher(scan, gate, exporter, ns, cfg.WatchInterval)
	if err := watcher.Run(ctx); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("[INFO] Watch stopped")
}

func runDrain(cmd *cobra.Command, args []string) {
	node := args[0]

	scan, err := scanner.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing scanner: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pods, err := scan.PodsOnNode(ctx, node)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(pods) == 0 {
		fmt.Printf("[INFO] No pods on node %s\n", node)
		return
	}
	fmt.Printf("[INFO] Node %s has %d pod(s)\n", node, len(pods))

	if dryRun {
		fmt.Println("[INFO] Dry-run mode: printing commands only")
		fmt.Printf("[INFO] Equivalent: %s\n", executor.DrainCommand(node))
		for _, pod := range pods {
			fmt.Println(executor.EvictionCommand(pod.Namespace, pod.Name))
		}
		return
	}

	if err := initStorage(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if store != nil {
		defer store.Close()
	}

	gate := admission.NewGate(cfg.AdmitMaxRetries)
	if err := scan.Refresh(ctx, "", gate); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	exporter := metrics.NewExporter()
	go func() {
		logVerbose("Serving metrics on %s", cfg.MetricsListenAddr)
		if err := exporter.Serve(cfg.MetricsListenAddr); err != nil {
			logVerbose("Metrics server stopped: %v", err)
		}
	}()

	drainer := drain.New(gate, drain.Options{
		MaxRetriesPerPod: drainRetries,
		Backoff:          time.Duration(drainBackoff) * time.Second,
		Verbose:          verbose,
		Observer:         exporter,
	})

	result, err := drainer.DrainPods(ctx, pods)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if saveResults && store != nil {
		for _, decision := range result.Decisions {
			if err := store.SaveDecision(ctx, decision); err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] Failed to save decision: %v\n", err)
			}
		}
	}

	fmt.Printf("[INFO] Drain of %s finished: %d evicted, %d blocked\n", node, result.Evicted, result.Blocked)
	if result.Blocked > 0 {
		fmt.Println("[INFO] Blocked pods can be retried once their budgets regain headroom")
	}
}

func runDrift(cmd *cobra.Command, args []string) {
	ns := targetNamespace()

	scan, err := scanner.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing scanner: %v\n", err)
		os.Exit(1)
	}

	source, err := datasource.NewPrometheusSource(cfg.PrometheusURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if !source.IsAvailable(ctx) {
		fmt.Fprintf(os.Stderr, "Error: Prometheus not reachable at %s\n", cfg.PrometheusURL)
		os.Exit(1)
	}
	logVerbose("Using Prometheus at %s", cfg.PrometheusURL)

	statuses, err := scan.Statuses(ctx, ns)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	driftCount := 0
	for _, status := range statuses {
		figures, err := source.BudgetFigures(ctx, status.Namespace, status.Name)
		if err != nil {
			fmt.Printf("[WARN] No cluster figures for %s/%s: %v\n", status.Namespace, status.Name, err)
			continue
		}

		drifts := datasource.CompareFigures(status, figures)
		for _, d := range drifts {
			fmt.Printf("[WARN] Drift: %s\n", d)
			driftCount++
		}
	}

	if driftCount == 0 {
		fmt.Printf("[INFO] No drift across %d budget(s)\n", len(statuses))
	} else {
		fmt.Printf("[INFO] Found %d drifting field(s)\n", driftCount)
		os.Exit(2)
	}
}

func runHistory(cmd *cobra.Command, args []string) {
	ns := args[0]

	if err := initStorageForced(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()

	if historyBudget != "" {
		records, err := store.GetBudgetHistory(ctx, ns, historyBudget, historyLimit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(records) == 0 {
			fmt.Printf("No evaluations found for budget %s/%s\n", ns, historyBudget)
			return
		}

		fmt.Printf("Evaluation history for budget '%s/%s':\n\n", ns, historyBudget)
		for i, record := range records {
			fmt.Printf("%d. %s\n", i+1, record.ObservedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("   Matched: %d, Healthy: %d/%d, Allowed: %d\n",
				record.Result.TotalMatched, record.Result.CurrentHealthy,
				record.Result.DesiredHealthy, record.Result.DisruptionsAllowed)
			fmt.Println()
		}
		return
	}

	decisions, err := store.ListDecisions(ctx, ns, historyLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(decisions) == 0 {
		fmt.Printf("No eviction decisions found for namespace: %s\n", ns)
		return
	}

	fmt.Printf("Recent eviction decisions in namespace '%s':\n\n", ns)
	for i, decision := range decisions {
		fmt.Printf("%d. %s (ID: %s)\n", i+1, decision.PodName, decision.ID)
		fmt.Printf("   Verdict: %s\n", decision.Verdict)
		fmt.Printf("   Reason: %s\n", decision.Reason)
		for _, outcome := range decision.Budgets {
			fmt.Printf("   Budget %s/%s: %d allowed\n", outcome.Namespace, outcome.Name, outcome.DisruptionsAllowed)
		}
		fmt.Printf("   Decided: %s\n", decision.DecidedAt.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
}

func outputText(statuses []models.BudgetStatus) {
	fmt.Println("=== Disruption Budgets ===")
	fmt.Println()

	for i, status := range statuses {
		fmt.Printf("%d. %s/%s\n", i+1, status.Namespace, status.Name)
		fmt.Printf("   Min available: %s\n", status.MinAvailable)
		fmt.Printf("   Max unavailable: %s\n", status.MaxUnavailable)
		fmt.Printf("   Pods: %d matched, %d healthy (minimum %d)\n",
			status.Result.TotalMatched, status.Result.CurrentHealthy, status.Result.DesiredHealthy)
		fmt.Printf("   Allowed disruptions: %d\n", status.Result.DisruptionsAllowed)
		if status.Age > 0 {
			fmt.Printf("   Age: %s\n", reporter.FormatAge(status.Age))
		}
		if status.Result.DisruptionsAllowed == 0 && status.Result.TotalMatched > 0 {
			fmt.Printf("   [WARN] Budget blocks all voluntary disruptions\n")
		}
		fmt.Println()
	}
}

func outputJSON(statuses []models.BudgetStatus) {
	output := map[string]interface{}{
		"budgets":   statuses,
		"count":     len(statuses),
		"timestamp": time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

func outputCSV(statuses []models.BudgetStatus) {
	rep := reporter.New(reporter.FormatCSV)
	report, err := rep.Generate(statuses, clusterID, namespace)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := reporter.GenerateCSV(report, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing CSV: %v\n", err)
		os.Exit(1)
	}
}

func generateBudgetReport(statuses []models.BudgetStatus, ns string) error {
	rep := reporter.New(reporter.ReportFormat(reportFormat))

	report, err := rep.Generate(statuses, clusterID, ns)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	reportsDir := "reports"
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return fmt.Errorf("failed to create reports directory: %w", err)
	}

	outputFile := reportOutput
	if outputFile == "" {
		timestamp := time.Now().Format("20060102-150405")
		nsName := ns
		if nsName == "" {
			nsName = "all-namespaces"
		}

		var ext string
		switch reportFormat {
		case "csv":
			ext = ".csv"
		default:
			ext = ".md"
		}

		outputFile = fmt.Sprintf("%s/pdb-report-%s-%s%s", reportsDir, nsName, timestamp, ext)
	} else if !strings.Contains(outputFile, "/") {
		outputFile = filepath.Join(reportsDir, outputFile)
	}

	file, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	switch reportFormat {
	case "markdown", "md":
		if err := reporter.GenerateMarkdown(report, file); err != nil {
			return fmt.Errorf("failed to write Markdown report: %w", err)
		}
	case "csv":
		if err := reporter.GenerateCSV(report, file); err != nil {
			return fmt.Errorf("failed to write CSV report: %w", err)
		}
	default:
		return fmt.Errorf("unsupported report format: %s", reportFormat)
	}

	fmt.Printf("\n[INFO] %s report generated: %s\n", strings.ToUpper(reportFormat), outputFile)

	return nil
}
