package scanner

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/opscart/k8s-pdb-guard/pkg/admission"
	"github.com/opscart/k8s-pdb-guard/pkg/budget"
	"github.com/opscart/k8s-pdb-guard/pkg/evaluator"
	"github.com/opscart/k8s-pdb-guard/pkg/models"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

// Scanner reads disruption budgets and pods from a live cluster and
// assembles their evaluated statuses.
type Scanner struct {
	clientset kubernetes.Interface
}

func New() (*Scanner, error) {
	var kubeconfig string
	if home := homedir.HomeDir(); home != "" {
		kubeconfig = filepath.Join(home, ".kube", "config")
	}

	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	return &Scanner{clientset: clientset}, nil
}

// NewWithClient wraps an existing clientset; tests pass the fake.
func NewWithClient(clientset kubernetes.Interface) *Scanner {
	return &Scanner{clientset: clientset}
}

// Budgets lists and validates PodDisruptionBudgets. Objects that fail
// validation are skipped with a warning rather than failing the scan;
// a broken budget in one namespace should not hide the rest.
func (s *Scanner) Budgets(ctx context.Context, namespace string) ([]*models.Budget, error) {
	if namespace == "" {
		namespace = metav1.NamespaceAll
	}

	pdbs, err := s.clientset.PolicyV1().PodDisruptionBudgets(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list pod disruption budgets: %w", err)
	}

	var budgets []*models.Budget
	for i := range pdbs.Items {
		b, err := budget.FromPDB(&pdbs.Items[i])
		if err != nil {
			fmt.Printf("[WARN] Skipping invalid budget: %v\n", err)
			continue
		}
		budgets = append(budgets, b)
	}

	return budgets, nil
}

// Pods lists pods in the namespace converted to the internal model.
func (s *Scanner) Pods(ctx context.Context, namespace string) ([]models.Pod, error) {
	if namespace == "" {
		namespace = metav1.NamespaceAll
	}

	list, err := s.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}

	pods := make([]models.Pod, 0, len(list.Items))
	for i := range list.Items {
		pods = append(pods, budget.PodFromCore(&list.Items[i]))
	}

	return pods, nil
}

// PodsOnNode lists pods scheduled to the given node across namespaces.
func (s *Scanner) PodsOnNode(ctx context.Context, node string) ([]models.Pod, error) {
	list, err := s.clientset.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{
		FieldSelector: "spec.nodeName=" + node,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods on node %s: %w", node, err)
	}

	pods := make([]models.Pod, 0, len(list.Items))
	for i := range list.Items {
		pods = append(pods, budget.PodFromCore(&list.Items[i]))
	}

	return pods, nil
}

// Statuses lists budgets and pods, evaluates every budget, and returns
// the query surface: identity, resolved spec, evaluation, age.
func (s *Scanner) Statuses(ctx context.Context, namespace string) ([]models.BudgetStatus, error) {
	budgets, err := s.Budgets(ctx, namespace)
	if err != nil {
		return nil, err
	}
	pods, err := s.Pods(ctx, namespace)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	statuses := make([]models.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		result, err := evaluator.Evaluate(b, pods)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate budget %s: %w", b.Key(), err)
		}

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

	return statuses, nil
}

// Refresh re-lists budgets and pods and replaces the gate's registry
// state, dropping budgets that no longer exist.
func (s *Scanner) Refresh(ctx context.Context, namespace string, gate *admission.Gate) error {
	budgets, err := s.Budgets(ctx, namespace)
	if err != nil {
		return err
	}
	pods, err := s.Pods(ctx, namespace)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(budgets))
	for _, b := range budgets {
		result, err := evaluator.Evaluate(b, pods)
		if err != nil {
			fmt.Printf("[WARN] Skipping budget %s: %v\n", b.Key(), err)
			continue
		}
		gate.SetBudget(b, result)
		seen[b.Key()] = true
	}

	for _, key := range gate.Keys() {
		if !seen[key] {
			gate.RemoveBudget(key)
		}
	}

	return nil
}
