package budget

import (
	"fmt"
	"os"
	"strings"

	"github.com/opscart/k8s-pdb-guard/pkg/models"
	corev1 "k8s.io/api/core/v1"
	policyv1 "k8s.io/api/policy/v1"
	"sigs.k8s.io/yaml"
)

// Parse reads one or more PodDisruptionBudget manifests from YAML (or
// JSON) data. Multi-document files separated by "---" are supported.
func Parse(data []byte) ([]*models.Budget, error) {
	var budgets []*models.Budget

	for _, doc := range splitDocuments(data) {
		var pdb policyv1.PodDisruptionBudget
		if err := yaml.Unmarshal(doc, &pdb); err != nil {
			return nil, fmt.Errorf("failed to parse manifest: %w", err)
		}
		if pdb.Kind != "" && pdb.Kind != "PodDisruptionBudget" {
			return nil, fmt.Errorf("unexpected kind %q, want PodDisruptionBudget", pdb.Kind)
		}

		b, err := FromPDB(&pdb)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}

	if len(budgets) == 0 {
		return nil, fmt.Errorf("no PodDisruptionBudget documents found")
	}
	return budgets, nil
}

// LoadFile parses PodDisruptionBudget manifests from a file.
func LoadFile(path string) ([]*models.Budget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(data)
}

// ParsePods reads core/v1 Pod manifests (multi-document) into the
// internal pod model, deriving readiness from status conditions.
func ParsePods(data []byte) ([]models.Pod, error) {
	var pods []models.Pod

	for _, doc := range splitDocuments(data) {
		var pod corev1.Pod
		if err := yaml.Unmarshal(doc, &pod); err != nil {
			return nil, fmt.Errorf("failed to parse pod manifest: %w", err)
		}
		if pod.Kind != "" && pod.Kind != "Pod" {
			return nil, fmt.Errorf("unexpected kind %q, want Pod", pod.Kind)
		}
		if pod.Name == "" {
			return nil, fmt.Errorf("pod manifest missing metadata.name")
		}
		pods = append(pods, PodFromCore(&pod))
	}

	return pods, nil
}

// LoadPodFile parses Pod manifests from a file.
func LoadPodFile(path string) ([]models.Pod, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParsePods(data)
}

// PodFromCore converts an API pod to the internal model. A pod is ready
// when it is running and its Ready condition is true.
func PodFromCore(pod *corev1.Pod) models.Pod {
	ready := pod.Status.Phase == corev1.PodRunning
	if ready {
		ready = false
		for _, cond := range pod.Status.Conditions {
			if cond.Type == corev1.PodReady {
				ready = cond.Status == corev1.ConditionTrue
				break
			}
		}
	}

	return models.Pod{
		Name:      pod.Name,
		Namespace: pod.Namespace,
		Node:      pod.Spec.NodeName,
		Labels:    pod.Labels,
		Ready:     ready,
	}
}

func splitDocuments(data []byte) [][]byte {
	var docs [][]byte
	for _, doc := range strings.Split(string(data), "\n---") {
		if strings.TrimSpace(doc) == "" {
			continue
		}
		docs = append(docs, []byte(doc))
	}
	return docs
}
