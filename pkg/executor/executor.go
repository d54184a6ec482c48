package executor

import (
	"fmt"

	"github.com/opscart/k8s-pdb-guard/pkg/models"
)

// GenerateCommand renders the kubectl command carrying out an admitted
// eviction decision. Rejected or conflicted decisions produce nothing.
func GenerateCommand(decision *models.EvictionDecision) string {
	if !decision.Admitted() {
		return ""
	}
	return EvictionCommand(decision.PodNamespace, decision.PodName)
}

// EvictionCommand renders the kubectl command removing one pod.
func EvictionCommand(namespace, name string) string {
	return fmt.Sprintf("kubectl delete pod --namespace=%s %s", namespace, name)
}

// DrainCommand renders the kubectl command draining a node.
func DrainCommand(node string) string {
	return fmt.Sprintf("kubectl drain --ignore-daemonsets --delete-emptydir-data %s", node)
}
