package budget

import (
	"strings"
	"testing"

	policyv1 "k8s.io/api/policy/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/utils/ptr"
)

func validPDB() *policyv1.PodDisruptionBudget {
	return &policyv1.PodDisruptionBudget{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "web-pdb",
			Namespace: "default",
		},
		Spec: policyv1.PodDisruptionBudgetSpec{
			MinAvailable: ptr.To(intstr.FromInt32(3)),
			Selector: &metav1.LabelSelector{
				MatchLabels: map[string]string{"app": "web"},
			},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*policyv1.PodDisruptionBudget)
		expectError   bool
		errorContains string
	}{
		{
			name:        "valid minAvailable",
			mutate:      func(p *policyv1.PodDisruptionBudget) {},
			expectError: false,
		},
		{
			name: "valid maxUnavailable percentage",
			mutate: func(p *policyv1.PodDisruptionBudget) {
				p.Spec.MinAvailable = nil
				p.Spec.MaxUnavailable = ptr.To(intstr.FromString("30%"))
			},
			expectError: false,
		},
		{
			name: "both fields set",
			mutate: func(p *policyv1.PodDisruptionBudget) {
				p.Spec.MaxUnavailable = ptr.To(intstr.FromInt32(2))
			},
			expectError:   true,
			errorContains: "mutually exclusive",
		},
		{
			name: "neither field set",
			mutate: func(p *policyv1.PodDisruptionBudget) {
				p.Spec.MinAvailable = nil
			},
			expectError:   true,
			errorContains: "one of",
		},
		{
			name: "malformed percentage",
			mutate: func(p *policyv1.PodDisruptionBudget) {
				p.Spec.MinAvailable = ptr.To(intstr.FromString("fifty%"))
			},
			expectError:   true,
			errorContains: "malformed percentage",
		},
		{
			name: "percentage without suffix",
			mutate: func(p *policyv1.PodDisruptionBudget) {
				p.Spec.MinAvailable = ptr.To(intstr.FromString("50"))
			},
			expectError:   true,
			errorContains: "missing % suffix",
		},
		{
			name: "negative minAvailable",
			mutate: func(p *policyv1.PodDisruptionBudget) {
				p.Spec.MinAvailable = ptr.To(intstr.FromInt32(-1))
			},
			expectError:   true,
			errorContains: "negative",
		},
		{
			name: "missing name",
			mutate: func(p *policyv1.PodDisruptionBudget) {
				p.Name = ""
			},
			expectError:   true,
			errorContains: "metadata.name",
		},
		{
			name: "missing selector",
			mutate: func(p *policyv1.PodDisruptionBudget) {
				p.Spec.Selector = nil
			},
			expectError:   true,
			errorContains: "selector",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdb := validPDB()
			tt.mutate(pdb)

			err := Validate(pdb)

			if tt.expectError && err == nil {
				t.Errorf("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
			if tt.expectError && err != nil && tt.errorContains != "" {
				if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error containing %q, got %q", tt.errorContains, err.Error())
				}
			}
		})
	}
}

func TestFromPDB(t *testing.T) {
	b, err := FromPDB(validPDB())
	if err != nil {
		t.Fatalf("FromPDB failed: %v", err)
	}

	if b.Key() != "default/web-pdb" {
		t.Errorf("Expected key default/web-pdb, got %s", b.Key())
	}
	if !b.Matches(map[string]string{"app": "web", "tier": "frontend"}) {
		t.Error("Expected selector to match labeled pod")
	}
	if b.Matches(map[string]string{"app": "db"}) {
		t.Error("Expected selector to reject non-matching pod")
	}
}

const multiDocManifest = `apiVersion: policy/v1
kind: PodDisruptionBudget
metadata:
  name: web-pdb
  namespace: default
spec:
  minAvailable: 3
  selector:
    matchLabels:
      app: web
---
apiVersion: policy/v1
kind: PodDisruptionBudget
metadata:
  name: cache-pdb
  namespace: default
spec:
  maxUnavailable: "30%"
  selector:
    matchLabels:
      app: cache
`

func TestParseMultiDocument(t *testing.T) {
	budgets, err := Parse([]byte(multiDocManifest))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(budgets) != 2 {
		t.Fatalf("Expected 2 budgets, got %d", len(budgets))
	}
	if budgets[0].Name != "web-pdb" || budgets[1].Name != "cache-pdb" {
		t.Errorf("Unexpected budget names: %s, %s", budgets[0].Name, budgets[1].Name)
	}
	if budgets[0].MinAvailable == nil || budgets[0].MinAvailable.IntValue() != 3 {
		t.Errorf("Expected minAvailable 3, got %v", budgets[0].MinAvailable)
	}
	if budgets[1].MaxUnavailable == nil || budgets[1].MaxUnavailable.StrVal != "30%" {
		t.Errorf("Expected maxUnavailable 30%%, got %v", budgets[1].MaxUnavailable)
	}
}

func TestParseRejectsInvalidSpec(t *testing.T) {
	manifest := `apiVersion: policy/v1
kind: PodDisruptionBudget
metadata:
  name: bad-pdb
  namespace: default
spec:
  minAvailable: 3
  maxUnavailable: 2
  selector:
    matchLabels:
      app: web
`
	_, err := Parse([]byte(manifest))
	if err == nil {
		t.Fatal("Expected validation error for both fields set")
	}
	if !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("Expected mutual-exclusion error, got: %v", err)
	}
}

func TestParseRejectsWrongKind(t *testing.T) {
	manifest := `apiVersion: v1
kind: ConfigMap
metadata:
  name: not-a-pdb
  namespace: default
`
	_, err := Parse([]byte(manifest))
	if err == nil {
		t.Fatal("Expected error for wrong kind")
	}
}

func TestParsePods(t *testing.T) {
	manifest := `apiVersion: v1
kind: Pod
metadata:
  name: web-a
  namespace: default
  labels:
    app: web
spec:
  nodeName: node-1
status:
  phase: Running
  conditions:
  - type: Ready
    status: "True"
---
apiVersion: v1
kind: Pod
metadata:
  name: web-b
  namespace: default
  labels:
    app: web
status:
  phase: Pending
`
	pods, err := ParsePods([]byte(manifest))
	if err != nil {
		t.Fatalf("ParsePods failed: %v", err)
	}

	if len(pods) != 2 {
		t.Fatalf("Expected 2 pods, got %d", len(pods))
	}
	if !pods[0].Ready {
		t.Error("Expected running pod with Ready condition to be ready")
	}
	if pods[0].Node != "node-1" {
		t.Errorf("Expected node-1, got %s", pods[0].Node)
	}
	if pods[1].Ready {
		t.Error("Expected pending pod to be not ready")
	}
}
