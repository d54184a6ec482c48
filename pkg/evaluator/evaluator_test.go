package evaluator

import (
	"testing"

	"github.com/opscart/k8s-pdb-guard/pkg/models"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/utils/ptr"
)

func testBudget(min, max *intstr.IntOrString) *models.Budget {
	sel := map[string]string{"app": "web"}
	return &models.Budget{
		Name:           "web-pdb",
		Namespace:      "default",
		MatchLabels:    sel,
		Selector:       labels.SelectorFromSet(sel),
		MinAvailable:   min,
		MaxUnavailable: max,
	}
}

func testPods(total, ready int) []models.Pod {
	pods := make([]models.Pod, 0, total)
	for i := 0; i < total; i++ {
		pods = append(pods, models.Pod{
			Name:      "web-" + string(rune('a'+i)),
			Namespace: "default",
			Labels:    map[string]string{"app": "web"},
			Ready:     i < ready,
		})
	}
	return pods
}

func TestResolveDesiredHealthy(t *testing.T) {
	tests := []struct {
		name         string
		min          *intstr.IntOrString
		max          *intstr.IntOrString
		totalMatched int
		want         int
	}{
		{
			name:         "minAvailable absolute",
			min:          ptr.To(intstr.FromInt32(3)),
			totalMatched: 10,
			want:         3,
		},
		{
			name:         "minAvailable 50% of 10 rounds to 5",
			min:          ptr.To(intstr.FromString("50%")),
			totalMatched: 10,
			want:         5,
		},
		{
			name:         "minAvailable 50% of 9 rounds up to 5",
			min:          ptr.To(intstr.FromString("50%")),
			totalMatched: 9,
			want:         5,
		},
		{
			name:         "maxUnavailable absolute",
			max:          ptr.To(intstr.FromInt32(2)),
			totalMatched: 10,
			want:         8,
		},
		{
			name:         "maxUnavailable larger than pod count clamps to zero",
			max:          ptr.To(intstr.FromInt32(15)),
			totalMatched: 10,
			want:         0,
		},
		{
			name:         "maxUnavailable 30% of 10 floors allowed-unavailable to 3",
			max:          ptr.To(intstr.FromString("30%")),
			totalMatched: 10,
			want:         7,
		},
		{
			name:         "maxUnavailable 30% of 9 floors allowed-unavailable to 2",
			max:          ptr.To(intstr.FromString("30%")),
			totalMatched: 9,
			want:         7,
		},
		{
			name:         "minAvailable 100%",
			min:          ptr.To(intstr.FromString("100%")),
			totalMatched: 7,
			want:         7,
		},
		{
			name:         "minAvailable 0%",
			min:          ptr.To(intstr.FromString("0%")),
			totalMatched: 7,
			want:         0,
		},
		{
			name:         "zero matched pods",
			min:          ptr.To(intstr.FromString("50%")),
			totalMatched: 0,
			want:         0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveDesiredHealthy(testBudget(tt.min, tt.max), tt.totalMatched)
			if err != nil {
				t.Fatalf("ResolveDesiredHealthy failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected desiredHealthy %d, got %d", tt.want, got)
			}
		})
	}
}

func TestResolveDesiredHealthyMalformed(t *testing.T) {
	tests := []struct {
		name string
		min  *intstr.IntOrString
	}{
		{"missing percent suffix", ptr.To(intstr.FromString("50"))},
		{"not a number", ptr.To(intstr.FromString("half%"))},
		{"over 100", ptr.To(intstr.FromString("150%"))},
		{"negative", ptr.To(intstr.FromString("-10%"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveDesiredHealthy(testBudget(tt.min, nil), 10)
			if err == nil {
				t.Errorf("Expected error for %q, got none", tt.min.StrVal)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	budget := testBudget(ptr.To(intstr.FromInt32(3)), nil)

	result, err := Evaluate(budget, testPods(10, 10))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if result.TotalMatched != 10 {
		t.Errorf("Expected 10 matched, got %d", result.TotalMatched)
	}
	if result.CurrentHealthy != 10 {
		t.Errorf("Expected 10 healthy, got %d", result.CurrentHealthy)
	}
	if result.DesiredHealthy != 3 {
		t.Errorf("Expected desiredHealthy 3, got %d", result.DesiredHealthy)
	}
	if result.DisruptionsAllowed != 7 {
		t.Errorf("Expected 7 allowed disruptions, got %d", result.DisruptionsAllowed)
	}
}

func TestEvaluateNotReadyPods(t *testing.T) {
	// 10 matched, 6 ready: not-ready pods count in the percentage base
	// but not in currentHealthy.
	budget := testBudget(ptr.To(intstr.FromString("50%")), nil)

	result, err := Evaluate(budget, testPods(10, 6))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if result.TotalMatched != 10 {
		t.Errorf("Expected 10 matched, got %d", result.TotalMatched)
	}
	if result.CurrentHealthy != 6 {
		t.Errorf("Expected 6 healthy, got %d", result.CurrentHealthy)
	}
	if result.DesiredHealthy != 5 {
		t.Errorf("Expected desiredHealthy 5, got %d", result.DesiredHealthy)
	}
	if result.DisruptionsAllowed != 1 {
		t.Errorf("Expected 1 allowed disruption, got %d", result.DisruptionsAllowed)
	}
}

func TestEvaluateIgnoresUnmatchedPods(t *testing.T) {
	budget := testBudget(ptr.To(intstr.FromInt32(1)), nil)

	pods := testPods(3, 3)
	pods = append(pods,
		models.Pod{Name: "db-a", Namespace: "default", Labels: map[string]string{"app": "db"}, Ready: true},
		models.Pod{Name: "web-x", Namespace: "other", Labels: map[string]string{"app": "web"}, Ready: true},
	)

	result, err := Evaluate(budget, pods)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if result.TotalMatched != 3 {
		t.Errorf("Expected 3 matched (wrong-label and wrong-namespace pods excluded), got %d", result.TotalMatched)
	}
}

func TestEvaluateNamespacelessPodsMatch(t *testing.T) {
	// Offline manifests may omit metadata.namespace; such pods count
	// toward any budget whose selector matches them.
	budget := testBudget(ptr.To(intstr.FromInt32(1)), nil)

	pods := []models.Pod{
		{Name: "web-a", Labels: map[string]string{"app": "web"}, Ready: true},
		{Name: "web-b", Labels: map[string]string{"app": "web"}, Ready: true},
	}

	result, err := Evaluate(budget, pods)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if result.TotalMatched != 2 {
		t.Errorf("Expected 2 matched pods without a namespace, got %d", result.TotalMatched)
	}
	if result.DisruptionsAllowed != 1 {
		t.Errorf("Expected 1 allowed disruption, got %d", result.DisruptionsAllowed)
	}
}

func TestEvaluateZeroMatchedPods(t *testing.T) {
	budget := testBudget(ptr.To(intstr.FromInt32(3)), nil)

	result, err := Evaluate(budget, nil)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if result.TotalMatched != 0 || result.CurrentHealthy != 0 {
		t.Errorf("Expected empty counts, got %+v", result)
	}
	// desiredHealthy stays at the absolute minimum; the budget is inert
	// because it matches nothing, so allowed disruptions reports 0.
	if result.DisruptionsAllowed != 0 {
		t.Errorf("Expected 0 allowed disruptions, got %d", result.DisruptionsAllowed)
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	budget := testBudget(nil, ptr.To(intstr.FromString("30%")))
	pods := testPods(10, 8)

	first, err := Evaluate(budget, pods)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	second, err := Evaluate(budget, pods)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if first != second {
		t.Errorf("Expected identical results, got %+v then %+v", first, second)
	}
}

// Mirrors the drain sequence: minAvailable=3 over 10 ready pods, evicting
// one pod at a time until the budget blocks.
func TestEvaluateEvictionSequence(t *testing.T) {
	budget := testBudget(ptr.To(intstr.FromInt32(3)), nil)

	steps := []struct {
		ready       int
		wantAllowed int
	}{
		{10, 7},
		{4, 1},
		{3, 0},
	}

	for _, step := range steps {
		result, err := Evaluate(budget, testPods(step.ready, step.ready))
		if err != nil {
			t.Fatalf("Evaluate failed at %d ready: %v", step.ready, err)
		}
		if result.DisruptionsAllowed != step.wantAllowed {
			t.Errorf("With %d ready pods expected %d allowed, got %d",
				step.ready, step.wantAllowed, result.DisruptionsAllowed)
		}
		// Core invariant: allowed = max(0, currentHealthy - desiredHealthy)
		want := result.CurrentHealthy - result.DesiredHealthy
		if want < 0 {
			want = 0
		}
		if result.DisruptionsAllowed != want {
			t.Errorf("Invariant violated: allowed=%d, currentHealthy=%d, desiredHealthy=%d",
				result.DisruptionsAllowed, result.CurrentHealthy, result.DesiredHealthy)
		}
	}
}
