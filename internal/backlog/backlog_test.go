package backlog

import (
	"errors"
	"testing"
)

func TestValidateItems_AcceptsWellFormedBatch(t *testing.T) {
	items := []Item{
		{ID: "A", Title: "Auth service", Points: 5, Priority: "critical"},
		{ID: "B", Title: "Login UI", Points: 3, Dependencies: []string{"A"}},
		{ID: "C", Title: "Docs", Points: 1, Dependencies: []string{"external-1"}},
	}
	if err := ValidateItems(items); err != nil {
		t.Fatalf("ValidateItems: %v", err)
	}
}

func TestValidateItems_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		items []Item
	}{
		{"missing id", []Item{{Title: "x", Points: 1}}},
		{"missing title", []Item{{ID: "A", Points: 1}}},
		{"negative points", []Item{{ID: "A", Title: "x", Points: -1}}},
		{"unknown priority", []Item{{ID: "A", Title: "x", Priority: "urgent"}}},
		{"duplicate ids", []Item{{ID: "A", Title: "x"}, {ID: "A", Title: "y"}}},
		{"self dependency", []Item{{ID: "A", Title: "x", Dependencies: []string{"A"}}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateItems(tc.items)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidItem) {
				t.Fatalf("expected ErrInvalidItem, got: %v", err)
			}
		})
	}
}

func TestValidateTeam_AvailabilityBounds(t *testing.T) {
	ok := []TeamMember{{ID: "m1", Name: "Sam", Availability: 0.8}}
	if err := ValidateTeam(ok); err != nil {
		t.Fatalf("ValidateTeam: %v", err)
	}

	bad := []TeamMember{{ID: "m2", Name: "Al", Availability: 1.5}}
	if err := ValidateTeam(bad); !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("expected ErrInvalidItem for availability > 1, got: %v", err)
	}
}

func TestNormalizePriority(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"critical", PriorityCritical},
		{" HIGH ", PriorityHigh},
		{"low", PriorityLow},
		{"medium", PriorityMedium},
		{"", PriorityMedium},
		{"p0", PriorityMedium},
	}
	for _, tc := range tests {
		if got := NormalizePriority(tc.in); got != tc.want {
			t.Errorf("NormalizePriority(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCloneItem_IndependentSlices(t *testing.T) {
	orig := Item{ID: "A", Title: "x", Dependencies: []string{"B"}, Labels: []string{"infra"}}
	cp := CloneItem(orig)
	cp.Dependencies[0] = "Z"
	cp.Labels[0] = "changed"

	if orig.Dependencies[0] != "B" || orig.Labels[0] != "infra" {
		t.Fatal("CloneItem shares slice storage with the original")
	}
}
