// Package backlog defines the planning engine's input records: backlog items
// and team members. The engine treats these as immutable plain data supplied
// by an external project-tracking source; it never mutates them.
package backlog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidItem indicates a caller supplied a record that violates the input
// contract. This is the only error class planning operations raise directly.
var ErrInvalidItem = errors.New("backlog: invalid input record")

// Priority hints carried on backlog items. Unknown values map to medium.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// Item is a unit of candidate work with an effort estimate and optional
// dependencies on other items by ID.
type Item struct {
	ID           string   `json:"id" validate:"required"`
	Title        string   `json:"title" validate:"required"`
	Description  string   `json:"description,omitempty"`
	Points       int      `json:"points" validate:"gte=0"`
	Priority     string   `json:"priority,omitempty" validate:"omitempty,oneof=critical high medium low"`
	Labels       []string `json:"labels,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// TeamMember is a planning-time view of one person on the team.
// Availability is the fraction of a full sprint they can commit (0–1).
type TeamMember struct {
	ID           string   `json:"id" validate:"required"`
	Name         string   `json:"name"`
	Availability float64  `json:"availability" validate:"gte=0,lte=1"`
	Skills       []string `json:"skills,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateItems checks the input contract for a batch of backlog items.
// Duplicate IDs and self-dependencies are rejected alongside field-level
// violations; dependencies on IDs outside the batch are allowed (treated as
// externally satisfied downstream).
func ValidateItems(items []Item) error {
	seen := make(map[string]struct{}, len(items))
	for i := range items {
		item := &items[i]
		if err := validate.Struct(item); err != nil {
			return fmt.Errorf("%w: item %q: %v", ErrInvalidItem, item.ID, err)
		}
		id := strings.TrimSpace(item.ID)
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate item id %q", ErrInvalidItem, id)
		}
		seen[id] = struct{}{}
		for _, dep := range item.Dependencies {
			if strings.TrimSpace(dep) == id {
				return fmt.Errorf("%w: item %q depends on itself", ErrInvalidItem, id)
			}
		}
	}
	return nil
}

// ValidateTeam checks the input contract for team member records.
func ValidateTeam(members []TeamMember) error {
	for i := range members {
		if err := validate.Struct(&members[i]); err != nil {
			return fmt.Errorf("%w: member %q: %v", ErrInvalidItem, members[i].ID, err)
		}
	}
	return nil
}

// NormalizePriority maps a raw priority hint to one of the four known values.
// Empty or unrecognized hints default to medium.
func NormalizePriority(priority string) string {
	switch strings.ToLower(strings.TrimSpace(priority)) {
	case PriorityCritical:
		return PriorityCritical
	case PriorityHigh:
		return PriorityHigh
	case PriorityLow:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// CloneItem returns a value copy of item with independently allocated slices.
// Reference-type fields that must be cloned: Dependencies, Labels.
func CloneItem(item Item) Item {
	if len(item.Dependencies) > 0 {
		cp := make([]string, len(item.Dependencies))
		copy(cp, item.Dependencies)
		item.Dependencies = cp
	}
	if len(item.Labels) > 0 {
		cp := make([]string, len(item.Labels))
		copy(cp, item.Labels)
		item.Labels = cp
	}
	return item
}
