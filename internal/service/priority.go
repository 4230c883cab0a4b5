package service

import "github.com/timmy/grievo/internal/domain"

const (
	highPriorityThreshold   = 0.65
	mediumPriorityThreshold = 0.40
)

// AssignPriority maps a best-match similarity to a priority tier.
// Both thresholds are strict: exactly 0.65 is Medium, exactly 0.40 is Low.
func AssignPriority(score float64) domain.PriorityLabel {
	switch {
	case score > highPriorityThreshold:
		return domain.PriorityHigh
	case score > mediumPriorityThreshold:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}
