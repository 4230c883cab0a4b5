package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/timmy/grievo/internal/domain"
)

// DashboardStore provides the aggregates behind the admin dashboard.
type DashboardStore interface {
	Count(ctx context.Context) (int64, error)
	CountByPriority(ctx context.Context) (map[domain.PriorityLabel]int64, error)
	CountByStatus(ctx context.Context) (map[domain.Status]int64, error)
	CountByCategory(ctx context.Context) (map[string]int64, error)
	// ResolutionDurations returns updated_at - created_at for every complaint in status.
	ResolutionDurations(ctx context.Context, status domain.Status) ([]time.Duration, error)
	ListPendingBefore(ctx context.Context, statuses []domain.Status, cutoff time.Time) ([]domain.Complaint, error)
}

// DashboardStats is the overview shown on the admin dashboard.
type DashboardStats struct {
	TotalComplaints            int64   `json:"totalComplaints"`
	HighPriority               int64   `json:"highPriority"`
	MediumPriority             int64   `json:"mediumPriority"`
	LowPriority                int64   `json:"lowPriority"`
	Submitted                  int64   `json:"submitted"`
	InProgress                 int64   `json:"inProgress"`
	Completed                  int64   `json:"completed"`
	Rejected                   int64   `json:"rejected"`
	Escalated                  int64   `json:"escalated"`
	AverageResolutionTimeHours float64 `json:"averageResolutionTimeHours"`
}

// DashboardService derives read-only views from persisted complaints.
type DashboardService struct {
	store      DashboardStore
	categories []string
	threshold  time.Duration
	now        func() time.Time
}

// NewDashboardService creates a dashboard service. categories are always
// reported, even with a zero count, followed by General.
func NewDashboardService(store DashboardStore, categories []string, threshold time.Duration, now func() time.Time) *DashboardService {
	if threshold <= 0 {
		threshold = DefaultEscalationThreshold
	}
	if now == nil {
		now = time.Now
	}
	return &DashboardService{store: store, categories: categories, threshold: threshold, now: now}
}

// Stats returns totals, per-priority and per-status counts, and mean resolution time.
func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count complaints: %w", err)
	}
	byPriority, err := s.store.CountByPriority(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count by priority: %w", err)
	}
	byStatus, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}
	durations, err := s.store.ResolutionDurations(ctx, domain.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to load resolution times: %w", err)
	}

	var avgHours float64
	if len(durations) > 0 {
		var sum time.Duration
		for _, d := range durations {
			sum += d
		}
		avgHours = round2(sum.Hours() / float64(len(durations)))
	}

	return &DashboardStats{
		TotalComplaints:            total,
		HighPriority:               byPriority[domain.PriorityHigh],
		MediumPriority:             byPriority[domain.PriorityMedium],
		LowPriority:                byPriority[domain.PriorityLow],
		Submitted:                  byStatus[domain.StatusSubmitted],
		InProgress:                 byStatus[domain.StatusInProgress],
		Completed:                  byStatus[domain.StatusCompleted],
		Rejected:                   byStatus[domain.StatusRejected],
		Escalated:                  byStatus[domain.StatusEscalated],
		AverageResolutionTimeHours: avgHours,
	}, nil
}

// PriorityDistribution returns High, Medium, Low counts. Unknown labels are dropped.
func (s *DashboardService) PriorityDistribution(ctx context.Context) (domain.Distribution, error) {
	counts, err := s.store.CountByPriority(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count by priority: %w", err)
	}
	dist := make(domain.Distribution, 0, len(domain.AllPriorities))
	for _, p := range domain.AllPriorities {
		dist = append(dist, domain.NamedCount{Name: string(p), Count: counts[p]})
	}
	return dist, nil
}

// CategoryDistribution returns counts for every known category and General,
// followed by any other stored category in name order.
func (s *DashboardService) CategoryDistribution(ctx context.Context) (domain.Distribution, error) {
	counts, err := s.store.CountByCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count by category: %w", err)
	}

	known := make(map[string]bool, len(s.categories)+1)
	dist := make(domain.Distribution, 0, len(s.categories)+1)
	for _, name := range append(append([]string{}, s.categories...), domain.CategoryGeneral) {
		if known[name] {
			continue
		}
		known[name] = true
		dist = append(dist, domain.NamedCount{Name: name, Count: counts[name]})
	}

	var extra []string
	for name := range counts {
		if name != "" && !known[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		dist = append(dist, domain.NamedCount{Name: name, Count: counts[name]})
	}
	return dist, nil
}

// Aging lists pending complaints older than the threshold, longest waiting first.
func (s *DashboardService) Aging(ctx context.Context) ([]domain.AgingComplaint, error) {
	now := s.now().UTC()
	complaints, err := s.store.ListPendingBefore(ctx, domain.PendingStatuses, now.Add(-s.threshold))
	if err != nil {
		return nil, fmt.Errorf("failed to list aging complaints: %w", err)
	}

	out := make([]domain.AgingComplaint, 0, len(complaints))
	for _, c := range complaints {
		out = append(out, domain.AgingComplaint{
			ID:            c.ID,
			Category:      c.Category,
			PriorityLabel: c.PriorityLabel,
			Status:        c.Status,
			CreatedAt:     c.CreatedAt,
			HoursPending:  int64(now.Sub(c.CreatedAt) / time.Hour),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].HoursPending > out[j].HoursPending
	})
	return out, nil
}
