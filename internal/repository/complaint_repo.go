package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/timmy/grievo/internal/domain"
	"github.com/timmy/grievo/internal/errs"
)

const complaintNotFound = "Complaint not found"

// ComplaintRepository handles complaint, timeline and attachment persistence.
type ComplaintRepository struct {
	db *gorm.DB
}

// NewComplaintRepository creates a new ComplaintRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *ComplaintRepository: repository instance bound to db.
func NewComplaintRepository(db *gorm.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

func orderedTimeline(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC, id ASC")
}

func orderedAttachments(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}

// Create inserts a complaint and its initial timeline entries.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - complaint: complaint with Timeline populated.
//
// Returns:
//   - error: non-nil if the insert fails.
func (r *ComplaintRepository) Create(ctx context.Context, complaint *domain.Complaint) error {
	return r.db.WithContext(ctx).Create(complaint).Error
}

// GetByID retrieves a complaint with its ordered timeline and attachments.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: complaint ID.
//
// Returns:
//   - *domain.Complaint: complaint if found.
//   - error: errs.KindNotFound when no complaint has id.
func (r *ComplaintRepository) GetByID(ctx context.Context, id string) (*domain.Complaint, error) {
	var complaint domain.Complaint
	err := r.db.WithContext(ctx).
		Preload("Timeline", orderedTimeline).
		Preload("Attachments", orderedAttachments).
		First(&complaint, "id = ?", id).Error
	if err != nil {
		return nil, translateError(err, complaintNotFound)
	}
	return &complaint, nil
}

// List returns every complaint, highest priority score first.
func (r *ComplaintRepository) List(ctx context.Context) ([]domain.Complaint, error) {
	var complaints []domain.Complaint
	err := r.db.WithContext(ctx).
		Preload("Timeline", orderedTimeline).
		Preload("Attachments", orderedAttachments).
		Order("priority_score DESC, created_at ASC").
		Find(&complaints).Error
	if err != nil {
		return nil, err
	}
	return complaints, nil
}

// ListByOwner returns a user's own complaints, newest first.
func (r *ComplaintRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Complaint, error) {
	var complaints []domain.Complaint
	err := r.db.WithContext(ctx).
		Preload("Timeline", orderedTimeline).
		Preload("Attachments", orderedAttachments).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&complaints).Error
	if err != nil {
		return nil, err
	}
	return complaints, nil
}

// UpdateStatus sets the status and appends entry within one transaction.
// The timeline row is a separate insert, so concurrent updates of the same
// complaint never lose entries; the status column is last-write-wins.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: complaint ID.
//   - status: new status.
//   - entry: timeline entry to append; its CreatedAt becomes updated_at.
//   - from: when non-empty, only apply while the current status is one of these.
//
// Returns:
//   - bool: whether the update was applied.
//   - error: errs.KindNotFound when no complaint has id.
func (r *ComplaintRepository) UpdateStatus(ctx context.Context, id string, status domain.Status, entry *domain.TimelineEntry, from []domain.Status) (bool, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&domain.Complaint{}).Where("id = ?", id)
		if len(from) > 0 {
			q = q.Where("status IN ?", from)
		}
		res := q.Updates(map[string]interface{}{
			"status":     status,
			"updated_at": entry.CreatedAt,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&domain.Complaint{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return errs.New(errs.KindNotFound, complaintNotFound)
			}
			return nil
		}

		entry.ComplaintID = id
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to append timeline entry: %w", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// ListStaleIDs returns ids of complaints in statuses created strictly before cutoff.
func (r *ComplaintRepository) ListStaleIDs(ctx context.Context, statuses []domain.Status, cutoff time.Time) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&domain.Complaint{}).
		Where("status IN ? AND created_at < ?", statuses, cutoff.UTC()).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// CreateAttachment records attachment metadata.
func (r *ComplaintRepository) CreateAttachment(ctx context.Context, a *domain.Attachment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

type groupCount struct {
	Name  string
	Count int64
}

func (r *ComplaintRepository) countBy(ctx context.Context, column string) ([]groupCount, error) {
	var rows []groupCount
	err := r.db.WithContext(ctx).
		Model(&domain.Complaint{}).
		Select(column + " AS name, COUNT(*) AS count").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count complaints by %s: %w", column, err)
	}
	return rows, nil
}

// Count returns the number of complaints.
func (r *ComplaintRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Complaint{}).Count(&count).Error
	return count, err
}

// CountByPriority groups complaints by priority label.
func (r *ComplaintRepository) CountByPriority(ctx context.Context) (map[domain.PriorityLabel]int64, error) {
	rows, err := r.countBy(ctx, "priority_label")
	if err != nil {
		return nil, err
	}
	out := make(map[domain.PriorityLabel]int64, len(rows))
	for _, row := range rows {
		out[domain.PriorityLabel(row.Name)] = row.Count
	}
	return out, nil
}

// CountByStatus groups complaints by status.
func (r *ComplaintRepository) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	rows, err := r.countBy(ctx, "status")
	if err != nil {
		return nil, err
	}
	out := make(map[domain.Status]int64, len(rows))
	for _, row := range rows {
		out[domain.Status(row.Name)] = row.Count
	}
	return out, nil
}

// CountByCategory groups complaints by category.
func (r *ComplaintRepository) CountByCategory(ctx context.Context) (map[string]int64, error) {
	rows, err := r.countBy(ctx, "category")
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Name] = row.Count
	}
	return out, nil
}

// ResolutionDurations returns updated_at minus created_at for complaints in status.
// The subtraction happens here rather than in SQL so both drivers agree.
func (r *ComplaintRepository) ResolutionDurations(ctx context.Context, status domain.Status) ([]time.Duration, error) {
	var rows []struct {
		CreatedAt time.Time
		UpdatedAt time.Time
	}
	err := r.db.WithContext(ctx).
		Model(&domain.Complaint{}).
		Select("created_at, updated_at").
		Where("status = ?", status).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]time.Duration, len(rows))
	for i, row := range rows {
		out[i] = row.UpdatedAt.Sub(row.CreatedAt)
	}
	return out, nil
}

// ListPendingBefore returns summary rows for complaints in statuses created before cutoff.
func (r *ComplaintRepository) ListPendingBefore(ctx context.Context, statuses []domain.Status, cutoff time.Time) ([]domain.Complaint, error) {
	var complaints []domain.Complaint
	err := r.db.WithContext(ctx).
		Select("id, category, priority_label, status, created_at").
		Where("status IN ? AND created_at < ?", statuses, cutoff.UTC()).
		Find(&complaints).Error
	if err != nil {
		return nil, err
	}
	return complaints, nil
}
