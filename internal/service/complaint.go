package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/timmy/grievo/internal/domain"
	"github.com/timmy/grievo/internal/errs"
	"github.com/timmy/grievo/internal/logger"
)

const (
	submittedMessage = "Complaint submitted"
	escalatedMessage = "Complaint automatically escalated due to 48+ hours delay."
)

// ComplaintStore persists complaints and their timelines.
type ComplaintStore interface {
	// Create inserts the complaint together with its initial timeline.
	Create(ctx context.Context, complaint *domain.Complaint) error
	// GetByID loads a complaint with its ordered timeline. Missing ids yield errs.KindNotFound.
	GetByID(ctx context.Context, id string) (*domain.Complaint, error)
	// List returns every complaint, highest priority score first.
	List(ctx context.Context) ([]domain.Complaint, error)
	// ListByOwner returns one user's complaints, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Complaint, error)
	// UpdateStatus sets status and updated_at and appends entry in one transaction.
	// When from is non-empty the update only applies while the current status is in
	// from; applied reports whether it did. Missing ids yield errs.KindNotFound.
	UpdateStatus(ctx context.Context, id string, status domain.Status, entry *domain.TimelineEntry, from []domain.Status) (applied bool, err error)
	// ListStaleIDs returns ids of complaints in statuses created strictly before cutoff.
	ListStaleIDs(ctx context.Context, statuses []domain.Status, cutoff time.Time) ([]string, error)
}

// VectorClassifier scores an embedding against the category seeds.
type VectorClassifier interface {
	Classify(vector []float32) (*Classification, error)
}

// Preview is a classification result that was not persisted.
type Preview struct {
	Category            string                     `json:"category"`
	PriorityLabel       domain.PriorityLabel       `json:"priorityLabel"`
	PriorityScore       float64                    `json:"priorityScore"`
	SimilarityBreakdown domain.SimilarityBreakdown `json:"similarityBreakdown"`
}

// CreateComplaintInput is what a citizen submits.
type CreateComplaintInput struct {
	Text     string
	Language domain.Language
	Location *domain.Location
	OwnerID  string
}

// ComplaintService drives classification and the complaint status lifecycle.
type ComplaintService struct {
	store      ComplaintStore
	embedder   Embedder
	classifier VectorClassifier
	now        func() time.Time
}

// NewComplaintService creates a complaint service. A nil now uses time.Now.
func NewComplaintService(store ComplaintStore, embedder Embedder, classifier VectorClassifier, now func() time.Time) *ComplaintService {
	if now == nil {
		now = time.Now
	}
	return &ComplaintService{
		store:      store,
		embedder:   embedder,
		classifier: classifier,
		now:        now,
	}
}

// Preview classifies text without persisting anything.
func (s *ComplaintService) Preview(ctx context.Context, text string, language domain.Language) (*Preview, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errs.New(errs.KindValidation, "Please provide transcript text")
	}
	if _, err := normalizeLanguage(language); err != nil {
		return nil, err
	}

	result, err := s.classify(ctx, text)
	if err != nil {
		return nil, err
	}
	return &Preview{
		Category:            result.Category,
		PriorityLabel:       AssignPriority(result.Score),
		PriorityScore:       result.Score,
		SimilarityBreakdown: result.Breakdown,
	}, nil
}

// Create classifies and persists a new complaint in the Submitted state.
func (s *ComplaintService) Create(ctx context.Context, in CreateComplaintInput) (*domain.Complaint, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" || in.Location == nil || strings.TrimSpace(in.Location.Address) == "" {
		return nil, errs.New(errs.KindValidation, "Please provide transcript text and location")
	}
	if in.OwnerID == "" {
		return nil, errs.New(errs.KindValidation, "owner is required")
	}
	language, err := normalizeLanguage(in.Language)
	if err != nil {
		return nil, err
	}

	result, err := s.classify(ctx, text)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	owner := in.OwnerID
	complaint := &domain.Complaint{
		OwnerID:             owner,
		TranscriptText:      text,
		Language:            language,
		Category:            result.Category,
		PriorityScore:       result.Score,
		PriorityLabel:       AssignPriority(result.Score),
		SimilarityBreakdown: result.Breakdown,
		Status:              domain.StatusSubmitted,
		Location:            *in.Location,
		Timeline: []domain.TimelineEntry{
			{Message: submittedMessage, Actor: &owner, CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Create(ctx, complaint); err != nil {
		return nil, fmt.Errorf("failed to create complaint: %w", err)
	}

	logger.With(logger.Fields{
		logger.FieldComplaintID: complaint.ID,
		logger.FieldCategory:    complaint.Category,
		logger.FieldScore:       result.Score,
	}).Info(ctx, "Complaint created with priority %s", complaint.PriorityLabel)
	return complaint, nil
}

// Transition applies an administrator's status change. Only the target status
// is validated; the current status may be anything, including Escalated.
// An empty message defaults to "Status updated to <status>".
func (s *ComplaintService) Transition(ctx context.Context, id string, status domain.Status, message string, actor *string) (*domain.Complaint, error) {
	if status == "" {
		return nil, errs.New(errs.KindValidation, "Please provide a validation status")
	}
	if !status.IsManualTarget() {
		return nil, errs.New(errs.KindValidation, "Invalid status")
	}
	if strings.TrimSpace(message) == "" {
		message = fmt.Sprintf("Status updated to %s", status)
	}

	entry := &domain.TimelineEntry{Message: message, Actor: actor, CreatedAt: s.now().UTC()}
	if _, err := s.store.UpdateStatus(ctx, id, status, entry, nil); err != nil {
		return nil, err
	}

	ctx = logger.SetComplaintID(ctx, id)
	logger.With(logger.Fields{logger.FieldStatus: string(status)}).Info(ctx, "Complaint status updated")
	return s.store.GetByID(ctx, id)
}

// Escalate moves a still-pending complaint to Escalated with a system entry
// dated at. It reports false without writing anything when the complaint is
// no longer pending.
func (s *ComplaintService) Escalate(ctx context.Context, id string, at time.Time) (bool, error) {
	entry := &domain.TimelineEntry{Message: escalatedMessage, CreatedAt: at.UTC()}
	applied, err := s.store.UpdateStatus(ctx, id, domain.StatusEscalated, entry, domain.PendingStatuses)
	if err != nil {
		return false, err
	}
	return applied, nil
}

// Get returns one complaint with its timeline.
func (s *ComplaintService) Get(ctx context.Context, id string) (*domain.Complaint, error) {
	return s.store.GetByID(ctx, id)
}

// List returns every complaint, highest priority score first.
func (s *ComplaintService) List(ctx context.Context) ([]domain.Complaint, error) {
	return s.store.List(ctx)
}

// ListMine returns the complaints submitted by ownerID, newest first.
func (s *ComplaintService) ListMine(ctx context.Context, ownerID string) ([]domain.Complaint, error) {
	if ownerID == "" {
		return nil, errs.New(errs.KindValidation, "owner is required")
	}
	return s.store.ListByOwner(ctx, ownerID)
}

func (s *ComplaintService) classify(ctx context.Context, text string) (*Classification, error) {
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return s.classifier.Classify(vector)
}

func normalizeLanguage(l domain.Language) (domain.Language, error) {
	if l == "" {
		return domain.LanguageEnglish, nil
	}
	if !l.Valid() {
		return "", errs.Newf(errs.KindValidation, "unsupported language %q", l)
	}
	return l, nil
}
