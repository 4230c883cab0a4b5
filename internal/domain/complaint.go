package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Status is the lifecycle state of a complaint.
type Status string

const (
	StatusSubmitted  Status = "Submitted"
	StatusInProgress Status = "InProgress"
	StatusCompleted  Status = "Completed"
	StatusRejected   Status = "Rejected"
	StatusEscalated  Status = "Escalated"
)

// AllStatuses lists every status in display order.
var AllStatuses = []Status{StatusSubmitted, StatusInProgress, StatusCompleted, StatusRejected, StatusEscalated}

// ManualStatuses are the statuses an administrator may set directly.
// Escalated is only ever set by the escalation sweep.
var ManualStatuses = []Status{StatusSubmitted, StatusInProgress, StatusCompleted, StatusRejected}

// PendingStatuses are the statuses the escalation sweep considers unresolved.
var PendingStatuses = []Status{StatusSubmitted, StatusInProgress}

// IsManualTarget reports whether s may be the target of an admin transition.
func (s Status) IsManualTarget() bool {
	for _, m := range ManualStatuses {
		if s == m {
			return true
		}
	}
	return false
}

// PriorityLabel is the priority tier derived from the best similarity score.
type PriorityLabel string

const (
	PriorityHigh   PriorityLabel = "High"
	PriorityMedium PriorityLabel = "Medium"
	PriorityLow    PriorityLabel = "Low"
)

// AllPriorities lists every priority label from highest to lowest.
var AllPriorities = []PriorityLabel{PriorityHigh, PriorityMedium, PriorityLow}

// Language is the language a complaint was submitted in.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageTamil   Language = "ta"
	LanguageHindi   Language = "hi"
)

// Valid reports whether l is one of the supported languages.
func (l Language) Valid() bool {
	switch l {
	case LanguageEnglish, LanguageTamil, LanguageHindi:
		return true
	}
	return false
}

const (
	// CategoryGeneral is the fallback category when nothing scores above -1.
	CategoryGeneral = "General"

	// DefaultPriorityScore is used for records created without a score.
	DefaultPriorityScore = 0.2
)

// Location is where the grievance was reported.
type Location struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Address   string   `gorm:"type:text;not null" json:"address"`
}

// Complaint is a citizen grievance with its classification and audit timeline.
type Complaint struct {
	ID                  string              `gorm:"type:text;primaryKey" json:"id"`
	OwnerID             string              `gorm:"type:text;not null;index:idx_complaints_owner" json:"userId"`
	TranscriptText      string              `gorm:"type:text;not null" json:"transcriptText"`
	Language            Language            `gorm:"type:text;not null;default:en" json:"language"`
	Category            string              `gorm:"type:text;not null;default:General;index:idx_complaints_category" json:"category"`
	PriorityScore       float64             `gorm:"not null;default:0.2;index:idx_complaints_priority_score" json:"priorityScore"`
	PriorityLabel       PriorityLabel       `gorm:"type:text;not null;default:Low" json:"priorityLabel"`
	SimilarityBreakdown SimilarityBreakdown `gorm:"type:text" json:"similarityBreakdown"`
	Status              Status              `gorm:"type:text;not null;default:Submitted;index:idx_complaints_status_created,priority:1" json:"status"`
	Location            Location            `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	AssignedTo          *string             `gorm:"type:text" json:"assignedTo,omitempty"`
	ETA                 *time.Time          `json:"eta,omitempty"`
	Timeline            []TimelineEntry     `gorm:"foreignKey:ComplaintID" json:"timeline"`
	Attachments         []Attachment        `gorm:"foreignKey:ComplaintID" json:"attachments,omitempty"`
	CreatedAt           time.Time           `gorm:"index:idx_complaints_status_created,priority:2" json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}

// TableName returns the database table name for Complaint.
func (Complaint) TableName() string {
	return "complaints"
}

// BeforeCreate assigns a UUID when the caller did not set one.
func (c *Complaint) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// TimelineEntry is one append-only audit record on a complaint.
// A nil Actor marks a system-initiated entry.
type TimelineEntry struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	ComplaintID string    `gorm:"type:text;not null;index:idx_timeline_complaint" json:"-"`
	Message     string    `gorm:"type:text;not null" json:"message"`
	Actor       *string   `gorm:"type:text" json:"updatedBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TableName returns the database table name for TimelineEntry.
func (TimelineEntry) TableName() string {
	return "complaint_timeline"
}

// IsSystem reports whether the entry was written without a human actor.
func (e TimelineEntry) IsSystem() bool {
	return e.Actor == nil
}

// AgingComplaint is a pending complaint annotated with how long it has waited.
type AgingComplaint struct {
	ID            string        `json:"id"`
	Category      string        `json:"category"`
	PriorityLabel PriorityLabel `json:"priorityLabel"`
	Status        Status        `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
	HoursPending  int64         `json:"hoursPending"`
}

// CategorySeed is one exemplar phrase representing a category.
type CategorySeed struct {
	Category string
	Phrase   string
}
