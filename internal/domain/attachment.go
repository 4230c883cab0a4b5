package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Attachment is a file (voice note, photo) uploaded alongside a complaint.
type Attachment struct {
	ID          string    `gorm:"type:text;primaryKey" json:"id"`
	ComplaintID string    `gorm:"type:text;not null;index:idx_attachments_complaint" json:"complaintId"`
	StorageKey  string    `gorm:"type:text;not null" json:"storageKey"`
	URL         string    `gorm:"-" json:"url,omitempty"`
	ContentType string    `gorm:"type:text" json:"contentType"`
	Size        int64     `json:"size"`
	MD5Hash     string    `gorm:"type:text" json:"md5Hash"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	UploadedBy  string    `gorm:"type:text" json:"uploadedBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TableName returns the database table name for Attachment.
func (Attachment) TableName() string {
	return "complaint_attachments"
}

// BeforeCreate assigns a UUID when the caller did not set one.
func (a *Attachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}
