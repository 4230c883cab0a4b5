package service

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"
	"time"

	_ "golang.org/x/image/webp"

	"github.com/timmy/grievo/internal/domain"
	"github.com/timmy/grievo/internal/errs"
	"github.com/timmy/grievo/internal/logger"
	"github.com/timmy/grievo/internal/storage"
)

const defaultMaxAttachmentBytes = 10 << 20

// AttachmentStore records attachment metadata.
type AttachmentStore interface {
	CreateAttachment(ctx context.Context, a *domain.Attachment) error
}

// ComplaintLookup loads a complaint for ownership checks.
type ComplaintLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Complaint, error)
}

// AttachmentService uploads complaint files to object storage.
type AttachmentService struct {
	complaints ComplaintLookup
	store      AttachmentStore
	objects    storage.ObjectStorage
	maxBytes   int64
	now        func() time.Time
}

// NewAttachmentService creates an attachment service.
func NewAttachmentService(complaints ComplaintLookup, store AttachmentStore, objects storage.ObjectStorage, maxBytes int64, now func() time.Time) *AttachmentService {
	if maxBytes <= 0 {
		maxBytes = defaultMaxAttachmentBytes
	}
	if now == nil {
		now = time.Now
	}
	return &AttachmentService{complaints: complaints, store: store, objects: objects, maxBytes: maxBytes, now: now}
}

// MaxBytes is the largest accepted upload.
func (s *AttachmentService) MaxBytes() int64 {
	return s.maxBytes
}

// Add stores data under the complaint and records its metadata.
// Only the complaint owner or an admin may attach files.
func (s *AttachmentService) Add(ctx context.Context, complaintID string, uploader *domain.User, data []byte) (*domain.Attachment, error) {
	if len(data) == 0 {
		return nil, errs.New(errs.KindValidation, "Please provide a file")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, errs.Newf(errs.KindValidation, "file exceeds %d bytes", s.maxBytes)
	}

	complaint, err := s.complaints.GetByID(ctx, complaintID)
	if err != nil {
		return nil, err
	}
	if !uploader.IsAdmin() && complaint.OwnerID != uploader.ID {
		return nil, errs.New(errs.KindForbidden, "Not authorized to modify this complaint")
	}

	md5Hash := calculateMD5(data)
	contentType := http.DetectContentType(data)
	key := fmt.Sprintf("complaints/%s/%s/%s.%s", complaint.ID, md5Hash[:2], md5Hash, extensionFor(contentType))

	exists, err := s.objects.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check attachment storage: %w", err)
	}
	uploaded := false
	if !exists {
		if err := s.objects.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
			return nil, fmt.Errorf("failed to upload attachment: %w", err)
		}
		uploaded = true
	} else {
		logger.FromContext(ctx).WithField("storage_key", key).Debug("Attachment content already stored, skipping upload")
	}

	attachment := &domain.Attachment{
		ComplaintID: complaint.ID,
		StorageKey:  key,
		ContentType: contentType,
		Size:        int64(len(data)),
		MD5Hash:     md5Hash,
		UploadedBy:  uploader.ID,
		CreatedAt:   s.now().UTC(),
	}
	if strings.HasPrefix(contentType, "image/") {
		if w, h, err := getImageDimensions(data); err == nil {
			attachment.Width, attachment.Height = w, h
		}
	}

	if err := s.store.CreateAttachment(ctx, attachment); err != nil {
		if uploaded {
			if delErr := s.objects.Delete(ctx, key); delErr != nil {
				logger.CtxWarn(ctx, "Failed to remove orphaned attachment %s: %v", key, delErr)
			}
		}
		return nil, fmt.Errorf("failed to record attachment: %w", err)
	}
	attachment.URL = s.objects.GetURL(key)

	logger.With(logger.Fields{
		logger.FieldComplaintID: complaint.ID,
		logger.FieldSize:        attachment.Size,
		"content_type":          contentType,
	}).Info(ctx, "Attachment stored")
	return attachment, nil
}

// URL returns the public URL for a stored attachment.
func (s *AttachmentService) URL(a *domain.Attachment) string {
	return s.objects.GetURL(a.StorageKey)
}

func calculateMD5(data []byte) string {
	hash := md5.Sum(data)
	return hex.EncodeToString(hash[:])
}

func getImageDimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func extensionFor(contentType string) string {
	switch strings.SplitN(contentType, ";", 2)[0] {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "audio/mpeg":
		return "mp3"
	case "audio/wave":
		return "wav"
	case "audio/ogg", "application/ogg":
		return "ogg"
	case "application/pdf":
		return "pdf"
	case "text/plain":
		return "txt"
	default:
		return "bin"
	}
}
