package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/timmy/grievo/internal/domain"
)

const userNotFound = "User not found"

// UserRepository handles account persistence.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user. A duplicate phone yields errs.KindConflict.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	return translateError(r.db.WithContext(ctx).Create(u).Error, userNotFound)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translateError(err, userNotFound)
	}
	return &u, nil
}

func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).First(&u, "phone = ?", phone).Error; err != nil {
		return nil, translateError(err, userNotFound)
	}
	return &u, nil
}
