package database

import (
	"context"
	"gorm.io/gorm"
	"paperstack/internal/types"
)

type (
	documentRepository struct {
		db *gorm.DB
	}

	userRepository struct {
		db *gorm.DB
	}

	staffRepository struct {
		db *gorm.DB
	}
)

func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// FindAll skips soft deleted documents.
func (d documentRepository) FindAll(ctx context.Context) ([]*types.Document, error) {
	values := make([]*types.Document, 0)
	err := d.db.WithContext(ctx).Order("id ASC").Find(&values).Error
	return values, err
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (u userRepository) FindAll(ctx context.Context) ([]*types.User, error) {
	values := make([]*types.User, 0)
	err := u.db.WithContext(ctx).Order("id ASC").Find(&values).Error
	return values, err
}

func NewStaffRepository(db *gorm.DB) StaffRepository {
	return &staffRepository{db: db}
}

func (s staffRepository) FindAll(ctx context.Context) ([]*types.Staff, error) {
	values := make([]*types.Staff, 0)
	err := s.db.WithContext(ctx).Order("id ASC").Find(&values).Error
	return values, err
}
