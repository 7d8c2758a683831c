package repository

import (
	"gorm.io/gorm"
)

type Repository struct {
	JobStore JobStore
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		JobStore: NewJobStore(db),
	}
}
