package repository

import (
	"time"

	"giftwise-backend/internal/people/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProfileRepository defines read/write access to recipient profiles
type ProfileRepository interface {
	FindByID(id string) (*domain.RecipientProfile, error)
	Save(profile *domain.RecipientProfile) error
}

// profileRepository implements ProfileRepository using GORM
type profileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) FindByID(id string) (*domain.RecipientProfile, error) {
	var profile domain.RecipientProfile
	err := r.db.Where("id = ?", id).First(&profile).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) Save(profile *domain.RecipientProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.New().String()
		profile.CreatedAt = time.Now()
	}
	profile.UpdatedAt = time.Now()
	return r.db.Save(profile).Error
}
