package repository

import (
	"time"

	"giftwise-backend/internal/people/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WishlistRepository defines read/write access to recipient wishlists
type WishlistRepository interface {
	// FindPublicByRecipientID returns the recipient's public, active
	// wishlists with their items preloaded
	FindPublicByRecipientID(recipientID string) ([]domain.Wishlist, error)
	Save(wishlist *domain.Wishlist) error
}

// wishlistRepository implements WishlistRepository using GORM
type wishlistRepository struct {
	db *gorm.DB
}

func NewWishlistRepository(db *gorm.DB) WishlistRepository {
	return &wishlistRepository{db: db}
}

func (r *wishlistRepository) FindPublicByRecipientID(recipientID string) ([]domain.Wishlist, error) {
	var wishlists []domain.Wishlist
	err := r.db.Preload("Items").
		Where("recipient_id = ? AND public = ? AND active = ?", recipientID, true, true).
		Find(&wishlists).Error
	return wishlists, err
}

func (r *wishlistRepository) Save(wishlist *domain.Wishlist) error {
	if wishlist.ID == "" {
		wishlist.ID = uuid.New().String()
		wishlist.CreatedAt = time.Now()
	}
	for i := range wishlist.Items {
		if wishlist.Items[i].ID == "" {
			wishlist.Items[i].ID = uuid.New().String()
			wishlist.Items[i].WishlistID = wishlist.ID
			wishlist.Items[i].CreatedAt = time.Now()
		}
	}
	wishlist.UpdatedAt = time.Now()
	return r.db.Save(wishlist).Error
}
