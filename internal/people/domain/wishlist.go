package domain

import "time"

// Wishlist is a recipient-owned list of wanted items. Only public,
// active lists are visible to the gift selector.
type Wishlist struct {
	ID          string         `json:"id" gorm:"primaryKey"`
	RecipientID string         `json:"recipient_id" gorm:"index;not null"`
	Name        string         `json:"name"`
	Public      bool           `json:"public"`
	Active      bool           `json:"active"`
	Items       []WishlistItem `json:"items,omitempty" gorm:"foreignKey:WishlistID"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// WishlistItem is one wanted product on a wishlist. Price is a pointer:
// items added by URL may not have a known price yet, and unpriced items
// are skipped by the selector.
type WishlistItem struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	WishlistID string    `json:"wishlist_id" gorm:"index;not null"`
	ProductID  string    `json:"product_id,omitempty"`
	Title      string    `json:"title" gorm:"not null"`
	Price      *float64  `json:"price,omitempty"`
	URL        string    `json:"url,omitempty"`
	Image      string    `json:"image,omitempty"`
	Category   string    `json:"category,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
