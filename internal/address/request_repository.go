package address

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestStatus tracks the lifecycle of an address request
type RequestStatus string

const (
	RequestStatusSent      RequestStatus = "sent"
	RequestStatusFulfilled RequestStatus = "fulfilled"
)

// AddressRequest records that a giver asked a recipient for their
// shipping address. This record, not the outbound message, is the
// source of truth for "a request was made".
type AddressRequest struct {
	ID             string        `json:"id" gorm:"primaryKey"`
	UserID         string        `json:"user_id" gorm:"index;not null"`
	RecipientEmail string        `json:"recipient_email" gorm:"index;not null"`
	RecipientName  string        `json:"recipient_name,omitempty"`
	Message        string        `json:"message,omitempty"`
	Status         RequestStatus `json:"status" gorm:"default:sent"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// RequestRepository defines access to address-request records
type RequestRepository interface {
	Create(request *AddressRequest) error
	CountByUser(userID, recipientEmail string) (int64, error)
}

// requestRepository implements RequestRepository using GORM
type requestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(request *AddressRequest) error {
	if request.ID == "" {
		request.ID = uuid.New().String()
	}
	request.CreatedAt = time.Now()
	request.UpdatedAt = time.Now()
	return r.db.Create(request).Error
}

func (r *requestRepository) CountByUser(userID, recipientEmail string) (int64, error) {
	var count int64
	err := r.db.Model(&AddressRequest{}).
		Where("user_id = ? AND recipient_email = ?", userID, recipientEmail).
		Count(&count).Error
	return count, err
}
