package repository

import (
	"time"

	"giftwise-backend/internal/people/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConnectionRepository defines access to giver-recipient connections
type ConnectionRepository interface {
	// FindAccepted returns the accepted connection between a giver and
	// recipient, or nil when none exists
	FindAccepted(userID, recipientID string) (*domain.Connection, error)

	// FindPendingWithAddress returns the giver's pending invitation toward
	// the recipient that carries a structurally valid address. When the
	// recipient identifier cannot be matched (invitee has no account yet)
	// it falls back to any of the giver's pending invitations with a
	// valid address.
	FindPendingWithAddress(userID, recipientID string) (*domain.Connection, error)

	Save(conn *domain.Connection) error
}

// connectionRepository implements ConnectionRepository using GORM
type connectionRepository struct {
	db *gorm.DB
}

func NewConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

func (r *connectionRepository) FindAccepted(userID, recipientID string) (*domain.Connection, error) {
	var conn domain.Connection
	err := r.db.Where("user_id = ? AND recipient_id = ? AND status = ?",
		userID, recipientID, domain.ConnectionStatusAccepted).First(&conn).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepository) FindPendingWithAddress(userID, recipientID string) (*domain.Connection, error) {
	var pending []domain.Connection
	err := r.db.Where("user_id = ? AND status = ?", userID, domain.ConnectionStatusPending).
		Order("created_at DESC").Find(&pending).Error
	if err != nil {
		return nil, err
	}

	// Prefer an invitation matched by recipient identifier
	for i := range pending {
		if pending[i].RecipientID == recipientID && pending[i].HasAddress() {
			return &pending[i], nil
		}
	}
	// Fall back to any pending invitation carrying a valid address
	for i := range pending {
		if pending[i].HasAddress() {
			return &pending[i], nil
		}
	}
	return nil, nil
}

func (r *connectionRepository) Save(conn *domain.Connection) error {
	if conn.ID == "" {
		conn.ID = uuid.New().String()
		conn.CreatedAt = time.Now()
	}
	conn.UpdatedAt = time.Now()
	return r.db.Save(conn).Error
}
