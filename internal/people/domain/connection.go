package domain

import "time"

// ConnectionStatus is the lifecycle state of a giver-recipient connection
type ConnectionStatus string

const (
	ConnectionStatusPending  ConnectionStatus = "pending"
	ConnectionStatusAccepted ConnectionStatus = "accepted"
	ConnectionStatusDeclined ConnectionStatus = "declined"
)

// Connection links a giver to a recipient. A pending connection is an
// invitation; the giver may supply a shipping address at invitation time
// (for invitees who have no account yet), which the resolver treats as
// unverified until the recipient confirms it.
type Connection struct {
	ID          string           `json:"id" gorm:"primaryKey"`
	UserID      string           `json:"user_id" gorm:"index;not null"`
	RecipientID string           `json:"recipient_id" gorm:"index"`
	Status      ConnectionStatus `json:"status" gorm:"default:pending"`

	// Invitee identity for pending invitations without an account
	InviteeEmail string `json:"invitee_email,omitempty"`
	InviteeName  string `json:"invitee_name,omitempty"`

	// Giver-provided shipping address captured at invitation time
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasAddress reports structural validity of the giver-provided address:
// all four core fields present and non-empty. No deliverability check
// happens at this layer.
func (c *Connection) HasAddress() bool {
	return c.Street != "" && c.City != "" && c.State != "" && c.PostalCode != ""
}
