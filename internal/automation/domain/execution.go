package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"giftwise-backend/pkg/catalog"
)

// ExecutionStatus is the state machine of a gift execution
type ExecutionStatus string

const (
	StatusPending    ExecutionStatus = "pending"
	StatusProcessing ExecutionStatus = "processing"
	StatusCompleted  ExecutionStatus = "completed"
	StatusFailed     ExecutionStatus = "failed"
	StatusCancelled  ExecutionStatus = "cancelled"
	// No address source exists; an address request was just sent and the
	// execution waits for an external event
	StatusAddressRequired ExecutionStatus = "address_required"
	// Still no address, but a request is already on record from an
	// earlier encounter
	StatusPendingAddress ExecutionStatus = "pending_address"
)

// Terminal reports whether the status ends the execution's lifecycle
func (s ExecutionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ProductList stores the selected products as a JSON column
type ProductList []catalog.Item

func (l ProductList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

func (l *ProductList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return errors.New("unsupported type for ProductList")
	}
}

// Total sums the selected product prices
func (l ProductList) Total() float64 {
	total := 0.0
	for _, p := range l {
		total += p.Price
	}
	return total
}

// GiftExecution is one scheduled occurrence of a rule firing. Created
// when the trigger date approaches, mutated only by the execution
// lifecycle manager, never deleted — only terminally stated.
//
// Invariant: TotalAmount, when set, equals the sum of SelectedProducts
// prices and does not exceed the rule's budget at time of selection.
type GiftExecution struct {
	ID          string `json:"id" gorm:"primaryKey"`
	RuleID      string `json:"rule_id" gorm:"index;not null"`
	UserID      string `json:"user_id" gorm:"index;not null"`
	RecipientID string `json:"recipient_id"`

	// Triggering occurrence. EventType carries the linked calendar
	// event's type when the execution was created from one.
	EventID     string    `json:"event_id,omitempty"`
	EventType   string    `json:"event_type,omitempty"`
	TriggerDate time.Time `json:"trigger_date"`

	Status           ExecutionStatus `json:"status" gorm:"index;default:pending"`
	SelectedProducts ProductList     `json:"selected_products" gorm:"type:text"`
	TotalAmount      float64         `json:"total_amount"`
	SelectionTier    string          `json:"selection_tier,omitempty"`
	Confidence       float64         `json:"confidence,omitempty"`

	// Address-resolution metadata persisted from the resolver result
	AddressSource            string `json:"address_source,omitempty"`
	AddressVerified          bool   `json:"address_verified"`
	AddressNeedsConfirmation bool   `json:"address_needs_confirmation"`

	ErrorMessage string `json:"error_message,omitempty"`
	RetryCount   int    `json:"retry_count" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
