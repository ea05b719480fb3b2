package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CriteriaSource is the tagged variant selector for gift-selection
// criteria. "specific" requires a product identifier.
type CriteriaSource string

const (
	CriteriaSourceWishlist CriteriaSource = "wishlist"
	CriteriaSourceAI       CriteriaSource = "ai"
	CriteriaSourceBoth     CriteriaSource = "both"
	CriteriaSourceSpecific CriteriaSource = "specific"
)

// GiftSelectionCriteria is the user-authored policy for how gifts get
// picked. Stored as a JSON column on the rule.
type GiftSelectionCriteria struct {
	Source            CriteriaSource `json:"source"`
	SpecificProductID string         `json:"specific_product_id,omitempty"`
	IncludeCategories []string       `json:"include_categories,omitempty"`
	ExcludeCategories []string       `json:"exclude_categories,omitempty"`
	MinPrice          float64        `json:"min_price,omitempty"`
	MaxPrice          float64        `json:"max_price,omitempty"`
}

func (c GiftSelectionCriteria) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	return string(b), err
}

func (c *GiftSelectionCriteria) Scan(value interface{}) error {
	if value == nil {
		*c = GiftSelectionCriteria{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return errors.New("unsupported type for GiftSelectionCriteria")
	}
}

// Validate rejects malformed criteria synchronously at the API boundary
func (c GiftSelectionCriteria) Validate() error {
	switch c.Source {
	case CriteriaSourceWishlist, CriteriaSourceAI, CriteriaSourceBoth:
	case CriteriaSourceSpecific:
		if c.SpecificProductID == "" {
			return errors.New("specific gift selection requires a product id")
		}
	case "":
		return errors.New("gift selection source is required")
	default:
		return fmt.Errorf("unknown gift selection source %q", c.Source)
	}
	if c.MinPrice < 0 || c.MaxPrice < 0 {
		return errors.New("price bounds must not be negative")
	}
	if c.MaxPrice > 0 && c.MinPrice > c.MaxPrice {
		return errors.New("min price must not exceed max price")
	}
	return nil
}

// AutomationRule is a user-authored automation policy. One rule backs
// many executions over time, one per occurrence. Paused rules are
// soft-disabled via Active, never hard-deleted by the pipeline.
type AutomationRule struct {
	ID          string `json:"id" gorm:"primaryKey"`
	UserID      string `json:"user_id" gorm:"index;not null"`
	RecipientID string `json:"recipient_id" gorm:"index;not null"`

	// Trigger: a recurring date type, or a linked calendar event
	DateType string `json:"date_type,omitempty"`
	EventID  string `json:"event_id,omitempty" gorm:"index"`

	// No column default on the booleans: GORM skips zero-value fields on
	// insert, so a default of true would silently flip a rule created
	// paused (or with notifications off) back on
	Active      bool                  `json:"active"`
	BudgetLimit float64               `json:"budget_limit" gorm:"not null"`
	Criteria    GiftSelectionCriteria `json:"criteria" gorm:"type:text"`
	AutoApprove bool                  `json:"auto_approve"`

	NotifyDaysBefore  int  `json:"notify_days_before" gorm:"default:3"`
	NotifyOnExecution bool `json:"notify_on_execution"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
